package session

import (
	"context"
	"log/slog"
	"time"
)

// Run consumes finalized voice transcripts from the queue and submits them
// exactly as typed input. It returns when ctx is cancelled or the queue is
// shut down.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case transcript, ok := <-s.queue.Channel():
			if !ok {
				return
			}

			start := time.Now()

			if err := s.SubmitUserText(transcript.Text); err != nil {
				slog.Warn("voice transcript rejected", "text", transcript.Text, "error", err)
				continue
			}

			slog.Info("Submitted voice transcript",
				"text", transcript.Text,
				"duration", time.Since(start))
		}
	}
}
