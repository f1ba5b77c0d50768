package queue

import (
	"log/slog"

	"github.com/samber/do"
)

const bufferSize = 16

var _ do.Shutdownable = (*Service)(nil)

// Service buffers finalized voice transcripts between the capture service
// and the session run loop. Entries are dropped with a warning when the
// buffer is full; speech input is lossy by nature and blocking the capture
// goroutine would stall the recognizer stream.
type Service struct {
	queue chan Transcript
}

type Transcript struct {
	Text string
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Transcript, bufferSize),
	}, nil
}

func (s *Service) Add(text string) {
	defer func() {
		if r := recover(); r != nil {
			// Add after Shutdown loses the transcript, same as a full buffer.
		}
	}()

	select {
	case s.queue <- Transcript{Text: text}:
	default:
		slog.Warn("transcript queue is full, dropping transcript")
	}
}

func (s *Service) Channel() <-chan Transcript {
	return s.queue
}

func (s *Service) Shutdown() error {
	close(s.queue)

	return nil
}
