package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/rajjagirdar007/platemateuh/app/client/speechkit"
	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/rajjagirdar007/platemateuh/app/service/queue"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

const bufferSize = 4096

// Service captures audio and feeds it through streaming recognition. At
// most one recognition task is active at a time. Partial transcripts only
// replace the in-memory current transcription; a non-empty final transcript
// is pushed to the transcript queue as if it were typed input.
type Service struct {
	cfg         *config.Config
	permissions PermissionProvider
	recognizer  Recognizer
	source      AudioSource
	queue       *queue.Service

	mu            sync.Mutex
	state         CaptureState
	transcription string
	// generation stamps each capture task; events from a superseded
	// generation are dropped, which makes cancellation synchronous from
	// the caller's perspective.
	generation int
	cancelTask context.CancelFunc
	audio      io.ReadCloser
	stream     RecognitionStream
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	var recognizer Recognizer
	if cfg.Speech.VoiceInput {
		recognizer = speechkitRecognizer{client: do.MustInvoke[*speechkit.Recognizer](di)}
	}

	return NewWithProviders(
		cfg,
		staticPermission{granted: cfg.Speech.VoiceInput && cfg.Speech.InputDevice != ""},
		recognizer,
		ffmpegSource{cfg: cfg},
		do.MustInvoke[*queue.Service](di),
	), nil
}

// NewWithProviders builds the service on custom collaborators.
func NewWithProviders(cfg *config.Config, permissions PermissionProvider, recognizer Recognizer, source AudioSource, q *queue.Service) *Service {
	return &Service{
		cfg:         cfg,
		permissions: permissions,
		recognizer:  recognizer,
		source:      source,
		queue:       q,
	}
}

// StartListening requests permission, opens the audio tap and starts a
// recognition task. It is a no-op unless the service is Idle.
func (s *Service) StartListening(ctx context.Context) error {
	if !s.cfg.Speech.VoiceInput {
		return ErrVoiceInputDisabled
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.state = StateAwaitingPermission
	s.mu.Unlock()

	granted, err := s.permissions.RequestPermission(ctx)
	if err != nil || !granted {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()

		if err != nil {
			return oops.Errorf("microphone permission request failed: %w", err)
		}

		return ErrPermissionDenied
	}

	s.mu.Lock()
	s.cancelTaskLocked()
	s.generation++
	gen := s.generation

	taskCtx, cancel := context.WithCancel(ctx)
	s.cancelTask = cancel
	s.mu.Unlock()

	audio, err := s.source.Open(taskCtx)
	if err != nil {
		s.abortStart(cancel)
		return oops.Errorf("failed to open audio capture: %w", err)
	}

	stream, err := s.recognizer.Start(taskCtx)
	if err != nil {
		_ = audio.Close()
		s.abortStart(cancel)
		return oops.Errorf("failed to start recognition: %w", err)
	}

	s.mu.Lock()
	s.audio = audio
	s.stream = stream
	s.state = StateRecording
	s.mu.Unlock()

	go s.runCapture(taskCtx, gen, audio, stream)

	return nil
}

// StopListening signals end-of-audio for a graceful finalize. The
// recognizer's final event (or error) completes the transition back to
// Idle. No-op unless Recording.
func (s *Service) StopListening() {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	audio := s.audio
	s.mu.Unlock()

	// Closing the tap ends the audio pump, which finalizes the stream.
	if audio != nil {
		_ = audio.Close()
	}
}

// Cancel hard-cancels any active recognition task. No events from the
// cancelled task reach the queue afterwards.
func (s *Service) Cancel() {
	s.mu.Lock()
	s.cancelTaskLocked()
	s.generation++
	s.transcription = ""
	s.state = StateIdle
	audio := s.audio
	stream := s.stream
	s.audio = nil
	s.stream = nil
	s.mu.Unlock()

	if audio != nil {
		_ = audio.Close()
	}
	if stream != nil {
		_ = stream.Close()
	}
}

// CurrentTranscription returns the latest partial transcript. It is never
// persisted or forwarded anywhere.
func (s *Service) CurrentTranscription() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transcription
}

func (s *Service) State() CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Service) cancelTaskLocked() {
	if s.cancelTask != nil {
		s.cancelTask()
		s.cancelTask = nil
	}
}

func (s *Service) abortStart(cancel context.CancelFunc) {
	cancel()

	s.mu.Lock()
	s.state = StateIdle
	s.cancelTask = nil
	s.mu.Unlock()
}

func (s *Service) runCapture(ctx context.Context, gen int, audio io.Reader, stream RecognitionStream) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.streamAudio(ctx, audio, stream)
	})

	g.Go(func() error {
		return s.receiveEvents(ctx, gen, stream)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("capture task ended with error", "error", err)
	}

	_ = stream.Close()
	if closer, ok := audio.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (s *Service) streamAudio(ctx context.Context, audio io.Reader, stream RecognitionStream) error {
	if err := stream.SendConfig(); err != nil {
		return oops.Errorf("failed to send audio config: %w", err)
	}

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			n, err := audio.Read(buffer)
			if err != nil {
				// Tap closed or exhausted: finalize so the recognizer
				// flushes whatever it heard.
				_ = stream.Finalize()
				return nil
			}

			if n == 0 {
				continue
			}

			if err = stream.Send(buffer[:n]); err != nil {
				return nil
			}
		}
	}
}

func (s *Service) receiveEvents(ctx context.Context, gen int, stream RecognitionStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := stream.Recv()
		if err != nil {
			s.finishTask(gen, "", err)
			return nil
		}

		if event == nil {
			continue
		}

		if !event.Final {
			s.applyPartial(gen, event.Text)
			continue
		}

		s.finishTask(gen, event.Text, nil)
		return nil
	}
}

func (s *Service) applyPartial(gen int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}

	s.transcription = text
}

// finishTask releases the capture session, resets to Idle and forwards a
// non-empty final transcript. Results from superseded generations are
// dropped entirely.
func (s *Service) finishTask(gen int, finalText string, cause error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}

	s.transcription = ""
	s.state = StateIdle
	s.cancelTaskLocked()
	audio := s.audio
	stream := s.stream
	s.audio = nil
	s.stream = nil
	s.mu.Unlock()

	if audio != nil {
		_ = audio.Close()
	}
	if stream != nil {
		_ = stream.Close()
	}

	if cause != nil {
		if !errors.Is(cause, context.Canceled) && !errors.Is(cause, io.EOF) {
			slog.Warn("recognition failed", "error", cause)
		}
		return
	}

	if text := strings.TrimSpace(finalText); text != "" {
		s.queue.Add(text)
	}
}
