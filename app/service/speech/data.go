package speech

import (
	"context"
	"errors"
	"io"

	"github.com/rajjagirdar007/platemateuh/app/client/speechkit"
)

type CaptureState int

const (
	StateIdle CaptureState = iota
	StateAwaitingPermission
	StateRecording
	StateFinalizing
)

func (s CaptureState) String() string {
	switch s {
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

var (
	// ErrVoiceInputDisabled is returned when the voice_input feature flag
	// is off; capture must not even be attempted.
	ErrVoiceInputDisabled = errors.New("voice input is disabled")
	// ErrPermissionDenied is returned when the microphone permission
	// provider refuses access.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Event is one recognizer output: a replaceable partial transcript or a
// finalized utterance.
type Event struct {
	Final bool
	Text  string
}

// Recognizer opens streaming recognition tasks.
type Recognizer interface {
	Start(ctx context.Context) (RecognitionStream, error)
}

// RecognitionStream is one active recognition task. Finalize signals
// end-of-audio so the recognizer flushes a final transcript; Close cancels
// without waiting.
type RecognitionStream interface {
	SendConfig() error
	Send(chunk []byte) error
	Recv() (*Event, error)
	Finalize() error
	Close() error
}

// AudioSource opens the capture session delivering raw PCM audio.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// PermissionProvider answers whether audio capture is allowed.
type PermissionProvider interface {
	RequestPermission(ctx context.Context) (bool, error)
}

type staticPermission struct {
	granted bool
}

func (p staticPermission) RequestPermission(context.Context) (bool, error) {
	return p.granted, nil
}

type speechkitRecognizer struct {
	client *speechkit.Recognizer
}

func (r speechkitRecognizer) Start(ctx context.Context) (RecognitionStream, error) {
	handle, err := r.client.Start(ctx)
	if err != nil {
		return nil, err
	}

	return speechkitStream{handle: handle}, nil
}

type speechkitStream struct {
	handle *speechkit.Handle
}

func (s speechkitStream) SendConfig() error      { return s.handle.SendConfig() }
func (s speechkitStream) Send(chunk []byte) error { return s.handle.Send(chunk) }
func (s speechkitStream) Finalize() error         { return s.handle.Finalize() }
func (s speechkitStream) Close() error            { return s.handle.Close() }

func (s speechkitStream) Recv() (*Event, error) {
	ev, err := s.handle.Recv()
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, nil
	}

	return &Event{
		Final: ev.Kind == speechkit.EventFinal,
		Text:  ev.Text,
	}, nil
}
