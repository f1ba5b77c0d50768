package speech

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/rajjagirdar007/platemateuh/app/service/queue"
	"github.com/stretchr/testify/require"
)

type streamResult struct {
	event *Event
	err   error
}

type fakeStream struct {
	mu        sync.Mutex
	events    chan streamResult
	done      chan struct{}
	closeOnce sync.Once
	finalText string
	chunks    int
}

func newFakeStream(finalText string) *fakeStream {
	return &fakeStream{
		events:    make(chan streamResult, 8),
		done:      make(chan struct{}),
		finalText: finalText,
	}
}

func (s *fakeStream) SendConfig() error { return nil }

func (s *fakeStream) Send([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks++
	return nil
}

func (s *fakeStream) Recv() (*Event, error) {
	select {
	case r := <-s.events:
		return r.event, r.err
	case <-s.done:
		return nil, io.EOF
	}
}

func (s *fakeStream) Finalize() error {
	s.emit(streamResult{event: &Event{Final: true, Text: s.finalText}})
	return nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *fakeStream) emit(r streamResult) {
	select {
	case s.events <- r:
	default:
	}
}

func (s *fakeStream) sentChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.chunks
}

// fakeRecognizer mints a fresh stream per capture, like a real streaming
// recognizer would.
type fakeRecognizer struct {
	mu        sync.Mutex
	finalText string
	streams   []*fakeStream
}

func (r *fakeRecognizer) Start(context.Context) (RecognitionStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream := newFakeStream(r.finalText)
	r.streams = append(r.streams, stream)

	return stream, nil
}

func (r *fakeRecognizer) last() *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.streams) == 0 {
		return nil
	}

	return r.streams[len(r.streams)-1]
}

func (r *fakeRecognizer) setFinalText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finalText = text
}

type fakeSource struct {
	mu     sync.Mutex
	writer *io.PipeWriter
}

func (s *fakeSource) Open(context.Context) (io.ReadCloser, error) {
	reader, writer := io.Pipe()

	s.mu.Lock()
	s.writer = writer
	s.mu.Unlock()

	return reader, nil
}

func voiceConfig(enabled bool) *config.Config {
	return &config.Config{
		Speech: config.Speech{
			VoiceInput:  enabled,
			InputFormat: "alsa",
			InputDevice: "default",
			Language:    "en-US",
		},
	}
}

func newTestService(t *testing.T, finalText string, granted bool) (*Service, *fakeRecognizer, *queue.Service) {
	t.Helper()

	q, err := queue.New(nil)
	require.NoError(t, err)

	rec := &fakeRecognizer{finalText: finalText}
	s := NewWithProviders(
		voiceConfig(true),
		staticPermission{granted: granted},
		rec,
		&fakeSource{},
		q,
	)

	return s, rec, q
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestStartListeningRefusedWhenVoiceInputDisabled(t *testing.T) {
	q, err := queue.New(nil)
	require.NoError(t, err)

	s := NewWithProviders(voiceConfig(false), staticPermission{granted: true}, nil, nil, q)

	require.ErrorIs(t, s.StartListening(context.Background()), ErrVoiceInputDisabled)
	require.Equal(t, StateIdle, s.State())
}

func TestStartListeningPermissionDenied(t *testing.T) {
	s, _, _ := newTestService(t, "", false)

	require.ErrorIs(t, s.StartListening(context.Background()), ErrPermissionDenied)
	require.Equal(t, StateIdle, s.State())
}

func TestStartListeningIsNoOpWhileActive(t *testing.T) {
	s, rec, _ := newTestService(t, "", true)
	defer s.Cancel()

	require.NoError(t, s.StartListening(context.Background()))
	require.Equal(t, StateRecording, s.State())

	require.NoError(t, s.StartListening(context.Background()))

	// The second call never reached the recognizer.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.streams, 1)
}

func TestStopListeningIsNoOpWhileIdle(t *testing.T) {
	s, _, _ := newTestService(t, "", true)

	s.StopListening()
	require.Equal(t, StateIdle, s.State())
}

func TestPartialReplacesTranscription(t *testing.T) {
	s, rec, _ := newTestService(t, "", true)
	defer s.Cancel()

	require.NoError(t, s.StartListening(context.Background()))
	stream := rec.last()
	require.NotNil(t, stream)

	stream.emit(streamResult{event: &Event{Text: "find"}})
	require.Eventually(t, func() bool { return s.CurrentTranscription() == "find" }, waitFor, tick)

	stream.emit(streamResult{event: &Event{Text: "find tacos"}})
	require.Eventually(t, func() bool { return s.CurrentTranscription() == "find tacos" }, waitFor, tick)
}

func TestStopListeningFinalizesAndForwards(t *testing.T) {
	s, rec, q := newTestService(t, "find me tacos", true)

	require.NoError(t, s.StartListening(context.Background()))

	rec.last().emit(streamResult{event: &Event{Text: "find me"}})
	require.Eventually(t, func() bool { return s.CurrentTranscription() == "find me" }, waitFor, tick)

	s.StopListening()

	select {
	case transcript := <-q.Channel():
		require.Equal(t, "find me tacos", transcript.Text)
	case <-time.After(waitFor):
		t.Fatal("final transcript never reached the queue")
	}

	require.Eventually(t, func() bool { return s.State() == StateIdle }, waitFor, tick)
	require.Empty(t, s.CurrentTranscription())
}

func TestAudioChunksReachTheStream(t *testing.T) {
	q, err := queue.New(nil)
	require.NoError(t, err)

	rec := &fakeRecognizer{}
	source := &fakeSource{}
	s := NewWithProviders(voiceConfig(true), staticPermission{granted: true}, rec, source, q)
	defer s.Cancel()

	require.NoError(t, s.StartListening(context.Background()))

	source.mu.Lock()
	writer := source.writer
	source.mu.Unlock()
	require.NotNil(t, writer)

	_, err = writer.Write(make([]byte, 512))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.last().sentChunks() > 0 }, waitFor, tick)
}

func TestRecognitionErrorReturnsToIdle(t *testing.T) {
	s, rec, q := newTestService(t, "", true)

	require.NoError(t, s.StartListening(context.Background()))

	rec.last().emit(streamResult{err: errors.New("recognizer gone")})

	require.Eventually(t, func() bool { return s.State() == StateIdle }, waitFor, tick)
	require.Empty(t, s.CurrentTranscription())

	select {
	case transcript := <-q.Channel():
		t.Fatalf("unexpected transcript after failure: %q", transcript.Text)
	default:
	}
}

func TestEmptyFinalIsNotForwarded(t *testing.T) {
	s, _, q := newTestService(t, "   ", true)

	require.NoError(t, s.StartListening(context.Background()))
	s.StopListening()

	require.Eventually(t, func() bool { return s.State() == StateIdle }, waitFor, tick)

	select {
	case transcript := <-q.Channel():
		t.Fatalf("unexpected transcript: %q", transcript.Text)
	default:
	}
}

func TestCancelDropsLateEvents(t *testing.T) {
	s, rec, q := newTestService(t, "", true)

	require.NoError(t, s.StartListening(context.Background()))
	stream := rec.last()

	stream.emit(streamResult{event: &Event{Text: "half a"}})
	require.Eventually(t, func() bool { return s.CurrentTranscription() == "half a" }, waitFor, tick)

	s.Cancel()
	require.Equal(t, StateIdle, s.State())
	require.Empty(t, s.CurrentTranscription())

	// Events from the cancelled generation must not resurface anywhere.
	stream.emit(streamResult{event: &Event{Final: true, Text: "half a sandwich"}})
	time.Sleep(50 * time.Millisecond)

	require.Empty(t, s.CurrentTranscription())
	require.Equal(t, StateIdle, s.State())

	select {
	case transcript := <-q.Channel():
		t.Fatalf("cancelled capture leaked transcript: %q", transcript.Text)
	default:
	}
}

func TestRestartAfterStop(t *testing.T) {
	s, rec, q := newTestService(t, "first", true)

	require.NoError(t, s.StartListening(context.Background()))
	s.StopListening()

	select {
	case transcript := <-q.Channel():
		require.Equal(t, "first", transcript.Text)
	case <-time.After(waitFor):
		t.Fatal("final transcript never reached the queue")
	}

	require.Eventually(t, func() bool { return s.State() == StateIdle }, waitFor, tick)

	rec.setFinalText("second")
	require.NoError(t, s.StartListening(context.Background()))
	require.Equal(t, StateRecording, s.State())
	s.StopListening()

	select {
	case transcript := <-q.Channel():
		require.Equal(t, "second", transcript.Text)
	case <-time.After(waitFor):
		t.Fatal("second transcript never reached the queue")
	}
}
