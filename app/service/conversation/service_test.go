package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu       sync.Mutex
	messages []string
	replies  map[string]string
	failNext error
	reply    string
	block    chan struct{}
	waiting  int
}

func (h *fakeHandle) SendMessage(_ context.Context, text string) (string, error) {
	h.mu.Lock()
	block := h.block
	if block != nil {
		h.waiting++
	}
	h.mu.Unlock()

	if block != nil {
		<-block
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.failNext != nil {
		err := h.failNext
		h.failNext = nil
		return "", err
	}

	h.messages = append(h.messages, text)

	if reply, ok := h.replies[text]; ok {
		return reply, nil
	}

	return h.reply, nil
}

func (h *fakeHandle) blocked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.waiting > 0
}

func (h *fakeHandle) sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string{}, h.messages...)
}

type fakeAPI struct {
	mu       sync.Mutex
	handle   *fakeHandle
	upcoming []*fakeHandle
	startErr error
}

func (a *fakeAPI) StartSession(context.Context) (SessionHandle, error) {
	if a.startErr != nil {
		return nil, a.startErr
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.upcoming) > 0 {
		a.handle = a.upcoming[0]
		a.upcoming = a.upcoming[1:]
	}

	return a.handle, nil
}

func newTestClient(t *testing.T, handle *fakeHandle) *Client {
	t.Helper()

	c := NewWithAPI(&fakeAPI{handle: handle})
	require.NoError(t, c.StartSession(context.Background()))

	return c
}

func TestSendPrimesExactlyOnce(t *testing.T) {
	handle := &fakeHandle{reply: "sure"}
	c := newTestClient(t, handle)

	for i := 0; i < 3; i++ {
		reply, err := c.Send(context.Background(), "find sushi")
		require.NoError(t, err)
		require.Equal(t, "sure", reply)
	}

	sent := handle.sent()
	require.Len(t, sent, 4)
	require.Equal(t, systemPrompt, sent[0])

	for _, msg := range sent[1:] {
		require.NotEqual(t, systemPrompt, msg)
	}
}

func TestPrimingFailureIsRetriedNextCall(t *testing.T) {
	handle := &fakeHandle{reply: "ok", failNext: errors.New("boom")}
	c := newTestClient(t, handle)

	_, err := c.Send(context.Background(), "find sushi")
	require.Error(t, err)
	require.Equal(t, ErrorTransient, Classify(err))

	c.mu.Lock()
	primed := c.primed
	c.mu.Unlock()
	require.False(t, primed)

	reply, err := c.Send(context.Background(), "find sushi")
	require.NoError(t, err)
	require.Equal(t, "ok", reply)

	// Retry transmitted the system prompt once, then the user text.
	require.Equal(t, []string{systemPrompt, "find sushi"}, handle.sent())
}

func TestSendRejectsWhileInFlight(t *testing.T) {
	c := newTestClient(t, &fakeHandle{reply: "ok"})

	c.mu.Lock()
	c.inFlight = true
	c.mu.Unlock()

	_, err := c.Send(context.Background(), "anything")
	require.ErrorIs(t, err, ErrBusy)
}

func TestSendWithoutSession(t *testing.T) {
	c := NewWithAPI(&fakeAPI{handle: &fakeHandle{}})

	_, err := c.Send(context.Background(), "anything")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestEmptyReplyClassification(t *testing.T) {
	c := newTestClient(t, &fakeHandle{reply: "   "})

	_, err := c.Send(context.Background(), "find sushi")
	require.Error(t, err)
	require.Equal(t, ErrorEmptyResponse, Classify(err))
}

func TestCloseInvalidatesToken(t *testing.T) {
	c := newTestClient(t, &fakeHandle{reply: "ok"})

	token := c.Token()
	require.NotEmpty(t, token)

	c.Close()
	require.Empty(t, c.Token())

	require.NoError(t, c.StartSession(context.Background()))
	require.NotEmpty(t, c.Token())
	require.NotEqual(t, token, c.Token())
}

func TestStalePrimingDoesNotMarkNewSession(t *testing.T) {
	first := &fakeHandle{reply: "ok", block: make(chan struct{})}
	second := &fakeHandle{reply: "ok"}
	c := NewWithAPI(&fakeAPI{upcoming: []*fakeHandle{first, second}})
	require.NoError(t, c.StartSession(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "first")
		done <- err
	}()

	require.Eventually(t, first.blocked, 2*time.Second, 5*time.Millisecond)

	// Session turnover while the priming exchange is still in flight: the
	// stale call must not mark the new session primed or clear its flags.
	c.Close()
	require.NoError(t, c.StartSession(context.Background()))

	close(first.block)
	require.NoError(t, <-done)

	c.mu.Lock()
	primed, inFlight := c.primed, c.inFlight
	c.mu.Unlock()
	require.False(t, primed)
	require.False(t, inFlight)

	// The new session still transmits the system prompt first.
	_, err := c.Send(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, []string{systemPrompt, "second"}, second.sent())
}

func TestStartSessionResetsPriming(t *testing.T) {
	handle := &fakeHandle{reply: "ok"}
	c := newTestClient(t, handle)

	_, err := c.Send(context.Background(), "first")
	require.NoError(t, err)

	require.NoError(t, c.StartSession(context.Background()))

	_, err = c.Send(context.Background(), "second")
	require.NoError(t, err)

	sent := handle.sent()
	require.Equal(t, []string{systemPrompt, "first", systemPrompt, "second"}, sent)
}
