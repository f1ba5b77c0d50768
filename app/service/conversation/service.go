package conversation

import (
	"context"
	"strings"
	"sync"

	_ "embed"

	"github.com/google/uuid"
	"github.com/rajjagirdar007/platemateuh/app/client/llm"
	"github.com/samber/do"
	"github.com/samber/oops"
)

//go:embed system_prompt.txt
var systemPrompt string

// Client wraps exactly one logical conversation with the generative API.
// The system prompt is transmitted at most once per session, as an internal
// exchange before the first user message.
type Client struct {
	api ChatAPI

	mu       sync.Mutex
	handle   SessionHandle
	token    string
	primed   bool
	inFlight bool
}

func New(di *do.Injector) (*Client, error) {
	client := do.MustInvoke[*llm.Client](di)

	return NewWithAPI(chatAPIAdapter{client: client}), nil
}

// NewWithAPI builds a client on a custom backend.
func NewWithAPI(api ChatAPI) *Client {
	return &Client{api: api}
}

// StartSession opens a fresh session: unprimed, idle, with a new token.
func (c *Client) StartSession(ctx context.Context) error {
	handle, err := c.api.StartSession(ctx)
	if err != nil {
		return oops.Errorf("failed to start conversation session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handle = handle
	c.token = uuid.NewString()
	c.primed = false
	c.inFlight = false

	return nil
}

// Close tears the session down and invalidates its token, so any in-flight
// result resolving later is discarded by the caller instead of applied.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handle = nil
	c.token = ""
	c.primed = false
}

// Token returns the identifier of the current session, or "" when closed.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

// Send transmits text on the session thread and returns the reply. It
// rejects with ErrBusy while a previous send is outstanding. If the session
// is not yet primed, the system prompt is exchanged first; priming failure
// fails the whole call as transient and leaves the session unprimed so the
// next call retries it.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	if c.handle == nil {
		c.mu.Unlock()
		return "", ErrNoSession
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.inFlight = true
	handle := c.handle
	primed := c.primed
	token := c.token
	c.mu.Unlock()

	// State written after the exchange resolves belongs to the session the
	// call started on; a Close/StartSession in between must not inherit it.
	defer func() {
		c.mu.Lock()
		if c.token == token {
			c.inFlight = false
		}
		c.mu.Unlock()
	}()

	if !primed {
		if _, err := handle.SendMessage(ctx, systemPrompt); err != nil {
			return "", &APIError{
				Kind: ErrorTransient,
				Err:  oops.Errorf("failed to prime session: %w", err),
			}
		}

		c.mu.Lock()
		if c.token == token {
			c.primed = true
		}
		c.mu.Unlock()
	}

	reply, err := handle.SendMessage(ctx, text)
	if err != nil {
		return "", &APIError{
			Kind: ErrorTransient,
			Err:  oops.Errorf("failed to send message: %w", err),
		}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &APIError{
			Kind: ErrorEmptyResponse,
			Err:  oops.Errorf("model returned no usable text"),
		}
	}

	return reply, nil
}

type chatAPIAdapter struct {
	client *llm.Client
}

func (a chatAPIAdapter) StartSession(ctx context.Context) (SessionHandle, error) {
	return a.client.StartSession(ctx)
}
