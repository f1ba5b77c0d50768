package session

import (
	"errors"
	"time"

	"github.com/rajjagirdar007/platemateuh/app/service/extract"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type MessageKind string

const (
	KindText            MessageKind = "text"
	KindRestaurantList  MessageKind = "restaurant_list"
	KindLocationRequest MessageKind = "location_request"
	KindError           MessageKind = "error"
	KindWelcome         MessageKind = "welcome"
)

// ChatMessage is one entry in the append-only history. Only the session
// service mutates history; insertion order is semantic order.
type ChatMessage struct {
	ID        string               `json:"id"`
	Text      string               `json:"text"`
	Sender    Sender               `json:"sender"`
	Timestamp time.Time            `json:"timestamp"`
	Kind      MessageKind          `json:"kind"`
	Entities  []extract.Restaurant `json:"entities,omitempty"`
}

var (
	// ErrNotConnected rejects input while the session is not Connected.
	ErrNotConnected = errors.New("session is not connected")
	// ErrEmptyInput rejects input that is empty after trimming.
	ErrEmptyInput = errors.New("input is empty")
	// ErrProcessing rejects input while a previous request is still being
	// answered.
	ErrProcessing = errors.New("a request is already being processed")
)

// persistedState is the write-through snapshot stored after every history
// mutation.
type persistedState struct {
	Messages []ChatMessage `json:"messages"`
}

const welcomeText = "Hi! I'm PlateMate. Ask me for restaurants, cafés or bars nearby, by typing or by voice."

const locationRequestText = "I can give better suggestions with your location. Please enable location access in your settings."

func fallbackText(transient bool) string {
	if transient {
		return "I'm having trouble reaching the search service right now. Please try again in a moment."
	}

	return "I couldn't find anything useful for that. Try rephrasing your request."
}
