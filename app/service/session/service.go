package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rajjagirdar007/platemateuh/app/service/conversation"
	"github.com/rajjagirdar007/platemateuh/app/service/extract"
	"github.com/rajjagirdar007/platemateuh/app/service/location"
	"github.com/rajjagirdar007/platemateuh/app/service/queue"
	"github.com/rajjagirdar007/platemateuh/app/service/speech"
	"github.com/rajjagirdar007/platemateuh/app/service/store"
	"github.com/rajjagirdar007/platemateuh/app/util/geo"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service is the orchestrator: it owns the chat history, wires user input
// (typed or transcribed) into the conversation client, augments prompts
// with location context and routes replies through the extractor back into
// history. History is single-writer; everything else reaches the service
// through callbacks.
type Service struct {
	appCtx      context.Context
	convo       *conversation.Client
	locationSvc *location.Service
	speechSvc   *speech.Service
	extractor   *extract.Extractor
	store       *store.Service
	queue       *queue.Service

	mu               sync.RWMutex
	state            State
	history          []ChatMessage
	processing       bool
	locationPrompted bool
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		appCtx:      do.MustInvoke[context.Context](di),
		convo:       do.MustInvoke[*conversation.Client](di),
		locationSvc: do.MustInvoke[*location.Service](di),
		speechSvc:   do.MustInvoke[*speech.Service](di),
		extractor:   do.MustInvoke[*extract.Extractor](di),
		store:       do.MustInvoke[*store.Service](di),
		queue:       do.MustInvoke[*queue.Service](di),
	}

	s.rehydrate()

	s.locationSvc.OnFix(s.recomputeDistances)

	return s, nil
}

func (s *Service) rehydrate() {
	blob, ok, err := s.store.LoadState()
	if err != nil {
		slog.Warn("failed to load persisted state", "error", err)
		return
	}
	if !ok {
		return
	}

	var state persistedState
	if err := json.Unmarshal(blob, &state); err != nil {
		slog.Warn("failed to parse persisted state", "error", err)
		return
	}

	s.history = state.Messages
}

// Connect opens the conversation session. On the very first connect a
// welcome message is appended. A session init failure reverts to
// Disconnected and is reported, not retried.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.convo.StartSession(ctx); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()

		return oops.Errorf("failed to connect: %w", err)
	}

	s.mu.Lock()
	s.state = StateConnected
	var blob []byte
	if len(s.history) == 0 {
		s.appendLocked(ChatMessage{
			ID:        uuid.NewString(),
			Text:      welcomeText,
			Sender:    SenderAssistant,
			Timestamp: time.Now(),
			Kind:      KindWelcome,
		})
		blob = s.snapshotLocked()
	}
	s.mu.Unlock()

	s.persist(blob)

	return nil
}

// Disconnect cancels any in-flight capture task, invalidates the session
// token (so late API replies are discarded) and tears the session down.
func (s *Service) Disconnect() {
	s.speechSvc.Cancel()
	s.convo.Close()

	s.mu.Lock()
	s.state = StateDisconnected
	s.processing = false
	s.locationPrompted = false
	s.mu.Unlock()
}

// SubmitUserText accepts a query, appends it to history and dispatches the
// augmented prompt. Rejected (with a reason) unless Connected, non-empty
// after trimming and not already processing.
func (s *Service) SubmitUserText(text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if text == "" {
		s.mu.Unlock()
		return ErrEmptyInput
	}
	if s.processing {
		s.mu.Unlock()
		return ErrProcessing
	}
	s.processing = true
	s.mu.Unlock()

	if err := s.store.AddRecentSearch(text); err != nil {
		slog.Warn("failed to record recent search", "error", err)
	}

	s.append(ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    SenderUser,
		Timestamp: time.Now(),
		Kind:      KindText,
	})

	prompt, needsPermission := s.buildPrompt(text)
	if needsPermission {
		s.raiseLocationRequest()
	}

	token := s.convo.Token()

	go s.dispatch(token, prompt)

	return nil
}

// buildPrompt embeds exact coordinates when a fix exists, generic "nearby"
// phrasing otherwise. The second return value asks for the
// location-permission signal when access has been denied outright.
func (s *Service) buildPrompt(text string) (string, bool) {
	if fix, ok := s.locationSvc.CurrentFix(); ok {
		return fmt.Sprintf(
			"The user is at latitude %.6f, longitude %.6f (near %s). Their request: %s",
			fix.Latitude, fix.Longitude, s.locationSvc.PlaceName(), text,
		), false
	}

	prompt := fmt.Sprintf("The user is looking for places nearby. Their request: %s", text)

	return prompt, s.locationSvc.Status().Blocked()
}

func (s *Service) raiseLocationRequest() {
	s.mu.Lock()
	if s.locationPrompted {
		s.mu.Unlock()
		return
	}
	s.locationPrompted = true
	s.mu.Unlock()

	s.append(ChatMessage{
		ID:        uuid.NewString(),
		Text:      locationRequestText,
		Sender:    SenderAssistant,
		Timestamp: time.Now(),
		Kind:      KindLocationRequest,
	})
}

func (s *Service) dispatch(token, prompt string) {
	reply, err := s.convo.Send(s.appCtx, prompt)
	s.finishRequest(token, reply, err)
}

// finishRequest applies one completed exchange to history. A reply whose
// token no longer matches the current session is discarded outright. A
// failure appends exactly one fallback message, keyed by error class.
func (s *Service) finishRequest(token, reply string, sendErr error) {
	if token == "" || token != s.convo.Token() {
		slog.Debug("discarding reply for stale session token")
		return
	}

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	if sendErr != nil {
		s.append(ChatMessage{
			ID:        uuid.NewString(),
			Text:      fallbackText(conversation.Classify(sendErr) == conversation.ErrorTransient),
			Sender:    SenderAssistant,
			Timestamp: time.Now(),
			Kind:      KindError,
		})

		slog.Warn("conversation request failed", "error", sendErr)
		return
	}

	var fixPtr *location.Fix
	if fix, ok := s.locationSvc.CurrentFix(); ok {
		fixPtr = &fix
	}

	entities, passthrough := s.extractor.Extract(reply, fixPtr)

	kind := KindText
	if len(entities) > 0 {
		kind = KindRestaurantList
	}

	s.append(ChatMessage{
		ID:        uuid.NewString(),
		Text:      passthrough,
		Sender:    SenderAssistant,
		Timestamp: time.Now(),
		Kind:      kind,
		Entities:  entities,
	})
}

// recomputeDistances refreshes every entity's distance from the new fix.
func (s *Service) recomputeDistances(fix location.Fix) {
	s.mu.Lock()
	for i := range s.history {
		for j := range s.history[i].Entities {
			entity := &s.history[i].Entities[j]
			distance := geo.Distance(fix.Latitude, fix.Longitude, entity.Latitude, entity.Longitude)
			entity.DistanceMeters = &distance
		}
	}
	blob := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(blob)
}

func (s *Service) append(msg ChatMessage) {
	s.mu.Lock()
	s.appendLocked(msg)
	blob := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(blob)
}

func (s *Service) appendLocked(msg ChatMessage) {
	s.history = append(s.history, msg)
}

func (s *Service) snapshotLocked() []byte {
	blob, err := json.Marshal(persistedState{Messages: s.history})
	if err != nil {
		slog.Warn("failed to snapshot history", "error", err)
		return nil
	}

	return blob
}

func (s *Service) persist(blob []byte) {
	if blob == nil {
		return
	}

	if err := s.store.SaveState(blob); err != nil {
		slog.Warn("failed to persist history", "error", err)
	}
}

// History returns a copy of the message history in append order. Entity
// slices are copied too, so a snapshot never shares storage with the
// distance recompute.
func (s *Service) History() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ChatMessage, len(s.history))
	for i, msg := range s.history {
		if len(msg.Entities) > 0 {
			msg.Entities = append([]extract.Restaurant{}, msg.Entities...)
		}
		result[i] = msg
	}

	return result
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Service) Processing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.processing
}
