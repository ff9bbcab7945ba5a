package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/trustflow-labs/trustflow/internal/api"
	"github.com/trustflow-labs/trustflow/internal/events"
)

// sessionTitleRunes is how much of the first prompt becomes the derived
// session title.
const sessionTitleRunes = 15

// Default titles when the first prompt carries no usable text.
const (
	defaultTextTitle  = "新会话"
	defaultImageTitle = "AI 绘图"
)

// Validation and serialization errors surfaced before any network call.
var (
	ErrEmptyMessage = errors.New("chat: empty message")
	ErrSendInFlight = errors.New("chat: a send is already in flight for this session")
	ErrNoSession    = errors.New("chat: no active session")
)

// Backend is the slice of the API client the reconciler needs. api.Client
// satisfies it; tests substitute a fake.
type Backend interface {
	ListSessions(ctx context.Context) ([]api.SessionItem, error)
	CreateSession(ctx context.Context, title string) (*api.CreateSessionResponse, error)
	GetHistory(ctx context.Context, sessionID int64) ([]api.ChatMessage, error)
	Complete(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error)
}

// Models is the closed mode→model enumeration.
type Models struct {
	Text  string
	Image string
}

// Parameters are the generation knobs the settings surface edits.
type Parameters struct {
	Temperature       float64
	ImageSize         string
	NumInferenceSteps int
	BatchSize         int
}

// Reconciler owns the session store and message ledger and coordinates them
// with the backend, which is the sole source of truth. The presentation
// layer reads snapshots and dispatches intents; it never mutates state
// directly.
//
// A user message is appended optimistically before any network activity and
// is never rolled back on failure, so the user's input survives a failed
// generation. Concurrent sends against one session are rejected rather than
// interleaved.
type Reconciler struct {
	backend Backend
	broker  *events.Broker[EventPayload]
	logger  *log.Logger
	now     func() time.Time

	models Models
	params Parameters

	mu        sync.Mutex
	store     SessionStore
	ledger    Ledger
	active    int64 // 0 = no active session
	mode      Mode
	epoch     uint64 // bumped on every switch/reset; stale completions check it
	loading   bool
	sendState SendState
	inflight  map[int64]bool // keyed by session id at send start; 0 = sessionless
}

// Options configures a Reconciler.
type Options struct {
	Backend Backend
	Broker  *events.Broker[EventPayload]
	Logger  *log.Logger
	Models  Models
	Params  Parameters
	Now     func() time.Time
}

// NewReconciler builds a reconciler in text mode with an empty store and
// ledger.
func NewReconciler(opts Options) *Reconciler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	broker := opts.Broker
	if broker == nil {
		broker = events.NewBroker[EventPayload]()
	}
	return &Reconciler{
		backend:  opts.Backend,
		broker:   broker,
		logger:   logger,
		now:      now,
		models:   opts.Models,
		params:   opts.Params,
		mode:     ModeText,
		inflight: make(map[int64]bool),
	}
}

// Broker exposes the event stream for subscribers.
func (r *Reconciler) Broker() *events.Broker[EventPayload] {
	return r.broker
}

// Sessions returns a snapshot of the cached session list.
func (r *Reconciler) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.All()
}

// FilterSessions is the exact-substring sidebar filter.
func (r *Reconciler) FilterSessions(query string) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Filter(query)
}

// SearchSessions is the fuzzy-ranked sidebar search.
func (r *Reconciler) SearchSessions(query string) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Search(query)
}

// Messages returns a snapshot of the active ledger.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Messages()
}

// ActiveSession reports the active session id, 0 when none.
func (r *Reconciler) ActiveSession() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Mode reports the current generation mode.
func (r *Reconciler) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Model reports the model id the current mode resolves to.
func (r *Reconciler) Model() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelFor(r.mode)
}

// Loading reports whether a history fetch is pending.
func (r *Reconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// SendState reports where the most recent send sits in its lifecycle.
func (r *Reconciler) SendState() SendState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendState
}

// SetParameters replaces the generation parameters used by subsequent sends.
func (r *Reconciler) SetParameters(params Parameters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = params
}

// Parameters returns the current generation parameters.
func (r *Reconciler) Parameters() Parameters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// ToggleMode flips text ⇄ image. Pure local state: the ledger is untouched
// and two toggles restore the original mode and model.
func (r *Reconciler) ToggleMode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == ModeText {
		r.mode = ModeImage
	} else {
		r.mode = ModeText
	}
	return r.mode
}

// NewSession resets to a blank conversation: no active id, empty ledger, no
// network call. The backend session record is created lazily on the first
// send.
func (r *Reconciler) NewSession() {
	r.mu.Lock()
	r.epoch++
	r.active = 0
	r.ledger.Clear()
	r.loading = false
	r.sendState = StateIdle
	r.mu.Unlock()

	r.broker.Publish(events.ChatLedgerUpdated, EventPayload{})
}

// LoadSessions fetches the session list and replaces the store wholesale.
func (r *Reconciler) LoadSessions(ctx context.Context) error {
	sessions, err := r.backend.ListSessions(ctx)
	if err != nil {
		return r.recoverable(0, fmt.Errorf("list sessions: %w", err))
	}

	converted := make([]Session, len(sessions))
	for i, item := range sessions {
		converted[i] = sessionFromAPI(item)
	}

	r.mu.Lock()
	r.store.Replace(converted)
	r.mu.Unlock()

	r.broker.Publish(events.ChatSessionsUpdated, EventPayload{})
	return nil
}

// SwitchSession makes sessionID active and replaces the ledger with that
// session's authoritative history, sorted ascending by creation time. The
// ledger is cleared synchronously, so no optimistic entries survive the
// switch. If a newer switch supersedes this one while its fetch is pending,
// the stale response is discarded.
func (r *Reconciler) SwitchSession(ctx context.Context, sessionID int64) error {
	r.mu.Lock()
	r.epoch++
	epoch := r.epoch
	r.active = sessionID
	r.ledger.Clear()
	r.loading = true
	r.sendState = StateIdle
	r.mu.Unlock()

	r.broker.Publish(events.ChatSessionSwitched, EventPayload{}, events.WithSessionID(sessionID))

	history, err := r.backend.GetHistory(ctx, sessionID)

	r.mu.Lock()
	if r.epoch != epoch {
		// Superseded by a later switch or reset; that call owns the state.
		r.mu.Unlock()
		return nil
	}
	r.loading = false
	if err != nil {
		r.mu.Unlock()
		return r.recoverable(sessionID, fmt.Errorf("load history: %w", err))
	}
	converted := make([]Message, len(history))
	for i, record := range history {
		converted[i] = messageFromAPI(record)
	}
	r.ledger.Replace(converted)
	r.mu.Unlock()

	r.logger.Debug("session history loaded", "session_id", sessionID, "messages", len(converted))
	r.broker.Publish(events.ChatLedgerUpdated, EventPayload{}, events.WithSessionID(sessionID))
	return nil
}

// Refresh re-pulls the active session's history, discarding any client-only
// state the server has not confirmed. With no active session it re-lists
// sessions only.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active != 0 {
		return r.SwitchSession(ctx, active)
	}
	return r.LoadSessions(ctx)
}

// SendMessage runs one send through the optimistic-update protocol:
//
//  1. validate; reject empty input and concurrent sends per session
//  2. append the user message locally, before any network activity
//  3. lazily create the session if none is active (the generation request
//     needs a session id, so creation strictly precedes it)
//  4. issue the generation request on the long-timeout path
//  5. merge the assistant response, or surface a recoverable error leaving
//     the optimistic user message in place
func (r *Reconciler) SendMessage(ctx context.Context, prompt string, attachments []string) error {
	if strings.TrimSpace(prompt) == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}

	r.mu.Lock()
	key := r.active
	if r.inflight[key] {
		r.mu.Unlock()
		return ErrSendInFlight
	}
	r.inflight[key] = true

	epoch := r.epoch
	sessionID := r.active
	mode := r.mode
	model := r.modelFor(mode)
	params := r.paramsFor(mode)

	userMsg := Message{
		ID:          uuid.New().String(),
		Role:        RoleUser,
		Content:     composeContent(prompt, attachments),
		ContentType: ContentText,
		CreatedAt:   r.now(),
	}
	r.ledger.Append(userMsg)
	r.sendState = StateOptimisticInserted
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
	}()

	r.broker.Publish(events.ChatLedgerUpdated, EventPayload{}, events.WithSessionID(sessionID))
	r.broker.Publish(events.ChatSendStarted, EventPayload{State: StateOptimisticInserted}, events.WithSessionID(sessionID))

	if sessionID == 0 {
		r.setSendState(epoch, StateSessionResolving)
		created, err := r.backend.CreateSession(ctx, deriveTitle(prompt, mode))
		if err != nil {
			return r.failSend(epoch, sessionID, fmt.Errorf("create session: %w", err))
		}
		sessionID = created.SessionID

		r.mu.Lock()
		if r.epoch == epoch {
			r.active = sessionID
		}
		// Re-key the guard from the sessionless slot onto the session that
		// now owns this send, so a follow-up send against it is rejected
		// while this one is still generating.
		delete(r.inflight, key)
		key = sessionID
		r.inflight[key] = true
		r.mu.Unlock()

		r.logger.Info("session created", "session_id", sessionID, "title", created.Title)
		r.broker.Publish(events.ChatSessionCreated, EventPayload{}, events.WithSessionID(sessionID))

		// Refresh the sidebar listing; a failure here is not fatal to the
		// send, the listing just goes stale until the next refresh.
		if listErr := r.LoadSessions(ctx); listErr != nil {
			r.logger.Warn("session list refresh failed", "error", listErr)
		}
	}

	r.setSendState(epoch, StateGenerating)
	resp, err := r.backend.Complete(ctx, api.CompletionRequest{
		SessionID:  sessionID,
		Mode:       string(mode),
		Model:      model,
		Prompt:     prompt,
		Parameters: params,
	})
	if err != nil {
		return r.failSend(epoch, sessionID, fmt.Errorf("generate: %w", err))
	}

	assistant := Message{
		ID:              uuid.New().String(),
		Role:            RoleAssistant,
		Content:         resp.Content,
		ContentType:     ContentType(resp.ContentType),
		CreatedAt:       r.now(),
		ArtifactURL:     resp.ArtifactURL,
		TxHash:          resp.TxHash,
		WatermarkStatus: resp.WatermarkStatus,
		Citations:       resp.Citations,
	}
	if assistant.ContentType == "" {
		assistant.ContentType = ContentText
	}

	r.mu.Lock()
	if r.epoch == epoch {
		// Still on the same conversation: the assistant message lands right
		// after the user message that produced it. A superseded send leaves
		// both the ledger and the winner's send state alone.
		r.ledger.Append(assistant)
		r.sendState = StateMerged
	}
	r.mu.Unlock()

	r.logger.Debug("response merged", "session_id", sessionID, "tx_hash", resp.TxHash, "content_type", resp.ContentType)
	r.broker.Publish(events.ChatLedgerUpdated, EventPayload{}, events.WithSessionID(sessionID))
	r.broker.Publish(events.ChatSendMerged, EventPayload{State: StateMerged}, events.WithSessionID(sessionID))
	return nil
}

// failSend marks the send failed and surfaces the error. The optimistic
// user message stays in the ledger, so the user does not lose their input.
func (r *Reconciler) failSend(epoch uint64, sessionID int64, err error) error {
	r.setSendState(epoch, StateFailed)
	if errors.Is(err, api.ErrUnauthorized) {
		r.broker.Publish(events.AuthExpired, EventPayload{State: StateFailed, Err: err})
		return err
	}
	r.logger.Error("send failed", "session_id", sessionID, "error", err)
	r.broker.Publish(events.ChatSendFailed, EventPayload{State: StateFailed, Message: err.Error(), Err: err}, events.WithSessionID(sessionID))
	return err
}

// recoverable surfaces a non-fatal read failure, escalating to a fatal auth
// event when the credential was rejected.
func (r *Reconciler) recoverable(sessionID int64, err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		r.broker.Publish(events.AuthExpired, EventPayload{Err: err})
		return err
	}
	r.logger.Warn("recoverable backend failure", "session_id", sessionID, "error", err)
	r.broker.Publish(events.NotificationError, EventPayload{Message: err.Error(), Err: err}, events.WithSessionID(sessionID))
	return err
}

// setSendState records a transition only while the send's epoch is still
// current, so a superseded send cannot clobber what the winner set.
func (r *Reconciler) setSendState(epoch uint64, state SendState) {
	r.mu.Lock()
	if r.epoch == epoch {
		r.sendState = state
	}
	r.mu.Unlock()
}

func (r *Reconciler) modelFor(mode Mode) string {
	if mode == ModeImage {
		return r.models.Image
	}
	return r.models.Text
}

// paramsFor shapes the parameter set by mode: temperature only for text,
// the image triple only for image.
func (r *Reconciler) paramsFor(mode Mode) api.GenerationParameters {
	if mode == ModeImage {
		return api.GenerationParameters{
			ImageSize:         r.params.ImageSize,
			NumInferenceSteps: r.params.NumInferenceSteps,
			BatchSize:         r.params.BatchSize,
		}
	}
	temperature := r.params.Temperature
	return api.GenerationParameters{Temperature: &temperature}
}

// composeContent prefixes the prompt with an attachment manifest when files
// were attached.
func composeContent(prompt string, attachments []string) string {
	if len(attachments) == 0 {
		return prompt
	}
	return fmt.Sprintf("[附件: %s]\n\n%s", strings.Join(attachments, ", "), prompt)
}

// deriveTitle builds the lazy session title: the first 15 runes of the
// prompt, or a mode-specific default when the prompt is empty.
func deriveTitle(prompt string, mode Mode) string {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		if mode == ModeImage {
			return defaultImageTitle
		}
		return defaultTextTitle
	}
	runes := []rune(trimmed)
	if len(runes) > sessionTitleRunes {
		return string(runes[:sessionTitleRunes])
	}
	return trimmed
}
