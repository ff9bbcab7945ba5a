package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustflow-labs/trustflow/internal/api"
)

type fakeBackend struct {
	mu sync.Mutex

	sessions      []api.SessionItem
	nextSessionID int64

	createCalls   []string
	listCalls     int
	historyCalls  []int64
	completeCalls []api.CompletionRequest

	historyFn  func(sessionID int64) ([]api.ChatMessage, error)
	completeFn func(req api.CompletionRequest) (*api.CompletionResponse, error)
	createErr  error
	onCreate   func()
	onComplete func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextSessionID: 100}
}

func (f *fakeBackend) ListSessions(ctx context.Context) ([]api.SessionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]api.SessionItem, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, title string) (*api.CreateSessionResponse, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, title)
	if f.createErr != nil {
		f.mu.Unlock()
		return nil, f.createErr
	}
	id := f.nextSessionID
	f.nextSessionID++
	f.sessions = append(f.sessions, api.SessionItem{SessionID: id, Title: title})
	hook := f.onCreate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &api.CreateSessionResponse{SessionID: id, Title: title}, nil
}

func (f *fakeBackend) GetHistory(ctx context.Context, sessionID int64) ([]api.ChatMessage, error) {
	f.mu.Lock()
	f.historyCalls = append(f.historyCalls, sessionID)
	fn := f.historyFn
	f.mu.Unlock()
	if fn != nil {
		return fn(sessionID)
	}
	return nil, nil
}

func (f *fakeBackend) Complete(ctx context.Context, req api.CompletionRequest) (*api.CompletionResponse, error) {
	f.mu.Lock()
	f.completeCalls = append(f.completeCalls, req)
	fn := f.completeFn
	hook := f.onComplete
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if fn != nil {
		return fn(req)
	}
	return &api.CompletionResponse{
		SessionID:   req.SessionID,
		ContentType: "text",
		Role:        "assistant",
		Content:     "ok",
		TxHash:      "0xabc",
	}, nil
}

func newTestReconciler(t *testing.T, backend Backend) *Reconciler {
	t.Helper()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	var tick int
	return NewReconciler(Options{
		Backend: backend,
		Models:  Models{Text: "TrustFlow-V1", Image: "TrustFlow-Image-V1"},
		Params: Parameters{
			Temperature:       0.7,
			ImageSize:         "1024x1024",
			NumInferenceSteps: 20,
			BatchSize:         1,
		},
		Now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	})
}

func apiTime(t time.Time) api.Timestamp {
	return api.Timestamp{Time: t}
}

func TestSwitchSessionSortsHistoryAscending(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	backend := newFakeBackend()
	backend.historyFn = func(int64) ([]api.ChatMessage, error) {
		return []api.ChatMessage{
			{Role: "assistant", Content: "third", CreatedAt: apiTime(base.Add(9 * time.Second))},
			{Role: "user", Content: "first", CreatedAt: apiTime(base.Add(1 * time.Second))},
			{Role: "assistant", Content: "second", CreatedAt: apiTime(base.Add(5 * time.Second))},
		}, nil
	}
	r := newTestReconciler(t, backend)

	require.NoError(t, r.SwitchSession(context.Background(), 7))

	messages := r.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
	assert.False(t, r.Loading())
	assert.EqualValues(t, 7, r.ActiveSession())
}

func TestSwitchSessionTwoMessagesOutOfOrder(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	backend := newFakeBackend()
	backend.historyFn = func(int64) ([]api.ChatMessage, error) {
		return []api.ChatMessage{
			{Role: "assistant", Content: "t+5", CreatedAt: apiTime(base.Add(5 * time.Second))},
			{Role: "user", Content: "t+1", CreatedAt: apiTime(base.Add(1 * time.Second))},
		}, nil
	}
	r := newTestReconciler(t, backend)

	require.NoError(t, r.SwitchSession(context.Background(), 1))

	messages := r.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "t+1", messages[0].Content)
	assert.Equal(t, "t+5", messages[1].Content)
}

func TestSwitchSessionFailureLeavesLedgerEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.historyFn = func(int64) ([]api.ChatMessage, error) {
		return nil, errors.New("backend down")
	}
	r := newTestReconciler(t, backend)

	err := r.SwitchSession(context.Background(), 3)
	require.Error(t, err)
	assert.Empty(t, r.Messages())
	assert.False(t, r.Loading())
}

func TestSendMessageLazySessionCreation(t *testing.T) {
	backend := newFakeBackend()

	// Snapshot taken inside the create call proves the optimistic user
	// message was appended before any session existed on the backend.
	r := newTestReconciler(t, backend)
	var ledgerAtCreate []Message
	backend.onCreate = func() {
		ledgerAtCreate = r.Messages()
	}

	require.NoError(t, r.SendMessage(context.Background(), "hello", nil))

	require.Len(t, ledgerAtCreate, 1)
	assert.Equal(t, RoleUser, ledgerAtCreate[0].Role)
	assert.Equal(t, "hello", ledgerAtCreate[0].Content)

	require.Len(t, backend.createCalls, 1)
	require.Len(t, backend.completeCalls, 1)
	assert.EqualValues(t, 100, backend.completeCalls[0].SessionID)
	assert.EqualValues(t, 100, r.ActiveSession())

	messages := r.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "0xabc", messages[1].TxHash)

	// The sidebar listing was refreshed after the lazy creation.
	assert.GreaterOrEqual(t, backend.listCalls, 1)
	assert.Equal(t, StateMerged, r.SendState())
}

func TestSendMessageReusesActiveSession(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SwitchSession(context.Background(), 42))

	require.NoError(t, r.SendMessage(context.Background(), "again", nil))

	assert.Empty(t, backend.createCalls)
	require.Len(t, backend.completeCalls, 1)
	assert.EqualValues(t, 42, backend.completeCalls[0].SessionID)
}

func TestSendMessageFailureKeepsOptimisticMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.completeFn = func(api.CompletionRequest) (*api.CompletionResponse, error) {
		return nil, errors.New("generation blew up")
	}
	r := newTestReconciler(t, backend)

	eventsCh := r.Broker().Subscribe(context.Background())

	err := r.SendMessage(context.Background(), "hello", nil)
	require.Error(t, err)

	messages := r.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, StateFailed, r.SendState())

	// A failure notification reached the broker.
	failed := false
	for i := 0; i < 10 && !failed; i++ {
		select {
		case ev := <-eventsCh:
			if ev.Type == "chat.send.failed" {
				failed = true
			}
		case <-time.After(time.Second):
		}
	}
	assert.True(t, failed, "expected a chat.send.failed event")
}

func TestSendMessageEmptyIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	err := r.SendMessage(context.Background(), "   ", nil)
	require.ErrorIs(t, err, ErrEmptyMessage)

	assert.Empty(t, r.Messages())
	assert.Empty(t, backend.createCalls)
	assert.Empty(t, backend.completeCalls)
	assert.Zero(t, backend.listCalls)
}

func TestSendMessageAttachmentManifest(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	require.NoError(t, r.SendMessage(context.Background(), "总结一下", []string{"报告.pdf", "纪要.txt"}))

	messages := r.Messages()
	require.NotEmpty(t, messages)
	assert.Equal(t, "[附件: 报告.pdf, 纪要.txt]\n\n总结一下", messages[0].Content)

	// The prompt itself travels without the manifest.
	require.Len(t, backend.completeCalls, 1)
	assert.Equal(t, "总结一下", backend.completeCalls[0].Prompt)
}

func TestSendMessageAttachmentsOnlyUsesDefaultTitle(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	require.NoError(t, r.SendMessage(context.Background(), "", []string{"报告.pdf"}))

	require.Len(t, backend.createCalls, 1)
	assert.Equal(t, "新会话", backend.createCalls[0])
}

func TestTitleDerivedFromFirstFifteenRunes(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	prompt := "设计一个分布式限流算法方案并解释原理"
	require.NoError(t, r.SendMessage(context.Background(), prompt, nil))

	require.Len(t, backend.createCalls, 1)
	assert.Equal(t, string([]rune(prompt)[:15]), backend.createCalls[0])
}

func TestImageModeDefaultTitle(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	r.ToggleMode()

	require.NoError(t, r.SendMessage(context.Background(), "", []string{"sketch.txt"}))

	require.Len(t, backend.createCalls, 1)
	assert.Equal(t, "AI 绘图", backend.createCalls[0])
}

func TestModeParameterShapes(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)

	require.NoError(t, r.SendMessage(context.Background(), "text prompt", nil))
	require.Len(t, backend.completeCalls, 1)
	textParams := backend.completeCalls[0].Parameters
	require.NotNil(t, textParams.Temperature)
	assert.InDelta(t, 0.7, *textParams.Temperature, 1e-9)
	assert.Empty(t, textParams.ImageSize)
	assert.Zero(t, textParams.NumInferenceSteps)
	assert.Zero(t, textParams.BatchSize)
	assert.Equal(t, "text", backend.completeCalls[0].Mode)
	assert.Equal(t, "TrustFlow-V1", backend.completeCalls[0].Model)

	r.ToggleMode()
	require.NoError(t, r.SendMessage(context.Background(), "image prompt", nil))
	require.Len(t, backend.completeCalls, 2)
	imageParams := backend.completeCalls[1].Parameters
	assert.Nil(t, imageParams.Temperature)
	assert.Equal(t, "1024x1024", imageParams.ImageSize)
	assert.Equal(t, 20, imageParams.NumInferenceSteps)
	assert.Equal(t, 1, imageParams.BatchSize)
	assert.Equal(t, "image", backend.completeCalls[1].Mode)
	assert.Equal(t, "TrustFlow-Image-V1", backend.completeCalls[1].Model)
}

func TestToggleModeIsIdempotentPair(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SwitchSession(context.Background(), 5))
	before := r.Messages()

	original := r.Mode()
	originalModel := r.Model()
	assert.Equal(t, ModeImage, r.ToggleMode())
	assert.Equal(t, ModeText, r.ToggleMode())
	assert.Equal(t, original, r.Mode())
	assert.Equal(t, originalModel, r.Model())
	assert.Equal(t, before, r.Messages())
}

func TestConcurrentSendRejected(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.completeFn = func(req api.CompletionRequest) (*api.CompletionResponse, error) {
		<-release
		return &api.CompletionResponse{SessionID: req.SessionID, Role: "assistant", ContentType: "text", Content: "done"}, nil
	}
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SwitchSession(context.Background(), 9))

	started := make(chan struct{})
	backend.onComplete = func() { close(started) }

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.SendMessage(context.Background(), "slow one", nil)
	}()
	<-started

	err := r.SendMessage(context.Background(), "impatient", nil)
	require.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-errCh)
}

func TestConcurrentSendRejectedAfterLazyCreation(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	started := make(chan struct{})
	backend.completeFn = func(req api.CompletionRequest) (*api.CompletionResponse, error) {
		<-release
		return &api.CompletionResponse{SessionID: req.SessionID, Role: "assistant", ContentType: "text", Content: "done"}, nil
	}
	backend.onComplete = func() { close(started) }
	r := newTestReconciler(t, backend)

	// First send starts sessionless; by the time its generation is running
	// the lazily created session has been adopted as active.
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.SendMessage(context.Background(), "first", nil)
	}()
	<-started
	require.EqualValues(t, 100, r.ActiveSession())

	err := r.SendMessage(context.Background(), "second", nil)
	require.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-errCh)
	require.Len(t, backend.completeCalls, 1)
}

func TestConcurrentSessionlessSendRejected(t *testing.T) {
	backend := newFakeBackend()
	creating := make(chan struct{})
	release := make(chan struct{})
	backend.onCreate = func() {
		close(creating)
		<-release
	}
	r := newTestReconciler(t, backend)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.SendMessage(context.Background(), "first", nil)
	}()
	<-creating

	// Still resolving the session; a second draft send must not slip past.
	err := r.SendMessage(context.Background(), "second", nil)
	require.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-errCh)
	require.Len(t, backend.createCalls, 1)
}

func TestStaleSwitchResponseDiscarded(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	backend := newFakeBackend()

	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	backend.historyFn = func(sessionID int64) ([]api.ChatMessage, error) {
		if sessionID == 1 {
			close(slowStarted)
			<-slowRelease
			return []api.ChatMessage{{Role: "user", Content: "stale", CreatedAt: apiTime(base)}}, nil
		}
		return []api.ChatMessage{{Role: "user", Content: "fresh", CreatedAt: apiTime(base)}}, nil
	}
	r := newTestReconciler(t, backend)

	done := make(chan error, 1)
	go func() {
		done <- r.SwitchSession(context.Background(), 1)
	}()
	<-slowStarted

	require.NoError(t, r.SwitchSession(context.Background(), 2))
	close(slowRelease)
	require.NoError(t, <-done)

	// The superseded fetch must not clobber the winner's ledger.
	messages := r.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "fresh", messages[0].Content)
	assert.EqualValues(t, 2, r.ActiveSession())
}

func TestNewSessionResetsLocally(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SendMessage(context.Background(), "seed", nil))
	require.NotEmpty(t, r.Messages())

	callsBefore := len(backend.historyCalls) + backend.listCalls + len(backend.createCalls)
	r.NewSession()

	assert.Empty(t, r.Messages())
	assert.Zero(t, r.ActiveSession())
	assert.Equal(t, StateIdle, r.SendState())
	callsAfter := len(backend.historyCalls) + backend.listCalls + len(backend.createCalls)
	assert.Equal(t, callsBefore, callsAfter, "NewSession must not touch the network")
}

func TestMergeAfterSessionSwitchIsDropped(t *testing.T) {
	backend := newFakeBackend()
	generating := make(chan struct{})
	release := make(chan struct{})
	backend.completeFn = func(req api.CompletionRequest) (*api.CompletionResponse, error) {
		close(generating)
		<-release
		return &api.CompletionResponse{SessionID: req.SessionID, Role: "assistant", ContentType: "text", Content: "late answer"}, nil
	}
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SwitchSession(context.Background(), 11))

	done := make(chan error, 1)
	go func() {
		done <- r.SendMessage(context.Background(), "question", nil)
	}()
	<-generating

	// The user moves on before the generation settles.
	require.NoError(t, r.SwitchSession(context.Background(), 12))
	close(release)
	require.NoError(t, <-done)

	for _, msg := range r.Messages() {
		assert.NotEqual(t, "late answer", msg.Content)
	}
	assert.Equal(t, StateIdle, r.SendState(), "stale merge must not clobber the switched-to session's state")
}

func TestStaleFailureDoesNotClobberSendState(t *testing.T) {
	backend := newFakeBackend()
	generating := make(chan struct{})
	release := make(chan struct{})
	backend.completeFn = func(api.CompletionRequest) (*api.CompletionResponse, error) {
		close(generating)
		<-release
		return nil, errors.New("generation blew up")
	}
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SwitchSession(context.Background(), 11))

	done := make(chan error, 1)
	go func() {
		done <- r.SendMessage(context.Background(), "question", nil)
	}()
	<-generating

	require.NoError(t, r.SwitchSession(context.Background(), 12))
	close(release)
	require.Error(t, <-done)

	assert.Equal(t, StateIdle, r.SendState())
}

func TestRefreshWithoutSessionListsOnly(t *testing.T) {
	backend := newFakeBackend()
	backend.sessions = []api.SessionItem{{SessionID: 1, Title: "TrustFlow 技术原理"}}
	r := newTestReconciler(t, backend)

	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, 1, backend.listCalls)
	assert.Empty(t, backend.historyCalls)
	require.Len(t, r.Sessions(), 1)
	assert.Equal(t, "TrustFlow 技术原理", r.Sessions()[0].Title)
}

func TestRefreshWithActiveSessionRepullsHistory(t *testing.T) {
	backend := newFakeBackend()
	r := newTestReconciler(t, backend)
	require.NoError(t, r.SwitchSession(context.Background(), 8))

	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, []int64{8, 8}, backend.historyCalls)
}

func TestSendStateProgression(t *testing.T) {
	backend := newFakeBackend()
	var stateAtCreate, stateAtComplete SendState
	r := newTestReconciler(t, backend)
	backend.onCreate = func() { stateAtCreate = r.SendState() }
	backend.onComplete = func() { stateAtComplete = r.SendState() }

	require.NoError(t, r.SendMessage(context.Background(), "hi", nil))

	assert.Equal(t, StateSessionResolving, stateAtCreate)
	assert.Equal(t, StateGenerating, stateAtComplete)
	assert.Equal(t, StateMerged, r.SendState())
}

func TestUnauthorizedSurfacesAuthEvent(t *testing.T) {
	backend := newFakeBackend()
	backend.completeFn = func(api.CompletionRequest) (*api.CompletionResponse, error) {
		return nil, fmt.Errorf("generate: %w", api.ErrUnauthorized)
	}
	r := newTestReconciler(t, backend)
	eventsCh := r.Broker().Subscribe(context.Background())

	err := r.SendMessage(context.Background(), "hello", nil)
	require.ErrorIs(t, err, api.ErrUnauthorized)

	sawAuthExpired := false
	for i := 0; i < 10 && !sawAuthExpired; i++ {
		select {
		case ev := <-eventsCh:
			if ev.Type == "auth.expired" {
				sawAuthExpired = true
			}
		case <-time.After(time.Second):
		}
	}
	assert.True(t, sawAuthExpired, "expected an auth.expired event")
}
