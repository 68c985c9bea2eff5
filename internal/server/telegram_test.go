package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Mock implementations

type fakeTransport struct {
	mu          sync.Mutex
	connectErrs []error // Per Connect call, nil entries connect
	runErrs     []error // Per successful session, missing entries block until ctx is done
	events      []domain.Event
	connects    int
	sessions    int
	disconnects int
	handler     repo.EventHandler
}

func (f *fakeTransport) Connect(ctx context.Context, handler repo.EventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.connects
	f.connects++
	if idx < len(f.connectErrs) && f.connectErrs[idx] != nil {
		return f.connectErrs[idx]
	}
	f.handler = handler
	return nil
}

func (f *fakeTransport) Run(ctx context.Context) error {
	f.mu.Lock()
	idx := f.sessions
	f.sessions++
	handler := f.handler
	events := f.events
	f.events = nil
	f.mu.Unlock()

	for _, ev := range events {
		handler(ctx, ev)
	}
	if idx < len(f.runErrs) {
		return f.runErrs[idx]
	}
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, target int64, msg domain.OutgoingMessage) error {
	return nil
}

func (f *fakeTransport) ResolveAccount(ctx context.Context, handle string) (domain.AccountRef, error) {
	return domain.AccountRef{}, nil
}

func (f *fakeTransport) ListMemberships(ctx context.Context) ([]domain.MembershipInfo, error) {
	return nil, nil
}

func (f *fakeTransport) AnswerAction(ctx context.Context, action domain.ActionEvent, text string) error {
	return nil
}

func (f *fakeTransport) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

type recordingConsumer struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *recordingConsumer) Handle(ctx context.Context, event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *recordingConsumer) handled() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func newTestSupervisor(tr *fakeTransport, consumer EventConsumer, tasks ...BackgroundTask) (*Supervisor, *sleepRecorder) {
	s := NewSupervisor(tr, consumer, SupervisorConfig{MaxAttempts: 3, BaseDelay: 10 * time.Second}, zap.NewNop(), tasks...)
	rec := &sleepRecorder{}
	s.sleep = rec.sleep
	return s, rec
}

var (
	errAuth    = repo.Fatal(repo.ReasonAuthInvalid, errors.New("AUTH_KEY_UNREGISTERED"))
	errNetwork = repo.Network(errors.New("connection reset by peer"))
)

func TestSupervisor_FatalStopsWithoutSleeping(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{errAuth}}
	s, rec := newTestSupervisor(tr, &recordingConsumer{})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.ErrorIs(t, err, errAuth)
	assert.Empty(t, rec.recorded())
	assert.Equal(t, domain.StateFatalStopped, s.State())
	connects, _ := tr.counts()
	assert.Equal(t, 1, connects)
}

func TestSupervisor_SecondFactorIsFatal(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{repo.Fatal(repo.ReasonSecondFactorRequired, errors.New("SESSION_PASSWORD_NEEDED"))}}
	s, rec := newTestSupervisor(tr, &recordingConsumer{})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Empty(t, rec.recorded())
}

func TestSupervisor_RateLimitWaitsExactly(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{
		repo.RateLimited(42*time.Second, errors.New("FLOOD_WAIT_42")),
		errAuth,
	}}
	s, rec := newTestSupervisor(tr, &recordingConsumer{})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Equal(t, []time.Duration{42 * time.Second}, rec.recorded())
}

func TestSupervisor_NetworkFailuresExhaustAttempts(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{errNetwork, errNetwork, errNetwork, errNetwork, errNetwork}}
	consumer := &recordingConsumer{}
	s, rec := newTestSupervisor(tr, consumer)

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}, rec.recorded())
	connects, _ := tr.counts()
	assert.Equal(t, 4, connects)
	assert.Equal(t, domain.StateFatalStopped, s.State())
	assert.Empty(t, consumer.handled())
}

func TestSupervisor_RunFailuresExhaustAttempts(t *testing.T) {
	// Every connect succeeds but the session drops right away
	tr := &fakeTransport{runErrs: []error{errNetwork, errNetwork, errNetwork, errNetwork, errNetwork}}
	consumer := &recordingConsumer{}
	s, rec := newTestSupervisor(tr, consumer)

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}, rec.recorded())
	connects, disconnects := tr.counts()
	assert.Equal(t, 4, connects)
	assert.Equal(t, 4, disconnects)
	assert.Equal(t, domain.StateFatalStopped, s.State())
}

func TestSupervisor_CleanDisconnectResetsAttempts(t *testing.T) {
	tr := &fakeTransport{
		connectErrs: []error{errNetwork, nil, errNetwork, errAuth},
		runErrs:     []error{nil},
	}
	s, rec := newTestSupervisor(tr, &recordingConsumer{})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, rec.recorded())
	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)
}

func TestSupervisor_UnknownErrorRetries(t *testing.T) {
	tr := &fakeTransport{connectErrs: []error{errors.New("boom"), errors.New("boom"), errAuth}}
	s, rec := newTestSupervisor(tr, &recordingConsumer{})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, rec.recorded())
}

func TestSupervisor_CleanDisconnectReconnectsImmediately(t *testing.T) {
	tr := &fakeTransport{
		connectErrs: []error{nil, errAuth},
		runErrs:     []error{nil},
	}
	s, rec := newTestSupervisor(tr, &recordingConsumer{})

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	assert.Empty(t, rec.recorded())
	connects, disconnects := tr.counts()
	assert.Equal(t, 2, connects)
	assert.Equal(t, 1, disconnects)
}

func TestSupervisor_DeliversEventsInOrderAndStops(t *testing.T) {
	events := []domain.Event{
		domain.GroupMessage{ChatID: -1, MessageID: 1, Text: "12345678901"},
		domain.DirectMessage{From: domain.AccountRef{ID: 777}, Text: "Kimlik No: 12345678901"},
		domain.ActionEvent{QueryID: 9, Payload: []byte("copy:Ad:Ali")},
	}
	tr := &fakeTransport{events: events}
	consumer := &recordingConsumer{}
	s, _ := newTestSupervisor(tr, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(consumer.handled()) == len(events) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, events, consumer.handled())
	assert.Equal(t, domain.StateConnected, s.State())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.Equal(t, domain.StateDisconnected, s.State())
	_, disconnects := tr.counts()
	assert.Equal(t, 1, disconnects)
}

type blockingTask struct {
	started chan struct{}
	stopped chan struct{}
}

func (b *blockingTask) Name() string { return "blocking" }

func (b *blockingTask) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	close(b.stopped)
	return nil
}

func TestSupervisor_TasksFollowSession(t *testing.T) {
	task := &blockingTask{started: make(chan struct{}), stopped: make(chan struct{})}
	tr := &fakeTransport{
		connectErrs: []error{nil, errAuth},
		runErrs:     []error{errNetwork},
	}
	s, _ := newTestSupervisor(tr, &recordingConsumer{}, task)

	err := s.Run(context.Background())

	assert.ErrorIs(t, err, ErrFatalStopped)
	select {
	case <-task.stopped:
	default:
		t.Fatal("task still running after session ended")
	}
}
