// internal/loan/service_test.go
package loan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loan-manager/internal/cbs"
	apperrors "loan-manager/internal/common/errors"
	"loan-manager/internal/common/logger"
	"loan-manager/internal/common/tasks"
	"loan-manager/internal/models"
	"loan-manager/internal/scoring"
	"loan-manager/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	customerA = "234774784"
	customerB = "318411216"
	customerC = "340397370"
)

type stubGateway struct {
	mu          sync.Mutex
	token       string
	initiateErr error
	result      models.ScoreResult
	pollCalls   int
}

func (g *stubGateway) Initiate(_ context.Context, _ string) (string, error) {
	if g.initiateErr != nil {
		return "", g.initiateErr
	}
	return g.token, nil
}

func (g *stubGateway) Poll(_ context.Context, token string) (scoring.PollResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pollCalls++
	return scoring.Ready(g.result), nil
}

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pollCalls
}

// heldDispatcher keeps tasks until the test runs them, simulating a round in flight.
type heldDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (d *heldDispatcher) Go(_ string, task tasks.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
	return nil
}

func (d *heldDispatcher) runAll() {
	d.mu.Lock()
	pending := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, task := range pending {
		task(context.Background())
	}
}

func (d *heldDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

type failingStore struct {
	store.ApplicationStore
	err error
}

func (f failingStore) TryLock(context.Context, string) (bool, error) { return false, f.err }

type fixture struct {
	service *Service
	store   *store.MemoryStore
	gateway *stubGateway
}

func newFixture(t *testing.T, dispatcher Dispatcher, opts ...cbs.MockOption) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	kyc, err := cbs.NewMockCBS(log, opts...)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	gw := &stubGateway{
		token: "T1",
		result: models.ScoreResult{
			Score:       700,
			LimitAmount: decimal.NewNullDecimal(decimal.NewFromInt(8000)),
			Exclusion:   models.NoExclusion,
		},
	}
	pipeline := scoring.NewPipeline(&scoring.Config{MaxAttempts: 3, BackoffMultiplier: 1}, gw, st, log)

	return &fixture{
		service: NewService(kyc, st, pipeline, dispatcher, log),
		store:   st,
		gateway: gw,
	}
}

func (f *fixture) seed(t *testing.T, customer string, status models.LoanStatus) *models.LoanApplication {
	t.Helper()
	app := models.NewLoanApplication(customer)
	app.Status = status
	require.NoError(t, f.store.Save(context.Background(), app))
	return app
}

func (f *fixture) locked(t *testing.T, customer string) bool {
	t.Helper()
	active, err := f.store.HasActiveProcess(context.Background(), customer)
	require.NoError(t, err)
	return active
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	require.Equal(t, code, stdErr.Code, stdErr.Message)
	return stdErr
}

// ==========================
// Subscribe Tests
// ==========================

func TestService_Subscribe(t *testing.T) {
	f := newFixture(t, tasks.Sync{})

	app, err := f.service.Subscribe(context.Background(), " "+customerA+" ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEligible, app.Status)
	assert.Equal(t, customerA, app.CustomerNumber)
	assert.NotEmpty(t, app.ID)

	stored, err := f.store.Find(context.Background(), customerA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEligible, stored.Status)
	assert.False(t, f.locked(t, customerA))
}

func TestService_SubscribeKYCFailures(t *testing.T) {
	tests := []struct {
		name     string
		customer string
		wantMsg  string
	}{
		{"unknown customer", "999999999", "Customer not found"},
		{"inactive customer", "555000111", "Customer status not ACTIVE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tasks.Sync{}, cbs.WithIdentity(models.Identity{CustomerID: "555000111", Status: "DORMANT"}))

			_, err := f.service.Subscribe(context.Background(), tt.customer)
			stdErr := requireCode(t, err, apperrors.ErrCodeKYCRejected)
			assert.Equal(t, tt.wantMsg, stdErr.Message)

			_, err = f.store.Find(context.Background(), tt.customer)
			assert.ErrorIs(t, err, store.ErrNotFound, "a failed KYC check must not persist a record")
		})
	}
}

func TestService_SubscribeStatusCaseInsensitive(t *testing.T) {
	f := newFixture(t, tasks.Sync{}, cbs.WithIdentity(models.Identity{CustomerID: "555000222", Status: "active"}))

	app, err := f.service.Subscribe(context.Background(), "555000222")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEligible, app.Status)
}

func TestService_SubscribeKeepsExistingRecord(t *testing.T) {
	f := newFixture(t, tasks.Sync{})
	existing := f.seed(t, customerA, models.StatusApproved)

	app, err := f.service.Subscribe(context.Background(), customerA)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, app.ID)
	assert.Equal(t, models.StatusEligible, app.Status)
}

func TestService_SubscribeDuringScoringIsConflict(t *testing.T) {
	f := newFixture(t, tasks.Sync{})
	f.seed(t, customerA, models.StatusScoringInProgress)

	_, err := f.service.Subscribe(context.Background(), customerA)
	requireCode(t, err, apperrors.ErrCodeConcurrentRequest)

	stored, err := f.store.Find(context.Background(), customerA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScoringInProgress, stored.Status)
	assert.True(t, f.locked(t, customerA), "the scoring round still owns the lock")
}

// ==========================
// RequestLoan Tests
// ==========================

func TestService_RequestLoanInvalidAmount(t *testing.T) {
	amounts := []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-100)}

	for _, amount := range amounts {
		t.Run(amount.String(), func(t *testing.T) {
			d := &heldDispatcher{}
			f := newFixture(t, d)
			f.seed(t, customerA, models.StatusEligible)

			_, err := f.service.RequestLoan(context.Background(), customerA, amount)
			requireCode(t, err, apperrors.ErrCodeValidationFailed)
			assert.Empty(t, apperrors.StatusHint(err))
			assert.False(t, f.locked(t, customerA))
			assert.Zero(t, d.count())
		})
	}
}

func TestService_RequestLoanNotSubscribed(t *testing.T) {
	f := newFixture(t, &heldDispatcher{})

	_, err := f.service.RequestLoan(context.Background(), customerA, decimal.NewFromInt(5000))
	stdErr := requireCode(t, err, apperrors.ErrCodeNotSubscribed)
	assert.Equal(t, "Customer not subscribed or found.", stdErr.Message)
	assert.False(t, f.locked(t, customerA))
}

func TestService_RequestLoanDisallowedStatus(t *testing.T) {
	for _, status := range []models.LoanStatus{models.StatusPendingSubscription, models.StatusApproved} {
		t.Run(status.String(), func(t *testing.T) {
			f := newFixture(t, &heldDispatcher{})
			f.seed(t, customerA, status)

			_, err := f.service.RequestLoan(context.Background(), customerA, decimal.NewFromInt(5000))
			stdErr := requireCode(t, err, apperrors.ErrCodeConcurrentRequest)
			assert.Equal(t, models.StatusFailedConcurrent.String(), apperrors.StatusHint(err))
			assert.Equal(t, status.String(), stdErr.Metadata[apperrors.MetaCurrentStatus])
			assert.False(t, f.locked(t, customerA))
		})
	}
}

func TestService_RequestLoanAllowedStatuses(t *testing.T) {
	allowed := []models.LoanStatus{
		models.StatusEligible,
		models.StatusScoringFailed,
		models.StatusRejectedLimit,
		models.StatusRejectedExclusion,
		models.StatusRejectedKYCFailed,
	}

	for _, status := range allowed {
		t.Run(status.String(), func(t *testing.T) {
			d := &heldDispatcher{}
			f := newFixture(t, d)
			f.seed(t, customerA, status)

			app, err := f.service.RequestLoan(context.Background(), customerA, decimal.NewFromInt(5000))
			require.NoError(t, err)
			assert.Equal(t, models.StatusPendingScore, app.Status)
			assert.Equal(t, 1, d.count())
			assert.True(t, f.locked(t, customerA))
		})
	}
}

func TestService_RequestLoanResetsPreviousRound(t *testing.T) {
	d := &heldDispatcher{}
	f := newFixture(t, d)

	score := 610
	prev := models.NewLoanApplication(customerA)
	prev.Status = models.StatusScoringFailed
	prev.ScoringToken = "OLD"
	prev.Score = &score
	prev.LimitAmount = decimal.NewNullDecimal(decimal.NewFromInt(100))
	prev.ExclusionReason = "old reason"
	prev.FailureMessage = "Failed to retrieve score after 5 attempts: score not ready"
	prev.RetryCount = 5
	require.NoError(t, f.store.Save(context.Background(), prev))

	app, err := f.service.RequestLoan(context.Background(), customerA, decimal.RequireFromString("2500.50"))
	require.NoError(t, err)

	stored, err := f.store.Find(context.Background(), customerA)
	require.NoError(t, err)
	for _, got := range []*models.LoanApplication{app, stored} {
		assert.Equal(t, models.StatusPendingScore, got.Status)
		assert.Empty(t, got.ScoringToken)
		assert.Nil(t, got.Score)
		assert.False(t, got.LimitAmount.Valid)
		assert.Empty(t, got.ExclusionReason)
		assert.Empty(t, got.FailureMessage)
		assert.Zero(t, got.RetryCount)
		assert.Equal(t, "2500.5", got.RequestedAmount.String())
		assert.Equal(t, prev.ID, got.ID)
	}
}

func TestService_RequestLoanMutualExclusion(t *testing.T) {
	d := &heldDispatcher{}
	f := newFixture(t, d)
	f.seed(t, customerA, models.StatusEligible)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RequestLoan(context.Background(), customerA, decimal.NewFromInt(1000))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case apperrors.HasCode(err, apperrors.ErrCodeConcurrentRequest):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, 1, d.count())
}

func TestService_RequestLoanDispatchFailure(t *testing.T) {
	closed := tasks.NewDispatcher(1, logger.NewNoOpLogger())
	require.NoError(t, closed.Shutdown(context.Background()))

	f := newFixture(t, closed)
	f.seed(t, customerA, models.StatusEligible)

	_, err := f.service.RequestLoan(context.Background(), customerA, decimal.NewFromInt(5000))
	requireCode(t, err, apperrors.ErrCodeInternal)
	assert.True(t, errors.Is(err, tasks.ErrDispatcherClosed))

	stored, err := f.store.Find(context.Background(), customerA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScoringFailed, stored.Status)
	assert.Equal(t, dispatchFailure, stored.FailureMessage)
	assert.False(t, f.locked(t, customerA))
}

func TestService_StoreUnavailable(t *testing.T) {
	log := logger.NewTestLogger(t)
	kyc, err := cbs.NewMockCBS(log)
	require.NoError(t, err)

	svc := NewService(kyc, failingStore{ApplicationStore: store.NewMemoryStore(), err: errors.New("connection refused")},
		nil, tasks.Sync{}, log)

	_, err = svc.RequestLoan(context.Background(), customerA, decimal.NewFromInt(10))
	requireCode(t, err, apperrors.ErrCodeStoreUnavailable)

	_, err = svc.Subscribe(context.Background(), customerA)
	requireCode(t, err, apperrors.ErrCodeStoreUnavailable)
}

// ==========================
// GetStatus Tests
// ==========================

func TestService_GetStatus(t *testing.T) {
	f := newFixture(t, tasks.Sync{})

	_, err := f.service.GetStatus(context.Background(), customerA)
	stdErr := requireCode(t, err, apperrors.ErrCodeResourceNotFound)
	assert.Equal(t, "No loan application found for customer: "+customerA, stdErr.Message)

	_, err = f.service.GetStatus(context.Background(), "  ")
	requireCode(t, err, apperrors.ErrCodeValidationFailed)

	f.seed(t, customerA, models.StatusRejectedLimit)
	app, err := f.service.GetStatus(context.Background(), customerA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejectedLimit, app.Status)
}

// ==========================
// Scenario Tests
// ==========================

func TestScenario_ApprovedRound(t *testing.T) {
	f := newFixture(t, tasks.Sync{})

	sub, err := f.service.Subscribe(context.Background(), customerA)
	require.NoError(t, err)
	require.Equal(t, models.StatusEligible, sub.Status)

	app, err := f.service.RequestLoan(context.Background(), customerA, decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingScore, app.Status, "the caller sees the admitted record")

	final, err := f.service.GetStatus(context.Background(), customerA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, final.Status)
	require.True(t, final.LimitAmount.Valid)
	assert.True(t, final.LimitAmount.Decimal.Equal(decimal.NewFromInt(8000)))
	assert.Equal(t, "T1", final.ScoringToken)
	assert.Equal(t, 1, final.RetryCount)
	assert.False(t, f.locked(t, customerA))
}

func TestScenario_ConcurrentRequestRefused(t *testing.T) {
	d := &heldDispatcher{}
	f := newFixture(t, d)
	_, err := f.service.Subscribe(context.Background(), customerB)
	require.NoError(t, err)

	_, err = f.service.RequestLoan(context.Background(), customerB, decimal.NewFromInt(5000))
	require.NoError(t, err)

	_, err = f.service.RequestLoan(context.Background(), customerB, decimal.NewFromInt(9000))
	stdErr := requireCode(t, err, apperrors.ErrCodeConcurrentRequest)
	assert.Equal(t, models.StatusFailedConcurrent.String(), apperrors.StatusHint(err))
	assert.Equal(t, models.StatusPendingScore.String(), stdErr.Metadata[apperrors.MetaCurrentStatus])

	stored, err := f.store.Find(context.Background(), customerB)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingScore, stored.Status)
	assert.Equal(t, "5000", stored.RequestedAmount.String())

	d.runAll()
	stored, err = f.store.Find(context.Background(), customerB)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.False(t, f.locked(t, customerB))
}

func TestScenario_InitiateNetworkFailure(t *testing.T) {
	f := newFixture(t, tasks.Sync{})
	f.gateway.initiateErr = &scoring.GatewayError{Kind: scoring.KindNetwork, Err: errors.New("dial tcp: connection refused")}

	_, err := f.service.Subscribe(context.Background(), customerC)
	require.NoError(t, err)
	_, err = f.service.RequestLoan(context.Background(), customerC, decimal.NewFromInt(5000))
	require.NoError(t, err)

	final, err := f.service.GetStatus(context.Background(), customerC)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScoringFailed, final.Status)
	assert.Equal(t, "Failed to initiate scoring: Network error.", final.FailureMessage)
	assert.Zero(t, f.gateway.calls())
	assert.False(t, f.locked(t, customerC))

	// a failed round can be retried
	f.gateway.initiateErr = nil
	_, err = f.service.RequestLoan(context.Background(), customerC, decimal.NewFromInt(5000))
	require.NoError(t, err)
	final, err = f.service.GetStatus(context.Background(), customerC)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, final.Status)
}

// ==========================
// Shutdown
// ==========================

// stallingGateway never answers initiate until the round's context ends.
type stallingGateway struct {
	initiated chan string
}

func (g *stallingGateway) Initiate(ctx context.Context, customerNumber string) (string, error) {
	g.initiated <- customerNumber
	<-ctx.Done()
	return "", ctx.Err()
}

func (g *stallingGateway) Poll(context.Context, string) (scoring.PollResult, error) {
	return scoring.NotReady(), nil
}

func TestService_ShutdownResolvesQueuedRounds(t *testing.T) {
	log := logger.NewTestLogger(t)
	kyc, err := cbs.NewMockCBS(log)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	gw := &stallingGateway{initiated: make(chan string, 2)}
	pipeline := scoring.NewPipeline(&scoring.Config{MaxAttempts: 3, BackoffMultiplier: 1}, gw, st, log)
	dispatcher := tasks.NewDispatcher(1, log)
	svc := NewService(kyc, st, pipeline, dispatcher, log)

	ctx := context.Background()
	for _, c := range []string{customerA, customerB} {
		_, err := svc.Subscribe(ctx, c)
		require.NoError(t, err)
		_, err = svc.RequestLoan(ctx, c, decimal.NewFromInt(1000))
		require.NoError(t, err)
	}

	// one round holds the only slot, the other is queued behind it
	<-gw.initiated

	shutdownCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, dispatcher.Shutdown(shutdownCtx), context.DeadlineExceeded)

	for _, c := range []string{customerA, customerB} {
		app, err := st.Find(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, models.StatusScoringFailed, app.Status, "customer %s", c)
		assert.NotEmpty(t, app.FailureMessage, "customer %s", c)

		active, err := st.HasActiveProcess(ctx, c)
		require.NoError(t, err)
		assert.False(t, active, "customer %s must not stay locked", c)
	}
}
