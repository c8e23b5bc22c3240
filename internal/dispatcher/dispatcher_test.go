package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/executor"
	"launch-sniper/internal/ledger"
	"launch-sniper/internal/storage/memory"
)

const (
	admin       = "admin-1"
	cycleLength = 30 * 24 * time.Hour
)

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type validatorFunc func(domain.Candidate) domain.ValidationResult

func (f validatorFunc) Validate(_ context.Context, c domain.Candidate) domain.ValidationResult {
	return f(c)
}

func passAll(domain.Candidate) domain.ValidationResult {
	price := 0.001
	return domain.ValidationResult{Passed: true, Facts: domain.Facts{PriceUSD: &price}}
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (s *recordingSink) Notify(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.EventKind, len(s.events))
	for i, ev := range s.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func (s *recordingSink) count(kind domain.EventKind) int {
	n := 0
	for _, k := range s.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type recordingReleaser struct {
	mu       sync.Mutex
	released []string
}

func (r *recordingReleaser) Release(_ context.Context, mint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, mint)
}

type fakeWallet struct{ balance decimal.Decimal }

func (w fakeWallet) Balance(context.Context) (decimal.Decimal, error) { return w.balance, nil }

type fakeSwapper struct {
	calls atomic.Int32
	err   error

	// swaps of slowMint signal started and wait for release
	slowMint string
	started  chan struct{}
	release  chan struct{}
}

func (s *fakeSwapper) Swap(_ context.Context, mint string, _ decimal.Decimal, _ int) (string, error) {
	n := s.calls.Add(1)
	if s.slowMint != "" && mint == s.slowMint {
		close(s.started)
		<-s.release
	}
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("sig-%s-%d", mint, n), nil
}

type fixture struct {
	ledger   *ledger.Ledger
	swapper  *fakeSwapper
	sink     *recordingSink
	seen     *recordingReleaser
	decision *memory.DecisionStore
	buy      decimal.Decimal
}

func newFixture(maxBuys int) *fixture {
	return &fixture{
		ledger:   ledger.New(maxBuys, cycleLength, ledger.WithClock(func() time.Time { return t0 })),
		swapper:  &fakeSwapper{},
		sink:     &recordingSink{},
		seen:     &recordingReleaser{},
		decision: memory.NewDecisionStore(),
		buy:      decimal.RequireFromString("0.1"),
	}
}

func (f *fixture) dispatcher(v Validator, now time.Time, trading bool) *Dispatcher {
	opts := []Option{
		WithDecisions(f.decision),
		WithReleaser(f.seen),
		WithClock(func() time.Time { return now }),
	}
	if trading {
		exec := executor.New(executor.Config{
			AdminIdentity:  admin,
			BuyAmount:      f.buy,
			TransactionFee: decimal.RequireFromString("0.000005"),
			SlippageBps:    100,
		}, f.ledger, fakeWallet{balance: decimal.NewFromInt(10)}, f.swapper,
			executor.WithClock(func() time.Time { return now }))
		opts = append(opts, WithExecutor(exec))
	}
	return New(Config{AdminIdentity: admin}, v, f.ledger, f.sink, opts...)
}

func candidate(mint string) domain.Candidate {
	return domain.Candidate{Mint: mint, Venue: domain.VenuePumpFun, DiscoveredAt: t0}
}

func TestHandle_EndToEndBought(t *testing.T) {
	f := newFixture(3)
	d := f.dispatcher(validatorFunc(passAll), t0.Add(time.Hour), true)

	outcome := d.Handle(context.Background(), candidate("mint-1"))

	assert.Equal(t, OutcomeBought, outcome)
	assert.Equal(t, []domain.EventKind{domain.EventBought, domain.EventAnnounced}, f.sink.kinds())

	bought := f.sink.events[0].Record
	require.NotNil(t, bought)
	assert.True(t, bought.Amount.Equal(f.buy), "amount %s", bought.Amount)
	assert.Equal(t, "mint-1", bought.Mint)

	snap := f.ledger.Snapshot()
	assert.Equal(t, 1, snap.BuysCompleted)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, bought.ID, snap.Records[0].ID)

	decisions, err := f.decision.GetByMint(context.Background(), "mint-1")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Passed)
}

func TestHandle_RejectedStopsPipeline(t *testing.T) {
	f := newFixture(3)
	reject := validatorFunc(func(domain.Candidate) domain.ValidationResult {
		return domain.ValidationResult{FailedStage: domain.StageAge, Reason: "age 45.0m > 30.0m"}
	})
	d := f.dispatcher(reject, t0, true)

	outcome := d.Handle(context.Background(), candidate("old"))

	assert.Equal(t, OutcomeRejected, outcome)
	assert.Equal(t, []domain.EventKind{domain.EventRejected}, f.sink.kinds())
	assert.Equal(t, domain.StageAge, f.sink.events[0].Validation.FailedStage)
	assert.Zero(t, f.swapper.calls.Load())
	assert.Empty(t, f.seen.released)

	decisions, err := f.decision.GetByMint(context.Background(), "old")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.StageAge, decisions[0].FailedStage)
}

func TestHandle_RetryableRejectionReleasesMint(t *testing.T) {
	f := newFixture(3)
	unavailable := validatorFunc(func(domain.Candidate) domain.ValidationResult {
		return domain.ValidationResult{FailedStage: domain.StageRisk, Reason: "data unavailable", Retryable: true}
	})
	d := f.dispatcher(unavailable, t0, true)

	assert.Equal(t, OutcomeRejected, d.Handle(context.Background(), candidate("flaky")))
	assert.Equal(t, []string{"flaky"}, f.seen.released)
}

func TestHandle_DryRunAnnouncesOnly(t *testing.T) {
	f := newFixture(3)
	d := f.dispatcher(validatorFunc(passAll), t0, false)

	assert.Equal(t, OutcomeAnnounced, d.Handle(context.Background(), candidate("mint-1")))
	assert.Equal(t, []domain.EventKind{domain.EventAnnounced}, f.sink.kinds())
	assert.Equal(t, 0, f.ledger.Snapshot().BuysCompleted)
}

func TestHandle_QuotaExhaustedStillAnnounced(t *testing.T) {
	f := newFixture(1)
	d := f.dispatcher(validatorFunc(passAll), t0.Add(time.Hour), true)
	ctx := context.Background()

	require.Equal(t, OutcomeBought, d.Handle(ctx, candidate("first")))
	outcome := d.Handle(ctx, candidate("second"))

	assert.Equal(t, OutcomeQuotaExhausted, outcome)
	assert.Equal(t, []domain.EventKind{
		domain.EventBought, domain.EventAnnounced,
		domain.EventPurchaseRejected, domain.EventAnnounced,
	}, f.sink.kinds())
	assert.Equal(t, domain.RejectQuotaExhausted, f.sink.events[2].Reason)
	assert.Equal(t, int32(1), f.swapper.calls.Load())
}

func TestHandle_SwapFailureLeavesLedgerUnchanged(t *testing.T) {
	f := newFixture(3)
	f.swapper.err = errors.New("no route")
	d := f.dispatcher(validatorFunc(passAll), t0, true)

	outcome := d.Handle(context.Background(), candidate("mint-1"))

	assert.Equal(t, OutcomePurchaseRejected, outcome)
	assert.Equal(t, []domain.EventKind{domain.EventPurchaseRejected, domain.EventAnnounced}, f.sink.kinds())
	assert.Equal(t, domain.RejectExecutionFailed, f.sink.events[0].Reason)
	assert.Contains(t, f.sink.events[0].Detail, "no route")
	assert.Equal(t, 0, f.ledger.Snapshot().BuysCompleted)
}

func TestHandle_UnauthorizedOperator(t *testing.T) {
	f := newFixture(3)
	d := f.dispatcher(validatorFunc(passAll), t0, true)
	d.cfg.AdminIdentity = "someone-else"

	assert.Equal(t, OutcomePurchaseRejected, d.Handle(context.Background(), candidate("mint-1")))
	assert.Equal(t, domain.RejectUnauthorized, f.sink.events[0].Reason)
	assert.Equal(t, 0, f.ledger.Snapshot().BuysCompleted)
}

func TestHandle_RolloverBeforeProcessing(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()

	before := f.dispatcher(validatorFunc(passAll), t0.Add(time.Hour), true)
	require.Equal(t, OutcomeBought, before.Handle(ctx, candidate("old-cycle")))

	notDue := f.dispatcher(validatorFunc(passAll), t0.Add(29*24*time.Hour), true)
	notDue.Handle(ctx, candidate("still-old"))
	assert.Zero(t, f.sink.count(domain.EventNewCycle))
	assert.Equal(t, 2, f.ledger.Snapshot().BuysCompleted)

	due := f.dispatcher(validatorFunc(passAll), t0.Add(cycleLength+time.Second), true)
	f.sink.events = nil
	require.Equal(t, OutcomeBought, due.Handle(ctx, candidate("new-cycle")))

	kinds := f.sink.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, domain.EventNewCycle, kinds[0])
	closed := f.sink.events[0].ClosedCycle
	require.NotNil(t, closed)
	assert.Equal(t, 2, closed.BuysCompleted)
	assert.True(t, closed.CycleStart.Equal(t0))

	snap := f.ledger.Snapshot()
	assert.Equal(t, 1, snap.BuysCompleted)
	assert.True(t, snap.CycleStart.Equal(t0.Add(cycleLength+time.Second)))
}

func TestHandle_NotificationFailureIgnored(t *testing.T) {
	f := newFixture(3)
	f.sink.err = errors.New("telegram down")
	d := f.dispatcher(validatorFunc(passAll), t0, true)

	assert.Equal(t, OutcomeBought, d.Handle(context.Background(), candidate("mint-1")))
	assert.Equal(t, 1, f.ledger.Snapshot().BuysCompleted)
}

func TestHandle_SwapInFlightDoesNotBlockOtherCandidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(3)
	f.swapper.slowMint = "buying"
	f.swapper.started = make(chan struct{})
	f.swapper.release = make(chan struct{})

	validated := make(chan string, 2)
	d := f.dispatcher(validatorFunc(func(c domain.Candidate) domain.ValidationResult {
		validated <- c.Mint
		return passAll(c)
	}), t0.Add(time.Hour), true)

	first := make(chan Outcome, 1)
	go func() { first <- d.Handle(ctx, candidate("buying")) }()
	require.Equal(t, "buying", <-validated)
	select {
	case <-f.swapper.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first swap never started")
	}

	second := make(chan Outcome, 1)
	go func() { second <- d.Handle(ctx, candidate("other")) }()
	select {
	case mint := <-validated:
		assert.Equal(t, "other", mint)
	case <-time.After(time.Second):
		t.Fatal("validation of an unrelated candidate waited for the in-flight swap")
	}
	select {
	case out := <-second:
		assert.Equal(t, OutcomeBought, out)
	case <-time.After(time.Second):
		t.Fatal("second purchase waited for the in-flight swap")
	}

	close(f.swapper.release)
	assert.Equal(t, OutcomeBought, <-first)
	assert.Equal(t, 2, f.ledger.Snapshot().BuysCompleted)
}

func TestRun_QuotaInvariantUnderConcurrency(t *testing.T) {
	f := newFixture(3)
	d := f.dispatcher(validatorFunc(passAll), t0.Add(time.Hour), true)
	d.cfg.Workers = 8

	in := make(chan domain.Candidate, 20)
	for i := 0; i < 20; i++ {
		in <- candidate(fmt.Sprintf("mint-%d", i))
	}
	close(in)

	d.Run(context.Background(), in)

	assert.Equal(t, 3, f.ledger.Snapshot().BuysCompleted)
	assert.Equal(t, 3, f.sink.count(domain.EventBought))
	assert.Equal(t, 17, f.sink.count(domain.EventPurchaseRejected))
	assert.Equal(t, 20, f.sink.count(domain.EventAnnounced))
	assert.Equal(t, int32(3), f.swapper.calls.Load())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(3)
	d := f.dispatcher(validatorFunc(passAll), t0, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, make(chan domain.Candidate))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
