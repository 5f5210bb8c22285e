package readiness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandbox-term/internal/domain"
)

type step struct {
	report domain.StatusReport
	err    error
	delay  time.Duration
}

// scriptedQuerier replays steps in order and repeats the last one forever.
type scriptedQuerier struct {
	mu    sync.Mutex
	steps []step
	calls int
	times []time.Time
}

func (q *scriptedQuerier) SessionStatus(ctx context.Context, _ string) (domain.StatusReport, error) {
	q.mu.Lock()
	i := min(q.calls, len(q.steps)-1)
	q.calls++
	q.times = append(q.times, time.Now())
	s := q.steps[i]
	q.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.StatusReport{}, ctx.Err()
		}
	}
	return s.report, s.err
}

func (q *scriptedQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func pct(v float64) *domain.ReportProgress { return &domain.ReportProgress{Percent: &v} }

func collect(t *testing.T, ch <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatal("poll stream did not terminate")
			return nil
		}
	}
}

func fastConfig() Config {
	return Config{Interval: 5 * time.Millisecond, Deadline: 2 * time.Second, RequestTimeout: time.Second}
}

func TestPoller_ReadyEndsStream(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{report: domain.StatusReport{Phase: "PullingImage", Progress: pct(40)}},
		{report: domain.StatusReport{Phase: "CreatingContainer", Message: "almost"}},
		{report: domain.StatusReport{Phase: "Ready", Ready: true, Message: "up"}},
	}}
	updates := collect(t, NewPoller(q, fastConfig(), nil).Start(context.Background(), "s-1"))

	require.Len(t, updates, 3)
	assert.Equal(t, domain.PhasePullingImage, updates[0].Session.Phase)
	assert.Equal(t, 40, *updates[0].Session.Progress.Percent)
	assert.False(t, updates[0].Final)

	last := updates[2]
	assert.True(t, last.Final)
	assert.Equal(t, OutcomeReady, last.Outcome)
	assert.NoError(t, last.Err)
	assert.Equal(t, domain.PhaseReady, last.Session.Phase)
	assert.Equal(t, "up", last.Session.Message)
	assert.Nil(t, last.Session.Progress)
	assert.Equal(t, "s-1", last.Session.ID)
	assert.Equal(t, 3, q.callCount())
}

func TestPoller_ProvisioningFailure(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{report: domain.StatusReport{Phase: "PullingImage"}},
		{report: domain.StatusReport{Phase: "Error", Error: "image not found"}},
	}}
	updates := collect(t, NewPoller(q, fastConfig(), nil).Start(context.Background(), "s-1"))

	last := updates[len(updates)-1]
	assert.True(t, last.Final)
	assert.Equal(t, OutcomeFailed, last.Outcome)
	assert.ErrorIs(t, last.Err, domain.ErrProvisioningFailed)
	assert.Equal(t, "image not found", last.Session.Error)
	assert.Equal(t, domain.PhaseError, last.Session.Phase)
}

func TestPoller_TransientErrorsAreTolerated(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{err: errors.New("connection refused")},
		{err: errors.New("502")},
		{report: domain.StatusReport{Ready: true}},
	}}
	updates := collect(t, NewPoller(q, fastConfig(), nil).Start(context.Background(), "s-1"))

	require.Len(t, updates, 1)
	assert.Equal(t, OutcomeReady, updates[0].Outcome)
	assert.Equal(t, 3, updates[0].Attempt)
}

func TestPoller_DeadlineTimesOut(t *testing.T) {
	q := &scriptedQuerier{steps: []step{{report: domain.StatusReport{Phase: "PullingImage"}}}}
	cfg := Config{Interval: 10 * time.Millisecond, Deadline: 80 * time.Millisecond, RequestTimeout: time.Second}
	updates := collect(t, NewPoller(q, cfg, nil).Start(context.Background(), "s-1"))

	last := updates[len(updates)-1]
	assert.True(t, last.Final)
	assert.Equal(t, OutcomeTimedOut, last.Outcome)
	assert.ErrorIs(t, last.Err, domain.ErrTimeout)
	assert.Equal(t, domain.CodeReadinessTimeout, domain.ErrorCodeOf(last.Err))
	assert.Equal(t, TimeoutMessage, last.Session.Error)
	assert.Equal(t, domain.PhaseError, last.Session.Phase)

	finals := 0
	for _, u := range updates {
		if u.Final {
			finals++
		}
	}
	assert.Equal(t, 1, finals)

	calls := q.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, q.callCount(), "no polls after the stream ended")
}

func TestPoller_QueryErrorAfterDeadlineIsTimeout(t *testing.T) {
	// The query outlives the deadline; the request is cut when the deadline fires.
	q := &scriptedQuerier{steps: []step{{delay: time.Second, report: domain.StatusReport{Ready: true}}}}
	cfg := Config{Interval: 5 * time.Millisecond, Deadline: 40 * time.Millisecond, RequestTimeout: 5 * time.Second}
	updates := collect(t, NewPoller(q, cfg, nil).Start(context.Background(), "s-1"))

	require.Len(t, updates, 1)
	assert.Equal(t, OutcomeTimedOut, updates[0].Outcome)
}

func TestPoller_RequestTimeoutIsTransient(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{delay: time.Second},
		{report: domain.StatusReport{Ready: true}},
	}}
	cfg := Config{Interval: 5 * time.Millisecond, Deadline: 2 * time.Second, RequestTimeout: 20 * time.Millisecond}
	updates := collect(t, NewPoller(q, cfg, nil).Start(context.Background(), "s-1"))

	require.Len(t, updates, 1)
	assert.Equal(t, OutcomeReady, updates[0].Outcome)
}

func TestPoller_CancelClosesWithoutFinal(t *testing.T) {
	q := &scriptedQuerier{steps: []step{{report: domain.StatusReport{Phase: "PullingImage"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	ch := NewPoller(q, fastConfig(), nil).Start(ctx, "s-1")

	<-ch
	cancel()
	for u := range ch {
		assert.False(t, u.Final)
		assert.NotEqual(t, domain.PhaseError, u.Session.Phase)
	}
}

func TestPoller_PollsAreSequentialAndPaced(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{delay: 15 * time.Millisecond, report: domain.StatusReport{Phase: "Starting"}},
		{delay: 15 * time.Millisecond, report: domain.StatusReport{Phase: "PullingImage"}},
		{report: domain.StatusReport{Ready: true}},
	}}
	cfg := Config{Interval: 30 * time.Millisecond, Deadline: 2 * time.Second, RequestTimeout: time.Second}
	collect(t, NewPoller(q, cfg, nil).Start(context.Background(), "s-1"))

	q.mu.Lock()
	defer q.mu.Unlock()
	require.Len(t, q.times, 3)
	for i := 1; i < len(q.times); i++ {
		assert.GreaterOrEqual(t, q.times[i].Sub(q.times[i-1]), cfg.Interval/2)
	}
}

func TestPoller_TimeoutWaitsForFullDeadline(t *testing.T) {
	q := &scriptedQuerier{steps: []step{{err: errors.New("connection refused")}}}
	cfg := Config{Interval: 60 * time.Millisecond, Deadline: 100 * time.Millisecond, RequestTimeout: time.Second}

	start := time.Now()
	updates := collect(t, NewPoller(q, cfg, nil).Start(context.Background(), "s-1"))
	elapsed := time.Since(start)

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, OutcomeTimedOut, last.Outcome)
	assert.GreaterOrEqual(t, elapsed, cfg.Deadline)
	assert.Equal(t, 2, q.callCount())
}

func TestPoller_RegressionKeepsPhase(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{report: domain.StatusReport{Phase: "CreatingVolume"}},
		{report: domain.StatusReport{Phase: "PullingImage"}},
		{report: domain.StatusReport{Ready: true}},
	}}
	updates := collect(t, NewPoller(q, fastConfig(), nil).Start(context.Background(), "s-1"))
	require.Len(t, updates, 3)
	assert.Equal(t, domain.PhaseCreatingVolume, updates[1].Session.Phase)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "timed_out", OutcomeTimedOut.String())
	assert.Equal(t, "pending", OutcomePending.String())
}
