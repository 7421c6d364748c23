// Package poller follows an asynchronous task on the compute service until it
// reaches a terminal state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/retry"
	"github.com/riskscope/riskscope/pkg/timeout"
	"github.com/riskscope/riskscope/pkg/types"
)

// Alert texts
const (
	AlertTaskFailed   = "Task failed."
	AlertStatusFailed = "Error retrieving task status."
)

// DefaultInterval is the baseline delay between two status requests
const DefaultInterval = 3 * time.Second

// StatusFetcher fetches one task status
type StatusFetcher interface {
	TaskStatus(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error)
}

// Policy bounds a poll sequence. The zero MaxAttempts means unlimited; the
// overall deadline comes from the timeout manager's poll-sequence entry.
type Policy struct {
	Strategy    retry.Strategy
	MaxAttempts int
}

// DefaultPolicy polls every 3 seconds forever
func DefaultPolicy() Policy {
	return Policy{Strategy: &retry.Fixed{Delay: DefaultInterval}}
}

// Poller runs poll sequences
type Poller struct {
	fetcher  StatusFetcher
	policy   Policy
	timeouts *timeout.Manager
	notifier types.Notifier
}

// Option configures a Poller
type Option func(*Poller)

// WithPolicy replaces the default policy
func WithPolicy(p Policy) Option {
	return func(pl *Poller) {
		if p.Strategy == nil {
			p.Strategy = &retry.Fixed{Delay: DefaultInterval}
		}
		pl.policy = p
	}
}

// WithTimeouts sets the timeout manager used for the whole sequence
func WithTimeouts(tm *timeout.Manager) Option {
	return func(pl *Poller) { pl.timeouts = tm }
}

// WithNotifier sets where terminal failures are announced
func WithNotifier(n types.Notifier) Option {
	return func(pl *Poller) { pl.notifier = n }
}

// New creates a poller
func New(fetcher StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		policy:   DefaultPolicy(),
		timeouts: timeout.NewManager(0),
		notifier: types.NotifierFunc(func(string) {}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollOnce issues a single status request. Transport and decoding failures
// come back as RISK-1002 and are terminal for the sequence.
func (p *Poller) PollOnce(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error) {
	st, err := p.fetcher.TaskStatus(ctx, handle)
	if err != nil {
		if rerrors.Code(err) == "" {
			err = rerrors.Wrap(err, rerrors.ErrPollTransportFailed, "task status request failed").
				WithUserMessage(AlertStatusFailed)
		}
		return nil, err
	}
	if st == nil {
		return nil, rerrors.New(rerrors.ErrPollTransportFailed, "empty task status").
			WithUserMessage(AlertStatusFailed)
	}
	return st, nil
}

// Poll requests the status immediately and then after every scheduled delay
// until the task succeeds or fails. SUCCESS returns the status with its
// result. FAILURE, a status request error, the attempt limit and the sequence
// deadline all end the sequence with an error; the first two are announced
// through the notifier.
func (p *Poller) Poll(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error) {
	ctx, cancel := p.timeouts.WithTimeout(ctx, timeout.OpPollSequence)
	defer cancel()

	log := logger.With("task_id", string(handle))
	for attempt := 0; ; attempt++ {
		st, err := p.PollOnce(ctx, handle)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, p.stopped(ctxErr, handle, attempt)
			}
			log.Warnw("task status failed", "attempt", attempt+1, "error", err)
			p.notifier.Notify(AlertStatusFailed)
			return nil, err
		}

		switch st.State {
		case types.TaskStateSuccess:
			log.Debugw("task succeeded", "attempts", attempt+1)
			return st, nil
		case types.TaskStateFailure:
			log.Infow("task failed", "attempts", attempt+1)
			p.notifier.Notify(AlertTaskFailed)
			return st, rerrors.New(rerrors.ErrTaskFailed, "task reported FAILURE").
				WithUserMessage(AlertTaskFailed).
				WithContext("task_id", string(handle))
		}

		if p.policy.MaxAttempts > 0 && attempt+1 >= p.policy.MaxAttempts {
			return nil, rerrors.New(rerrors.ErrPollLimit, fmt.Sprintf("task still %s after %d polls", st.State, attempt+1)).
				WithContext("task_id", string(handle))
		}

		if err := retry.Sleep(ctx, p.policy.Strategy.NextDelay(attempt)); err != nil {
			return nil, p.stopped(err, handle, attempt+1)
		}
	}
}

func (p *Poller) stopped(err error, handle types.TaskHandle, attempts int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return rerrors.Wrap(&timeout.TimeoutError{
			Operation: timeout.OpPollSequence,
			Timeout:   p.timeouts.GetTimeout(timeout.OpPollSequence),
		}, rerrors.ErrPollLimit, "poll sequence timed out").
			WithContext("task_id", string(handle)).
			WithContext("attempts", attempts)
	}
	return err
}
