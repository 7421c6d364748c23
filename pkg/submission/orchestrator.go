// Package submission drives one job from validation to a classified result and
// owns the state a front end renders: the result slot and the two progress flags.
package submission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/riskscope/riskscope/pkg/archive"
	"github.com/riskscope/riskscope/pkg/classify"
	"github.com/riskscope/riskscope/pkg/csvcheck"
	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/poller"
	"github.com/riskscope/riskscope/pkg/remote"
	"github.com/riskscope/riskscope/pkg/types"
)

// AlertSubmissionFailed is shown when the submit call itself fails
const AlertSubmissionFailed = "Submission failed."

// Remote sends jobs to the compute service
type Remote interface {
	Submit(ctx context.Context, job *types.Job) (*remote.SubmitResponse, error)
}

// StatusPoller follows an asynchronous job until it is terminal
type StatusPoller interface {
	Poll(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error)
}

// Outcome is the end of a Submit call that did not fail. Stale is set when the
// submission was superseded or reset before it finished; its result was dropped.
type Outcome struct {
	TicketID string
	TaskID   types.TaskHandle
	Result   *classify.Result
	Stale    bool
}

// State is a snapshot of what a front end shows
type State struct {
	Uploading bool
	Loading   bool
	Kind      types.JobKind
	Manual    bool
	Result    *classify.Result
}

// HasResult reports whether there is something non-empty to render
func (s State) HasResult() bool {
	return !s.Result.Empty()
}

type ticket struct {
	id          string
	kind        types.JobKind
	manual      bool
	submittedAt time.Time
}

// Orchestrator runs submissions. Each Submit gets a ticket; only the current
// ticket may write the result slot or the flags, and Reset drops the current
// ticket so late answers are ignored.
type Orchestrator struct {
	remote   Remote
	poller   StatusPoller
	notifier types.Notifier
	sink     archive.Sink

	uploading *atomic.Bool
	loading   *atomic.Bool

	mu        sync.Mutex
	current   *ticket
	result    *classify.Result
	resultFor *ticket
	onReset   []func()

	now func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithNotifier sets where alerts go
func WithNotifier(n types.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithSink archives terminal outcomes
func WithSink(s archive.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// New creates an orchestrator
func New(r Remote, p StatusPoller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		remote:    r,
		poller:    p,
		notifier:  types.NotifierFunc(func(string) {}),
		sink:      archive.Nop{},
		uploading: atomic.NewBool(false),
		loading:   atomic.NewBool(false),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnReset registers a listener that must drop any held file selection
func (o *Orchestrator) OnReset(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onReset = append(o.onReset, fn)
}

// Submit validates job, sends it, polls if the service answered with a task id
// and stores the classified result. It blocks until the job is terminal.
// Validation failures touch no state.
func (o *Orchestrator) Submit(ctx context.Context, job *types.Job) (*Outcome, error) {
	if err := validate(job); err != nil {
		o.notifier.Notify(rerrors.Notice(err))
		return nil, err
	}

	t := o.begin(job)
	log := logger.With("ticket", t.id, "kind", job.Kind.String())
	log.Debugw("submitting", "manual", t.manual)

	scenario := job.Kind == types.JobKindScenarioIdentification
	if scenario {
		o.setFlag(t, o.uploading, true)
	}
	resp, err := o.remote.Submit(ctx, job)
	if scenario {
		o.setFlag(t, o.uploading, false)
	}
	if err != nil {
		log.Warnw("submission failed", "error", err)
		if rerrors.Code(err) == "" {
			err = rerrors.Wrap(err, rerrors.ErrSubmissionFailed, "submission failed").
				WithUserMessage(AlertSubmissionFailed)
		}
		o.notifier.Notify(AlertSubmissionFailed)
		o.archive(t, "", nil, err)
		return nil, err
	}

	payload := resp.Body
	if resp.Async() {
		o.setFlag(t, o.loading, true)
		st, err := o.poller.Poll(ctx, resp.TaskID)
		o.setFlag(t, o.loading, false)
		if err != nil {
			o.announce(t, pollAlert(err))
			o.archive(t, resp.TaskID, nil, err)
			return nil, err
		}
		payload = st.Result
	}

	res := classify.Classify(payload, job.Kind, t.manual)
	out := &Outcome{TicketID: t.id, TaskID: resp.TaskID, Result: res}
	if !o.store(t, res) {
		log.Infow("dropping stale result", "category", res.Category)
		out.Stale = true
		return out, nil
	}
	log.Infow("submission complete", "category", res.Category, "task_id", string(resp.TaskID))
	o.archive(t, resp.TaskID, res, nil)
	return out, nil
}

// Reset clears the result and both flags, drops the current ticket and tells
// file listeners to forget their selection. In-flight polls keep running but
// their results are discarded.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.current = nil
	o.result = nil
	o.resultFor = nil
	o.uploading.Store(false)
	o.loading.Store(false)
	listeners := append([]func(){}, o.onReset...)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// State returns a snapshot of the flags and the result slot
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := State{
		Uploading: o.uploading.Load(),
		Loading:   o.loading.Load(),
		Result:    o.result,
	}
	if o.resultFor != nil {
		s.Kind = o.resultFor.kind
		s.Manual = o.resultFor.manual
	}
	return s
}

// Result returns the stored result, nil when there is none
func (o *Orchestrator) Result() *classify.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

func validate(job *types.Job) error {
	if job == nil {
		return rerrors.New(rerrors.ErrValidation, "no job")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	if job.File != nil {
		return csvcheck.Validate(job.Kind, job.File)
	}
	return nil
}

// begin makes a new ticket current and clears the previous result
func (o *Orchestrator) begin(job *types.Job) *ticket {
	t := &ticket{
		id:          uuid.NewString(),
		kind:        job.Kind,
		manual:      job.IsManual(),
		submittedAt: o.now(),
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = t
	o.result = nil
	o.resultFor = nil
	o.uploading.Store(false)
	o.loading.Store(false)
	return t
}

func (o *Orchestrator) setFlag(t *ticket, flag *atomic.Bool, v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == t {
		flag.Store(v)
	}
}

// announce alerts only while t is current; a reset or newer submission
// silences whatever the old poll loop ends with
func (o *Orchestrator) announce(t *ticket, msg string) {
	o.mu.Lock()
	current := o.current == t
	o.mu.Unlock()
	if current {
		o.notifier.Notify(msg)
	}
}

func pollAlert(err error) string {
	switch rerrors.Code(err) {
	case rerrors.ErrTaskFailed:
		return poller.AlertTaskFailed
	case rerrors.ErrPollTransportFailed:
		return poller.AlertStatusFailed
	}
	return rerrors.Notice(err)
}

func (o *Orchestrator) store(t *ticket, res *classify.Result) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != t {
		return false
	}
	o.result = res
	o.resultFor = t
	return true
}

func (o *Orchestrator) archive(t *ticket, handle types.TaskHandle, res *classify.Result, err error) {
	rec := &types.OutcomeRecord{
		TicketID:    t.id,
		Kind:        t.kind,
		Manual:      t.manual,
		TaskID:      handle,
		Category:    types.CategoryEmpty,
		ErrorCode:   rerrors.Code(err),
		SubmittedAt: t.submittedAt,
		FinishedAt:  o.now(),
	}
	if res != nil {
		rec.Category = res.Category
		rec.Payload = archive.Digest(res)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.sink.Record(ctx, rec); err != nil {
		logger.Warnf("archive outcome %s: %v", t.id, err)
	}
}
