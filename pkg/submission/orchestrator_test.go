package submission

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/poller"
	"github.com/riskscope/riskscope/pkg/remote"
	"github.com/riskscope/riskscope/pkg/types"
)

func init() {
	logger.UseNop()
}

const scenarioCSV = "sector,organization,risk_name,risk_definition\nEnergy,Acme,Flood,River flooding\n"

type fakeRemote struct {
	resp   *remote.SubmitResponse
	err    error
	during func()
	jobs   []*types.Job
}

func (f *fakeRemote) Submit(ctx context.Context, job *types.Job) (*remote.SubmitResponse, error) {
	f.jobs = append(f.jobs, job)
	if f.during != nil {
		f.during()
	}
	return f.resp, f.err
}

type fakePoller struct {
	status *types.TaskStatus
	err    error
	during func()
}

func (f *fakePoller) Poll(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error) {
	if f.during != nil {
		f.during()
	}
	return f.status, f.err
}

type recordingSink struct {
	mu   sync.Mutex
	recs []*types.OutcomeRecord
}

func (r *recordingSink) Record(ctx context.Context, rec *types.OutcomeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

type alerts struct {
	messages []string
}

func (a *alerts) Notify(msg string) { a.messages = append(a.messages, msg) }

func scenarioJob() *types.Job {
	return &types.Job{
		Kind: types.JobKindScenarioIdentification,
		File: &types.File{Name: "risks.csv", Data: []byte(scenarioCSV)},
	}
}

func manualJob() *types.Job {
	return &types.Job{
		Kind: types.JobKindSimulation,
		Parameters: &types.Parameters{
			Formula: "a*b",
			Variables: []types.Variable{
				{Name: "a", Distribution: types.DistributionNormal, Parameters: map[string]float64{"mean": 10, "stddev": 1}},
				{Name: "b", Distribution: types.DistributionUniform, Parameters: map[string]float64{"min": 1, "max": 2}},
			},
		},
	}
}

func TestAsyncScenarioFlagTransitions(t *testing.T) {
	var o *Orchestrator
	var duringUpload, duringPoll State

	r := &fakeRemote{resp: &remote.SubmitResponse{StatusCode: 202, TaskID: "T1"}}
	r.during = func() { duringUpload = o.State() }
	payload := `[{"risk_name":"R1","results":{"scenario_documents":[{"url":"u","title":"t","content":"c","search_query":"q","scenarios":[{"scenario":"s","reasoning":"r"}]}]}}]`
	p := &fakePoller{status: &types.TaskStatus{State: types.TaskStateSuccess, Result: json.RawMessage(payload)}}
	p.during = func() { duringPoll = o.State() }
	sink := &recordingSink{}
	o = New(r, p, WithSink(sink))

	out, err := o.Submit(context.Background(), scenarioJob())
	require.NoError(t, err)

	assert.True(t, duringUpload.Uploading)
	assert.False(t, duringUpload.Loading)
	assert.False(t, duringPoll.Uploading, "uploading must clear before loading is raised")
	assert.True(t, duringPoll.Loading)

	st := o.State()
	assert.False(t, st.Uploading)
	assert.False(t, st.Loading)
	require.True(t, st.HasResult())
	assert.Equal(t, types.CategoryScenarioDocumentSet, st.Result.Category)
	assert.Equal(t, "R1", st.Result.Risks[0].RiskName)
	assert.Equal(t, types.TaskHandle("T1"), out.TaskID)
	assert.False(t, out.Stale)

	require.Len(t, sink.recs, 1)
	assert.Equal(t, types.TaskHandle("T1"), sink.recs[0].TaskID)
	assert.Empty(t, sink.recs[0].ErrorCode)
	assert.JSONEq(t, `[{"risk_name":"R1","documents":1,"scenarios":1}]`, string(sink.recs[0].Payload))
}

func TestSyncManualSimulationNeverLoads(t *testing.T) {
	var o *Orchestrator
	var during State
	r := &fakeRemote{resp: &remote.SubmitResponse{
		StatusCode: 200,
		Body:       json.RawMessage(`{"samples":[1.0,2.0,3.0],"summary":{"mean":2.0,"percentile_5":1.1,"percentile_95":2.9}}`),
	}}
	r.during = func() { during = o.State() }
	o = New(r, &fakePoller{err: errors.New("must not poll")})

	out, err := o.Submit(context.Background(), manualJob())
	require.NoError(t, err)
	assert.False(t, during.Uploading, "only scenario jobs raise uploading")
	assert.False(t, during.Loading)

	st := o.State()
	assert.False(t, st.Loading)
	assert.True(t, st.Manual)
	assert.Equal(t, types.CategorySingleSimulation, out.Result.Category)
	assert.Equal(t, 2.0, out.Result.Simulation.Summary.Mean)
}

func TestSubmissionFailure(t *testing.T) {
	a := &alerts{}
	sink := &recordingSink{}
	o := New(&fakeRemote{err: errors.New("connection refused")}, &fakePoller{}, WithNotifier(a), WithSink(sink))

	_, err := o.Submit(context.Background(), scenarioJob())
	require.Error(t, err)
	assert.True(t, rerrors.HasCode(err, rerrors.ErrSubmissionFailed))
	assert.Equal(t, []string{AlertSubmissionFailed}, a.messages)

	st := o.State()
	assert.False(t, st.Uploading)
	assert.False(t, st.Loading)
	assert.Nil(t, st.Result)
	require.Len(t, sink.recs, 1)
	assert.Equal(t, rerrors.ErrSubmissionFailed, sink.recs[0].ErrorCode)
}

func TestTaskFailureClearsLoading(t *testing.T) {
	a := &alerts{}
	r := &fakeRemote{resp: &remote.SubmitResponse{TaskID: "T1"}}
	p := &fakePoller{err: rerrors.New(rerrors.ErrTaskFailed, "task reported FAILURE")}
	o := New(r, p, WithNotifier(a))

	_, err := o.Submit(context.Background(), scenarioJob())
	assert.True(t, rerrors.HasCode(err, rerrors.ErrTaskFailed))
	assert.False(t, o.State().Loading)
	assert.Equal(t, []string{poller.AlertTaskFailed}, a.messages)
}

func TestPollTransportFailureAlert(t *testing.T) {
	a := &alerts{}
	r := &fakeRemote{resp: &remote.SubmitResponse{TaskID: "T1"}}
	p := &fakePoller{err: rerrors.New(rerrors.ErrPollTransportFailed, "status 500")}
	o := New(r, p, WithNotifier(a))

	_, err := o.Submit(context.Background(), scenarioJob())
	assert.True(t, rerrors.HasCode(err, rerrors.ErrPollTransportFailed))
	assert.Equal(t, []string{poller.AlertStatusFailed}, a.messages)
}

func TestResetSilencesLatePollFailure(t *testing.T) {
	var o *Orchestrator
	a := &alerts{}
	r := &fakeRemote{resp: &remote.SubmitResponse{TaskID: "T1"}}
	p := &fakePoller{err: rerrors.New(rerrors.ErrTaskFailed, "task reported FAILURE")}
	p.during = func() { o.Reset() }
	sink := &recordingSink{}
	o = New(r, p, WithNotifier(a), WithSink(sink))

	_, err := o.Submit(context.Background(), scenarioJob())
	assert.True(t, rerrors.HasCode(err, rerrors.ErrTaskFailed))
	assert.Empty(t, a.messages)
	assert.False(t, o.State().Loading)
}

func TestSupersededUploadDoesNotLeaveUploadingSet(t *testing.T) {
	var o *Orchestrator
	var duringNewer State
	scenario := &fakeRemote{resp: &remote.SubmitResponse{Body: json.RawMessage(`[{"risk_name":"old"}]`)}}
	manual := &fakeRemote{resp: &remote.SubmitResponse{
		Body: json.RawMessage(`{"samples":[1,2],"summary":{"mean":1.5}}`),
	}}
	manual.during = func() { duringNewer = o.State() }
	scenario.during = func() {
		scenario.during = nil
		o.remote = manual
		_, err := o.Submit(context.Background(), manualJob())
		require.NoError(t, err)
		o.remote = scenario
	}
	o = New(scenario, &fakePoller{})

	out, err := o.Submit(context.Background(), scenarioJob())
	require.NoError(t, err)
	assert.True(t, out.Stale)
	assert.False(t, duringNewer.Uploading, "a manual submission never uploads")

	st := o.State()
	assert.False(t, st.Uploading)
	assert.False(t, st.Loading)
	assert.Equal(t, types.CategorySingleSimulation, st.Result.Category)
}

func TestValidationBlocksSubmission(t *testing.T) {
	a := &alerts{}
	r := &fakeRemote{}
	o := New(r, &fakePoller{}, WithNotifier(a))

	job := manualJob()
	job.Parameters.Formula = "a*c"
	_, err := o.Submit(context.Background(), job)
	require.Error(t, err)
	assert.True(t, rerrors.HasCode(err, rerrors.ErrValidation))
	assert.Equal(t, []string{types.FormulaMismatchMessage}, a.messages)
	assert.Empty(t, r.jobs)

	bad := scenarioJob()
	bad.File.Data = []byte("a,b\n1,2\n")
	_, err = o.Submit(context.Background(), bad)
	assert.True(t, rerrors.HasCode(err, rerrors.ErrInvalidUpload))
	assert.Empty(t, r.jobs)
}

func TestResetDropsLateResult(t *testing.T) {
	var o *Orchestrator
	cleared := 0
	r := &fakeRemote{resp: &remote.SubmitResponse{TaskID: "T1"}}
	p := &fakePoller{status: &types.TaskStatus{
		State:  types.TaskStateSuccess,
		Result: json.RawMessage(`[{"risk_name":"late"}]`),
	}}
	p.during = func() { o.Reset() }
	sink := &recordingSink{}
	o = New(r, p, WithSink(sink))
	o.OnReset(func() { cleared++ })

	out, err := o.Submit(context.Background(), scenarioJob())
	require.NoError(t, err)
	assert.True(t, out.Stale)
	assert.Equal(t, 1, cleared)

	st := o.State()
	assert.Nil(t, st.Result)
	assert.False(t, st.Loading, "a superseded poll must not clear or raise flags")
	assert.Empty(t, sink.recs)
}

func TestNewerSubmissionWins(t *testing.T) {
	var o *Orchestrator
	first := &fakeRemote{resp: &remote.SubmitResponse{TaskID: "OLD"}}
	p := &fakePoller{status: &types.TaskStatus{State: types.TaskStateSuccess, Result: json.RawMessage(`[{"risk_name":"old"}]`)}}

	newer := &fakeRemote{resp: &remote.SubmitResponse{Body: json.RawMessage(`[{"risk_name":"new"}]`)}}
	p.during = func() {
		p.during = nil
		o.remote = newer
		_, err := o.Submit(context.Background(), scenarioJob())
		require.NoError(t, err)
		o.remote = first
	}
	o = New(first, p)

	out, err := o.Submit(context.Background(), scenarioJob())
	require.NoError(t, err)
	assert.True(t, out.Stale)
	assert.Equal(t, "new", o.Result().Risks[0].RiskName)
}

func TestResetClearsState(t *testing.T) {
	o := New(&fakeRemote{resp: &remote.SubmitResponse{Body: json.RawMessage(`[{"risk_name":"x"}]`)}}, &fakePoller{})
	_, err := o.Submit(context.Background(), scenarioJob())
	require.NoError(t, err)
	require.True(t, o.State().HasResult())

	o.Reset()
	st := o.State()
	assert.False(t, st.HasResult())
	assert.Equal(t, types.JobKind(""), st.Kind)
}
