package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/timeout"
	"github.com/riskscope/riskscope/pkg/types"
)

// Endpoints holds the paths of the compute service, relative to the base URL
type Endpoints struct {
	Scenarios     string `yaml:"scenarios"`
	Simulate      string `yaml:"simulate"`
	TaskStatus    string `yaml:"task_status"`
	CSV           string `yaml:"csv"`
	PDF           string `yaml:"pdf"`
	SimulationPDF string `yaml:"simulation_pdf"`
}

// DefaultEndpoints matches the stock compute service
var DefaultEndpoints = Endpoints{
	Scenarios:     "/scenarios",
	Simulate:      "/simulate",
	TaskStatus:    "/task_status",
	CSV:           "/generate_csv",
	PDF:           "/generate_pdf",
	SimulationPDF: "/generate_simulation_pdf",
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Endpoints  Endpoints
	Token      string
	HTTPClient *http.Client
	Timeouts   *timeout.Manager
}

// Client talks to the remote compute service
type Client struct {
	baseURL   string
	endpoints Endpoints
	token     string
	hc        *http.Client
	timeouts  *timeout.Manager
}

// SubmitResponse is what came back from a submission. Either TaskID is set and
// the job must be polled, or Body is the final payload.
type SubmitResponse struct {
	StatusCode int
	TaskID     types.TaskHandle
	Body       json.RawMessage
}

// Async reports whether the job has to be polled
func (r *SubmitResponse) Async() bool {
	return r.TaskID != ""
}

// NewClient creates a client; zero-valued options fall back to defaults
func NewClient(opts Options) *Client {
	ep := opts.Endpoints
	fillEndpoints(&ep)
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	tm := opts.Timeouts
	if tm == nil {
		tm = timeout.NewManager(0)
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		endpoints: ep,
		token:     opts.Token,
		hc:        hc,
		timeouts:  tm,
	}
}

func fillEndpoints(ep *Endpoints) {
	def := DefaultEndpoints
	setDefault(&ep.Scenarios, def.Scenarios)
	setDefault(&ep.Simulate, def.Simulate)
	setDefault(&ep.TaskStatus, def.TaskStatus)
	setDefault(&ep.CSV, def.CSV)
	setDefault(&ep.PDF, def.PDF)
	setDefault(&ep.SimulationPDF, def.SimulationPDF)
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// Submit sends a job. Scenario jobs and file-backed simulations go out as
// multipart uploads, manual simulations as JSON. Any transport or HTTP failure
// is a RISK-1001.
func (c *Client) Submit(ctx context.Context, job *types.Job) (*SubmitResponse, error) {
	path := c.endpoints.Simulate
	if job.Kind == types.JobKindScenarioIdentification {
		path = c.endpoints.Scenarios
	}

	var (
		body        io.Reader
		contentType string
	)
	if job.Multipart() {
		if job.File == nil {
			return nil, rerrors.New(rerrors.ErrValidation, "multipart job without a file")
		}
		buf, ct, err := multipartBody(job.File)
		if err != nil {
			return nil, rerrors.Wrap(err, rerrors.ErrInternal, "failed to encode upload")
		}
		body, contentType = buf, ct
	} else {
		if job.Parameters == nil {
			return nil, rerrors.New(rerrors.ErrValidation, "manual job without parameters")
		}
		b, err := json.Marshal(job.Parameters.Normalized())
		if err != nil {
			return nil, rerrors.Wrap(err, rerrors.ErrInternal, "failed to encode parameters")
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	ctx, cancel := c.timeouts.WithTimeout(ctx, timeout.OpSubmit)
	defer cancel()

	status, respBody, err := c.do(ctx, http.MethodPost, path, contentType, body)
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrSubmissionFailed, "submission failed").
			WithUserMessage("Submission failed.").
			WithContext("kind", job.Kind.String())
	}

	resp := &SubmitResponse{StatusCode: status, Body: respBody}
	if id := gjson.GetBytes(respBody, "task_id"); id.Exists() && id.String() != "" {
		resp.TaskID = types.TaskHandle(id.String())
	}
	logger.Debugf("remote: %s %s -> %d async=%t", http.MethodPost, path, status, resp.Async())
	return resp, nil
}

// TaskStatus fetches the state of an asynchronous job. Transport failures,
// HTTP errors and bodies without a state are all RISK-1002.
func (c *Client) TaskStatus(ctx context.Context, handle types.TaskHandle) (*types.TaskStatus, error) {
	ctx, cancel := c.timeouts.WithTimeout(ctx, timeout.OpPoll)
	defer cancel()

	path := strings.TrimRight(c.endpoints.TaskStatus, "/") + "/" + url.PathEscape(string(handle))
	_, body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, pollFailure(err, handle)
	}

	state := gjson.GetBytes(body, "state")
	if !gjson.ValidBytes(body) || state.Type != gjson.String {
		return nil, pollFailure(fmt.Errorf("malformed status body: %.200s", body), handle)
	}
	status := &types.TaskStatus{
		TaskID: string(handle),
		State:  types.TaskState(state.String()),
	}
	if res := gjson.GetBytes(body, "result"); res.Exists() {
		status.Result = json.RawMessage(res.Raw)
	}
	return status, nil
}

func pollFailure(err error, handle types.TaskHandle) error {
	return rerrors.Wrap(err, rerrors.ErrPollTransportFailed, "task status request failed").
		WithUserMessage("Error retrieving task status.").
		WithContext("task_id", string(handle))
}

// Export posts {data: payload} to a generation endpoint and returns the blob
func (c *Client) Export(ctx context.Context, path string, payload json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(struct {
		Data json.RawMessage `json:"data"`
	}{Data: payload})
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrInternal, "failed to encode export payload")
	}

	ctx, cancel := c.timeouts.WithTimeout(ctx, timeout.OpExport)
	defer cancel()

	_, blob, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrExportFailed, "export failed").
			WithContext("path", path)
	}
	return blob, nil
}

// Endpoints returns the resolved endpoint paths
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// HTTPError is a non-2xx answer from the service
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// Temporary reports whether the server side failed (5xx)
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, data, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(data, "error").String(),
		}
	}
	return resp.StatusCode, data, nil
}

func multipartBody(f *types.File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	h.Set("Content-Type", "text/csv")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
