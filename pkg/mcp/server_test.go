package mcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskscope/riskscope/pkg/config"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/service"
)

func init() {
	logger.UseNop()
}

func newTestServer(t *testing.T, h http.Handler) *MCPServer {
	t.Helper()
	backend := httptest.NewServer(h)
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = backend.URL
	cfg.Poll.Interval = time.Millisecond
	cfg.Export.Dir = t.TempDir()

	alerts := &Alerts{}
	svc, err := service.New(context.Background(), cfg, alerts)
	require.NoError(t, err)
	s, err := NewMCPServer(svc, alerts, "test")
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func writeCSV(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "risks.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestToolsRegistered(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())
	assert.Equal(t, []string{"current_result", "export_result", "reset", "run_simulation", "submit_scenarios", "task_status"}, s.Tools())
}

func TestSubmitScenariosTool(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/scenarios", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"task_id":"T9"}`)
	})
	mux.HandleFunc("/task_status/T9", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"state":"SUCCESS","result":[{"risk_name":"Flood","results":{"scenario_documents":[{"title":"Doc","content":"Report X"}]}}]}`)
	})
	s := newTestServer(t, mux)

	path := writeCSV(t, "sector,organization,risk_name,risk_definition\nEnergy,Acme,Flood,Water\n")
	res, err := s.handleSubmitScenarios(context.Background(), callRequest("submit_scenarios", map[string]any{"csv_path": path}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Task T9 finished.")
	assert.Contains(t, text, "LINK: Doc [1]")
	assert.Contains(t, text, "1. Report X")

	res, err = s.handleCurrentResult(context.Background(), callRequest("current_result", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Available actions: reset, download_csv, download_pdf")

	res, err = s.handleReset(context.Background(), callRequest("reset", nil))
	require.NoError(t, err)
	res, err = s.handleCurrentResult(context.Background(), callRequest("current_result", nil))
	require.NoError(t, err)
	assert.Equal(t, "No results to display.", resultText(t, res))
}

func TestTaskFailureAlert(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/scenarios", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"task_id":"T1"}`)
	})
	mux.HandleFunc("/task_status/T1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"state":"FAILURE"}`)
	})
	s := newTestServer(t, mux)

	path := writeCSV(t, "sector,organization,risk_name,risk_definition\nEnergy,Acme,Flood,Water\n")
	res, err := s.handleSubmitScenarios(context.Background(), callRequest("submit_scenarios", map[string]any{"csv_path": path}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Task failed.", resultText(t, res))
}

func TestRunSimulationManual(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/simulate", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"samples":[1,2,3],"summary":{"mean":2,"percentile_5":1,"percentile_95":3}}`)
	})
	s := newTestServer(t, mux)

	params := `
formula: loss * 2
variables:
  - name: loss
    distribution: normal
    parameters: {mean: 100, stddev: 10}
`
	res, err := s.handleRunSimulation(context.Background(), callRequest("run_simulation", map[string]any{"parameters": params}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Mean: $2.00")

	res, err = s.handleExportResult(context.Background(), callRequest("export_result", map[string]any{"action": "print"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "simulation_print.pdf")
}

func TestRunSimulationRejectsFormulaMismatch(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())

	params := `{"formula":"a+b","variables":[{"name":"c","distribution":"uniform","parameters":{"min":0,"max":1}}]}`
	res, err := s.handleRunSimulation(context.Background(), callRequest("run_simulation", map[string]any{"parameters": params}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Formula must reference all variable names correctly.", resultText(t, res))
}

func TestExportWithoutResult(t *testing.T) {
	s := newTestServer(t, http.NotFoundHandler())
	res, err := s.handleExportResult(context.Background(), callRequest("export_result", map[string]any{"action": "download_csv"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "No data available for download.", resultText(t, res))
}
