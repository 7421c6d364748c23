package mcp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/export"
	"github.com/riskscope/riskscope/pkg/logger"
	"github.com/riskscope/riskscope/pkg/render"
	"github.com/riskscope/riskscope/pkg/service"
	"github.com/riskscope/riskscope/pkg/types"
)

// Alerts collects notifications raised during a tool call so they can be
// returned with its result
type Alerts struct {
	mu       sync.Mutex
	messages []string
}

// Notify records an alert
func (a *Alerts) Notify(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
}

// Drain returns and clears the recorded alerts
func (a *Alerts) Drain() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.messages
	a.messages = nil
	return out
}

// MCPServer exposes a Service as MCP tools
type MCPServer struct {
	svc       *service.Service
	alerts    *Alerts
	registry  *Registry
	mcpServer *server.MCPServer
}

// NewMCPServer creates the server. alerts must be the notifier svc was built with.
func NewMCPServer(svc *service.Service, alerts *Alerts, version string) (*MCPServer, error) {
	s := &MCPServer{
		svc:      svc,
		alerts:   alerts,
		registry: NewRegistry(),
		mcpServer: server.NewMCPServer(
			"riskscope",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	s.registry.RegisterWithServer(s.mcpServer)
	return s, nil
}

func (s *MCPServer) registerTools() error {
	defs := []*ToolDefinition{
		{
			Name:        "submit_scenarios",
			Description: "Upload a risk CSV (sector, organization, risk_name, risk_definition) and wait for the generated scenarios",
			Parameters: []mcp.ToolOption{
				mcp.WithString("csv_path", mcp.Required(), mcp.Description("Path to the CSV file")),
			},
			Handler: s.handleSubmitScenarios,
		},
		{
			Name:        "run_simulation",
			Description: "Run a Monte Carlo simulation from a CSV file or from manually entered parameters",
			Parameters: []mcp.ToolOption{
				mcp.WithString("csv_path", mcp.Description("Path to a simulation CSV file")),
				mcp.WithString("parameters", mcp.Description("YAML or JSON with variables, formula and num_trials")),
			},
			Handler: s.handleRunSimulation,
		},
		{
			Name:        "task_status",
			Description: "Check the state of an asynchronous task once",
			Parameters: []mcp.ToolOption{
				mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id returned by a submission")),
			},
			Handler: s.handleTaskStatus,
		},
		{
			Name:        "current_result",
			Description: "Render the current result as text",
			Handler:     s.handleCurrentResult,
		},
		{
			Name:        "export_result",
			Description: "Download or print the current result",
			Parameters: []mcp.ToolOption{
				mcp.WithString("action",
					mcp.Required(),
					mcp.Description("What to produce"),
					mcp.Enum(string(export.ActionDownloadCSV), string(export.ActionDownloadPDF), string(export.ActionPrint)),
				),
			},
			Handler: s.handleExportResult,
		},
		{
			Name:        "reset",
			Description: "Clear the current result",
			Handler:     s.handleReset,
		},
	}
	for _, def := range defs {
		if err := s.registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (s *MCPServer) handleSubmitScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("csv_path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid csv_path: %v", err)), nil
	}
	file, err := readFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.submit(ctx, &types.Job{Kind: types.JobKindScenarioIdentification, File: file})
}

func (s *MCPServer) handleRunSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("csv_path", "")
	raw := request.GetString("parameters", "")
	job := &types.Job{Kind: types.JobKindSimulation}

	switch {
	case path != "" && raw != "":
		return mcp.NewToolResultError("Pass either csv_path or parameters, not both"), nil
	case path != "":
		file, err := readFile(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		job.File = file
	case raw != "":
		var params types.Parameters
		if err := yaml.Unmarshal([]byte(raw), &params); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid parameters: %v", err)), nil
		}
		job.Parameters = &params
	default:
		return mcp.NewToolResultError("Either csv_path or parameters is required"), nil
	}
	return s.submit(ctx, job)
}

func (s *MCPServer) submit(ctx context.Context, job *types.Job) (*mcp.CallToolResult, error) {
	s.alerts.Drain()
	out, err := s.svc.Submit(ctx, job)
	if err != nil {
		logger.Warnf("mcp: %s submission failed: %v", job.Kind, err)
		return mcp.NewToolResultError(s.errorText(err)), nil
	}
	if out.Stale {
		return mcp.NewToolResultText(s.withAlerts("The result was discarded because the session was reset.")), nil
	}

	var buf bytes.Buffer
	if out.TaskID != "" {
		fmt.Fprintf(&buf, "Task %s finished.\n\n", out.TaskID)
	}
	if out.Result.Empty() {
		buf.WriteString("The service returned no results.\n")
	} else if err := render.Render(&buf, out.Result); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render result: %v", err)), nil
	}
	return mcp.NewToolResultText(s.withAlerts(buf.String())), nil
}

func (s *MCPServer) handleTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid task_id: %v", err)), nil
	}
	st, err := s.svc.Status(ctx, types.TaskHandle(id))
	if err != nil {
		return mcp.NewToolResultError(rerrors.Notice(err)), nil
	}
	text := fmt.Sprintf("Task %s: %s", id, st.State)
	if st.State == types.TaskStateSuccess && len(st.Result) > 0 {
		text += "\n" + string(st.Result)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *MCPServer) handleCurrentResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, st := s.svc.Result()
	if st.Loading || st.Uploading {
		return mcp.NewToolResultText("A submission is still running."), nil
	}
	if res.Empty() {
		return mcp.NewToolResultText("No results to display."), nil
	}
	var buf bytes.Buffer
	if err := render.Render(&buf, res); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render result: %v", err)), nil
	}
	actions := s.svc.Actions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	fmt.Fprintf(&buf, "\nAvailable actions: %s\n", strings.Join(names, ", "))
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *MCPServer) handleExportResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid action: %v", err)), nil
	}
	path, err := s.svc.Export(ctx, export.Action(action))
	if err != nil {
		return mcp.NewToolResultError(rerrors.Notice(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %s", path)), nil
}

func (s *MCPServer) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.svc.Reset()
	return mcp.NewToolResultText("Result cleared."), nil
}

func (s *MCPServer) withAlerts(text string) string {
	alerts := s.alerts.Drain()
	if len(alerts) == 0 {
		return text
	}
	return strings.Join(alerts, "\n") + "\n\n" + text
}

// errorText prefers the alerts raised during the call over the error notice
func (s *MCPServer) errorText(err error) string {
	if alerts := s.alerts.Drain(); len(alerts) > 0 {
		return strings.Join(alerts, "\n")
	}
	return rerrors.Notice(err)
}

func readFile(path string) (*types.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &types.File{Name: filepath.Base(path), Data: data}, nil
}

// Start serves on stdio until the client disconnects
func (s *MCPServer) Start(ctx context.Context) error {
	logger.Infof("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// Tools lists the registered tool names
func (s *MCPServer) Tools() []string {
	return s.registry.List()
}
