package types

import (
	"encoding/json"
	"time"
)

// JobKind represents the two kinds of work the compute service accepts
type JobKind string

const (
	JobKindScenarioIdentification JobKind = "scenarios"
	JobKindSimulation             JobKind = "simulation"
)

// String returns the wire name of the kind
func (k JobKind) String() string {
	return string(k)
}

// Distribution tags a manually entered variable
type Distribution string

const (
	DistributionNormal     Distribution = "normal"
	DistributionLognormal  Distribution = "lognormal"
	DistributionTriangular Distribution = "triangular"
	DistributionUniform    Distribution = "uniform"
)

// DistributionFields lists the parameter names each distribution expects, in entry order
var DistributionFields = map[Distribution][]string{
	DistributionNormal:     {"mean", "stddev"},
	DistributionTriangular: {"min", "mode", "max"},
	DistributionUniform:    {"min", "max"},
	DistributionLognormal:  {"mean", "stddev"},
}

// DefaultNumTrials is used when a manual job leaves the trial count unset
const DefaultNumTrials = 10000

// Variable is one named random input of a manual simulation
type Variable struct {
	Name         string             `json:"name" yaml:"name"`
	Distribution Distribution       `json:"distribution" yaml:"distribution"`
	Parameters   map[string]float64 `json:"parameters" yaml:"parameters"`
}

// Parameters is the structured payload of a manually entered simulation job
type Parameters struct {
	Variables []Variable `json:"variables" yaml:"variables"`
	Formula   string     `json:"formula" yaml:"formula"`
	NumTrials int        `json:"num_trials" yaml:"num_trials"`
}

// File is an uploaded CSV blob
type File struct {
	Name string
	Data []byte
}

// Job is a user-constructed request. Exactly one of File and Parameters is set.
type Job struct {
	Kind       JobKind
	File       *File
	Parameters *Parameters
}

// IsManual reports whether the job carries manually entered parameters
func (j *Job) IsManual() bool {
	return j.File == nil && j.Parameters != nil
}

// Multipart reports whether the job travels as a multipart upload
func (j *Job) Multipart() bool {
	if j.Kind == JobKindScenarioIdentification {
		return true
	}
	return j.File != nil
}

// TaskHandle identifies an asynchronous job on the compute service
type TaskHandle string

// TaskState is the lifecycle state reported by the task status endpoint
type TaskState string

const (
	TaskStatePending TaskState = "PENDING"
	TaskStateSuccess TaskState = "SUCCESS"
	TaskStateFailure TaskState = "FAILURE"
)

// Terminal reports whether polling stops at this state.
// Anything the service reports besides SUCCESS and FAILURE counts as pending.
func (s TaskState) Terminal() bool {
	return s == TaskStateSuccess || s == TaskStateFailure
}

// TaskStatus is one answer from the task status endpoint
type TaskStatus struct {
	TaskID string          `json:"task_id,omitempty"`
	State  TaskState       `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ScenarioPair is one generated scenario with the reasoning behind it
type ScenarioPair struct {
	Scenario  string `json:"scenario"`
	Reasoning string `json:"reasoning"`
}

// ScenarioDocument is a source the scenarios were generated from
type ScenarioDocument struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	SearchQuery string         `json:"search_query"`
	Scenarios   []ScenarioPair `json:"scenarios"`
}

// RiskEntry is one risk of a scenario identification result
type RiskEntry struct {
	RiskName       string             `json:"risk_name"`
	RiskDefinition string             `json:"risk_definition,omitempty"`
	Documents      []ScenarioDocument `json:"scenario_documents"`
}

// Summary holds the headline figures of a simulation
type Summary struct {
	Mean         float64 `json:"mean"`
	Percentile5  float64 `json:"percentile_5"`
	Percentile95 float64 `json:"percentile_95"`
}

// Simulation is the result of a single manually entered simulation
type Simulation struct {
	Samples []float64 `json:"samples"`
	Summary Summary   `json:"summary"`
}

// SimulationEntry is one scenario of a file-driven simulation batch
type SimulationEntry struct {
	Risk          string     `json:"risk"`
	Scenario      string     `json:"scenario"`
	Formula       string     `json:"formula"`
	FormulaEquals string     `json:"formula_equals,omitempty"`
	Variables     []Variable `json:"variables"`
	Samples       []float64  `json:"samples"`
	Summary       Summary    `json:"summary"`
}

// Category is the rendering mode a result payload was classified into
type Category string

const (
	CategoryEmpty                   Category = "empty"
	CategoryScenarioDocumentSet     Category = "scenario_document_set"
	CategorySingleSimulation        Category = "single_simulation"
	CategoryMultiScenarioSimulation Category = "multi_scenario_simulation"
)

// OutcomeRecord is what gets archived once a submission reaches a terminal state
type OutcomeRecord struct {
	TicketID    string          `json:"ticket_id"`
	Kind        JobKind         `json:"kind"`
	Manual      bool            `json:"manual"`
	TaskID      TaskHandle      `json:"task_id,omitempty"`
	Category    Category        `json:"category"`
	ErrorCode   string          `json:"error_code,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"` // condensed result, no sample arrays
	SubmittedAt time.Time       `json:"submitted_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Notifier shows a one-line alert to the user
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(message string)

// Notify calls f(message)
func (f NotifierFunc) Notify(message string) {
	f(message)
}
