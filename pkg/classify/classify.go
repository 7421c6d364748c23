// Package classify decides which rendering mode a raw result payload belongs to.
//
// The wire format has no discriminant, so the decision combines the endpoint the
// job was sent to with structural probes of the payload. Probes run in a fixed
// order and the first match wins:
//
//  1. absent, null, a scalar or a zero-length sequence -> Empty
//  2. scenario job and a non-empty sequence            -> ScenarioDocumentSet
//  3. simulation job, manual mode, an object with a
//     "samples" sequence and a "summary" object        -> SingleSimulation
//  4. simulation job and a non-empty sequence whose
//     first element has a "scenario" field             -> MultiScenarioSimulation
//  5. anything else                                    -> Empty
//
// Unrecognized shapes are not errors; they render nothing.
package classify

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/riskscope/riskscope/pkg/types"
)

// Result is a classified payload together with its normalized view.
// Only the field matching Category is populated.
type Result struct {
	Category   types.Category          `json:"category"`
	Raw        json.RawMessage         `json:"-"`
	Risks      []types.RiskEntry       `json:"risks,omitempty"`
	Simulation *types.Simulation       `json:"simulation,omitempty"`
	Scenarios  []types.SimulationEntry `json:"scenarios,omitempty"`
}

// Empty reports whether there is nothing to render
func (r *Result) Empty() bool {
	return r == nil || r.Category == types.CategoryEmpty
}

// Classify inspects payload for a job of the given kind. manualMode is true when
// the simulation was entered by hand rather than uploaded.
func Classify(payload []byte, kind types.JobKind, manualMode bool) *Result {
	r := &Result{
		Category: Category(payload, kind, manualMode),
		Raw:      payload,
	}
	return r.normalize()
}

// Category runs only the decision function
func Category(payload []byte, kind types.JobKind, manualMode bool) types.Category {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return types.CategoryEmpty
	}
	root := gjson.ParseBytes(trimmed)

	isSeq := root.IsArray()
	if !isSeq && !root.IsObject() {
		return types.CategoryEmpty
	}
	var first gjson.Result
	if isSeq {
		elems := root.Array()
		if len(elems) == 0 {
			return types.CategoryEmpty
		}
		first = elems[0]
	}

	switch {
	case kind == types.JobKindScenarioIdentification && isSeq:
		return types.CategoryScenarioDocumentSet
	case kind == types.JobKindSimulation && manualMode && !isSeq &&
		root.Get("samples").IsArray() && root.Get("summary").IsObject():
		return types.CategorySingleSimulation
	case kind == types.JobKindSimulation && isSeq && first.IsObject() && first.Get("scenario").Exists():
		return types.CategoryMultiScenarioSimulation
	default:
		return types.CategoryEmpty
	}
}

func (r *Result) normalize() *Result {
	if r.Category == types.CategoryEmpty {
		return r
	}
	root := gjson.ParseBytes(r.Raw)
	switch r.Category {
	case types.CategoryScenarioDocumentSet:
		r.Risks = risks(root)
	case types.CategorySingleSimulation:
		r.Simulation = &types.Simulation{
			Samples: floats(root.Get("samples")),
			Summary: summary(root.Get("summary")),
		}
	case types.CategoryMultiScenarioSimulation:
		r.Scenarios = simulationEntries(root)
	}
	return r
}

// risks reads scenario documents leniently; element shape is trusted, missing
// fields come back as zero values.
func risks(root gjson.Result) []types.RiskEntry {
	elems := root.Array()
	out := make([]types.RiskEntry, 0, len(elems))
	for _, e := range elems {
		entry := types.RiskEntry{
			RiskName:       e.Get("risk_name").String(),
			RiskDefinition: e.Get("risk_definition").String(),
		}
		if docs := e.Get("results.scenario_documents"); docs.IsArray() {
			for _, d := range docs.Array() {
				entry.Documents = append(entry.Documents, document(d))
			}
		}
		out = append(out, entry)
	}
	return out
}

func document(d gjson.Result) types.ScenarioDocument {
	doc := types.ScenarioDocument{
		URL:         d.Get("url").String(),
		Title:       d.Get("title").String(),
		Content:     d.Get("content").String(),
		SearchQuery: d.Get("search_query").String(),
	}
	for _, sc := range d.Get("scenarios").Array() {
		doc.Scenarios = append(doc.Scenarios, types.ScenarioPair{
			Scenario:  sc.Get("scenario").String(),
			Reasoning: sc.Get("reasoning").String(),
		})
	}
	return doc
}

func simulationEntries(root gjson.Result) []types.SimulationEntry {
	elems := root.Array()
	out := make([]types.SimulationEntry, 0, len(elems))
	for _, e := range elems {
		entry := types.SimulationEntry{
			Risk:          e.Get("risk").String(),
			Scenario:      e.Get("scenario").String(),
			Formula:       e.Get("formula").String(),
			FormulaEquals: e.Get("formula_equals").String(),
			Samples:       floats(e.Get("samples")),
			Summary:       summary(e.Get("summary")),
		}
		for _, v := range e.Get("variables").Array() {
			entry.Variables = append(entry.Variables, variable(v))
		}
		out = append(out, entry)
	}
	return out
}

func variable(v gjson.Result) types.Variable {
	out := types.Variable{
		Name:         v.Get("name").String(),
		Distribution: types.Distribution(v.Get("distribution").String()),
		Parameters:   map[string]float64{},
	}
	v.Get("parameters").ForEach(func(key, value gjson.Result) bool {
		out.Parameters[key.String()] = value.Float()
		return true
	})
	return out
}

func summary(s gjson.Result) types.Summary {
	return types.Summary{
		Mean:         s.Get("mean").Float(),
		Percentile5:  s.Get("percentile_5").Float(),
		Percentile95: s.Get("percentile_95").Float(),
	}
}

func floats(arr gjson.Result) []float64 {
	elems := arr.Array()
	out := make([]float64, 0, len(elems))
	for _, v := range elems {
		out = append(out, v.Float())
	}
	return out
}
