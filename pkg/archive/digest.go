package archive

import (
	"encoding/json"

	"github.com/riskscope/riskscope/pkg/classify"
	"github.com/riskscope/riskscope/pkg/types"
)

// MaxPayloadBytes bounds the payload kept with a record. Firestore rejects
// documents over 1 MiB, so anything larger is dropped and flagged instead.
const MaxPayloadBytes = 256 << 10

type riskDigest struct {
	RiskName  string `json:"risk_name"`
	Documents int    `json:"documents"`
	Scenarios int    `json:"scenarios"`
}

type simulationDigest struct {
	Risk          string        `json:"risk,omitempty"`
	Scenario      string        `json:"scenario,omitempty"`
	Formula       string        `json:"formula,omitempty"`
	FormulaEquals string        `json:"formula_equals,omitempty"`
	Trials        int           `json:"trials"`
	Summary       types.Summary `json:"summary"`
}

// Digest condenses a classified result for archiving. Sample arrays and
// document bodies are left out; counts and summary figures remain.
func Digest(res *classify.Result) json.RawMessage {
	var v interface{}
	switch {
	case res.Empty():
		return nil
	case res.Category == types.CategoryScenarioDocumentSet:
		risks := make([]riskDigest, 0, len(res.Risks))
		for _, r := range res.Risks {
			d := riskDigest{RiskName: r.RiskName, Documents: len(r.Documents)}
			for _, doc := range r.Documents {
				d.Scenarios += len(doc.Scenarios)
			}
			risks = append(risks, d)
		}
		v = risks
	case res.Category == types.CategorySingleSimulation && res.Simulation != nil:
		v = simulationDigest{Trials: len(res.Simulation.Samples), Summary: res.Simulation.Summary}
	case res.Category == types.CategoryMultiScenarioSimulation:
		entries := make([]simulationDigest, 0, len(res.Scenarios))
		for _, e := range res.Scenarios {
			entries = append(entries, simulationDigest{
				Risk:          e.Risk,
				Scenario:      e.Scenario,
				Formula:       e.Formula,
				FormulaEquals: e.FormulaEquals,
				Trials:        len(e.Samples),
				Summary:       e.Summary,
			})
		}
		v = entries
	default:
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// oversized reports whether rec's payload must be left out of a write
func oversized(rec *types.OutcomeRecord) bool {
	return len(rec.Payload) > MaxPayloadBytes
}
