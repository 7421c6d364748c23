// Package export offers what can be done with a finished result: download a
// server-generated CSV or PDF, or print a local PDF of a simulation.
package export

import "github.com/riskscope/riskscope/pkg/types"

// Action is one result control
type Action string

const (
	ActionReset       Action = "reset"
	ActionDownloadCSV Action = "download_csv"
	ActionDownloadPDF Action = "download_pdf"
	ActionPrint       Action = "print"
)

// Actions lists the controls available for the current state. Nothing is
// offered while loading or without a non-empty result.
func Actions(kind types.JobKind, manual, hasResult, loading bool) []Action {
	if loading || !hasResult {
		return nil
	}
	switch kind {
	case types.JobKindScenarioIdentification:
		return []Action{ActionReset, ActionDownloadCSV, ActionDownloadPDF}
	case types.JobKindSimulation:
		if manual {
			return []Action{ActionReset, ActionPrint}
		}
		return []Action{ActionReset, ActionDownloadPDF}
	}
	return nil
}

// Allowed reports whether a is among the available actions
func Allowed(a Action, available []Action) bool {
	for _, x := range available {
		if x == a {
			return true
		}
	}
	return false
}
