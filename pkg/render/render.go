// Package render turns a classified result into plain text.
package render

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/riskscope/riskscope/pkg/classify"
	"github.com/riskscope/riskscope/pkg/footnote"
	"github.com/riskscope/riskscope/pkg/types"
)

const rule = "----------------------------------------"

// Render writes res to w. Empty results write nothing.
func Render(w io.Writer, res *classify.Result) error {
	if res.Empty() {
		return nil
	}
	bw := bufio.NewWriter(w)
	switch res.Category {
	case types.CategoryScenarioDocumentSet:
		Scenarios(bw, res.Risks)
	case types.CategorySingleSimulation:
		Single(bw, res.Simulation)
	case types.CategoryMultiScenarioSimulation:
		Batch(bw, res.Scenarios)
	}
	return bw.Flush()
}

// Scenarios writes a scenario document set. Source contents are collected
// into a numbered SOURCE CONTENT list; identical contents share one number.
func Scenarios(w io.Writer, risks []types.RiskEntry) {
	notes := footnote.New()
	for i, risk := range risks {
		fmt.Fprintln(w, risk.RiskName)
		if risk.RiskDefinition != "" {
			fmt.Fprintln(w, risk.RiskDefinition)
		}
		if len(risk.Documents) == 0 {
			fmt.Fprintln(w, "No scenario documents found.")
		}
		for _, doc := range risk.Documents {
			n := notes.IndexOf(doc.Content)
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  LINK: %s [%d]\n", doc.Title, n)
			if doc.URL != "" {
				fmt.Fprintf(w, "        %s\n", doc.URL)
			}
			fmt.Fprintf(w, "  QUERY: %s\n", doc.SearchQuery)
			for _, sc := range doc.Scenarios {
				fmt.Fprintf(w, "    * %s\n", sc.Scenario)
				fmt.Fprintf(w, "      - %s\n", sc.Reasoning)
			}
		}
		if i != len(risks)-1 {
			fmt.Fprintln(w, rule)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SOURCE CONTENT")
	for i, c := range notes.Contents() {
		fmt.Fprintf(w, "%d. %s\n", i+1, c)
	}
}

// Single writes a manually entered simulation
func Single(w io.Writer, sim *types.Simulation) {
	if sim == nil || len(sim.Samples) == 0 {
		return
	}
	fmt.Fprintln(w, "Results")
	summaryLines(w, sim.Summary)
	fmt.Fprintf(w, "Samples: %d\n", len(sim.Samples))
}

// Batch writes a multi-scenario simulation
func Batch(w io.Writer, entries []types.SimulationEntry) {
	for i, e := range entries {
		fmt.Fprintln(w, e.Risk)
		fmt.Fprintf(w, "Scenario: %s\n", e.Scenario)
		if e.Formula != "" {
			fmt.Fprintf(w, "Formula: %s\n", Formula(e))
		}
		for _, v := range e.Variables {
			fmt.Fprintf(w, "  %s (%s)\n", v.Name, v.Distribution)
			for _, p := range ParameterNames(v) {
				fmt.Fprintf(w, "    %s: %s\n", p, strconv.FormatFloat(v.Parameters[p], 'f', -1, 64))
			}
		}
		summaryLines(w, e.Summary)
		if i != len(entries)-1 {
			fmt.Fprintln(w, rule)
		}
	}
}

// Formula is "formula_equals = formula" when the left-hand side is known
func Formula(e types.SimulationEntry) string {
	if e.FormulaEquals != "" {
		return e.FormulaEquals + " = " + e.Formula
	}
	return e.Formula
}

// Money formats a figure the way summaries show it
func Money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// SummaryLines returns the three headline figures
func SummaryLines(s types.Summary) []string {
	return []string{
		"Mean: " + Money(s.Mean),
		"5th percentile: " + Money(s.Percentile5),
		"95th percentile: " + Money(s.Percentile95),
	}
}

func summaryLines(w io.Writer, s types.Summary) {
	for _, l := range SummaryLines(s) {
		fmt.Fprintln(w, l)
	}
}

// ParameterNames orders a variable's parameters: the distribution's own
// fields first, anything else alphabetically after them.
func ParameterNames(v types.Variable) []string {
	seen := make(map[string]bool, len(v.Parameters))
	var names []string
	for _, f := range types.DistributionFields[v.Distribution] {
		if _, ok := v.Parameters[f]; ok {
			names = append(names, f)
			seen[f] = true
		}
	}
	var rest []string
	for k := range v.Parameters {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}
