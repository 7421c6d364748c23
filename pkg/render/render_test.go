package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskscope/riskscope/pkg/classify"
	"github.com/riskscope/riskscope/pkg/types"
)

func TestScenarioFootnotesShareNumbers(t *testing.T) {
	payload := `[
	  {"risk_name":"A","results":{"scenario_documents":[
	    {"title":"one","content":"Report X","search_query":"q1","scenarios":[{"scenario":"s1","reasoning":"r1"}]},
	    {"title":"two","content":"Report Y","search_query":"q2"}
	  ]}},
	  {"risk_name":"B","results":{"scenario_documents":[
	    {"title":"three","content":"Report X","search_query":"q3"}
	  ]}}
	]`
	res := classify.Classify([]byte(payload), types.JobKindScenarioIdentification, false)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "LINK: one [1]")
	assert.Contains(t, out, "LINK: two [2]")
	assert.Contains(t, out, "LINK: three [1]")
	assert.Contains(t, out, "    * s1\n      - r1\n")

	_, sources, ok := strings.Cut(out, "SOURCE CONTENT\n")
	require.True(t, ok)
	assert.Equal(t, "1. Report X\n2. Report Y\n", sources)
}

func TestScenarioWithoutDocuments(t *testing.T) {
	var buf bytes.Buffer
	Scenarios(&buf, []types.RiskEntry{{RiskName: "Flood", RiskDefinition: "River flooding"}})
	assert.True(t, strings.HasPrefix(buf.String(), "Flood\nRiver flooding\nNo scenario documents found.\n"))
}

func TestRenderEmptyWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, classify.Classify([]byte(`[]`), types.JobKindScenarioIdentification, false)))
	require.NoError(t, Render(&buf, nil))
	assert.Zero(t, buf.Len())
}

func TestSingleSimulation(t *testing.T) {
	res := classify.Classify([]byte(`{"samples":[1,2,3],"summary":{"mean":2,"percentile_5":1.104,"percentile_95":2.896}}`),
		types.JobKindSimulation, true)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res))
	want := "Results\nMean: $2.00\n5th percentile: $1.10\n95th percentile: $2.90\nSamples: 3\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchSimulation(t *testing.T) {
	entries := []types.SimulationEntry{{
		Risk:          "Outage",
		Scenario:      "Datacenter fire",
		Formula:       "hours * rate",
		FormulaEquals: "loss",
		Variables: []types.Variable{{
			Name:         "hours",
			Distribution: types.DistributionTriangular,
			Parameters:   map[string]float64{"max": 72, "min": 4, "mode": 12.5},
		}},
		Summary: types.Summary{Mean: 1234.5},
	}}

	var buf bytes.Buffer
	Batch(&buf, entries)
	out := buf.String()
	assert.Contains(t, out, "Formula: loss = hours * rate\n")
	assert.Contains(t, out, "  hours (triangular)\n    min: 4\n    mode: 12.5\n    max: 72\n")
	assert.Contains(t, out, "Mean: $1234.50\n")
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 1, 2, 3, 4, 10}, 5)
	require.Len(t, bins, 5)
	assert.Equal(t, 4, bins[0].Count+bins[1].Count)
	assert.Equal(t, 1, bins[4].Count)
	assert.Equal(t, 10.0, bins[4].High)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 6, total)

	assert.Equal(t, []Bin{{Low: 7, High: 7, Count: 2}}, Histogram([]float64{7, 7}, 10))
	assert.Nil(t, Histogram(nil, 10))
}
