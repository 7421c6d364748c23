// Package csvcheck rejects uploads whose header does not match what the
// compute service expects, before anything is sent.
package csvcheck

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
	"github.com/riskscope/riskscope/pkg/types"
)

// Required column lists, in order
var (
	ScenarioColumns   = []string{"sector", "organization", "risk_name", "risk_definition"}
	SimulationColumns = []string{"risk", "scenario", "variable", "distribution", "mean", "std_dev", "min", "max", "mode", "formula", "formula_equals"}
)

// Columns returns the required header for a job kind
func Columns(kind types.JobKind) []string {
	if kind == types.JobKindSimulation {
		return SimulationColumns
	}
	return ScenarioColumns
}

// Validate checks name and contents of an upload for the given job kind.
// The returned error is a RISK-3002 whose notice is meant for the user as-is.
func Validate(kind types.JobKind, file *types.File) error {
	if file == nil || len(file.Data) == 0 {
		return invalid("Please upload a valid CSV file.", nil)
	}
	if !strings.HasSuffix(file.Name, ".csv") {
		return invalid("Please upload a file with a .csv extension.", nil)
	}

	header, rows, err := parse(file.Data)
	if err != nil || rows == 0 {
		return invalid("There was an error parsing the CSV file.", err)
	}

	required := Columns(kind)
	if len(header) != len(required) {
		return invalid(fmt.Sprintf("CSV must have exactly these columns: %s.", strings.Join(required, ", ")), nil)
	}
	for i, col := range required {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return invalid(fmt.Sprintf("Column headers must be exactly: %s (in this order).", strings.Join(required, ", ")), nil)
		}
	}
	return nil
}

// parse reads the header and counts non-blank data rows
func parse(data []byte) ([]string, int, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, err
	}
	rows := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if len(rec) != len(header) {
			return nil, 0, fmt.Errorf("row %d has %d fields, header has %d", rows+2, len(rec), len(header))
		}
		if !blank(rec) {
			rows++
		}
	}
	return header, rows, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func invalid(notice string, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("%s", notice)
	}
	return rerrors.Wrap(cause, rerrors.ErrInvalidUpload, "upload rejected").WithUserMessage(notice)
}
