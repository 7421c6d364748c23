package types

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	rerrors "github.com/riskscope/riskscope/pkg/errors"
)

// FormulaMismatchMessage is the notice shown when a variable is missing from the formula
const FormulaMismatchMessage = "Formula must reference all variable names correctly."

// Validate checks a job before anything is sent. Problems are aggregated into a
// single RISK-3001 error whose user message names the first formula mismatch.
func (j *Job) Validate() error {
	var result *multierror.Error

	switch j.Kind {
	case JobKindScenarioIdentification:
		if j.File == nil {
			result = multierror.Append(result, fmt.Errorf("scenario identification requires a CSV file"))
		}
	case JobKindSimulation:
		if j.File == nil && j.Parameters == nil {
			result = multierror.Append(result, fmt.Errorf("simulation requires a CSV file or parameters"))
		}
		if j.File != nil && j.Parameters != nil {
			result = multierror.Append(result, fmt.Errorf("simulation takes either a CSV file or parameters, not both"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown job kind %q", j.Kind))
	}

	formulaMismatch := false
	if j.Parameters != nil {
		if err := j.Parameters.Normalized().Validate(); err != nil {
			result = multierror.Append(result, err)
			formulaMismatch = isFormulaMismatch(err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		e := rerrors.Wrap(err, rerrors.ErrValidation, "job validation failed")
		if formulaMismatch {
			e.WithUserMessage(FormulaMismatchMessage)
		}
		return e
	}
	return nil
}

type formulaError struct {
	name string
}

func (e *formulaError) Error() string {
	if e.name == "" {
		return "variable without a name"
	}
	return fmt.Sprintf("formula does not reference variable %q", e.name)
}

func isFormulaMismatch(err error) bool {
	merr, ok := err.(*multierror.Error)
	if !ok {
		_, ok = err.(*formulaError)
		return ok
	}
	for _, e := range merr.Errors {
		if _, ok := e.(*formulaError); ok {
			return true
		}
	}
	return false
}

// Validate checks manual parameters. Every trimmed variable name must be
// non-empty and occur literally in the formula.
func (p *Parameters) Validate() error {
	var result *multierror.Error

	if len(p.Variables) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one variable is required"))
	}
	if strings.TrimSpace(p.Formula) == "" {
		result = multierror.Append(result, fmt.Errorf("formula is required"))
	}
	if p.NumTrials < 0 {
		result = multierror.Append(result, fmt.Errorf("num_trials must be positive, got %d", p.NumTrials))
	}

	for i, v := range p.Variables {
		name := strings.TrimSpace(v.Name)
		if name == "" || !strings.Contains(p.Formula, name) {
			result = multierror.Append(result, &formulaError{name: name})
		}
		fields, ok := DistributionFields[v.Distribution]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("variable %d (%s): unsupported distribution %q", i+1, name, v.Distribution))
			continue
		}
		for _, f := range fields {
			if _, ok := v.Parameters[f]; !ok {
				result = multierror.Append(result, fmt.Errorf("variable %d (%s): missing %s parameter", i+1, name, f))
			}
		}
	}

	return result.ErrorOrNil()
}

// Normalized returns a copy with trimmed names and the default trial count applied
func (p *Parameters) Normalized() *Parameters {
	out := &Parameters{
		Formula:   p.Formula,
		NumTrials: p.NumTrials,
		Variables: make([]Variable, len(p.Variables)),
	}
	if out.NumTrials == 0 {
		out.NumTrials = DefaultNumTrials
	}
	for i, v := range p.Variables {
		params := make(map[string]float64, len(v.Parameters))
		for k, val := range v.Parameters {
			params[k] = val
		}
		out.Variables[i] = Variable{
			Name:         strings.TrimSpace(v.Name),
			Distribution: Distribution(strings.ToLower(string(v.Distribution))),
			Parameters:   params,
		}
	}
	return out
}
