package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration
func (c *Config) Validate() error {
	var errs ValidationErrors
	errs = append(errs, c.validateBackend()...)
	errs = append(errs, c.validatePoll()...)
	errs = append(errs, c.validateArchive()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateBackend() ValidationErrors {
	var errs ValidationErrors

	u, err := url.Parse(c.Backend.BaseURL)
	if c.Backend.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("backend base_url must be an absolute URL, got %q", c.Backend.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "backend.base_url",
			Message: fmt.Sprintf("backend base_url scheme must be http or https, got %q", u.Scheme),
		})
	}

	for field, p := range map[string]string{
		"scenarios":      c.Backend.Endpoints.Scenarios,
		"simulate":       c.Backend.Endpoints.Simulate,
		"task_status":    c.Backend.Endpoints.TaskStatus,
		"csv":            c.Backend.Endpoints.CSV,
		"pdf":            c.Backend.Endpoints.PDF,
		"simulation_pdf": c.Backend.Endpoints.SimulationPDF,
	} {
		if p != "" && !strings.HasPrefix(p, "/") {
			errs = append(errs, ValidationError{
				Field:   "backend.endpoints." + field,
				Message: fmt.Sprintf("endpoint %s must start with '/', got %q", field, p),
			})
		}
	}
	return errs
}

func (c *Config) validatePoll() ValidationErrors {
	var errs ValidationErrors

	if c.Poll.Interval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "poll.interval",
			Message: "poll interval must be positive",
		})
	}
	switch strings.ToLower(c.Poll.Backoff) {
	case "", "fixed":
	case "exponential":
		if c.Poll.MaxInterval > 0 && c.Poll.MaxInterval < c.Poll.Interval {
			errs = append(errs, ValidationError{
				Field:   "poll.max_interval",
				Message: "poll max_interval must not be below interval",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "poll.backoff",
			Message: fmt.Sprintf("poll backoff must be fixed or exponential, got %q", c.Poll.Backoff),
		})
	}
	if c.Poll.Jitter < 0 || c.Poll.Jitter >= 1 {
		errs = append(errs, ValidationError{
			Field:   "poll.jitter",
			Message: "poll jitter must be in [0, 1)",
		})
	}
	if c.Poll.MaxAttempts < 0 {
		errs = append(errs, ValidationError{
			Field:   "poll.max_attempts",
			Message: "poll max_attempts must not be negative",
		})
	}
	if c.Poll.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "poll.timeout",
			Message: "poll timeout must not be negative",
		})
	}
	return errs
}

func (c *Config) validateArchive() ValidationErrors {
	if !c.Archive.Enabled {
		return nil
	}
	var errs ValidationErrors
	if c.Archive.Project == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.project",
			Message: "archive project is required when the archive is enabled",
		})
	}
	if c.Archive.Collection == "" && c.Archive.Topic == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.collection",
			Message: "archive needs a collection, a topic or both",
		})
	}
	return errs
}
