package timeout

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Operation names used across the client
const (
	OpSubmit       = "submit"
	OpPoll         = "poll"
	OpPollSequence = "poll-sequence"
	OpExport       = "export"
)

// OperationTimeouts defines default timeouts for operations.
// A poll sequence has no deadline unless configured.
var OperationTimeouts = map[string]time.Duration{
	OpSubmit:       2 * time.Minute,
	OpPoll:         30 * time.Second,
	OpPollSequence: 0,
	OpExport:       time.Minute,
}

// Manager manages timeout configuration
type Manager struct {
	global    time.Duration
	operation map[string]time.Duration
	mu        sync.RWMutex
}

// NewManager creates a manager seeded with OperationTimeouts
func NewManager(globalTimeout time.Duration) *Manager {
	ops := make(map[string]time.Duration, len(OperationTimeouts))
	for k, v := range OperationTimeouts {
		ops[k] = v
	}
	return &Manager{
		global:    globalTimeout,
		operation: ops,
	}
}

// Config represents timeout configuration
type Config struct {
	Global     time.Duration            `json:"global" yaml:"global"`
	Operations map[string]time.Duration `json:"operations" yaml:"operations"`
}

// LoadConfig merges configuration over the current settings
func (m *Manager) LoadConfig(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.Global > 0 {
		m.global = config.Global
	}
	for op, d := range config.Operations {
		m.operation[op] = d
	}
}

// SetOperationTimeout sets timeout for specific operation
func (m *Manager) SetOperationTimeout(operation string, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operation[operation] = timeout
}

// GetTimeout returns the timeout for an operation; zero means unbounded
func (m *Manager) GetTimeout(operation string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if d, ok := m.operation[operation]; ok {
		return d
	}
	return m.global
}

// WithTimeout derives a context bounded by the operation's timeout.
// Unbounded operations get a plain cancelable context.
func (m *Manager) WithTimeout(ctx context.Context, operation string) (context.Context, context.CancelFunc) {
	d := m.GetTimeout(operation)
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// TimeoutError represents a timeout error
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

// Error implements error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %v", e.Operation, e.Timeout)
}

// IsTimeout checks if error is a timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*TimeoutError); ok {
		return true
	}
	return err == context.DeadlineExceeded
}
