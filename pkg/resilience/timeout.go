package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	HTTP Handler (60s)
//	  ↓
//	Ledger operation (50s)
//	  ↓
//	Database statement (30s, enforced server side via statement_timeout)
//
// Each layer completes before its parent times out.
type TimeoutConfig struct {
	HTTPHandler time.Duration // Overall request timeout (default: 60s)
	Ledger      time.Duration // One ledger operation incl. collision retries (default: 50s)
	Statement   time.Duration // Single SQL statement (default: 30s)
	Connect     time.Duration // One dial attempt (default: 10s)
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		Ledger:      50 * time.Second,
		Statement:   30 * time.Second,
		Connect:     10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 5 * time.Second,
		Ledger:      4 * time.Second,
		Statement:   2 * time.Second,
		Connect:     1 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// LedgerContext creates a context with timeout for a ledger operation
func (tc *TimeoutConfig) LedgerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Ledger)
}

// ConnectContext creates a context with timeout for a single dial attempt
func (tc *TimeoutConfig) ConnectContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Connect)
}
