package resilience

import (
	"context"
	"testing"
	"time"
)

func TestDefaultTimeoutConfig(t *testing.T) {
	config := DefaultTimeoutConfig()

	if config.HTTPHandler <= config.Ledger {
		t.Errorf("HTTPHandler (%v) must be > Ledger (%v)", config.HTTPHandler, config.Ledger)
	}

	if config.Ledger <= config.Statement {
		t.Errorf("Ledger (%v) must be > Statement (%v)", config.Ledger, config.Statement)
	}

	if config.Statement != 30*time.Second {
		t.Errorf("Expected Statement = 30s, got %v", config.Statement)
	}
}

func TestTestTimeoutConfig(t *testing.T) {
	config := TestTimeoutConfig()

	if config.HTTPHandler >= 10*time.Second {
		t.Errorf("Test timeouts should be < 10s, got %v", config.HTTPHandler)
	}

	if config.HTTPHandler <= config.Ledger {
		t.Errorf("HTTPHandler (%v) must be > Ledger (%v)", config.HTTPHandler, config.Ledger)
	}

	if config.Ledger <= config.Statement {
		t.Errorf("Ledger (%v) must be > Statement (%v)", config.Ledger, config.Statement)
	}
}

func TestTimeoutHierarchyPreservation(t *testing.T) {
	config := DefaultTimeoutConfig()

	parent, parentCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer parentCancel()

	child, childCancel := config.HandlerContext(parent)
	defer childCancel()

	parentDeadline, _ := parent.Deadline()
	childDeadline, _ := child.Deadline()

	if childDeadline.After(parentDeadline) {
		t.Errorf("Child deadline (%v) should not be after parent deadline (%v)",
			childDeadline, parentDeadline)
	}
}

func TestContextTimeout(t *testing.T) {
	config := TestTimeoutConfig()
	config.Ledger = 100 * time.Millisecond

	ctx, cancel := config.LedgerContext(context.Background())
	defer cancel()

	select {
	case <-ctx.Done():
		if ctx.Err() != context.DeadlineExceeded {
			t.Errorf("Expected context.DeadlineExceeded, got %v", ctx.Err())
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("Context should timeout after 100ms")
	}
}

func TestAllContextCreators(t *testing.T) {
	config := DefaultTimeoutConfig()
	parent := context.Background()

	tests := []struct {
		name    string
		creator func(context.Context) (context.Context, context.CancelFunc)
		timeout time.Duration
	}{
		{"HandlerContext", config.HandlerContext, config.HTTPHandler},
		{"LedgerContext", config.LedgerContext, config.Ledger},
		{"ConnectContext", config.ConnectContext, config.Connect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.creator(parent)
			defer cancel()

			deadline, ok := ctx.Deadline()
			if !ok {
				t.Fatalf("%s should have deadline", tt.name)
			}

			expected := time.Now().Add(tt.timeout)
			if diff := deadline.Sub(expected).Abs(); diff > 100*time.Millisecond {
				t.Errorf("%s deadline diff too large: %v", tt.name, diff)
			}
		})
	}
}
