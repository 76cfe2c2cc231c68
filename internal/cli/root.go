// Package cli implements feectl, the fee ledger administration tool
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
)

// Ledger is the part of the session pool the commands drive
type Ledger interface {
	CollectFee(ctx context.Context, req ledger.CollectFeeRequest) (*ledger.FeeReceipt, error)
	AdmitStudent(ctx context.Context, student *domain.Student) error
	HireEmployee(ctx context.Context, employee *domain.Employee) error
	PeekNext(ctx context.Context, series sequence.Series, at time.Time) (string, error)
	Close(ctx context.Context) error
}

// Opener connects to the ledger. loc is the zone receipts are dated in.
type Opener func(ctx context.Context) (l Ledger, loc *time.Location, err error)

func okMark() string { return color.New(color.FgGreen).Sprint("✓") }
func failMark() string { return color.New(color.FgRed).Sprint("✗") }

// NewRootCmd builds the feectl command tree
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "feectl",
		Short: "Administer the school fee ledger",
		Long: `feectl records fee payments and registers students and staff directly
against the ledger database, using the same numbering and transaction rules
as the HTTP service.`,
		SilenceUsage: true,
	}

	root.AddCommand(collectCmd(open))
	root.AddCommand(admitCmd(open))
	root.AddCommand(hireCmd(open))
	root.AddCommand(nextNumberCmd(open))
	return root
}

// withLedger opens the ledger for one command and always closes it
func withLedger(cmd *cobra.Command, open Opener, fn func(ctx context.Context, l Ledger, loc *time.Location) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	l, loc, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() { _ = l.Close(context.Background()) }()

	return fn(ctx, l, loc)
}

func printFailure(w io.Writer, what string, err error) {
	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrorCodeInternalError
	}
	fmt.Fprintf(w, "%s %s failed [%s]\n", failMark(), what, code)
}
