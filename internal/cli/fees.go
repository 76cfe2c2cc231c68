package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
)

func collectCmd(open Opener) *cobra.Command {
	var (
		studentID, feeTypeID, collectorID int64
		amount, method, period            string
		txnRef, remarks, due              string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Record a fee payment and its invoice",
		Example: `  feectl collect --student 12 --fee-type 3 --amount 150.00 --method cash \
      --collector 4 --period 2024-05`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}

			return withLedger(cmd, open, func(ctx context.Context, l Ledger, loc *time.Location) error {
				req := ledger.CollectFeeRequest{
					StudentID:   studentID,
					FeeTypeID:   feeTypeID,
					Amount:      amt,
					Method:      domain.PaymentMethod(method),
					CollectorID: collectorID,
					PeriodLabel: period,
				}
				if txnRef != "" {
					req.ExternalTransactionRef = &txnRef
				}
				if remarks != "" {
					req.Remarks = &remarks
				}
				if due != "" {
					d, err := timeutil.ParseDate("2006-01-02", due, loc)
					if err != nil {
						return fmt.Errorf("invalid --due %q: %w", due, err)
					}
					req.DueDate = &d
				}

				receipt, err := l.CollectFee(ctx, req)
				out := cmd.OutOrStdout()
				if err != nil {
					printFailure(out, "Payment", err)
					return err
				}

				fmt.Fprintf(out, "%s Payment recorded\n", okMark())
				fmt.Fprintf(out, "  Receipt: %s\n", receipt.ReceiptNumber)
				fmt.Fprintf(out, "  Invoice: %s\n", receipt.InvoiceNumber)
				fmt.Fprintf(out, "  Amount:  %s\n", receipt.Amount.StringFixed(2))
				fmt.Fprintf(out, "  Due:     %s\n", receipt.DueDate.Format("2006-01-02"))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Int64Var(&studentID, "student", 0, "student ID")
	f.Int64Var(&feeTypeID, "fee-type", 0, "fee type ID")
	f.StringVar(&amount, "amount", "", "amount paid, e.g. 150.00")
	f.StringVar(&method, "method", string(domain.PaymentMethodCash), "payment method: cash, bank_transfer, mobile_money, cheque, card")
	f.Int64Var(&collectorID, "collector", 0, "ID of the user collecting the payment")
	f.StringVar(&period, "period", "", "billing period label, e.g. 2024-05")
	f.StringVar(&txnRef, "txn-ref", "", "external transaction reference")
	f.StringVar(&remarks, "remarks", "", "free-form remarks")
	f.StringVar(&due, "due", "", "invoice due date YYYY-MM-DD (default: 30 days after payment)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
