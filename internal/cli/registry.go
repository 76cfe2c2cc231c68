package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
)

func admitCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "admit FIRST_NAME LAST_NAME",
		Short: "Admit a student under the next admission number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, open, func(ctx context.Context, l Ledger, _ *time.Location) error {
				student := &domain.Student{FirstName: args[0], LastName: args[1]}
				out := cmd.OutOrStdout()
				if err := l.AdmitStudent(ctx, student); err != nil {
					printFailure(out, "Admission", err)
					return err
				}
				fmt.Fprintf(out, "%s Admitted %s %s as %s\n", okMark(), student.FirstName, student.LastName, student.AdmissionNumber)
				return nil
			})
		},
	}
}

func hireCmd(open Opener) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "hire FULL_NAME...",
		Short: "Register a staff member under the next employee ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, open, func(ctx context.Context, l Ledger, _ *time.Location) error {
				employee := &domain.Employee{FullName: strings.Join(args, " "), Role: role}
				out := cmd.OutOrStdout()
				if err := l.HireEmployee(ctx, employee); err != nil {
					printFailure(out, "Registration", err)
					return err
				}
				fmt.Fprintf(out, "%s Registered %s (%s) as %s\n", okMark(), employee.FullName, employee.Role, employee.EmployeeID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "job role, e.g. teacher")
	return cmd
}

func nextNumberCmd(open Opener) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:       "next-number SERIES",
		Short:     "Show the identifier the next insert would receive",
		Long:      "Derives the next identifier of a series inside a transaction that is rolled back, so nothing is consumed.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{sequence.Receipt.Name, sequence.Invoice.Name, sequence.Admission.Name, sequence.Employee.Name},
		RunE: func(cmd *cobra.Command, args []string) error {
			series, ok := sequence.ByName(args[0])
			if !ok {
				return fmt.Errorf("unknown series %q (want receipt, invoice, admission or employee)", args[0])
			}

			return withLedger(cmd, open, func(ctx context.Context, l Ledger, loc *time.Location) error {
				at := time.Now().In(loc)
				if date != "" {
					d, err := timeutil.ParseDate("2006-01-02", date, loc)
					if err != nil {
						return fmt.Errorf("invalid --date %q: %w", date, err)
					}
					at = d
				}

				id, err := l.PeekNext(ctx, series, at)
				if err != nil {
					printFailure(cmd.OutOrStdout(), "Lookup", err)
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date to number for, YYYY-MM-DD (default: today)")
	return cmd
}
