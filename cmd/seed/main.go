package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/desblooms/school-crm-sub000/internal/bootstrap"
	"github.com/desblooms/school-crm-sub000/internal/config"
	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/internal/services/session"
)

var demoStudents = [][2]string{
	{"Amina", "Nakato"},
	{"Brian", "Ochieng"},
	{"Grace", "Achieng"},
	{"Daniel", "Mugisha"},
}

func main() {
	feeTypeID := flag.Int64("fee-type", 1, "fee type to collect for each student (1 = Tuition after migrate up)")
	amount := flag.String("amount", "1000.00", "amount collected per student")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := bootstrap.NewLogger(config.LoggerConfig{Level: "warn"})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	app, err := bootstrap.NewLedger(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize ledger: %v", err)
	}
	defer func() { _ = app.Pool.Close(ctx) }()

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatalf("invalid -amount: %v", err)
	}

	if err := seed(ctx, app.Pool, *feeTypeID, amt, app.Location, logger); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func seed(ctx context.Context, pool *session.Pool, feeTypeID int64, amount decimal.Decimal, loc *time.Location, logger *zap.Logger) error {
	bursar := &domain.Employee{FullName: "Seed Bursar", Role: "bursar"}
	if err := pool.HireEmployee(ctx, bursar); err != nil {
		return fmt.Errorf("hire bursar: %w", err)
	}
	fmt.Printf("Employee %s  %s\n", bursar.EmployeeID, bursar.FullName)

	period := time.Now().In(loc).Format("2006-01")
	for _, name := range demoStudents {
		student := &domain.Student{FirstName: name[0], LastName: name[1]}
		if err := pool.AdmitStudent(ctx, student); err != nil {
			return fmt.Errorf("admit %s %s: %w", name[0], name[1], err)
		}

		receipt, err := pool.CollectFee(ctx, ledger.CollectFeeRequest{
			StudentID:   student.ID,
			FeeTypeID:   feeTypeID,
			Amount:      amount,
			Method:      domain.PaymentMethodCash,
			CollectorID: bursar.ID,
			PeriodLabel: period,
		})
		if err != nil {
			return fmt.Errorf("collect fee for %s: %w", student.AdmissionNumber, err)
		}

		fmt.Printf("Student  %s  %s %s  receipt %s  invoice %s\n",
			student.AdmissionNumber, student.FirstName, student.LastName,
			receipt.ReceiptNumber, receipt.InvoiceNumber)
	}

	logger.Info("Seed complete", zap.Int("students", len(demoStudents)))
	return nil
}
