package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/adapters/database"
	"github.com/desblooms/school-crm-sub000/internal/db/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// DatabaseURL returns TEST_DATABASE_URL or skips the test
func DatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	return url
}

// SetupTestDB migrates the test database to the latest schema and empties
// every ledger table. It returns the database URL.
func SetupTestDB(t *testing.T) string {
	t.Helper()
	url := DatabaseURL(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	CleanDatabase(t, db)
	return url
}

// CleanDatabase truncates all ledger tables; fee types seeded by migrations are kept
func CleanDatabase(t *testing.T, db *sql.DB) {
	t.Helper()
	tables := []string{"invoice_items", "invoices", "fee_payments", "students", "employees"}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			t.Logf("Warning: Failed to truncate table %s: %v", table, err)
		}
	}
}

// Session is one connection plus its transaction coordinator
type Session struct {
	Conn *database.ConnectionManager
	Tx   *database.TransactionCoordinator
}

// NewSession opens a session against url; it is closed when the test ends
func NewSession(t *testing.T, url string) *Session {
	t.Helper()
	logger := zap.NewNop()

	conn := database.NewConnectionManager(database.DefaultConnectionConfig(url), nil, logger)
	s := &Session{
		Conn: conn,
		Tx:   database.NewTransactionCoordinator(conn, logger),
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.Tx.Abort(ctx)
		_ = conn.Close(ctx)
	})
	return s
}

// Count returns the number of rows in table
func (s *Session) Count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := s.Conn.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// InsertStudent inserts a student row directly and returns its id
func (s *Session) InsertStudent(t *testing.T, admissionNumber, first, last string) int64 {
	t.Helper()
	var id int64
	err := s.Conn.QueryRow(context.Background(),
		"INSERT INTO students (admission_number, first_name, last_name) VALUES ($1, $2, $3) RETURNING id",
		admissionNumber, first, last,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert student: %v", err)
	}
	return id
}

// FeeTypeID returns the id of a seeded fee type
func (s *Session) FeeTypeID(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	if err := s.Conn.QueryRow(context.Background(), "SELECT id FROM fee_types WHERE name = $1", name).Scan(&id); err != nil {
		t.Fatalf("fee type %s: %v", name, err)
	}
	return id
}
