package sequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/testutil/mocks"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var may21 = time.Date(2024, 5, 21, 10, 30, 0, 0, time.UTC)

func TestSeries_PrefixAt(t *testing.T) {
	tests := []struct {
		series Series
		want   string
	}{
		{Receipt, "RCT20240521"},
		{Invoice, "INV202405"},
		{Admission, "ADM2024"},
		{Employee, "EMP2024"},
		{Series{Prefix: "X", Width: 3}, "X"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.series.PrefixAt(may21))
		})
	}
}

func TestSeries_NextAfter(t *testing.T) {
	tests := []struct {
		name     string
		last     string
		want     string
		wantCode domain.ErrorCode
	}{
		{name: "first of the day", last: "", want: "RCT202405210001"},
		{name: "increments", last: "RCT202405210007", want: "RCT202405210008"},
		{name: "carries", last: "RCT202405210099", want: "RCT202405210100"},
		{name: "last slot", last: "RCT202405219998", want: "RCT202405219999"},
		{name: "overflow", last: "RCT202405219999", wantCode: domain.ErrorCodeSequenceExhausted},
		{name: "non numeric suffix", last: "RCT20240521000A", wantCode: domain.ErrorCodeSequenceCorrupt},
		{name: "signed suffix", last: "RCT20240521-001", wantCode: domain.ErrorCodeSequenceCorrupt},
		{name: "wrong length", last: "RCT2024052100001", wantCode: domain.ErrorCodeSequenceCorrupt},
		{name: "wrong prefix", last: "RCT202405200001", wantCode: domain.ErrorCodeSequenceCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Receipt.NextAfter("RCT20240521", tt.last)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, domain.IsDomainError(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeries_Format(t *testing.T) {
	got, err := Admission.Format("ADM2024", 12)
	require.NoError(t, err)
	assert.Equal(t, "ADM20240012", got)

	_, err = Admission.Format("ADM2024", 0)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSequenceExhausted))

	assert.Equal(t, 9999, Admission.MaxSequence())
}

func TestByName(t *testing.T) {
	s, ok := ByName("invoice")
	require.True(t, ok)
	assert.Equal(t, Invoice, s)

	_, ok = ByName("voucher")
	assert.False(t, ok)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "RCT20240521", escapeLike("RCT20240521"))
	assert.Equal(t, `A\_B\%C\\`, escapeLike(`A_B%C\`))
}

func newGeneratorFixture(serialize bool) (*Generator, *mocks.MockDBTX, *mocks.MockTransactionManager) {
	db := new(mocks.MockDBTX)
	return NewGenerator(zap.NewNop(), serialize), db, mocks.NewMockTransactionManager(db)
}

func TestGenerator_Next_FirstOfTheDay(t *testing.T) {
	gen, db, tx := newGeneratorFixture(true)

	db.On("Exec", mock.Anything, "SELECT pg_advisory_xact_lock(hashtext($1))", []interface{}{"RCT20240521"}).
		Return(pgconn.NewCommandTag("SELECT 1"), nil).Once()
	db.On("QueryRow", mock.Anything,
		`SELECT "receipt_number" FROM "fee_payments" WHERE "receipt_number" LIKE $1 AND char_length("receipt_number") = $2 AND substring("receipt_number" FROM $3) ~ '^[0-9]+$' ORDER BY "receipt_number" DESC LIMIT 1`,
		[]interface{}{"RCT20240521%", 15, 12}).
		Return(mocks.ErrRow(pgx.ErrNoRows)).Once()

	id, err := gen.Next(context.Background(), tx, Receipt, may21)

	require.NoError(t, err)
	assert.Equal(t, "RCT202405210001", id)
	db.AssertExpectations(t)
}

func TestGenerator_Next_Increments(t *testing.T) {
	gen, db, tx := newGeneratorFixture(false)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []interface{}{"INV202405%", 13, 10}).
		Return(mocks.ValueRow("INV2024050041")).Once()

	id, err := gen.Next(context.Background(), tx, Invoice, may21)

	require.NoError(t, err)
	assert.Equal(t, "INV2024050042", id)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_Next_SequentialCalls(t *testing.T) {
	// Each call sees the identifier the previous one stored
	gen, db, tx := newGeneratorFixture(false)
	stored := ""

	for i := 1; i <= 3; i++ {
		row := mocks.ErrRow(pgx.ErrNoRows)
		if stored != "" {
			row = mocks.ValueRow(stored)
		}
		db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(row).Once()

		id, err := gen.Next(context.Background(), tx, Employee, may21)
		require.NoError(t, err)
		stored = id
	}

	assert.Equal(t, "EMP20240003", stored)
}

func TestGenerator_Next_RequiresOpenTransaction(t *testing.T) {
	gen, db, tx := newGeneratorFixture(true)
	tx.SetDepth(0)

	_, err := gen.Next(context.Background(), tx, Receipt, may21)

	assert.True(t, domain.IsTransactionStateError(err))
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_Next_LookupFailure(t *testing.T) {
	gen, db, tx := newGeneratorFixture(false)
	lookupErr := domain.WrapError(domain.ErrorCodeQueryFailed, "statement failed", errors.New("relation does not exist"))

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(mocks.ErrRow(lookupErr)).Once()

	_, err := gen.Next(context.Background(), tx, Admission, may21)

	assert.True(t, domain.IsQueryError(err))
	assert.Contains(t, err.Error(), "look up last admission identifier")
}

func TestGenerator_Next_LockFailure(t *testing.T) {
	gen, db, tx := newGeneratorFixture(true)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.CommandTag{}, domain.NewDomainError(domain.ErrorCodeQueryFailed, "lock timeout")).Once()

	_, err := gen.Next(context.Background(), tx, Receipt, may21)

	assert.True(t, domain.IsQueryError(err))
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerator_Next_Exhausted(t *testing.T) {
	gen, db, tx := newGeneratorFixture(false)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(mocks.ValueRow("RCT202405219999")).Once()

	_, err := gen.Next(context.Background(), tx, Receipt, may21)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSequenceExhausted))
}

func TestGenerator_Next_CollisionFailureMode(t *testing.T) {
	// Without serialization two sessions that read the same maximum pick the
	// same number; the loser is rejected later by the unique constraint.
	gen := NewGenerator(zap.NewNop(), false)

	newSession := func() *mocks.MockTransactionManager {
		db := new(mocks.MockDBTX)
		db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(mocks.ValueRow("RCT202405210004")).Once()
		return mocks.NewMockTransactionManager(db)
	}

	a, err := gen.Next(context.Background(), newSession(), Receipt, may21)
	require.NoError(t, err)
	b, err := gen.Next(context.Background(), newSession(), Receipt, may21)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
