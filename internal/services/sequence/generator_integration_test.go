package sequence_test

import (
	"context"
	"testing"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
	"github.com/desblooms/school-crm-sub000/test/integration/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerator_Next_Postgres_SkipsMalformedSuffix(t *testing.T) {
	url := testdb.SetupTestDB(t)
	s := testdb.NewSession(t, url)
	ctx := context.Background()
	now := time.Now().UTC()
	prefix := sequence.Admission.PrefixAt(now)

	s.InsertStudent(t, prefix+"0007", "Amina", "Okello")
	// same length, sorts above every digit suffix
	s.InsertStudent(t, prefix+"A001", "Hand", "Entered")

	require.NoError(t, s.Tx.Begin(ctx))
	defer func() { _ = s.Tx.Rollback(ctx) }()

	id, err := sequence.NewGenerator(zap.NewNop(), true).Next(ctx, s.Tx, sequence.Admission, now)

	require.NoError(t, err)
	assert.Equal(t, prefix+"0008", id)
}
