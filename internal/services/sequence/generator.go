package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/desblooms/school-crm-sub000/pkg/observability"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Generator derives the next identifier of a series from the highest one
// already stored; there is no counter table.
//
// Two sessions reading the same maximum would hand out the same number. With
// serialize enabled the generator first takes a transaction-scoped advisory
// lock keyed on the prefix, which holds until the caller's transaction ends.
// The unique constraint on the column remains the final arbiter.
type Generator struct {
	logger    *zap.Logger
	serialize bool
}

// NewGenerator creates a generator
func NewGenerator(logger *zap.Logger, serialize bool) *Generator {
	return &Generator{
		logger:    logger,
		serialize: serialize,
	}
}

// Next returns the next identifier of series for the instant at.
// It must run inside the caller's open transaction so that the lookup and the
// insert consuming the identifier commit or roll back together.
func (g *Generator) Next(ctx context.Context, tx ports.DBPort, series Series, at time.Time) (string, error) {
	if tx.Depth() == 0 {
		return "", domain.NewDomainError(domain.ErrorCodeNoActiveTransaction, "identifier generation requires an open transaction").
			WithDetail("series", series.Name)
	}

	db := tx.DB()
	prefix := series.PrefixAt(at)

	if g.serialize {
		if _, err := db.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", prefix); err != nil {
			return "", fmt.Errorf("lock %s series %s: %w", series.Name, prefix, err)
		}
	}

	last, err := g.last(ctx, db, series, prefix)
	if err != nil {
		return "", err
	}

	id, err := series.NextAfter(prefix, last)
	if err != nil {
		g.logger.Error("Cannot derive next identifier",
			zap.String("series", series.Name),
			zap.String("prefix", prefix),
			zap.String("last", last),
			zap.Error(err),
		)
		return "", err
	}

	observability.RecordSequenceNumber(series.Name)
	g.logger.Debug("Generated identifier",
		zap.String("series", series.Name),
		zap.String("identifier", id),
	)
	return id, nil
}

// last returns the highest stored identifier under prefix, or "" when none exists.
// Only identifiers of the exact expected length with an all-digit suffix
// are considered, so a hand-entered value cannot sort above the real
// maximum and wedge the series.
func (g *Generator) last(ctx context.Context, db ports.DBTX, series Series, prefix string) (string, error) {
	column := pgx.Identifier{series.Column}.Sanitize()
	query := fmt.Sprintf(
		`SELECT %[1]s FROM %[2]s WHERE %[1]s LIKE $1 AND char_length(%[1]s) = $2 AND substring(%[1]s FROM $3) ~ '^[0-9]+$' ORDER BY %[1]s DESC LIMIT 1`,
		column, pgx.Identifier{series.Table}.Sanitize(),
	)

	var last string
	err := db.QueryRow(ctx, query, escapeLike(prefix)+"%", len(prefix)+series.Width, len(prefix)+1).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up last %s identifier: %w", series.Name, err)
	}
	return last, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
