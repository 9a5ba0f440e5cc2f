package store

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/schema"
)

// clientRow converts a validated record to COPY values in clientColumns order.
func clientRow(rec core.CandidateRecord, runID, id uuid.UUID) []any {
	taxID := rec.Text(schema.ColTaxIdentifier)
	return []any{
		id,
		core.NormalizeKey(taxID),
		taxID,
		rec.Text(schema.ColName),
		pgText(rec, schema.ColEmail),
		pgText(rec, schema.ColPhone),
		pgText(rec, schema.ColAddress),
		pgText(rec, schema.ColCity),
		pgText(rec, schema.ColPostalCode),
		pgText(rec, schema.ColCountry),
		pgDate(rec, schema.ColClientSince),
		pgNumeric(rec, schema.ColCreditLimit),
		runID,
		int32(rec.SourceRow),
	}
}

// pgText returns a NULL text for missing or empty fields.
func pgText(rec core.CandidateRecord, col string) pgtype.Text {
	s := rec.Text(col)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func pgDate(rec core.CandidateRecord, col string) pgtype.Date {
	f, ok := rec.Field(col)
	if !ok || !f.Coerced() || f.Time.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: f.Time, Valid: true}
}

func pgNumeric(rec core.CandidateRecord, col string) pgtype.Numeric {
	f, ok := rec.Field(col)
	if !ok || !f.Coerced() {
		return pgtype.Numeric{}
	}
	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(f.Number, 'f', -1, 64)); err != nil {
		return pgtype.Numeric{}
	}
	return n
}
