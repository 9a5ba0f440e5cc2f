package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
)

func TestParserSkipsHeaderAndBlankRows(t *testing.T) {
	recs, err := parseClients(
		[]string{},
		clientHeader,
		[]string{"Acme", "AB12345678", "a@acme.com"},
		[]string{"", "  ", ""},
		[]string{"Globex", "CD12345678", "g@globex.com"},
	)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 3, recs[0].SourceRow)
	assert.Equal(t, "Acme", recs[0].Text(schema.ColName))
	assert.Equal(t, 5, recs[1].SourceRow)
	assert.Equal(t, "g@globex.com", recs[1].Text(schema.ColEmail))
}

func TestParserFlexibleHeaderMatching(t *testing.T) {
	recs, err := parseClients(
		[]string{" Tax Identifier ", "NAME", "Credit_Limit", "Notes"},
		[]string{"AB12345678", "Acme", "1,000"},
	)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "AB12345678", recs[0].Text(schema.ColTaxIdentifier))
	assert.Equal(t, "Acme", recs[0].Text(schema.ColName))

	limit, ok := recs[0].Field(schema.ColCreditLimit)
	require.True(t, ok)
	assert.Equal(t, 1000.0, limit.Number)

	// Columns missing from the header are still present as absent fields.
	email, ok := recs[0].Field(schema.ColEmail)
	require.True(t, ok)
	assert.False(t, email.Present)
	assert.Len(t, recs[0].Fields(), len(schema.Clients.Columns))
}

func TestParserFirstMatchingHeaderWins(t *testing.T) {
	recs, err := parseClients(
		[]string{"name", "taxIdentifier", "name"},
		[]string{"First", "AB12345678", "Second"},
	)
	require.NoError(t, err)
	assert.Equal(t, "First", recs[0].Text(schema.ColName))
}

func TestParserMissingRequiredColumn(t *testing.T) {
	_, err := parseClients(
		[]string{"name", "email"},
		[]string{"Acme", "a@acme.com"},
	)

	var ff *FileFormatError
	require.ErrorAs(t, err, &ff)
	assert.Equal(t, 1, ff.Row)
	assert.Equal(t, []string{schema.ColTaxIdentifier}, ff.Missing)
	assert.Contains(t, err.Error(), "taxIdentifier")
}

func TestParserMissingColumnFailsBeforeDataRows(t *testing.T) {
	// The data rows would be records; the header check must stop first.
	rows := textRows([]string{"name"}, []string{"Acme"}, []string{"Globex"})
	p := NewParser(schema.Clients, &fakeReader{rows: rows}, 0)

	recs, err := p.Parse(context.Background(), "clients.xlsx")
	assert.Nil(t, recs)

	var ff *FileFormatError
	require.ErrorAs(t, err, &ff)
	assert.ElementsMatch(t, []string{schema.ColTaxIdentifier}, ff.Missing)
}

func TestParserEmptyFiles(t *testing.T) {
	t.Run("no rows", func(t *testing.T) {
		_, err := parseClients()
		var ef *EmptyFileError
		require.ErrorAs(t, err, &ef)
		assert.Equal(t, 0, ef.HeaderRow)
	})

	t.Run("only blank rows", func(t *testing.T) {
		_, err := parseClients([]string{"", ""}, []string{" "})
		var ef *EmptyFileError
		require.ErrorAs(t, err, &ef)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := parseClients([]string{}, clientHeader, []string{"", ""})
		var ef *EmptyFileError
		require.ErrorAs(t, err, &ef)
		assert.Equal(t, 2, ef.HeaderRow)
	})
}

func TestParserHeaderSearchWindow(t *testing.T) {
	lines := make([][]string, 0, 6)
	for i := 0; i < 4; i++ {
		lines = append(lines, []string{})
	}
	lines = append(lines, clientHeader, []string{"Acme", "AB12345678"})
	rows := textRows(lines...)

	p := NewParser(schema.Clients, &fakeReader{rows: rows}, 3)
	_, err := p.Parse(context.Background(), "clients.csv")
	var ff *FileFormatError
	require.ErrorAs(t, err, &ff)
	assert.Contains(t, ff.Reason, "no header row")

	p = NewParser(schema.Clients, &fakeReader{rows: rows}, 5)
	recs, err := p.Parse(context.Background(), "clients.csv")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestParserSkipsTitleRowsAboveHeader(t *testing.T) {
	recs, err := parseClients(
		[]string{"Client import: March"},
		[]string{"Prepared by finance", "", "v2"},
		clientHeader,
		[]string{"Acme", "AB12345678"},
	)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 4, recs[0].SourceRow)
	assert.Equal(t, "Acme", recs[0].Text(schema.ColName))
}

func TestParserTitleRowWithIncompleteHeader(t *testing.T) {
	_, err := parseClients(
		[]string{"Client import: March"},
		[]string{"name", "email"},
		[]string{"Acme", "a@acme.com"},
	)

	var ff *FileFormatError
	require.ErrorAs(t, err, &ff)
	assert.Equal(t, 2, ff.Row, "the row closest to a header is reported")
	assert.Equal(t, []string{schema.ColTaxIdentifier}, ff.Missing)
}

func TestParserClockAnchorsTwoDigitYears(t *testing.T) {
	rows := textRows(
		[]string{"name", "taxIdentifier", "clientSince"},
		[]string{"Acme", "AB12345678", "3/1/35"},
	)
	in1990 := func() time.Time { return time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC) }

	p := NewParser(schema.Clients, &fakeReader{rows: rows}, 0, WithParseClock(in1990))
	recs, err := p.Parse(context.Background(), "clients.csv")
	require.NoError(t, err)
	since, _ := recs[0].Field(schema.ColClientSince)
	assert.Equal(t, 1935, since.Time.Year())

	p = NewParser(schema.Clients, &fakeReader{rows: rows}, 0, WithParseClock(fixedClock))
	recs, err = p.Parse(context.Background(), "clients.csv")
	require.NoError(t, err)
	since, _ = recs[0].Field(schema.ColClientSince)
	assert.Equal(t, 2035, since.Time.Year())
}

func TestParserReadFailure(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	p := NewParser(schema.Clients, &fakeReader{err: cause}, 0)

	_, err := p.Parse(context.Background(), "broken.xlsx")
	var ff *FileFormatError
	require.ErrorAs(t, err, &ff)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "broken.xlsx", ff.Path)
}

func TestParserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewParser(schema.Clients, &fakeReader{rows: textRows(clientHeader)}, 0)
	_, err := p.Parse(ctx, "clients.csv")
	assert.ErrorIs(t, err, context.Canceled)

	var ff *FileFormatError
	assert.False(t, errors.As(err, &ff))
}

func TestParserCancelledDuringRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := textRows(clientHeader, []string{"Acme", "AB12345678"})
	p := NewParser(schema.Clients, &fakeReader{}, 0)
	recs, err := p.ParseRows(ctx, "clients.csv", rows)
	assert.Nil(t, recs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParserTypedCells(t *testing.T) {
	rows := []sheet.RawRow{
		{Index: 1, Cells: []sheet.Cell{
			sheet.TextCell("name"), sheet.TextCell("taxIdentifier"),
			sheet.TextCell("clientSince"), sheet.TextCell("creditLimit"),
		}},
		{Index: 2, Cells: []sheet.Cell{
			sheet.TextCell("Acme"), sheet.NumberCell(12345678901),
			sheet.NumberCell(45306), sheet.NumberCell(2500),
		}},
	}
	p := NewParser(schema.Clients, &fakeReader{rows: rows}, 0)
	recs, err := p.Parse(context.Background(), "clients.xlsx")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "12345678901", recs[0].Text(schema.ColTaxIdentifier))
	since, _ := recs[0].Field(schema.ColClientSince)
	assert.Equal(t, "2024-01-15", since.Time.Format("2006-01-02"))
	limit, _ := recs[0].Field(schema.ColCreditLimit)
	assert.Equal(t, 2500.0, limit.Number)
}

func TestCandidateRecordAccessors(t *testing.T) {
	rec := NewCandidateRecord(7, []FieldValue{
		{Column: "name", Type: schema.TypeText, Raw: "Acme", Present: true, Text: "Acme"},
		{Column: "creditLimit", Type: schema.TypeNumber, Raw: "lots", Present: true, CoerceErr: "bad"},
		{Column: "email", Type: schema.TypeText},
	})

	assert.Equal(t, "Acme", rec.Text("name"))
	assert.Equal(t, "", rec.Text("creditLimit"))
	assert.Equal(t, "", rec.Text("missing"))
	assert.Equal(t, map[string]string{"name": "Acme", "creditLimit": "lots"}, rec.Values())

	fields := rec.Fields()
	fields[0].Text = "changed"
	assert.Equal(t, "Acme", rec.Text("name"))

	b, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"row":7,"values":{"name":"Acme","creditLimit":"lots"}}`, string(b))
}
