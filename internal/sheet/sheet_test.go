package sheet

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"clients.xlsx", FormatXLSX, false},
		{"CLIENTS.XLSX", FormatXLSX, false},
		{"clients.xlsm", FormatXLSX, false},
		{"clients.csv", FormatCSV, false},
		{"clients.xls", "", true},
		{"clients", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCell(t *testing.T) {
	assert.True(t, Cell{}.IsEmpty())
	assert.True(t, TextCell("   ").IsEmpty())
	assert.False(t, NumberCell(0).IsEmpty())
	assert.False(t, BoolCell(false).IsEmpty())

	assert.Equal(t, "12345678", NumberCell(12345678).String())
	assert.Equal(t, "1.5", NumberCell(1.5).String())
	assert.Equal(t, "2024-03-01", DateCell(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "true", BoolCell(true).String())

	row := RawRow{Index: 4, Cells: []Cell{{}, TextCell(" ")}}
	assert.True(t, row.IsBlank())
	assert.True(t, row.Cell(10).IsEmpty())
}

func TestReadRows_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"name", "creditLimit", "active", "since"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Acme", 1500.5, true, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}))
	// row 3 left blank
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"Globex"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := NewReader("", 0).ReadRows(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, "name", rows[0].Cell(0).Text)

	data := rows[1]
	assert.Equal(t, 2, data.Index)
	assert.Equal(t, KindText, data.Cell(0).Kind)
	assert.Equal(t, KindNumber, data.Cell(1).Kind)
	assert.InDelta(t, 1500.5, data.Cell(1).Number, 0.0001)
	assert.Equal(t, KindBool, data.Cell(2).Kind)
	assert.True(t, data.Cell(2).Bool)

	// Dates are stored as serial numbers with a date style.
	require.Equal(t, KindNumber, data.Cell(3).Kind)
	since, err := SerialToTime(data.Cell(3).Number)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", since.Format("2006-01-02"))

	assert.True(t, rows[2].IsBlank())
	assert.Equal(t, 3, rows[2].Index)
	assert.Equal(t, 4, rows[3].Index)
	assert.Equal(t, "Globex", rows[3].Cell(0).Text)
}

func TestReadRows_XLSXNamedSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "named.xlsx")

	f := excelize.NewFile()
	_, err := f.NewSheet("Clients")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "wrong sheet"))
	require.NoError(t, f.SetCellValue("Clients", "A1", "right sheet"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := NewReader("Clients", 0).ReadRows(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "right sheet", rows[0].Cell(0).Text)
}

func TestReadRows_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.csv")
	content := "\xef\xbb\xbfname,taxIdentifier\nAcme,AB123456\n,\n\"Globex, Inc\",XY987654\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := NewReader("", 0).ReadRows(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "name", rows[0].Cell(0).Text)
	assert.Equal(t, "AB123456", rows[1].Cell(1).Text)
	assert.True(t, rows[2].IsBlank())
	assert.Equal(t, "Globex, Inc", rows[3].Cell(0).Text)
	assert.Equal(t, 4, rows[3].Index)
}

func TestReadRows_CSVEmptyLinesKeepLineNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.csv")
	content := "name,taxIdentifier\n\n\nAcme,AB123456\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := NewReader("", 0).ReadRows(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, 4, rows[1].Index)
}

func TestReadRows_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewReader("", 0).ReadRows(context.Background(), filepath.Join(dir, "missing.xlsx"))
	assert.Error(t, err)

	_, err = NewReader("", 0).ReadRows(context.Background(), filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	big := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("a,b\n"), 100), 0o644))
	_, err = NewReader("", 10).ReadRows(context.Background(), big)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	corrupt := filepath.Join(dir, "corrupt.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))
	_, err = NewReader("", 0).ReadRows(context.Background(), corrupt)
	assert.Error(t, err)
}

func TestWriteHeader_XLSX(t *testing.T) {
	var buf bytes.Buffer
	columns := []string{"name", "taxIdentifier", "email"}
	require.NoError(t, WriteHeader(&buf, FormatXLSX, "Clients", columns))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Clients"}, f.GetSheetList())

	rows, err := f.GetRows("Clients")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, columns, rows[0])
}

func TestWriteHeader_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, FormatCSV, "", []string{"name", "taxIdentifier"}))
	assert.Equal(t, "name,taxIdentifier\n", buf.String())

	assert.Error(t, WriteHeader(&buf, FormatCSV, "", nil))
	assert.ErrorIs(t, WriteHeader(&buf, Format("ods"), "", []string{"a"}), ErrUnsupportedFormat)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, []byte("hello"), sanitizeUTF8([]byte("hello")))
	assert.Equal(t, []byte("caf�"), sanitizeUTF8([]byte("caf\xe9")))
}
