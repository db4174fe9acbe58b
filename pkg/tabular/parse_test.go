package tabular

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func workbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sh.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestIsExcel(t *testing.T) {
	assert.True(t, IsExcel("a.xlsx", ""))
	assert.True(t, IsExcel("A.XLS", ""))
	assert.True(t, IsExcel("blob", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.True(t, IsExcel("blob", "application/vnd.ms-excel"))
	assert.False(t, IsExcel("a.csv", "text/csv"))

	assert.True(t, IsTabular("a.csv", "application/octet-stream"))
	assert.True(t, IsTabular("upload", "text/csv"))
	assert.False(t, IsTabular("scan.pdf", "application/pdf"))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "unit_price", NormalizeHeader("  Unit  Price "))
	assert.Equal(t, "name", NormalizeHeader("NAME"))
}

func TestParseCSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ID, Name ,Price\n1,Apple,1.5\n,,\n2,Pear\n")...)
	recs, err := Parse(data, false)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Row)
	assert.Equal(t, map[string]string{"id": "1", "name": "Apple", "price": "1.5"}, recs[0].Fields)
	// blank line skipped, short row padded
	assert.Equal(t, 2, recs[1].Row)
	assert.Equal(t, "", recs[1].Fields["price"])
}

func TestParseExcelMatchesCSV(t *testing.T) {
	csvRecs, err := Parse([]byte("id,Unit Name,price\n1,Apple,1.5\n2,Pear,2\n"), false)
	require.NoError(t, err)

	xlsRecs, err := Parse(workbook(t,
		[]string{"id", "Unit Name", "price"},
		[]string{"1", "Apple", "1.5"},
		[]string{"2", "Pear", "2"},
	), true)
	require.NoError(t, err)
	assert.Equal(t, csvRecs, xlsRecs)
}

func TestParseUnreadable(t *testing.T) {
	_, err := Parse([]byte("not a workbook"), true)
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = Parse([]byte{0xff, 0xfe, 0x00}, false)
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = Parse([]byte("\n\n"), false)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestParseExcelKeepsStoredNumbers(t *testing.T) {
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	header := sh.AddRow()
	for _, h := range []string{"id", "name", "price"} {
		header.AddCell().SetString(h)
	}
	row := sh.AddRow()
	row.AddCell().SetInt(2)
	row.AddCell().SetString("Pear")
	row.AddCell().SetFloatWithFormat(0.25, "0")
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	records, err := Parse(buf.Bytes(), true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0.25", records[0].Fields["price"])
	assert.Equal(t, "2", records[0].Fields["id"])

	rows, errs := Validate(records)
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.25", rows[0].Price.String())
}
