package intake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/session"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func newTestIntake() *Intake {
	return New(testRegistry(), Options{
		HTTP: HTTPOptions{
			Timeout:    5 * time.Second,
			MaxRetries: 1,
			HostRate:   1000,
			HostBurst:  100,
		},
	})
}

func TestReadSheet_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Subtotal", "1250.00"},
			{"Tax Rate", "8%"},
		},
	})

	rows, err := ReadSheet(path, SheetOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Subtotal", "1250.00"}, rows[0])
}

func TestReadSheet_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Field", "Value"},
			{"Subtotal", "100"},
		},
	})

	rows, err := ReadSheet(path, SheetOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Subtotal", "100"}, rows[0])
}

func TestReadSheet_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Cover":  {{"nothing here"}},
		"Values": {{"Subtotal", "100"}},
	})

	rows, err := ReadSheet(path, SheetOptions{SheetName: "Values"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Subtotal", "100"}, rows[0])
}

func TestReadSheet_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, err := ReadSheet(path, SheetOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadSheet_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a"}},
	})

	_, err := ReadSheet(path, SheetOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadCSV_RaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	data := "Subtotal,1250.00\nTax Rate,8%,extra\nTotal Due,1350.00\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Tax Rate", "8%", "extra"}, rows[1])
}

func TestFromFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.txt")
	text := "Subtotal: $1,250.00\nTotal Due: $1,350.00\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	res, err := newTestIntake().FromFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
	assert.Equal(t, "subtotal", res.Values[0].FieldKey)
	assert.Equal(t, "total", res.Values[1].FieldKey)
}

func TestFromFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	data := "Subtotal,1250.00\nShipping,25.00\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	res, err := newTestIntake().FromFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
	assert.InDelta(t, 1250, res.Values[0].Value, 1e-9)
	assert.InDelta(t, 25, res.Values[1].Value, 1e-9)
}

func TestFromFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Subtotal", "$1,250.00"},
			{"Tax Rate", "8%"},
		},
	})

	res, err := newTestIntake().FromFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
	assert.Equal(t, "subtotal", res.Values[0].FieldKey)
	assert.InDelta(t, 0.08, res.Values[1].Value, 1e-9)
}

func TestFromFile_Missing(t *testing.T) {
	_, err := newTestIntake().FromFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestFromURL_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Subtotal: 900.00\nSales Tax: 72.00\n"))
	}))
	defer srv.Close()

	res, err := newTestIntake().FromURL(context.Background(), srv.URL+"/scan.txt")
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
	assert.Equal(t, "subtotal", res.Values[0].FieldKey)
	assert.Equal(t, "tax", res.Values[1].FieldKey)
}

func TestFromURL_UnsupportedScheme(t *testing.T) {
	_, err := newTestIntake().FromURL(context.Background(), "gopher://example.com/doc.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestFromReader(t *testing.T) {
	r := strings.NewReader("Subtotal 500\nTotal Due 540\n")
	res, err := newTestIntake().FromReader(r, "")
	require.NoError(t, err)
	require.Len(t, res.Values, 2)
}

func TestApplyValues(t *testing.T) {
	st := session.NewStore()
	values := []ExtractedValue{
		{FieldKey: "subtotal", Value: 1250},
		{FieldKey: "tax_rate", Value: 0.08},
	}

	n := ApplyValues(st, values, model.SourceExtracted)
	assert.Equal(t, 2, n)

	v, ok := st.Get("subtotal")
	require.True(t, ok)
	assert.InDelta(t, 1250, v.Value, 1e-9)
	assert.Equal(t, model.SourceExtracted, v.Source)
}
