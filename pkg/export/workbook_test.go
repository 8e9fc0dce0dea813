package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildSourceWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		addr, err := excelize.JoinCellName("A", i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, addr, &row))
	}
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	return buf.Bytes()
}

func TestWorkbookBuilderMergesSpreadsheetSources(t *testing.T) {
	builder := NewWorkbookBuilder()
	src := buildSourceWorkbook(t, [][]interface{}{
		{"Student", "Present"},
		{"Alia", "yes"},
	})

	out, err := builder.Build([]SheetSource{
		{Name: "North School", Workbook: src},
		{Name: "South School", Workbook: src},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	require.ElementsMatch(t, []string{"North School", "South School"}, f.GetSheetList())

	rows, err := f.GetRows("North School")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"Student", "Present"}, rows[0])
}

func TestWorkbookBuilderPlaceholderForNonSpreadsheet(t *testing.T) {
	builder := NewWorkbookBuilder()

	out, err := builder.Build([]SheetSource{
		{Name: "East School", Label: "Council minutes March 2024 (PDF)"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	value, err := f.GetCellValue("East School", "A1")
	require.NoError(t, err)
	require.Equal(t, "Council minutes March 2024 (PDF)", value)
}

func TestWorkbookBuilderEmitsNoDataSheet(t *testing.T) {
	builder := NewWorkbookBuilder()

	out, err := builder.Build(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	require.Equal(t, []string{NoDataSheetName}, f.GetSheetList())
}

func TestWorkbookBuilderDeduplicatesSheetNames(t *testing.T) {
	builder := NewWorkbookBuilder()

	out, err := builder.Build([]SheetSource{
		{Name: "School", Label: "first"},
		{Name: "School", Label: "second"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	require.ElementsMatch(t, []string{"School", "School (2)"}, f.GetSheetList())
}
