package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// NoDataSheetName labels the placeholder sheet emitted when no source
// produced any content. Empty workbooks are invalid xlsx.
const NoDataSheetName = "No Data"

// SheetSource describes one contribution to an aggregate workbook. When
// Workbook holds xlsx bytes its first sheet is copied; otherwise a one-cell
// placeholder sheet carrying Label is emitted.
type SheetSource struct {
	Name     string
	Workbook []byte
	Label    string
}

// WorkbookBuilder merges heterogeneous per-school artifacts into a single
// aggregate workbook, one sheet per source.
type WorkbookBuilder struct{}

// NewWorkbookBuilder builds a workbook builder.
func NewWorkbookBuilder() *WorkbookBuilder {
	return &WorkbookBuilder{}
}

// Build renders the aggregate workbook. The result always contains at least
// one sheet.
func (b *WorkbookBuilder) Build(sources []SheetSource) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	defaultSheet := f.GetSheetName(0)
	used := make(map[string]struct{})
	added := 0

	for _, src := range sources {
		name := uniqueSheetName(sanitizeSheetName(src.Name), used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", name, err)
		}
		added++

		if len(src.Workbook) == 0 {
			if err := f.SetCellValue(name, "A1", placeholderLabel(src)); err != nil {
				return nil, fmt.Errorf("write placeholder sheet %q: %w", name, err)
			}
			continue
		}
		if err := copyFirstSheet(f, name, src.Workbook); err != nil {
			// degrade to a placeholder rather than failing the whole aggregate
			if cellErr := f.SetCellValue(name, "A1", placeholderLabel(src)); cellErr != nil {
				return nil, fmt.Errorf("write placeholder sheet %q: %w", name, cellErr)
			}
		}
	}

	if added == 0 {
		if _, err := f.NewSheet(NoDataSheetName); err != nil {
			return nil, fmt.Errorf("add no-data sheet: %w", err)
		}
		if err := f.SetCellValue(NoDataSheetName, "A1", "No data for the selected period"); err != nil {
			return nil, fmt.Errorf("write no-data sheet: %w", err)
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func copyFirstSheet(dst *excelize.File, sheetName string, workbook []byte) error {
	src, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return fmt.Errorf("open source workbook: %w", err)
	}
	defer src.Close() //nolint:errcheck

	firstSheet := src.GetSheetName(0)
	if firstSheet == "" {
		return fmt.Errorf("source workbook has no sheets")
	}
	rows, err := src.GetRows(firstSheet)
	if err != nil {
		return fmt.Errorf("read source sheet: %w", err)
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, value := range row {
			cells[j] = value
		}
		addr, err := excelize.JoinCellName("A", i+1)
		if err != nil {
			return fmt.Errorf("resolve row address: %w", err)
		}
		if err := dst.SetSheetRow(sheetName, addr, &cells); err != nil {
			return fmt.Errorf("copy row %d: %w", i+1, err)
		}
	}
	return nil
}

func placeholderLabel(src SheetSource) string {
	if src.Label != "" {
		return src.Label
	}
	return src.Name
}

// sanitizeSheetName strips characters xlsx forbids and trims to the 31-char cap.
func sanitizeSheetName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Sheet"
	}
	replacer := strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")
	name = replacer.Replace(name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func uniqueSheetName(name string, used map[string]struct{}) string {
	candidate := name
	for i := 2; ; i++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		suffix := fmt.Sprintf(" (%d)", i)
		base := name
		if len(base)+len(suffix) > 31 {
			base = base[:31-len(suffix)]
		}
		candidate = base + suffix
	}
}
