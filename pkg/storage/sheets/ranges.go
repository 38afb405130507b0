package sheets

import (
	"fmt"
	"strings"
)

// columnLetter converts a 0-based column index to A1 notation (0 -> A, 26 -> AA)
func columnLetter(i int) string {
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

// quoteSheet quotes a sheet name for use in a range when needed
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

// sheetRange addresses columns (e.g. "A:Z") of the whole sheet
func sheetRange(sheet, columns string) string {
	return quoteSheet(sheet) + "!" + columns
}

// rowRange addresses width cells of a 1-based sheet row
func rowRange(sheet string, row, width int) string {
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, columnLetter(width-1), row)
}

// cellSpan is a run of adjacent cells on one row
type cellSpan struct {
	Range  string
	Values []string
}

// spanRange addresses the 0-based columns from..to of a 1-based sheet row
func spanRange(sheet string, row, from, to int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), columnLetter(from), row, columnLetter(to), row)
}

// mappedSpans splits the mapped cells of values into runs of adjacent
// columns. Identity columns are left out unless withIdentity is set.
func mappedSpans(sheet string, row int, values []string, s SchemaMap, withIdentity bool) []cellSpan {
	var spans []cellSpan
	cols := s.mappedColumns(withIdentity)
	for i := 0; i < len(cols); {
		j := i
		for j+1 < len(cols) && cols[j+1] == cols[j]+1 {
			j++
		}
		from, to := cols[i], cols[j]
		spans = append(spans, cellSpan{
			Range:  spanRange(sheet, row, from, to),
			Values: append([]string(nil), values[from:to+1]...),
		})
		i = j + 1
	}
	return spans
}
