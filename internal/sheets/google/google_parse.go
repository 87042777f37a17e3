package google

import (
	"fmt"
	"strconv"
	"strings"
)

// findRow returns the 1-based sheet row whose first column holds the
// transaction id, or 0 when no row matches. values is column A as returned
// by the Sheets API starting at row 1.
func findRow(values [][]interface{}, transactionID int64) int {
	want := strconv.FormatInt(transactionID, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if normalizeID(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

// normalizeID strips what spreadsheets do to integers entered as
// USER_ENTERED values (thousands separators, a trailing ".0").
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".0")
	return s
}

// hasHeader reports whether the first row already carries the mirror header.
func hasHeader(values [][]interface{}) bool {
	if len(values) == 0 || len(values[0]) == 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(fmt.Sprint(values[0][0])), "ID")
}
