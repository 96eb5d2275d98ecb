package google

import (
	"fmt"
	"strconv"
	"strings"

	"monthbook/internal/core"
	ports "monthbook/internal/sheets"
)

// a1 builds an A1 range, quoting the sheet name.
func a1(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

// findSummaryRow returns the 1-based sheet row holding userID/monthYear and
// the version recorded there, or 0 when absent.
func findSummaryRow(values [][]interface{}, userID, monthYear string) (int, int64) {
	for i, raw := range values {
		row := toStrings(raw)
		if safeGet(row, 0) != userID || safeGet(row, 1) != monthYear {
			continue
		}
		v, _ := strconv.ParseInt(safeGet(row, 5), 10, 64)
		return i + 1, v
	}
	return 0, 0
}

// missingRows returns transaction rows whose id is not in the first column
// of existing.
func missingRows(existing [][]interface{}, l core.MonthlyLedger) [][]interface{} {
	seen := make(map[string]struct{}, len(existing))
	for _, raw := range existing {
		if id := safeGet(toStrings(raw), 0); id != "" {
			seen[id] = struct{}{}
		}
	}
	var out [][]interface{}
	for _, row := range ports.TransactionRows(l) {
		if _, ok := seen[row[0]]; ok {
			continue
		}
		seen[row[0]] = struct{}{}
		out = append(out, toRow(row))
	}
	return out
}

func toRow(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
