package purchaseorder

import (
	"fmt"
	"time"
)

// FiscalYear returns the April-to-March fiscal year label for a date,
// e.g. 2025-07-01 -> "2025-26" and 2026-02-01 -> "2025-26".
func FiscalYear(t time.Time) string {
	year := t.Year()
	if t.Month() < time.April {
		year--
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

// FormatNumber renders a document number as <prefix>/<FY>/<seq>.
func FormatNumber(prefix, fiscalYear string, seq int64) string {
	return fmt.Sprintf("%s/%s/%04d", prefix, fiscalYear, seq)
}
