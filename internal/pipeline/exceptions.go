package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"tacosync/internal/models"
)

// ParsePercent parses a spreadsheet percentage cell. Accepts a comma
// decimal separator and an optional % suffix ("12,5%" -> 12.5).
func ParsePercent(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty percentage value %q", s)
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage value %q", s)
	}
	return value, nil
}

// percentCell is ParsePercent with missing/blank treated as zero, the
// convention for optional exception-sheet columns.
func percentCell(row []string, index int) float64 {
	if index >= len(row) {
		return 0
	}
	value, err := ParsePercent(row[index])
	if err != nil {
		return 0
	}
	return value
}

// ParseCostExceptions reads a cost-exception sheet: column A the SKU,
// column B the additional percentage applied to the cost basis. Rows
// without a parsable percentage are skipped.
func ParseCostExceptions(rows [][]string) map[string]float64 {
	exceptions := make(map[string]float64)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		sku := strings.TrimSpace(row[0])
		if sku == "" {
			continue
		}
		pct, err := ParsePercent(row[1])
		if err != nil {
			continue
		}
		exceptions[sku] = pct
	}
	return exceptions
}

// ParseTaxExceptions reads a tax-exception sheet: SKU, replacement tax
// sheet, then icms, fixo, pis, cofins. Missing trailing cells count as
// zero; rows without a parsable replacement tax are skipped.
func ParseTaxExceptions(rows [][]string) map[string]models.TaxException {
	exceptions := make(map[string]models.TaxException)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		sku := strings.TrimSpace(row[0])
		if sku == "" {
			continue
		}
		newTax, err := ParsePercent(row[1])
		if err != nil {
			continue
		}
		exceptions[sku] = models.TaxException{
			NewTaxSheet: newTax,
			ICMS:        percentCell(row, 2),
			Fixo:        percentCell(row, 3),
			PIS:         percentCell(row, 4),
			Cofins:      percentCell(row, 5),
		}
	}
	return exceptions
}
