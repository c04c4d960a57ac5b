package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tacosync/internal/metu"
	"tacosync/internal/models"

	"github.com/xuri/excelize/v2"
)

// WriteReport writes the tenant's pushed records and their push
// statuses to an Excel file under dir, returning the file path.
func WriteReport(dir, company string, records []models.PricedRecord, results []metu.PushResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	statusBySKU := make(map[string]string, len(results))
	for _, result := range results {
		statusBySKU[result.SKU] = result.Status
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Records"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []any{"SKU", "Produto", "Tacos", "Tax Sheet", "Preco de Custo", "Preco de Custo Original", "Push Status"}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, record := range records {
		row := []any{
			record.CodigoSKU,
			record.Produto,
			record.Tacos,
			record.TaxSheet,
			record.PrecoDeCusto,
			record.PrecoDeCustoOriginal,
			statusBySKU[record.CodigoSKU],
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 30)
	_ = f.SetColWidth(sheetName, "C", "G", 18)

	filename := fmt.Sprintf("tacosync_%s_%s.xlsx", company, time.Now().Format("2006-01-02_150405"))
	path := filepath.Join(dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}
