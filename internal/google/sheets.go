package google

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService reads rectangular cell ranges from Google Sheets with
// a read-only service-account credential.
type SheetsService struct {
	service *sheets.Service
}

func NewSheetsService(ctx context.Context, credentialsFile string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &SheetsService{service: srv}, nil
}

// ReadRange returns the cells of a range as rows of strings, empty
// when the range has no data. Non-string cells are stringified.
func (s *SheetsService) ReadRange(ctx context.Context, sheetID, cellRange string) ([][]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(sheetID, cellRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", cellRange, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			switch v := cell.(type) {
			case string:
				cells = append(cells, v)
			default:
				cells = append(cells, fmt.Sprintf("%v", v))
			}
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
