package service

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
)

const (
	sheetChildren = "Children"
	sheetHistory  = "History"
	sheetLogs     = "Logs"
)

var (
	childrenHeader = []string{"Child ID", "Name", "Score", "Good", "Bad", "Gained", "Lost", "Weeks Validated"}
	historyHeader  = []string{"Child", "Date", "Score"}
	logsHeader     = []string{"Child", "Date", "Action", "Category", "Value"}
)

// ReportService renders the ledger as a spreadsheet workbook
type ReportService struct {
	ledger *ledger.Ledger
	logger *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(l *ledger.Ledger, logger *zap.Logger) *ReportService {
	return &ReportService{ledger: l, logger: logger}
}

// WriteTo writes a workbook with one sheet each for children, archived weeks and logs
func (s *ReportService) WriteTo(w io.Writer) (int64, error) {
	f, err := s.Build()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := f.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write report: %w", err)
	}
	return n, nil
}

// Build assembles the workbook. The caller closes the returned file.
func (s *ReportService) Build() (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	kids := s.ledger.Kids()
	names := make(map[string]string, len(kids))

	var children, history [][]any
	for _, k := range kids {
		names[k.ID] = k.Name
		st := s.ledger.Stats(k.ID)
		children = append(children, []any{k.ID, k.Name, k.Score, st.Good, st.Bad, st.Gained, st.Lost, len(k.History)})
		for _, h := range k.History {
			history = append(history, []any{k.Name, h.Date, h.Score})
		}
	}

	var logs [][]any
	for _, k := range kids {
		for _, e := range s.ledger.ChildLogs(k.ID) {
			label := e.ActionID
			if a, ok := s.ledger.Action(e.ActionID); ok {
				label = a.Label
			}
			logs = append(logs, []any{names[e.ChildID], e.Date.Format(time.RFC3339), label, string(models.CategoryOf(e.ActionID)), e.Value})
		}
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
		widths []float64
	}{
		{sheetChildren, childrenHeader, children, []float64{38, 20, 10, 10, 10, 10, 10, 16}},
		{sheetHistory, historyHeader, history, []float64{20, 14, 10}},
		{sheetLogs, logsHeader, logs, []float64{20, 26, 36, 12, 10}},
	}
	for i, sh := range sheets {
		index, err := f.NewSheet(sh.name)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, sh.name, sh.header, sh.rows, sh.widths, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Remove the default sheet once another one exists
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	s.logger.Debug("Report built",
		zap.Int("children", len(children)),
		zap.Int("history", len(history)),
		zap.Int("logs", len(logs)),
	)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, widths []float64, headerStyle int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}
	return nil
}
