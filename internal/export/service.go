package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/repository"
)

const (
	chartsSheet = "Financials"
	jobsSheet   = "Extractions"
)

// Service produces XLSX bytes for chart and history downloads.
type Service struct {
	jobs   repository.ExtractJobRepository // optional; needed for JobsXLSX only
	logger *slog.Logger
}

func NewService(jobs repository.ExtractJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ChartsXLSX writes both series into one sheet with a column chart per period.
func (s *Service) ChartsXLSX(c chart.Charts, f chart.Formatter) ([]byte, error) {
	start := time.Now()

	x := excelize.NewFile()
	defer func() {
		if err := x.Close(); err != nil {
			s.logger.Warn("export.close_error", "error", err)
		}
	}()
	if err := useSheet(x, chartsSheet); err != nil {
		return nil, err
	}

	views := f.PresentAll(c)
	headers := []any{"Metric"}
	for _, v := range views {
		headers = append(headers, v.Title)
	}
	if err := x.SetSheetRow(chartsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	for i, m := range constants.Metrics {
		row := []any{string(m)}
		for _, v := range views {
			row = append(row, v.Points[i].Value)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := x.SetSheetRow(chartsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	amountFmt := fmt.Sprintf(`"%s"#,##0.00`, f.Symbol())
	style, err := x.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return nil, err
	}
	lastRow := len(constants.Metrics) + 1
	lastCol, _ := excelize.ColumnNumberToName(len(views) + 1)
	if err := x.SetCellStyle(chartsSheet, "B2", fmt.Sprintf("%s%d", lastCol, lastRow), style); err != nil {
		return nil, err
	}
	_ = x.SetColWidth(chartsSheet, "A", "A", 14)
	_ = x.SetColWidth(chartsSheet, "B", lastCol, 18)

	for i, v := range views {
		col, _ := excelize.ColumnNumberToName(i + 2)
		anchor := fmt.Sprintf("E%d", 1+i*18)
		err := x.AddChart(chartsSheet, anchor, &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$%s$1", chartsSheet, col),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", chartsSheet, lastRow),
				Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", chartsSheet, col, col, lastRow),
			}},
			Title:  []excelize.RichTextRun{{Text: v.Title}},
			Legend: excelize.ChartLegend{Position: "none"},
			YAxis: excelize.ChartAxis{
				MajorGridLines: true,
				NumFmt:         excelize.ChartNumFmt{CustomNumFmt: amountFmt},
			},
			Dimension: excelize.ChartDimension{Width: 480, Height: 320},
		})
		if err != nil {
			return nil, fmt.Errorf("add %s chart: %w", v.Period, err)
		}
	}

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.charts_xlsx", "bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// JobsXLSX lists the extraction history of a document.
func (s *Service) JobsXLSX(ctx context.Context, documentID uuid.UUID) ([]byte, error) {
	if s.jobs == nil {
		return nil, fmt.Errorf("export: no job repository configured")
	}
	start := time.Now()
	jobs, err := s.jobs.ListByDocument(ctx, documentID, 500)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if err := useSheet(x, jobsSheet); err != nil {
		return nil, err
	}

	headers := []any{"Job ID", "Status", "Started At", "Finished At", "Duration (ms)", "HTTP Status", "Error Kind", "Error", "Periods"}
	if err := x.SetSheetRow(jobsSheet, "A1", &headers); err != nil {
		return nil, err
	}
	for i, j := range jobs {
		finished, duration := "", ""
		if j.FinishedAt != nil {
			finished = j.FinishedAt.UTC().Format(time.RFC3339)
			duration = fmt.Sprint(j.FinishedAt.Sub(j.StartedAt).Milliseconds())
		}
		row := []any{
			j.ID.String(),
			string(j.Status),
			j.StartedAt.UTC().Format(time.RFC3339),
			finished,
			duration,
			deref(j.HTTPStatus),
			deref(j.ErrorKind),
			truncate(deref(j.ErrorMessage).(string), 140),
			j.Periods,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := x.SetSheetRow(jobsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	_ = x.SetColWidth(jobsSheet, "A", "A", 38)
	_ = x.SetColWidth(jobsSheet, "B", "B", 10)
	_ = x.SetColWidth(jobsSheet, "C", "D", 22)
	_ = x.SetColWidth(jobsSheet, "H", "H", 60)

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.jobs_xlsx", "document_id", documentID, "rows", len(jobs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// useSheet makes name the only, active sheet of a fresh workbook.
func useSheet(x *excelize.File, name string) error {
	if err := x.SetSheetName("Sheet1", name); err != nil {
		return err
	}
	idx, err := x.GetSheetIndex(name)
	if err != nil {
		return err
	}
	x.SetActiveSheet(idx)
	return nil
}

func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
