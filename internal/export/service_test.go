package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/entity"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubJobs struct {
	repository.ExtractJobRepository
	jobs []entity.ExtractJob
}

func (s stubJobs) ListByDocument(context.Context, uuid.UUID, int) ([]entity.ExtractJob, error) {
	return s.jobs, nil
}

func TestChartsXLSX(t *testing.T) {
	t.Parallel()

	r, err := extract.ParseResult([]byte(`{"Q1 FY2023-24":{"Revenue":500,"PBT":200,"Net Profit":300}}`))
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	svc := NewService(nil, quietLogger())
	data, err := svc.ChartsXLSX(chart.Normalize(r), chart.NewFormatter("INR"))
	if err != nil {
		t.Fatalf("ChartsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(chartsSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := [][]string{
		{"Metric", constants.ChartTitlePeriodA, constants.ChartTitlePeriodB},
		{"Revenue", "500", "0"},
		{"PAT", "200", "0"},
		{"Net", "300", "0"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("cell (%d,%d) = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestJobsXLSX(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	kind, msg, status := "status", "extraction service returned 500", 500
	jobs := []entity.ExtractJob{
		{ID: uuid.New(), Status: constants.JobStatusOK, StartedAt: started, FinishedAt: &finished, ResultJSON: json.RawMessage(`{}`), Periods: 1},
		{ID: uuid.New(), Status: constants.JobStatusFailed, StartedAt: started, FinishedAt: &finished, ErrorKind: &kind, ErrorMessage: &msg, HTTPStatus: &status},
	}
	svc := NewService(stubJobs{jobs: jobs}, quietLogger())

	data, err := svc.JobsXLSX(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("JobsXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(jobsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "OK" || rows[1][4] != "1500" {
		t.Errorf("ok row = %v", rows[1])
	}
	if rows[2][1] != "FAILED" || rows[2][5] != "500" || rows[2][7] != msg {
		t.Errorf("failed row = %v", rows[2])
	}
}

func TestJobsXLSXWithoutRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewService(nil, nil).JobsXLSX(context.Background(), uuid.New()); err == nil {
		t.Fatal("want error without a job repository")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
