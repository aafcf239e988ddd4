package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"edustack-hq/turnstile/pkg/quota"
)

// CSVExporter exports usage records to CSV format.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// Export writes usage records to the provided writer in CSV format.
// The endpoint breakdown is flattened into a single JSON-encoded cell.
func (e *CSVExporter) Export(ctx context.Context, records []*quota.UsageRecord, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := recordToRow(record)
		if err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	return nil
}

func headerRow() []string {
	return []string{
		"user_id", "period_type", "period_start", "period_end",
		"total_requests", "total_input_tokens", "total_output_tokens",
		"total_tokens", "total_cost", "endpoint_usage",
	}
}

func recordToRow(record *quota.UsageRecord) ([]string, error) {
	endpointJSON, err := json.Marshal(record.Endpoints)
	if err != nil {
		return nil, err
	}
	return []string{
		record.UserID,
		record.PeriodType,
		record.PeriodStart.UTC().Format(time.RFC3339),
		record.PeriodEnd.UTC().Format(time.RFC3339),
		strconv.FormatInt(record.TotalRequests, 10),
		strconv.FormatInt(record.TotalInputTokens, 10),
		strconv.FormatInt(record.TotalOutputTokens, 10),
		strconv.FormatInt(record.TotalTokens, 10),
		strconv.FormatFloat(record.TotalCost, 'f', -1, 64),
		string(endpointJSON),
	}, nil
}
