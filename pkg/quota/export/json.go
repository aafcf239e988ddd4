package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"edustack-hq/turnstile/pkg/quota"
)

// JSONExporter exports usage records to JSON format.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// Export writes usage records to the provided writer as a JSON array.
// An empty record set produces an empty array, never null.
func (e *JSONExporter) Export(ctx context.Context, records []*quota.UsageRecord, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []*quota.UsageRecord{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return fmt.Errorf("json export: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("json export: %w", err)
	}
	return nil
}
