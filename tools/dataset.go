package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/actorglue/dataset"
)

const maxDatasetLimit = 100

// RecordReader lists stored records, newest first
type RecordReader interface {
	Recent(ctx context.Context, kind string, limit int) ([]dataset.Record, error)
}

// DatasetQuery are the query_dataset arguments
type DatasetQuery struct {
	Kind  string `mapstructure:"kind"`
	Limit int    `mapstructure:"limit"`
}

// Validate only allows known record kinds
func (q DatasetQuery) Validate() error {
	switch q.Kind {
	case "", dataset.KindGmail, dataset.KindRetell:
	default:
		return fmt.Errorf("kind must be %s or %s, got %q", dataset.KindGmail, dataset.KindRetell, q.Kind)
	}
	if q.Limit < 0 || q.Limit > maxDatasetLimit {
		return fmt.Errorf("limit must be between 1 and %d", maxDatasetLimit)
	}
	return nil
}

// NewQueryDataset creates the query_dataset tool
func NewQueryDataset(r RecordReader) *Tool[DatasetQuery] {
	spec := mcp.NewTool("query_dataset",
		mcp.WithDescription("List recent records stored by the processors. "+
			"Kind gmail holds extracted email attachments (messageId, subject, date, attachmentName, attachmentContentText). "+
			"Kind retell holds placed phone calls (call_id, call_status, from_number, to_number, agent_id)."),
		mcp.WithString("kind", mcp.Description("Record kind to list; omit for all kinds"), mcp.Enum(dataset.KindGmail, dataset.KindRetell)),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum records to return (default 10, max %d)", maxDatasetLimit))),
	)

	return New(spec, func(ctx context.Context, q DatasetQuery) (string, error) {
		records, err := r.Recent(ctx, q.Kind, q.Limit)
		if err != nil {
			return "", err
		}
		if len(records) == 0 {
			return "No records found.", nil
		}
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal records: %w", err)
		}
		return string(out), nil
	})
}
