// Seeds a dataset with sample processor records so the query_dataset tool
// has something to return. Run with: go run ./example [path]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sammcj/actorglue/dataset"
)

func main() {
	path := "actorglue.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	store, err := dataset.Open(path)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	ctx := context.Background()
	records := []struct {
		kind    string
		payload map[string]any
	}{
		{dataset.KindGmail, map[string]any{
			"messageId":             "18c2f4a9b1e0d7aa",
			"subject":               "Rate Confirmation for order #48213",
			"date":                  "Tue, 02 Jan 2024 09:14:00 -0600",
			"timestamp":             1704208440.0,
			"attachmentName":        "rate-confirmation-48213.pdf",
			"gmailQueryUsed":        "subject:\"Rate Confirmation for order #\" has:attachment",
			"targetMimes":           []string{"application/pdf"},
			"attachmentContentText": "RATE CONFIRMATION\nOrder #48213\nPickup: Chicago, IL\nDelivery: Dallas, TX\nRate: $2,450.00",
		}},
		{dataset.KindGmail, map[string]any{
			"messageId":             "18c31b07c2aa9e41",
			"subject":               "Invoice 2024-001",
			"date":                  "Wed, 03 Jan 2024 16:40:12 +0000",
			"timestamp":             1704300012.0,
			"attachmentName":        "invoice.pdf",
			"gmailQueryUsed":        "subject:invoice has:attachment",
			"targetMimes":           []string{"application/pdf"},
			"attachmentContentText": "INVOICE 2024-001\nAmount due: $310.00",
		}},
		{dataset.KindRetell, map[string]any{
			"call_id":     "call_5f2c9e1d7b",
			"call_status": "registered",
			"from_number": "+14155550100",
			"to_number":   "+14155550199",
			"agent_id":    "agent_3b8e21",
			"retell_llm_dynamic_variables": map[string]string{
				"customer_name": "Alice Smith",
			},
		}},
	}

	for _, r := range records {
		id, err := store.Push(ctx, r.kind, r.payload)
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s %s\n", r.kind, id)
	}
}
