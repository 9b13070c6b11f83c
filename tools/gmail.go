package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sammcj/actorglue/gmail"
)

// NewGmailDraft creates the create_gmail_draft tool
func NewGmailDraft(mb gmail.Mailbox) *Tool[gmail.Draft] {
	spec := mcp.NewTool("create_gmail_draft",
		mcp.WithDescription("Create a draft email in the user's Gmail account. The draft is saved, not sent."),
		mcp.WithString("to", mcp.Required(), mcp.Description("Recipient address, or a comma separated list")),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Plain text body")),
	)

	return New(spec, func(ctx context.Context, d gmail.Draft) (string, error) {
		id, err := gmail.CreateDraft(ctx, mb, d)
		if err != nil {
			return "", err
		}
		return "Draft created successfully. Draft ID: " + id, nil
	})
}
