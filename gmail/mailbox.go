// Package gmail searches a mailbox, extracts attachment text and creates drafts
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sammcj/actorglue/extract"
)

// Page is one page of message ids from a search
type Page struct {
	IDs           []string
	NextPageToken string
}

// Message is a fetched message reduced to what the processor reads
type Message struct {
	ID           string
	Headers      map[string]string
	InternalDate int64
	Parts        []extract.Part
}

// Mailbox is the Gmail surface the processor and draft tool use
type Mailbox interface {
	List(ctx context.Context, query string, pageSize int64, pageToken string) (Page, error)
	Get(ctx context.Context, id string) (*Message, error)
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	CreateDraft(ctx context.Context, raw string) (string, error)
}

// API is a Mailbox backed by the Gmail REST API
type API struct {
	svc    *gmailapi.Service
	userID string
}

// NewAPI creates a mailbox client. opts usually carries option.WithTokenSource.
func NewAPI(ctx context.Context, userID string, opts ...option.ClientOption) (*API, error) {
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build Gmail service: %w", err)
	}
	if userID == "" {
		userID = "me"
	}
	return &API{svc: svc, userID: userID}, nil
}

// List returns one page of message ids matching query, newest first
func (a *API) List(ctx context.Context, query string, pageSize int64, pageToken string) (Page, error) {
	call := a.svc.Users.Messages.List(a.userID).Q(query).MaxResults(pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return Page{}, fmt.Errorf("gmail search failed: %w", err)
	}

	page := Page{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	return page, nil
}

// Get fetches a full message
func (a *API) Get(ctx context.Context, id string) (*Message, error) {
	msg, err := a.svc.Users.Messages.Get(a.userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	out := &Message{ID: msg.Id, InternalDate: msg.InternalDate, Headers: map[string]string{}}
	if msg.Payload == nil {
		return out, nil
	}
	for _, h := range msg.Payload.Headers {
		out.Headers[h.Name] = h.Value
	}
	// a single-part message carries its content on the payload itself
	if len(msg.Payload.Parts) == 0 {
		out.Parts = []extract.Part{convertPart(msg.Payload)}
	} else {
		out.Parts = convertParts(msg.Payload.Parts)
	}
	return out, nil
}

func convertParts(parts []*gmailapi.MessagePart) []extract.Part {
	out := make([]extract.Part, 0, len(parts))
	for _, p := range parts {
		out = append(out, convertPart(p))
	}
	return out
}

func convertPart(p *gmailapi.MessagePart) extract.Part {
	part := extract.Part{MimeType: p.MimeType, Filename: p.Filename, Parts: convertParts(p.Parts)}
	if p.Body != nil {
		part.AttachmentID = p.Body.AttachmentId
	}
	return part
}

// Attachment downloads and decodes attachment bytes
func (a *API) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	body, err := a.svc.Users.Messages.Attachments.Get(a.userID, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment %s: %w", attachmentID, err)
	}
	return decodeBase64URL(body.Data)
}

// CreateDraft stores a base64url encoded RFC 2822 message as a draft
func (a *API) CreateDraft(ctx context.Context, raw string) (string, error) {
	draft, err := a.svc.Users.Drafts.Create(a.userID, &gmailapi.Draft{
		Message: &gmailapi.Message{Raw: raw},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	return draft.Id, nil
}

// Gmail pads inconsistently
func decodeBase64URL(data string) ([]byte, error) {
	if strings.HasSuffix(data, "=") {
		return base64.URLEncoding.DecodeString(data)
	}
	return base64.RawURLEncoding.DecodeString(data)
}
