package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"

	"github.com/sammcj/actorglue/types"
)

// Draft is an outgoing message to save as a draft
type Draft struct {
	To      string `mapstructure:"to"`
	Subject string `mapstructure:"subject"`
	Body    string `mapstructure:"body"`
}

// Validate checks the required fields, naming the flag for each
func (d Draft) Validate() error {
	if strings.TrimSpace(d.To) == "" {
		return types.Missing("to", "--to")
	}
	if _, err := mail.ParseAddressList(d.To); err != nil {
		return &types.ConfigError{Field: "to", Message: "is not a valid address list", Err: err}
	}
	if strings.TrimSpace(d.Subject) == "" {
		return types.Missing("subject", "--subject")
	}
	if d.Body == "" {
		return types.Missing("body", "--body")
	}
	return nil
}

// Raw renders the draft as a base64url encoded RFC 2822 message
func (d Draft) Raw() string {
	var b strings.Builder
	b.WriteString("To: " + d.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", d.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(d.Body)))
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// CreateDraft validates d and stores it, returning the draft id
func CreateDraft(ctx context.Context, mb Mailbox, d Draft) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	id, err := mb.CreateDraft(ctx, d.Raw())
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}
	return id, nil
}
