package gmail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/sammcj/actorglue/dataset"
	"github.com/sammcj/actorglue/extract"
)

const (
	previewLength = 200
	statusNoMatch = "No target attachment found"
	rule          = "============================================================"
	thinRule      = "------------------------------------------------------------"
)

// Options controls one processor run
type Options struct {
	Query      string
	MimeTypes  []string
	MaxResults int
}

// Result is the outcome for one message
type Result struct {
	MessageID      string
	Subject        string
	Date           string
	Timestamp      float64
	AttachmentName string
	Content        string
	Status         string
}

// HasAttachment reports whether text was extracted for the message
func (r Result) HasAttachment() bool {
	return r.Content != ""
}

// Report summarises a processor run
type Report struct {
	Query     string
	Processed int
	// Results are sorted newest first
	Results []Result
}

// Processor searches the mailbox and stores attachment text in the dataset
type Processor struct {
	mailbox Mailbox
	sink    dataset.Sink
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewProcessor creates a processor. requestsPerSecond <= 0 disables pacing.
func NewProcessor(mb Mailbox, sink dataset.Sink, requestsPerSecond float64, logger *slog.Logger) *Processor {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Processor{
		mailbox: mb,
		sink:    sink,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Run searches for opts.Query and processes each match. Failures on a
// single message are logged and the message is skipped.
func (p *Processor) Run(ctx context.Context, opts Options) (*Report, error) {
	p.logger.Info("using search query", "query", opts.Query)
	p.logger.Info("targeting MIME types", "mime_types", strings.Join(opts.MimeTypes, ", "))

	ids, err := Search(ctx, p.mailbox, opts.Query, opts.MaxResults)
	if err != nil {
		return nil, err
	}
	p.logger.Info("found matching emails", "count", len(ids), "limit", opts.MaxResults)

	report := &Report{Query: opts.Query, Processed: len(ids)}
	for i, id := range ids {
		p.logger.Info("processing message", "n", i+1, "of", len(ids), "message_id", id)

		res, err := p.processMessage(ctx, id, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Error("unexpected error processing message", "message_id", id, "error", err)
			continue
		}
		report.Results = append(report.Results, *res)
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Timestamp > report.Results[j].Timestamp
	})
	return report, nil
}

func (p *Processor) processMessage(ctx context.Context, id string, opts Options) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := p.mailbox.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &Result{
		MessageID: id,
		Subject:   headerOr(msg.Headers, "Subject", "No Subject"),
		Date:      headerOr(msg.Headers, "Date", "No Date"),
		Timestamp: float64(msg.InternalDate) / 1000,
	}

	if found := extract.FindParts(msg.Parts, opts.MimeTypes); len(found) > 0 {
		// only the first matching attachment is processed
		part := found[0]
		filename := part.Filename
		if filename == "" {
			filename = "untitled_attachment"
		}
		p.logger.Info("found target attachment", "filename", filename, "mime_type", part.MimeType)

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		data, err := p.mailbox.Attachment(ctx, id, part.AttachmentID)
		if err != nil {
			p.logger.Error("failed to fetch attachment", "attachment_id", part.AttachmentID, "error", err)
		} else if len(data) > 0 {
			text, err := extract.Text(part.MimeType, filename, data)
			switch {
			case err != nil:
				p.logger.Warn("failed to extract text", "filename", filename, "error", err)
			case part.MimeType != extract.MimePDF:
				p.logger.Warn("attachment type not converted to text", "mime_type", part.MimeType)
				fallthrough
			default:
				res.AttachmentName = filename
				res.Content = text
			}
		}
	}

	if !res.HasAttachment() {
		p.logger.Warn("no usable target attachment, skipping", "message_id", id)
		res.AttachmentName = ""
		res.Status = statusNoMatch
		return res, nil
	}

	if _, err := p.sink.Push(ctx, dataset.KindGmail, res.record(opts)); err != nil {
		return nil, err
	}
	p.logger.Info("pushed data for message", "message_id", id, "chars", len(res.Content))
	return res, nil
}

func (r Result) record(opts Options) map[string]any {
	return map[string]any{
		"messageId":             r.MessageID,
		"subject":               r.Subject,
		"date":                  r.Date,
		"timestamp":             r.Timestamp,
		"attachmentName":        r.AttachmentName,
		"gmailQueryUsed":        opts.Query,
		"targetMimes":           opts.MimeTypes,
		"attachmentContentText": r.Content,
	}
}

func headerOr(headers map[string]string, name, fallback string) string {
	if v, ok := headers[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Print writes the human-readable summary
func (r *Report) Print(w io.Writer) {
	if r.Processed == 0 {
		fmt.Fprintln(w, "\n=== GMAIL PROCESSOR RESULTS ===")
		fmt.Fprintln(w, "No matching emails found.")
		return
	}

	withAttachments := 0
	for _, res := range r.Results {
		if res.HasAttachment() {
			withAttachments++
		}
	}

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "GMAIL PROCESSOR RESULTS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Query used: %s\n", r.Query)
	fmt.Fprintf(w, "Total emails processed: %d\n", r.Processed)
	fmt.Fprintf(w, "Results with attachments: %d\n", withAttachments)
	fmt.Fprintln(w, "Results sorted by date (newest first)")
	fmt.Fprintln(w, "\n"+thinRule)

	for i, res := range r.Results {
		fmt.Fprintf(w, "\n[%d] Email Result:\n", i+1)
		fmt.Fprintf(w, "  Subject: %s\n", res.Subject)
		fmt.Fprintf(w, "  Date: %s\n", res.Date)
		fmt.Fprintf(w, "  Message ID: %s\n", res.MessageID)
		if res.HasAttachment() {
			fmt.Fprintf(w, "  Attachment: %s\n", res.AttachmentName)
			fmt.Fprintf(w, "  Content Preview: %s\n", Preview(res.Content))
			fmt.Fprintf(w, "  Full Content Length: %d characters\n", len([]rune(res.Content)))
		} else if res.Status != "" {
			fmt.Fprintf(w, "  Status: %s\n", res.Status)
		}
		fmt.Fprintln(w, thinRule)
	}

	fmt.Fprintf(w, "\nTotal results: %d\n", len(r.Results))
	fmt.Fprintln(w, rule)
}

// Preview truncates s to 200 characters, appending "..." when cut
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength]) + "..."
}
