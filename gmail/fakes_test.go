package gmail

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/sammcj/actorglue/extract"
)

// fakeMailbox serves ids newest first and pages by offset
type fakeMailbox struct {
	mu          sync.Mutex
	ids         []string
	messages    map[string]*Message
	attachments map[string][]byte
	pageSizes   []int64
	drafts      []string
	getErr      map[string]error
}

func newFakeMailbox(n int) *fakeMailbox {
	mb := &fakeMailbox{messages: map[string]*Message{}, attachments: map[string][]byte{}, getErr: map[string]error{}}
	for i := 0; i < n; i++ {
		mb.ids = append(mb.ids, fmt.Sprintf("m%04d", n-i))
	}
	return mb
}

func (f *fakeMailbox) List(_ context.Context, _ string, pageSize int64, pageToken string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSizes = append(f.pageSizes, pageSize)

	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := min(start+int(pageSize), len(f.ids))
	page := Page{IDs: append([]string(nil), f.ids[start:end]...)}
	if end < len(f.ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeMailbox) Get(_ context.Context, id string) (*Message, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return &Message{ID: id, Headers: map[string]string{}}, nil
}

func (f *fakeMailbox) Attachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	data, ok := f.attachments[messageID+"/"+attachmentID]
	if !ok {
		return nil, fmt.Errorf("attachment %s not found", attachmentID)
	}
	return data, nil
}

func (f *fakeMailbox) CreateDraft(_ context.Context, raw string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, raw)
	return fmt.Sprintf("r-%d", len(f.drafts)), nil
}

func (f *fakeMailbox) addMessage(id, subject string, internalDate int64, parts ...extract.Part) {
	f.messages[id] = &Message{
		ID:           id,
		Headers:      map[string]string{"Subject": subject, "Date": "Mon, 1 Sep 2025 10:00:00 +0000"},
		InternalDate: internalDate,
		Parts:        parts,
	}
}

type memorySink struct {
	records []map[string]any
	kinds   []string
}

func (s *memorySink) Push(_ context.Context, kind string, payload map[string]any) (string, error) {
	s.kinds = append(s.kinds, kind)
	s.records = append(s.records, payload)
	return fmt.Sprintf("rec-%d", len(s.records)), nil
}
