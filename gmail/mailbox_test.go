package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *API {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := NewAPI(context.Background(), "me",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return api
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAPIList(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages", r.URL.Path)
		assert.Equal(t, "has:attachment", r.URL.Query().Get("q"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		writeJSON(w, map[string]any{
			"messages":      []map[string]string{{"id": "a"}, {"id": "b"}},
			"nextPageToken": "p3",
		})
	})

	page, err := api.List(context.Background(), "has:attachment", 50, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, page.IDs)
	assert.Equal(t, "p3", page.NextPageToken)
}

func TestAPIGetConvertsParts(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(w, map[string]any{
			"id":           "m1",
			"internalDate": "1756720800000",
			"payload": map[string]any{
				"mimeType": "multipart/mixed",
				"headers":  []map[string]string{{"name": "Subject", "value": "Rate Confirmation for order #42"}},
				"parts": []map[string]any{
					{"mimeType": "text/plain", "body": map[string]any{"size": 3}},
					{"mimeType": "application/pdf", "filename": "rc.pdf", "body": map[string]any{"attachmentId": "att-1"}},
				},
			},
		})
	})

	msg, err := api.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1756720800000), msg.InternalDate)
	assert.Equal(t, "Rate Confirmation for order #42", msg.Headers["Subject"])
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, "att-1", msg.Parts[1].AttachmentID)
}

func TestAPIGetSinglePartPayload(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id": "m2",
			"payload": map[string]any{
				"mimeType": "application/pdf",
				"filename": "only.pdf",
				"body":     map[string]any{"attachmentId": "att-2"},
			},
		})
	})

	msg, err := api.Get(context.Background(), "m2")
	require.NoError(t, err)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "only.pdf", msg.Parts[0].Filename)
}

func TestAPIAttachmentDecodes(t *testing.T) {
	payload := []byte{0xfb, 0xff, 0x01}
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages/m1/attachments/att-1", r.URL.Path)
		writeJSON(w, map[string]any{"data": base64.RawURLEncoding.EncodeToString(payload)})
	})

	data, err := api.Attachment(context.Background(), "m1", "att-1")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestAPICreateDraft(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Message struct {
				Raw string `json:"raw"`
			} `json:"message"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cmF3", body.Message.Raw)
		writeJSON(w, map[string]any{"id": "r-99"})
	})

	id, err := api.CreateDraft(context.Background(), "cmF3")
	require.NoError(t, err)
	assert.Equal(t, "r-99", id)
}

func TestAPIErrorsAreWrapped(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 401, "message": "invalid credentials"}}`, http.StatusUnauthorized)
	})

	_, err := api.List(context.Background(), "", 10, "")
	assert.ErrorContains(t, err, "gmail search failed")
}
