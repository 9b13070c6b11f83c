package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/actorglue/apify"
	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/dataset"
	"github.com/sammcj/actorglue/gmail"
	"github.com/sammcj/actorglue/llm"
	"github.com/sammcj/actorglue/retell"
	"github.com/sammcj/actorglue/types"
)

type draftMailbox struct {
	gmail.Mailbox
	raws []string
	err  error
}

func (m *draftMailbox) CreateDraft(_ context.Context, raw string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.raws = append(m.raws, raw)
	return "r-123", nil
}

type fakeBuilder struct {
	got []apify.ActorSpec
	dep *apify.Deployment
	err error
}

func (b *fakeBuilder) Build(_ context.Context, spec apify.ActorSpec) (*apify.Deployment, error) {
	b.got = append(b.got, spec)
	return b.dep, b.err
}

type fakePlacer struct {
	got []retell.CallRequest
}

func (p *fakePlacer) Call(_ context.Context, req retell.CallRequest) (*retell.Outcome, error) {
	p.got = append(p.got, req)
	return &retell.Outcome{Request: req, Call: &retell.Call{CallID: "call_9", CallStatus: "registered"}}, nil
}

func TestDescriptorSchemaValidates(t *testing.T) {
	desc := NewGmailDraft(&draftMailbox{}).Descriptor()
	assert.Equal(t, "create_gmail_draft", desc.Name)

	var schema struct {
		Type     string         `json:"type"`
		Required []string       `json:"required"`
		Props    map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(desc.InputSchema, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"to", "subject", "body"}, schema.Required)

	v, err := llm.NewValidator([]types.ToolDescriptor{desc})
	require.NoError(t, err)
	assert.Error(t, v.ValidateCall(types.ToolCallRequest{Name: desc.Name, Arguments: json.RawMessage(`{"to":"a@b.c"}`)}))
}

func TestGmailDraftTool(t *testing.T) {
	mb := &draftMailbox{}
	out, err := NewGmailDraft(mb).Execute(context.Background(),
		json.RawMessage(`{"to":"ops@example.com","subject":"Load 42","body":"Confirmed."}`))
	require.NoError(t, err)
	assert.Equal(t, "Draft created successfully. Draft ID: r-123", out)
	assert.Len(t, mb.raws, 1)

	_, err = NewGmailDraft(&draftMailbox{err: errors.New("insufficient scope")}).Execute(context.Background(),
		json.RawMessage(`{"to":"ops@example.com","subject":"s","body":"b"}`))
	assert.ErrorContains(t, err, "insufficient scope")
}

func TestExecuteRejectsMalformedArguments(t *testing.T) {
	tool := NewGmailDraft(&draftMailbox{})

	_, err := tool.Execute(context.Background(), json.RawMessage(`[1,2]`))
	assert.ErrorContains(t, err, "invalid arguments")

	_, err = tool.Execute(context.Background(), nil)
	assert.ErrorContains(t, err, "create_gmail_draft validation failed")
}

func TestBuildActorTool(t *testing.T) {
	b := &fakeBuilder{dep: &apify.Deployment{ActorID: "AbC123", Name: "rate-scraper", Public: true}}
	out, err := NewBuildActor(b).Execute(context.Background(),
		json.RawMessage(`{"name":"rate-scraper","source_code":"print('hi')","title":"Rate scraper"}`))
	require.NoError(t, err)
	assert.Equal(t, "AbC123", out)
	require.Len(t, b.got, 1)
	assert.Equal(t, apify.ActorSpec{Name: "rate-scraper", SourceCode: "print('hi')", Title: "Rate scraper"}, b.got[0])
}

func TestBuildActorToolReportsFailedStep(t *testing.T) {
	b := &fakeBuilder{err: &types.DeployError{Step: apify.StepDeploy, Err: errors.New("exit status 1")}}
	out, err := NewBuildActor(b).Execute(context.Background(), json.RawMessage(`{"name":"x","source_code":"y"}`))
	require.NoError(t, err)
	assert.Equal(t, "Failed at step deploy: exit status 1", out)

	b = &fakeBuilder{dep: &apify.Deployment{ActorID: "Id1", PublishErr: errors.New("forbidden")}}
	out, err = NewBuildActor(b).Execute(context.Background(), json.RawMessage(`{"name":"x","source_code":"y"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Id1")
	assert.Contains(t, out, "forbidden")
}

func TestPhoneCallToolUsesDefaults(t *testing.T) {
	p := &fakePlacer{}
	tool := NewPhoneCall(p, config.RetellConfig{FromNumber: "+14157774444", AgentID: "agent_default"})

	out, err := tool.Execute(context.Background(),
		json.RawMessage(`{"to_number":"+12137774445","dynamic_variables":{"customer_name":"Sam","load":42}}`))
	require.NoError(t, err)
	assert.Contains(t, out, "call_9")

	require.Len(t, p.got, 1)
	assert.Equal(t, "+14157774444", p.got[0].FromNumber)
	assert.Equal(t, "agent_default", p.got[0].AgentID)
	assert.Equal(t, map[string]string{"customer_name": "Sam", "load": "42"}, p.got[0].DynamicVariables)
}

func TestQueryDatasetTool(t *testing.T) {
	store, err := dataset.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tool := NewQueryDataset(store)

	out, err := tool.Execute(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "No records found.", out)

	for i := 0; i < 3; i++ {
		_, err := store.Push(ctx, dataset.KindGmail, map[string]any{"messageId": fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
	_, err = store.Push(ctx, dataset.KindRetell, map[string]any{"call_id": "c1"})
	require.NoError(t, err)

	out, err = tool.Execute(ctx, json.RawMessage(`{"kind":"gmail","limit":2}`))
	require.NoError(t, err)
	var records []dataset.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, dataset.KindGmail, records[0].Kind)

	_, err = tool.Execute(ctx, json.RawMessage(`{"kind":"sms"}`))
	assert.ErrorContains(t, err, "kind must be")
	_, err = tool.Execute(ctx, json.RawMessage(`{"limit":1000}`))
	assert.ErrorContains(t, err, "limit must be")
}
