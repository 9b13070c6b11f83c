package retell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/dataset"
	"github.com/sammcj/actorglue/types"
)

const rule = "============================================================"

// Sources holds every place call parameters can come from
type Sources struct {
	// Flags are explicit command line values
	Flags CallRequest
	// Translated is decoded from a natural-language request
	Translated CallRequest
	// Local is retell_config.json
	Local config.Input
	// Input is the --input payload
	Input config.Input
	// Defaults come from the YAML configuration
	Defaults config.RetellConfig
}

// ResolveAPIKey picks the key from configuration (environment already
// applied), then retell_config.json, then the input payload.
func ResolveAPIKey(configured string, local, input config.Input) (string, error) {
	key := config.FirstNonEmpty(configured, local.String("api_key"), input.String("retell_api_key"))
	if key == "" {
		return "", types.Missing(config.EnvRetellKey, "the environment, retell_config.json, or the input payload")
	}
	return key, nil
}

// Resolve merges the sources in precedence order and checks the required fields
func Resolve(src Sources) (CallRequest, error) {
	local, err := DecodeRequest(src.Local)
	if err != nil {
		return CallRequest{}, err
	}
	input, err := DecodeRequest(src.Input)
	if err != nil {
		return CallRequest{}, err
	}

	req := CallRequest{
		FromNumber: config.FirstNonEmpty(src.Flags.FromNumber, src.Translated.FromNumber, local.FromNumber, input.FromNumber, src.Defaults.FromNumber),
		ToNumber:   config.FirstNonEmpty(src.Flags.ToNumber, src.Translated.ToNumber, local.ToNumber, input.ToNumber),
		AgentID:    config.FirstNonEmpty(src.Flags.AgentID, src.Translated.AgentID, local.AgentID, input.AgentID, src.Defaults.AgentID),
	}
	req.DynamicVariables = firstVars(src.Flags.DynamicVariables, src.Translated.DynamicVariables, local.DynamicVariables, input.DynamicVariables)

	for _, key := range OptionalParams {
		if v, ok := src.Input[key]; ok {
			if req.Extra == nil {
				req.Extra = map[string]any{}
			}
			req.Extra[key] = v
		}
	}

	return req, req.Validate()
}

func firstVars(values ...map[string]string) map[string]string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

// Validate checks the required fields, naming where each can be supplied
func (r CallRequest) Validate() error {
	const hint = ", the input payload, or retell_config.json"
	switch {
	case r.FromNumber == "":
		return types.Missing("from_number", "--from-number"+hint)
	case r.ToNumber == "":
		return types.Missing("to_number", "--to-number"+hint)
	case r.AgentID == "":
		return types.Missing("agent_id", "--agent-id"+hint)
	}
	return nil
}

// Outcome is a placed call together with the request that produced it
type Outcome struct {
	Request CallRequest
	Call    *Call
}

// Processor places a call and records it in the dataset
type Processor struct {
	caller Caller
	sink   dataset.Sink
	logger *slog.Logger
}

// NewProcessor creates a processor
func NewProcessor(caller Caller, sink dataset.Sink, logger *slog.Logger) *Processor {
	return &Processor{caller: caller, sink: sink, logger: logger}
}

// Call places the call described by req
func (p *Processor) Call(ctx context.Context, req CallRequest) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p.logger.Info("making phone call", "from", req.FromNumber, "to", req.ToNumber, "agent_id", req.AgentID)
	if len(req.DynamicVariables) > 0 {
		p.logger.Info("dynamic variables", "vars", req.DynamicVariables)
	}

	call, err := p.caller.CreatePhoneCall(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create phone call: %w", err)
	}
	p.logger.Info("phone call created", "call_id", call.CallID, "status", call.CallStatus, "agent", call.AgentName)

	metadata := call.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	record := map[string]any{
		"call_id":     call.CallID,
		"call_status": call.CallStatus,
		"from_number": req.FromNumber,
		"to_number":   req.ToNumber,
		"agent_id":    req.AgentID,
		"agent_name":  call.AgentName,
		"call_type":   call.CallType,
		"direction":   call.Direction,
		"metadata":    metadata,
	}
	if _, err := p.sink.Push(ctx, dataset.KindRetell, record); err != nil {
		// the call is already in progress, so losing the record is not fatal
		p.logger.Error("failed to store call record", "call_id", call.CallID, "error", err)
	}

	return &Outcome{Request: req, Call: call}, nil
}

// Print writes the human-readable summary
func (o *Outcome) Print(w io.Writer) {
	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "RETELL PHONE CALL RESULTS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Call ID: %s\n", o.Call.CallID)
	fmt.Fprintf(w, "Status: %s\n", o.Call.CallStatus)
	fmt.Fprintf(w, "From: %s\n", o.Request.FromNumber)
	fmt.Fprintf(w, "To: %s\n", o.Request.ToNumber)
	fmt.Fprintf(w, "Agent ID: %s\n", o.Request.AgentID)
	if o.Call.AgentName != "" {
		fmt.Fprintf(w, "Agent Name: %s\n", o.Call.AgentName)
	}
	if len(o.Request.DynamicVariables) > 0 {
		vars, _ := json.MarshalIndent(o.Request.DynamicVariables, "", "  ")
		fmt.Fprintf(w, "Dynamic Variables: %s\n", vars)
	}
	fmt.Fprintln(w, "\nNote: Call is now in progress.")
	fmt.Fprintln(w, "Use Retell API or dashboard to check call status and get transcript.")
	fmt.Fprintln(w, rule)
}

// Summary is a one-line description used as tool output
func (o *Outcome) Summary() string {
	return fmt.Sprintf("Phone call created. Call ID: %s, status: %s, from %s to %s",
		o.Call.CallID, o.Call.CallStatus, o.Request.FromNumber, o.Request.ToNumber)
}
