package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/message"
)

// GenerateParams defines parameters for the generate_message tool
type GenerateParams struct {
	MessageType string         `json:"message_type,omitempty" jsonschema:"message type such as ADT^A01 or ORU_R01"`
	Seed        uint64         `json:"seed,omitempty" jsonschema:"seed for a reproducible message, 0 picks one"`
	SessionName string         `json:"session_name,omitempty" jsonschema:"override session whose locked values are applied"`
	Scenario    string         `json:"scenario,omitempty" jsonschema:"clinical scenario id"`
	Repeats     map[string]int `json:"repeats,omitempty" jsonschema:"repeat counts of repeatable segments, keyed by segment code"`
}

func (p GenerateParams) request() message.Request {
	return message.Request{
		MessageType: p.MessageType,
		Seed:        p.Seed,
		SessionName: p.SessionName,
		Scenario:    p.Scenario,
		Repeats:     p.Repeats,
	}
}

// GenerateBatchParams defines parameters for the generate_batch tool
type GenerateBatchParams struct {
	MessageType string         `json:"message_type,omitempty" jsonschema:"message type such as ADT^A01 or ORU_R01"`
	Seed        uint64         `json:"seed,omitempty" jsonschema:"batch seed, message i uses a seed derived from it"`
	SessionName string         `json:"session_name,omitempty"`
	Scenario    string         `json:"scenario,omitempty"`
	Repeats     map[string]int `json:"repeats,omitempty"`
	Count       int            `json:"count" jsonschema:"number of messages"`
}

func (p GenerateBatchParams) request() message.BatchRequest {
	single := GenerateParams{
		MessageType: p.MessageType,
		Seed:        p.Seed,
		SessionName: p.SessionName,
		Scenario:    p.Scenario,
		Repeats:     p.Repeats,
	}
	return message.BatchRequest{Request: single.request(), Count: p.Count}
}

// PathsParams defines parameters for the list_field_paths tool
type PathsParams struct {
	MessageType string `json:"message_type" jsonschema:"message type such as ADT^A01"`
}

// TableParams defines parameters for the get_table tool
type TableParams struct {
	TableID string `json:"table_id" jsonschema:"four digit HL7 table id such as 0001"`
}

// ListSessionsParams defines parameters for the list_sessions tool
type ListSessionsParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// CreateSessionParams defines parameters for the create_session tool
type CreateSessionParams struct {
	Name        string            `json:"name" jsonschema:"unique session name"`
	Description string            `json:"description,omitempty"`
	Values      map[string]string `json:"values,omitempty" jsonschema:"locked values keyed by field such as PID.5 or patient.mrn"`
}

// LockValueParams defines parameters for the lock_value tool
type LockValueParams struct {
	SessionName string `json:"session_name"`
	Key         string `json:"key" jsonschema:"field such as PID.5 or patient.mrn"`
	Value       string `json:"value"`
}

// UnlockValueParams defines parameters for the unlock_value tool
type UnlockValueParams struct {
	SessionName string `json:"session_name"`
	Key         string `json:"key"`
}

// SessionParams names one override session
type SessionParams struct {
	SessionName string `json:"session_name"`
}

// NoParams is the input of tools without arguments
type NoParams struct{}

// handleGenerate handles the generate_message tool invocation
func (s *Server) handleGenerate(ctx context.Context, _ *mcp.CallToolRequest, params GenerateParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "generate_message").Info("Tool invoked")

	res, err := s.services.Generator.Generate(ctx, params.request())
	if err != nil {
		return s.createErrorResult("Generation failed", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: readable(res)}},
		Meta:    map[string]any{"result": res},
	}, nil, nil
}

// handleGenerateBatch handles the generate_batch tool invocation
func (s *Server) handleGenerateBatch(ctx context.Context, _ *mcp.CallToolRequest, params GenerateBatchParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{"tool": "generate_batch", "count": params.Count}).Info("Tool invoked")

	batch, err := s.services.Generator.GenerateBatch(ctx, params.request())
	if err != nil {
		return s.createErrorResult("Batch generation failed", err), nil, nil
	}

	content := make([]mcp.Content, 0, len(batch.Results))
	for _, res := range batch.Results {
		content = append(content, &mcp.TextContent{Text: readable(res)})
	}
	return &mcp.CallToolResult{
		Content: content,
		Meta:    map[string]any{"seed": batch.Seed, "count": len(batch.Results)},
	}, nil, nil
}

// handleMessageTypes handles the list_message_types tool invocation
func (s *Server) handleMessageTypes(_ context.Context, _ *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	var b strings.Builder
	for _, mt := range message.SupportedTypes() {
		layout, err := message.LayoutFor(mt)
		if err != nil {
			continue
		}
		codes := make([]string, 0, len(layout.Segments))
		for _, seg := range layout.Segments {
			codes = append(codes, seg.Code)
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", mt, layout.Structure, strings.Join(codes, " "))
	}
	return textResult(b.String()), nil, nil
}

// handlePaths handles the list_field_paths tool invocation
func (s *Server) handlePaths(_ context.Context, _ *mcp.CallToolRequest, params PathsParams) (*mcp.CallToolResult, any, error) {
	mt, err := domain.ParseMessageType(params.MessageType)
	if err != nil {
		return s.createErrorResult("Invalid message type", err), nil, nil
	}
	if _, err := message.LayoutFor(mt); err != nil {
		return s.createErrorResult("Unsupported message type", err), nil, nil
	}

	paths := s.services.Paths.Paths(mt)
	var b strings.Builder
	for _, name := range fieldpath.SortedNames(paths) {
		fmt.Fprintf(&b, "%s = %s\n", name, paths[name])
	}
	return textResult(b.String()), nil, nil
}

// handleListTables handles the list_tables tool invocation
func (s *Server) handleListTables(ctx context.Context, _ *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	ids, err := s.services.Tables.ListTableIDs(ctx)
	if err != nil {
		return s.createErrorResult("Failed to list tables", err), nil, nil
	}
	return textResult(strings.Join(ids, "\n")), nil, nil
}

// handleGetTable handles the get_table tool invocation
func (s *Server) handleGetTable(ctx context.Context, _ *mcp.CallToolRequest, params TableParams) (*mcp.CallToolResult, any, error) {
	if params.TableID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("table_id is required")), nil, nil
	}
	table, err := s.services.Tables.GetTable(ctx, params.TableID)
	if err != nil {
		return s.createErrorResult("Table lookup failed", err), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Table %s: %s\n", table.ID, table.Name)
	for _, v := range table.Values {
		fmt.Fprintf(&b, "%s\t%s\n", v.Code, v.Text)
	}
	return textResult(b.String()), nil, nil
}

// handleListScenarios handles the list_scenarios tool invocation
func (s *Server) handleListScenarios(_ context.Context, _ *mcp.CallToolRequest, _ NoParams) (*mcp.CallToolResult, any, error) {
	var b strings.Builder
	for _, id := range s.services.Scenarios.IDs() {
		sc, err := s.services.Scenarios.Get(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s (weight %d): %s\n", sc.ID, sc.Weight, sc.Title)
	}
	return textResult(b.String()), nil, nil
}

// handleListSessions handles the list_sessions tool invocation
func (s *Server) handleListSessions(ctx context.Context, _ *mcp.CallToolRequest, params ListSessionsParams) (*mcp.CallToolResult, any, error) {
	sessions, total, err := s.services.Sessions.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return s.createErrorResult("Failed to list sessions", err), nil, nil
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode sessions", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		Meta:    map[string]any{"total": total},
	}, nil, nil
}

// handleCreateSession handles the create_session tool invocation
func (s *Server) handleCreateSession(ctx context.Context, _ *mcp.CallToolRequest, params CreateSessionParams) (*mcp.CallToolResult, any, error) {
	sess, err := s.services.Sessions.Create(ctx, params.Name, params.Description, params.Values)
	if err != nil {
		return s.createErrorResult("Failed to create session", err), nil, nil
	}
	return textResult(fmt.Sprintf("Created session %s with %d locked values", sess.Name, len(sess.Values))), nil, nil
}

// handleLockValue handles the lock_value tool invocation
func (s *Server) handleLockValue(ctx context.Context, _ *mcp.CallToolRequest, params LockValueParams) (*mcp.CallToolResult, any, error) {
	if err := s.services.Sessions.Lock(ctx, params.SessionName, params.Key, params.Value); err != nil {
		return s.createErrorResult("Failed to lock value", err), nil, nil
	}
	return textResult(fmt.Sprintf("Locked %s in session %s", params.Key, params.SessionName)), nil, nil
}

// handleUnlockValue handles the unlock_value tool invocation
func (s *Server) handleUnlockValue(ctx context.Context, _ *mcp.CallToolRequest, params UnlockValueParams) (*mcp.CallToolResult, any, error) {
	if err := s.services.Sessions.Unlock(ctx, params.SessionName, params.Key); err != nil {
		return s.createErrorResult("Failed to unlock value", err), nil, nil
	}
	return textResult(fmt.Sprintf("Unlocked %s in session %s", params.Key, params.SessionName)), nil, nil
}

// handleDeleteSession handles the delete_session tool invocation
func (s *Server) handleDeleteSession(ctx context.Context, _ *mcp.CallToolRequest, params SessionParams) (*mcp.CallToolResult, any, error) {
	if err := s.services.Sessions.Delete(ctx, params.SessionName); err != nil {
		return s.createErrorResult("Failed to delete session", err), nil, nil
	}
	return textResult("Deleted session " + params.SessionName), nil, nil
}

// createErrorResult reports a failure to the client without failing the call
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	s.logger.WithError(err).Warn(message)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)}},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// readable renders a message one segment per line; chat clients do not show
// bare carriage returns.
func readable(res *message.Result) string {
	return strings.Join(res.Segments, "\n")
}
