package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/message"
	"github.com/hl7-synth-server/internal/refdata"
	"github.com/hl7-synth-server/internal/resolver"
	"github.com/hl7-synth-server/internal/scenario"
	"github.com/hl7-synth-server/internal/session"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := quietLogger()

	store, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	sessions := session.NewService(store, 0, logger)
	t.Cleanup(func() { sessions.Close() })

	ref, err := refdata.Open(context.Background(), domain.ReferenceDBConfig{}, logger)
	require.NoError(t, err)
	coordinator := scenario.NewBuiltinCoordinator()
	paths := fieldpath.New(fieldpath.WithSegments(message.SegmentsFor))

	deps := resolver.DependenciesFrom(ref)
	deps.Schemas = domain.StandardSchemas()
	deps.Sessions = sessions
	deps.Paths = paths
	deps.Scenarios = coordinator
	regs := append(resolver.DefaultRegistrations(logger, deps),
		message.NewHeaderResolver(message.HeaderFrom(domain.GenerationConfig{})).Registration())

	generator := message.NewGenerator(resolver.NewOrchestrator(logger, deps.Schemas, regs...),
		domain.GenerationConfig{Workers: 2, MaxBatchSize: 10}, logger,
		message.WithScenarios(coordinator),
		message.WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }))

	s, err := NewServer(Services{
		Generator: generator,
		Sessions:  sessions,
		Tables:    ref,
		Paths:     paths,
		Scenarios: coordinator,
	}, logger)
	require.NoError(t, err)
	return s
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	var parts []string
	for _, c := range res.Content {
		tc, ok := c.(*mcp.TextContent)
		require.True(t, ok)
		parts = append(parts, tc.Text)
	}
	return strings.Join(parts, "\n---\n")
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, []string{
		"generate_message", "generate_batch", "list_message_types", "list_field_paths",
		"list_tables", "get_table", "list_scenarios",
		"list_sessions", "create_session", "lock_value", "unlock_value", "delete_session",
	}, s.Tools())

	_, err := NewServer(Services{}, quietLogger())
	assert.Error(t, err)
}

func TestNewServer_OptionalTools(t *testing.T) {
	full := newTestServer(t)

	s, err := NewServer(Services{Generator: full.services.Generator}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"generate_message", "generate_batch", "list_message_types", "list_field_paths"}, s.Tools())
}

func TestGenerateMessage(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, _, err := s.handleGenerate(ctx, nil, GenerateParams{MessageType: "ADT_A01", Seed: 21})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	out := text(t, res)
	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "MSH|^~\\&|"))
	assert.True(t, strings.HasPrefix(lines[1], "EVN|"))
	assert.NotContains(t, out, "\r")

	again, _, err := s.handleGenerate(ctx, nil, GenerateParams{MessageType: "ADT^A01", Seed: 21})
	require.NoError(t, err)
	assert.Equal(t, out, text(t, again))

	res, _, err = s.handleGenerate(ctx, nil, GenerateParams{MessageType: "NOPE"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Generation failed")
}

func TestGenerateBatch(t *testing.T) {
	s := newTestServer(t)

	res, _, err := s.handleGenerateBatch(context.Background(), nil, GenerateBatchParams{MessageType: "ORU^R01", Seed: 4, Count: 3})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 3)
	assert.EqualValues(t, 3, res.Meta["count"])

	res, _, err = s.handleGenerateBatch(context.Background(), nil, GenerateBatchParams{Count: 11})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCatalogTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, _, err := s.handleMessageTypes(ctx, nil, NoParams{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "ADT^A01 (ADT_A01): MSH EVN PID")

	res, _, err = s.handlePaths(ctx, nil, PathsParams{MessageType: "ADT_A01"})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "patient.mrn = PID.3")

	res, _, err = s.handlePaths(ctx, nil, PathsParams{MessageType: "bogus"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleListTables(ctx, nil, NoParams{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "0001")

	res, _, err = s.handleGetTable(ctx, nil, TableParams{TableID: "0001"})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Table 0001: Administrative Sex")

	res, _, err = s.handleGetTable(ctx, nil, TableParams{})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleListScenarios(ctx, nil, NoParams{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "diabetes_management")
}

func TestSessionTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, _, err := s.handleCreateSession(ctx, nil, CreateSessionParams{Name: "demo", Values: map[string]string{"PID.5": "DOE^JANE"}})
	require.NoError(t, err)
	assert.Equal(t, "Created session demo with 1 locked values", text(t, res))

	res, _, err = s.handleCreateSession(ctx, nil, CreateSessionParams{Name: "demo"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleLockValue(ctx, nil, LockValueParams{SessionName: "demo", Key: "PID.8", Value: "F"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	gen, _, err := s.handleGenerate(ctx, nil, GenerateParams{Seed: 5, SessionName: "demo"})
	require.NoError(t, err)
	assert.Contains(t, text(t, gen), "|DOE^JANE|")

	res, _, err = s.handleUnlockValue(ctx, nil, UnlockValueParams{SessionName: "demo", Key: "PID.8"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, _, err = s.handleListSessions(ctx, nil, ListSessionsParams{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"name": "demo"`)
	assert.NotContains(t, text(t, res), "PID.8")
	assert.EqualValues(t, 1, res.Meta["total"])

	res, _, err = s.handleDeleteSession(ctx, nil, SessionParams{SessionName: "demo"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, _, err = s.handleLockValue(ctx, nil, LockValueParams{SessionName: "demo", Key: "PID.8", Value: "M"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
