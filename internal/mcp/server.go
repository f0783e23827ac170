// Package mcp exposes message generation and override sessions as Model
// Context Protocol tools, so an assistant can request synthetic HL7 traffic.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/message"
	"github.com/hl7-synth-server/internal/scenario"
	"github.com/hl7-synth-server/internal/session"
)

// ServerName and ServerVersion identify the server during the MCP handshake
const (
	ServerName    = "hl7-synth-server"
	ServerVersion = "v1.0.0"
)

// TableCatalog serves HL7 standards tables
type TableCatalog interface {
	domain.TableProvider
	ListTableIDs(ctx context.Context) ([]string, error)
}

// Services are the collaborators behind the tools. Generator is required; a
// nil collaborator leaves its tools unregistered.
type Services struct {
	Generator *message.Generator
	Sessions  *session.Service
	Tables    TableCatalog
	Paths     *fieldpath.Resolver
	Scenarios *scenario.Coordinator
}

// Server wraps an MCP SDK server with the generation tools registered
type Server struct {
	services  Services
	mcpServer *mcp.Server
	tools     []string
	logger    *logrus.Logger
}

// NewServer creates the MCP server and registers every tool its services
// support.
func NewServer(services Services, logger *logrus.Logger) (*Server, error) {
	if services.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if services.Paths == nil {
		services.Paths = fieldpath.New(fieldpath.WithSegments(message.SegmentsFor))
	}

	s := &Server{
		services: services,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		}, nil),
		logger: logger,
	}
	s.registerTools()

	logger.WithField("tool_count", len(s.tools)).Info("MCP tools registered")
	return s, nil
}

// Tools lists the registered tool names in registration order
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Run serves MCP requests over t until ctx is cancelled or the client leaves
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// ServeStdio serves MCP requests on stdin and stdout
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// addTool registers one typed tool and records its name
func addTool[In any](s *Server, name, description string, h mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: name, Description: description}, h)
	s.tools = append(s.tools, name)
	s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
}

func (s *Server) registerTools() {
	addTool(s, "generate_message", "Generate one synthetic HL7 v2 message. A seed makes the message reproducible.", s.handleGenerate)
	addTool(s, "generate_batch", "Generate several HL7 v2 messages of one type from a single batch seed.", s.handleGenerateBatch)
	addTool(s, "list_message_types", "List the supported HL7 v2 message types and their segment layouts.", s.handleMessageTypes)
	addTool(s, "list_field_paths", "List semantic field names such as patient.mrn usable as locked-value keys.", s.handlePaths)

	if s.services.Tables != nil {
		addTool(s, "list_tables", "List the HL7 standards table IDs.", s.handleListTables)
		addTool(s, "get_table", "Return the codes of one HL7 standards table.", s.handleGetTable)
	}
	if s.services.Scenarios != nil {
		addTool(s, "list_scenarios", "List the clinical scenarios messages can be built around.", s.handleListScenarios)
	}
	if s.services.Sessions != nil {
		addTool(s, "list_sessions", "List override sessions and their locked values.", s.handleListSessions)
		addTool(s, "create_session", "Create an override session whose values are used in every message that names it.", s.handleCreateSession)
		addTool(s, "lock_value", "Lock one field value in an override session.", s.handleLockValue)
		addTool(s, "unlock_value", "Remove one locked value from an override session.", s.handleUnlockValue)
		addTool(s, "delete_session", "Delete an override session.", s.handleDeleteSession)
	}
}
