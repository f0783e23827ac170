package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/message"
)

// ContentTypeER7 is the media type of pipe-delimited HL7 v2 messages
const ContentTypeER7 = "x-application/hl7-v2+er7"

type messageResponse struct {
	*message.Result
	Message string `json:"message"`
}

type batchResponse struct {
	Seed       uint64            `json:"seed"`
	Count      int               `json:"count"`
	DurationMS int64             `json:"duration_ms"`
	Messages   []messageResponse `json:"messages"`
}

// wantsER7 reports whether the caller asked for raw messages instead of JSON
func wantsER7(c *gin.Context) bool {
	if c.Query("format") == "er7" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), ContentTypeER7)
}

// handleGenerate generates one message
func (s *Server) handleGenerate(c *gin.Context) {
	var req message.Request
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, "body", err)
			return
		}
	}

	res, err := s.services.Generator.Generate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("X-Message-Control-ID", res.ControlID)
	if wantsER7(c) {
		c.Data(http.StatusOK, ContentTypeER7, []byte(res.Message()))
		return
	}
	c.JSON(http.StatusOK, messageResponse{Result: res, Message: res.Message()})
}

// handleGenerateBatch generates several messages from one request
func (s *Server) handleGenerateBatch(c *gin.Context) {
	var req message.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body", err)
		return
	}

	batch, err := s.services.Generator.GenerateBatch(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if wantsER7(c) {
		var b strings.Builder
		for _, res := range batch.Results {
			b.WriteString(res.Message())
			b.WriteString("\n")
		}
		c.Data(http.StatusOK, ContentTypeER7, []byte(b.String()))
		return
	}

	out := batchResponse{
		Seed:       batch.Seed,
		Count:      len(batch.Results),
		DurationMS: batch.Duration.Milliseconds(),
		Messages:   make([]messageResponse, len(batch.Results)),
	}
	for i, res := range batch.Results {
		out.Messages[i] = messageResponse{Result: res, Message: res.Message()}
	}
	c.JSON(http.StatusOK, out)
}

// handleMessageTypes lists the supported message layouts
func (s *Server) handleMessageTypes(c *gin.Context) {
	types := message.SupportedTypes()
	layouts := make([]*message.Layout, 0, len(types))
	for _, mt := range types {
		if l, err := message.LayoutFor(mt); err == nil {
			layouts = append(layouts, l)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message_types": layouts})
}

// handlePaths lists the semantic paths usable as locked-value keys. The type
// parameter accepts "ADT_A01"; carets are awkward in URLs.
func (s *Server) handlePaths(c *gin.Context) {
	mt, err := domain.ParseMessageType(c.Param("type"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := message.LayoutFor(mt); err != nil {
		s.respondError(c, err)
		return
	}

	paths := fieldpath.New(fieldpath.WithSegments(message.SegmentsFor))
	if s.services.Paths != nil {
		paths = s.services.Paths
	}

	available := paths.Paths(mt)
	entries := make([]gin.H, 0, len(available))
	for _, name := range fieldpath.SortedNames(available) {
		entries = append(entries, gin.H{"path": name, "field": available[name]})
	}
	c.JSON(http.StatusOK, gin.H{"message_type": mt, "paths": entries})
}

// handleListTables lists the available HL7 table IDs
func (s *Server) handleListTables(c *gin.Context) {
	ids, err := s.services.Tables.ListTableIDs(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": ids, "count": len(ids)})
}

// handleGetTable returns one HL7 table
func (s *Server) handleGetTable(c *gin.Context) {
	table, err := s.services.Tables.GetTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// handleListScenarios lists the clinical cases
func (s *Server) handleListScenarios(c *gin.Context) {
	ids := s.services.Scenarios.IDs()
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		sc, err := s.services.Scenarios.Get(id)
		if err != nil {
			continue
		}
		out = append(out, gin.H{"id": sc.ID, "title": sc.Title, "weight": sc.Weight})
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": out})
}

// handleGetScenario returns one clinical case with its concepts
func (s *Server) handleGetScenario(c *gin.Context) {
	sc, err := s.services.Scenarios.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// handleStats reports generator and resolver counters
func (s *Server) handleStats(c *gin.Context) {
	out := gin.H{"generator": s.services.Generator.GetStats()}
	if s.services.Resolver != nil {
		out["resolver"] = s.services.Resolver.GetStats()
	}
	c.JSON(http.StatusOK, out)
}

// handleResetStats clears the resolver counters
func (s *Server) handleResetStats(c *gin.Context) {
	if s.services.Resolver != nil {
		s.services.Resolver.ResetStats()
	}
	c.Status(http.StatusNoContent)
}
