package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hl7-synth-server/internal/domain"
)

type createSessionRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Values      map[string]string `json:"values"`
}

type lockValueRequest struct {
	Value string `json:"value"`
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return n, nil
}

// handleListSessions returns a page of override sessions
func (s *Server) handleListSessions(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sessions, total, err := s.services.Sessions.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": total, "limit": limit, "offset": offset})
}

// handleCreateSession stores a new override session
func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body", err)
		return
	}

	sess, err := s.services.Sessions.Create(c.Request.Context(), req.Name, req.Description, req.Values)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// handleGetSession returns one override session
func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.services.Sessions.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleDeleteSession removes an override session
func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.services.Sessions.Delete(c.Request.Context(), c.Param("name")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleLockValue locks one field value in a session
func (s *Server) handleLockValue(c *gin.Context) {
	var req lockValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body", err)
		return
	}

	name, key := c.Param("name"), c.Param("key")
	if err := s.services.Sessions.Lock(c.Request.Context(), name, key, req.Value); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleUnlockValue removes one locked value
func (s *Server) handleUnlockValue(c *gin.Context) {
	if err := s.services.Sessions.Unlock(c.Request.Context(), c.Param("name"), c.Param("key")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleExportSessions downloads every session as one JSON document
func (s *Server) handleExportSessions(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.services.Sessions.Export(c.Request.Context(), &buf); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="override-sessions.json"`)
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

// handleImportSessions loads an exported document, skipping existing names
func (s *Server) handleImportSessions(c *gin.Context) {
	imported, skipped, err := s.services.Sessions.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}
