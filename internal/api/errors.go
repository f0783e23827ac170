package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/middleware"
	"github.com/hl7-synth-server/internal/session"
)

// classify maps an error to its status code, error code and details
func classify(err error) (int, string, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, domain.ErrCodeValidation, ve.Field
	case errors.Is(err, domain.ErrInvalidMessageType), errors.Is(err, domain.ErrInvalidPath):
		return http.StatusBadRequest, domain.ErrCodeInvalidInput, ""
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound, ""
	case errors.Is(err, session.ErrSessionExists):
		return http.StatusConflict, domain.ErrCodeValidation, ""
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrCodeGeneration, ""
	case errors.Is(err, domain.ErrTableUnavailable):
		return http.StatusBadGateway, domain.ErrCodeExternalAPI, ""
	}
	return http.StatusInternalServerError, domain.ErrCodeInternalServer, ""
}

// respondError writes err as a domain.APIError
func (s *Server) respondError(c *gin.Context, err error) {
	status, code, details := classify(err)

	correlationID := c.GetString(middleware.CorrelationKey)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"path":           c.FullPath(),
		}).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, err.Error(), details, correlationID))
}

// badRequest reports a malformed request body or parameter
func (s *Server) badRequest(c *gin.Context, field string, err error) {
	s.respondError(c, domain.NewValidationError(field, err.Error(), nil))
}
