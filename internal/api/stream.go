package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/message"
	"github.com/hl7-synth-server/internal/middleware"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // no cookies or credentials are involved
	},
}

// streamFrame is one websocket message of a generation stream. Exactly one
// of Message, Done and Error is set.
type streamFrame struct {
	Index   int              `json:"index"`
	Message *messageResponse `json:"message,omitempty"`
	Done    bool             `json:"done,omitempty"`
	Seed    uint64           `json:"seed,omitempty"`
	Count   int              `json:"count,omitempty"`
	Error   *domain.APIError `json:"error,omitempty"`
}

// handleStream upgrades to a websocket, reads one batch request and sends
// every message as soon as it is generated.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the handshake error
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	correlationID := c.GetString(middleware.CorrelationKey)
	send := func(f streamFrame) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(f)
	}

	var req message.BatchRequest
	if err := conn.ReadJSON(&req); err != nil {
		send(streamFrame{Error: domain.NewAPIError(domain.ErrCodeValidation, "invalid stream request: "+err.Error(), "body", correlationID)})
		return
	}

	sent := 0
	seed, err := s.services.Generator.Stream(c.Request.Context(), req, func(i int, res *message.Result) error {
		sent++
		return send(streamFrame{Index: i, Message: &messageResponse{Result: res, Message: res.Message()}})
	})
	if err != nil {
		_, code, details := classify(err)
		send(streamFrame{Index: sent, Error: domain.NewAPIError(code, err.Error(), details, correlationID)})
		return
	}

	send(streamFrame{Index: sent, Done: true, Seed: seed, Count: sent})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
}
