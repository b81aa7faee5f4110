package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/response"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/service"
	ws "github.com/barathRC/databricks-mcq-copilot-agent/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session interactions over a WebSocket, so the
// presentation layer can drive ticks, answers and review flags without one
// HTTP round trip per interaction.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// wsErrCode maps service errors onto the API error codes so WS clients can
// branch on the same identifiers as HTTP clients.
func wsErrCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, bank.ErrNotFound):
		return response.ErrBankNotFound
	case errors.Is(err, bank.ErrParse):
		return response.ErrBankParse
	case errors.Is(err, service.ErrSessionNotFound):
		return response.ErrSessionNotFound
	case errors.Is(err, service.ErrSessionCompleted):
		return response.ErrSessionCompleted
	case errors.Is(err, service.ErrInvalidQuestionID):
		return response.ErrInvalidQuestion
	case errors.Is(err, service.ErrInvalidChoice):
		return response.ErrInvalidChoice
	case errors.Is(err, service.ErrStoreWrite):
		return response.ErrStoreWrite
	default:
		return response.ErrInternal
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:username/:exam_code/stream
// Upgrades to WebSocket for live ticks, answers and review toggles.
func (h *WSHandler) SessionStream(c *gin.Context) {
	username := c.Param("username")
	examCode := c.Param("exam_code")
	if username == "" || examCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and exam_code are required"})
		return
	}

	ctx := c.Request.Context()

	// Require an existing session before upgrading; a stream over nothing
	// would only ever produce errors.
	if _, err := h.sessionService.Summary(ctx, username, examCode); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("username", username).
		Str("exam_code", examCode).
		Logger()

	wsLog.Info().Msg("Client connected")

	for {
		var msg ws.Request
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionTick:
			h.handleTick(conn, username, examCode)
		case ws.ActionSubmit:
			h.handleSubmit(conn, username, examCode, &msg)
		case ws.ActionReview:
			h.handleReview(conn, username, examCode, &msg)
		case ws.ActionFinish:
			h.handleFinish(conn, wsLog, username, examCode)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// handleTick advances the timer and pushes the live progress state.
func (h *WSHandler) handleTick(conn *websocket.Conn, username, examCode string) {
	ctx := context.Background()

	if _, err := h.sessionService.Tick(ctx, username, examCode); err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	report, err := h.sessionService.Summary(ctx, username, examCode)
	if err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	ws.WriteTyped(conn, ws.StateResponse{
		Event:          ws.EventState,
		ElapsedSeconds: report.ElapsedSeconds,
		Summary:        report.Summary,
	})
}

// handleSubmit records an answer and pushes the graded result.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, username, examCode string, msg *ws.Request) {
	if msg.QID == "" || msg.Choice == "" {
		ws.WriteError(conn, string(response.ErrInvalidPayload), "q_id and choice are required")
		return
	}

	result, err := h.sessionService.Submit(context.Background(), username, examCode, msg.QID, msg.Choice)
	if err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	ws.WriteTyped(conn, ws.AnswerResponse{Event: ws.EventAnswer, Result: result})
}

// handleReview toggles the review flag and pushes the updated state.
func (h *WSHandler) handleReview(conn *websocket.Conn, username, examCode string, msg *ws.Request) {
	if msg.QID == "" {
		ws.WriteError(conn, string(response.ErrInvalidPayload), "q_id is required")
		return
	}

	ctx := context.Background()
	if _, err := h.sessionService.ToggleReview(ctx, username, examCode, msg.QID, msg.Review); err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	report, err := h.sessionService.Summary(ctx, username, examCode)
	if err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	ws.WriteTyped(conn, ws.StateResponse{
		Event:          ws.EventState,
		ElapsedSeconds: report.ElapsedSeconds,
		Summary:        report.Summary,
	})
}

// handleFinish completes the session and pushes the final summary.
func (h *WSHandler) handleFinish(conn *websocket.Conn, wsLog zerolog.Logger, username, examCode string) {
	ctx := context.Background()

	if _, err := h.sessionService.Finish(ctx, username, examCode); err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	report, err := h.sessionService.Summary(ctx, username, examCode)
	if err != nil {
		ws.WriteError(conn, string(wsErrCode(err)), err.Error())
		return
	}

	wsLog.Info().
		Float64("percent", report.Summary.Percent).
		Int("correct", report.Summary.Correct).
		Msg("Session finished over stream")

	ws.WriteTyped(conn, ws.FinishedResponse{Event: ws.EventFinished, Summary: report})
}
