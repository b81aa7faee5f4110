package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/model"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/response"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/service"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/validator"
	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the session lifecycle to the presentation layer:
// start, resume, navigation, answers, review flags, timer ticks, finish and
// the scored summary.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// sessionParams are the path parameters identifying one session.
type sessionParams struct {
	Username string `uri:"username" binding:"required,min=1,max=100"`
	ExamCode string `uri:"exam_code" binding:"required,min=1,max=50"`
}

// failSession translates service and bank errors into typed API failures.
func failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bank.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrBankNotFound)
	case errors.Is(err, bank.ErrParse):
		response.Fail(c, http.StatusInternalServerError, response.ErrBankParse)
	case errors.Is(err, service.ErrEmptyQuestionSet):
		response.Fail(c, http.StatusBadRequest, response.ErrEmptyQuestion)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	case errors.Is(err, service.ErrInvalidQuestionID):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidQuestion)
	case errors.Is(err, service.ErrInvalidChoice):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidChoice)
	case errors.Is(err, service.ErrIndexOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)
	case errors.Is(err, service.ErrStoreWrite):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreWrite)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartSession godoc
// POST /api/v1/sessions
// Starts a new test, replacing any saved session for the same user and exam.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// Shuffle defaults to on, matching the exam-day experience.
	shuffle := true
	if req.Shuffle != nil {
		shuffle = *req.Shuffle
	}

	session, err := h.sessionService.Start(c.Request.Context(), req.Username, req.ExamCode, shuffle)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// ResumeSession godoc
// GET /api/v1/sessions/:username/:exam_code
// Restores the saved session for this user and exam.
func (h *SessionHandler) ResumeSession(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Resume(c.Request.Context(), params.Username, params.ExamCode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// ListQuestions godoc
// GET /api/v1/sessions/:username/:exam_code/questions
// Returns the navigator: every question in order with answered/review state.
func (h *SessionHandler) ListQuestions(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	items, err := h.sessionService.Navigator(c.Request.Context(), params.Username, params.ExamCode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": items})
}

// GetQuestion godoc
// GET /api/v1/sessions/:username/:exam_code/questions/:index
// Returns the question at a zero-based position of the session's order. The
// answer key stays hidden until the question is submitted.
func (h *SessionHandler) GetQuestion(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)
		return
	}

	view, err := h.sessionService.Question(c.Request.Context(), params.Username, params.ExamCode, index)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": view})
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:username/:exam_code/answers
// Records an answer and returns the graded result with its explanation.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), params.Username, params.ExamCode, req.QuestionID, req.Choice)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ToggleReview godoc
// POST /api/v1/sessions/:username/:exam_code/review
// Sets or clears the review flag on a question.
func (h *SessionHandler) ToggleReview(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var req model.ToggleReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.sessionService.ToggleReview(c.Request.Context(), params.Username, params.ExamCode, req.QuestionID, *req.Review)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "response": resp})
}

// Tick godoc
// POST /api/v1/sessions/:username/:exam_code/tick
// Accumulates active time since the previous tick. The presentation layer
// calls this on every interaction cycle.
func (h *SessionHandler) Tick(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	elapsed, err := h.sessionService.Tick(c.Request.Context(), params.Username, params.ExamCode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"elapsed_seconds": elapsed})
}

// FinishSession godoc
// POST /api/v1/sessions/:username/:exam_code/finish
// Marks the session completed and returns the final summary. Idempotent.
func (h *SessionHandler) FinishSession(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.sessionService.Finish(c.Request.Context(), params.Username, params.ExamCode); err != nil {
		failSession(c, err)
		return
	}

	report, err := h.sessionService.Summary(c.Request.Context(), params.Username, params.ExamCode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// GetSummary godoc
// GET /api/v1/sessions/:username/:exam_code/summary
// Returns the current score, recomputable at any point of the session.
func (h *SessionHandler) GetSummary(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	report, err := h.sessionService.Summary(c.Request.Context(), params.Username, params.ExamCode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// GetFeedback godoc
// GET /api/v1/sessions/:username/:exam_code/feedback
// Returns the detailed per-question breakdown with answer keys and
// explanations.
func (h *SessionHandler) GetFeedback(c *gin.Context) {
	var params sessionParams
	if fields := validator.BindURI(c, &params); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	report, err := h.sessionService.Feedback(c.Request.Context(), params.Username, params.ExamCode)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}
