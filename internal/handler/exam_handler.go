package handler

import (
	"net/http"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/response"
	"github.com/gin-gonic/gin"
)

// ExamHandler serves the exam catalog.
type ExamHandler struct {
	loader *bank.Loader
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(loader *bank.Loader) *ExamHandler {
	return &ExamHandler{loader: loader}
}

// ListExams godoc
// GET /api/v1/exams
// Returns the configured exams with labels and question counts.
func (h *ExamHandler) ListExams(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"exams": h.loader.Catalog()})
}
