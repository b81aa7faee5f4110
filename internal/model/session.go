package model

import (
	"time"
)

// Response records the state of a single question within a session.
// Choice and Correct are only ever set together by a submit; Review is
// toggled independently at any time.
type Response struct {
	Choice  string `json:"choice,omitempty"`
	Correct *bool  `json:"correct,omitempty"`
	Review  bool   `json:"review"`
}

// Answered reports whether the question has been submitted at least once.
func (r *Response) Answered() bool {
	return r.Choice != ""
}

// Session is the full mutable state of one user's attempt at one exam.
// It serializes verbatim into the persisted-state document, so field tags
// must stay stable across releases.
type Session struct {
	Username       string               `json:"username"`
	ExamCode       string               `json:"exam_code"`
	ExamLabel      string               `json:"exam_label"`
	QuestionOrder  []string             `json:"question_order"`
	Responses      map[string]*Response `json:"responses"`
	ElapsedSeconds int64                `json:"elapsed_seconds"`
	Completed      bool                 `json:"completed"`
	StartedAt      time.Time            `json:"started_at"`
}

// Response returns the response record for a question ID, or nil if the
// question is not part of this session.
func (s *Session) Response(questionID string) *Response {
	return s.Responses[questionID]
}

// Summary is the derived score of a session, recomputable at any time.
type Summary struct {
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Percent   float64 `json:"percent"`
}

// StartSessionRequest is the payload for starting a new test.
type StartSessionRequest struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
	ExamCode string `json:"exam_code" binding:"required,min=1,max=50"`
	Shuffle  *bool  `json:"shuffle" binding:"omitempty"`
}

// SubmitAnswerRequest is the payload for submitting an answer.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,min=1"`
	Choice     string `json:"choice" binding:"required,min=1,max=10"`
}

// ToggleReviewRequest is the payload for flagging a question for review.
type ToggleReviewRequest struct {
	QuestionID string `json:"question_id" binding:"required,min=1"`
	Review     *bool  `json:"review" binding:"required"`
}
