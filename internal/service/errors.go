package service

import "errors"

// Domain Errors
var (
	// ErrEmptyQuestionSet means an exam resolved to zero questions. The user
	// can recover by picking a different exam.
	ErrEmptyQuestionSet = errors.New("no questions found for exam")

	// ErrSessionNotFound means there is no saved or active session for the
	// (username, exam code) pair.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCompleted means a mutation was attempted on a finished
	// session. Completed sessions are read-only except for re-finishing.
	ErrSessionCompleted = errors.New("session is already completed")

	// ErrInvalidQuestionID means the question is not part of the session.
	// The presentation layer should never produce this.
	ErrInvalidQuestionID = errors.New("question is not part of this session")

	// ErrInvalidChoice means the submitted letter is not a choice of the
	// question. The presentation layer should never produce this.
	ErrInvalidChoice = errors.New("choice is not an option for this question")

	// ErrIndexOutOfRange means a navigation index fell outside the
	// session's question order.
	ErrIndexOutOfRange = errors.New("question index out of range")

	// ErrStoreWrite means the durable copy could not be updated. The
	// in-memory session is still valid, but progress may not survive a
	// restart.
	ErrStoreWrite = errors.New("store write failed")
)
