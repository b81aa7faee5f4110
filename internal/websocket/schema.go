package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing   Action = "ping"
	ActionTick   Action = "tick"
	ActionSubmit Action = "submit"
	ActionReview Action = "review"
	ActionFinish Action = "finish"
)

// Request carries every client action; unused fields stay empty.
type Request struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Choice string `json:"choice,omitempty"`
	Review bool   `json:"review,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventPong     Event = "pong"
	EventState    Event = "state"
	EventAnswer   Event = "answer"
	EventFinished Event = "finished"
	EventError    Event = "error"
)

// StateResponse is pushed after a tick or review with the live progress.
type StateResponse struct {
	Event          Event       `json:"event"`
	ElapsedSeconds int64       `json:"elapsed_seconds"`
	Summary        interface{} `json:"summary,omitempty"`
}

// AnswerResponse is pushed after a submit with the graded result.
type AnswerResponse struct {
	Event  Event       `json:"event"`
	Result interface{} `json:"result"`
}

// FinishedResponse is pushed once the session is completed.
type FinishedResponse struct {
	Event   Event       `json:"event"`
	Summary interface{} `json:"summary"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
