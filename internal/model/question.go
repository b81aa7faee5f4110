package model

import "fmt"

// Explanation holds the rationale shown after a question is answered.
type Explanation struct {
	// Correct explains why the correct answer is correct.
	Correct string `json:"correct"`
	// Options explains, per choice letter, why that option is right or wrong.
	Options map[string]string `json:"options"`
}

// QuestionRecord is a single immutable question from a question bank file.
type QuestionRecord struct {
	QuestionID    string            `json:"question_id"`
	Domain        string            `json:"domain"`
	Difficulty    string            `json:"difficulty"`
	QuestionText  string            `json:"question_text"`
	Choices       map[string]string `json:"choices"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   Explanation       `json:"explanation"`
}

// Validate checks the structural invariants of a question record.
// A record that fails validation makes the whole bank unloadable.
func (q *QuestionRecord) Validate() error {
	if q.QuestionID == "" {
		return fmt.Errorf("question is missing question_id")
	}
	if q.QuestionText == "" {
		return fmt.Errorf("question %s: missing question_text", q.QuestionID)
	}
	if len(q.Choices) == 0 {
		return fmt.Errorf("question %s: no choices", q.QuestionID)
	}
	if q.CorrectAnswer == "" {
		return fmt.Errorf("question %s: missing correct_answer", q.QuestionID)
	}
	if _, ok := q.Choices[q.CorrectAnswer]; !ok {
		return fmt.Errorf("question %s: correct_answer %q is not a choice", q.QuestionID, q.CorrectAnswer)
	}
	return nil
}

// MissingExplanations returns the choice letters that have no entry in
// Explanation.Options. These are data-quality defects, not load failures.
func (q *QuestionRecord) MissingExplanations() []string {
	var missing []string
	for letter := range q.Choices {
		if _, ok := q.Explanation.Options[letter]; !ok {
			missing = append(missing, letter)
		}
	}
	return missing
}

// ExamInfo describes one entry in the exam catalog.
type ExamInfo struct {
	ExamCode      string `json:"exam_code"`
	ExamLabel     string `json:"exam_label"`
	QuestionCount int    `json:"question_count"`
}
