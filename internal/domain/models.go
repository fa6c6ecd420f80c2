package domain

import "time"

// Question is an MCQ item produced by the ingestion parser. Immutable once
// stored; CorrectAnswer always equals one of Options.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Category      string   `json:"category"`
	Topic         string   `json:"topic"`
	Level         string   `json:"level"`
}

// QuestionView is the answer-stripped shape handed to participants. Correct
// answers never leave the service on a read path.
type QuestionView struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// View strips the correct answer and explanation.
func (q Question) View() QuestionView {
	return QuestionView{Text: q.Text, Options: q.Options}
}

// QuestionSet is a fixed, ordered bundle of questions with a time limit.
// Question order is the contract for index-aligned answer arrays, so it is
// never reshuffled server-side.
type QuestionSet struct {
	ID               string     `json:"id"`
	EventID          string     `json:"eventId"`
	Name             string     `json:"name"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	Active           bool       `json:"active"`
	Questions        []Question `json:"questions"`
}

// ForceSubmitReason distinguishes boundary-triggered submissions.
type ForceSubmitReason string

const (
	ForceTimeout   ForceSubmitReason = "timeout"
	ForceTabSwitch ForceSubmitReason = "tab-switch"
)

// SessionAttempt is one participant's timed run through one set.
// Deadline is fixed at start time and is the sole authority for expiry.
// CompletedAt == nil means the attempt is open; once set it is terminal.
type SessionAttempt struct {
	ID            string
	ParticipantID string
	SetID         string
	StartedAt     time.Time
	Deadline      time.Time
	CompletedAt   *time.Time

	Answers          []string
	Score            int
	CorrectCount     int
	WrongCount       int
	SkippedCount     int
	Percentage       int
	TimeTakenSeconds int
	SubmitReason     ForceSubmitReason // empty for an explicit submit
}

// Open reports whether the attempt can still accept a submission.
func (a *SessionAttempt) Open() bool {
	return a.CompletedAt == nil
}

// QuestionResult is one row of a scored submission.
type QuestionResult struct {
	Question       string   `json:"question"`
	SelectedAnswer string   `json:"selectedAnswer,omitempty"`
	CorrectAnswer  string   `json:"correctAnswer"`
	IsCorrect      bool     `json:"isCorrect"`
	Skipped        bool     `json:"skipped"`
	Explanation    string   `json:"explanation,omitempty"`
	TimeSpent      *float64 `json:"timeSpent"`
}

// ScoreResult summarizes a completed attempt.
type ScoreResult struct {
	Score          int              `json:"score"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctAnswers"`
	WrongCount     int              `json:"wrongAnswers"`
	SkippedCount   int              `json:"skipped"`
	Percentage     int              `json:"percentage"`
	Results        []QuestionResult `json:"results"`
}
