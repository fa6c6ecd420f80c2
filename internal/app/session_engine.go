package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/scoring"
)

// SetRepository provides question-set content and the activation toggle.
// GetSet returns set metadata including the Active flag; GetQuestions fails
// with domain.ErrNoQuestions when the set holds none. ToggleActive(enable)
// must atomically deactivate sibling sets under the same event so at most
// one is active at a time.
type SetRepository interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
	GetQuestions(ctx context.Context, setID string) ([]domain.Question, error)
	ToggleActive(ctx context.Context, setID string, enable bool) error
}

// AttemptRepository persists session attempts. It must enforce the invariant
// of at most one open attempt per (participant, set): CreateOpen returns
// domain.ErrAttemptConflict when one already exists, and CompleteOpen is an
// atomic complete-if-still-open returning domain.ErrAttemptNotOpen otherwise.
type AttemptRepository interface {
	FindOpen(ctx context.Context, participantID, setID string) (*domain.SessionAttempt, error)
	CreateOpen(ctx context.Context, attempt *domain.SessionAttempt) error
	CompleteOpen(ctx context.Context, attempt *domain.SessionAttempt) error
	ListCompleted(ctx context.Context, participantID string, limit int) ([]domain.SessionAttempt, error)
}

// SessionEngine owns the attempt lifecycle: NOT_STARTED -> OPEN -> COMPLETED,
// with COMPLETED terminal. Expiry is detected lazily on the next call that
// consults the deadline; no background scheduler runs here.
type SessionEngine struct {
	sets     SetRepository
	attempts AttemptRepository
	now      func() time.Time
	newID    func() string
}

func NewSessionEngine(sets SetRepository, attempts AttemptRepository) *SessionEngine {
	return NewSessionEngineWithClock(sets, attempts, time.Now)
}

// NewSessionEngineWithClock allows deterministic timestamps in tests.
func NewSessionEngineWithClock(sets SetRepository, attempts AttemptRepository, now func() time.Time) *SessionEngine {
	return &SessionEngine{
		sets:     sets,
		attempts: attempts,
		now:      now,
		newID:    uuid.NewString,
	}
}

// StartResult is the answer-stripped response to a start (or resume) call.
type StartResult struct {
	Message              string                `json:"message"`
	Resumed              bool                  `json:"resumed"`
	TimeLimitMinutes     int                   `json:"timeLimit"`
	TimeRemainingSeconds int                   `json:"timeRemaining"`
	Deadline             time.Time             `json:"autoSubmitAt"`
	Questions            []domain.QuestionView `json:"questions"`
}

// TimeStatus reports how much of an open attempt's window remains.
type TimeStatus struct {
	RemainingSeconds int       `json:"remainingSeconds"`
	Deadline         time.Time `json:"autoSubmitAt"`
	TimeUp           bool      `json:"timeUp"`
}

// SubmitResult is a scored, terminal attempt.
type SubmitResult struct {
	domain.ScoreResult
	TimeTakenSeconds int       `json:"timeTaken"`
	CompletedAt      time.Time `json:"completedAt"`
}

// Start begins a fresh attempt or resumes the open one. Resuming keeps the
// original deadline; the remaining window only ever shrinks. Two concurrent
// starts for the same pair converge on a single attempt: the loser of the
// insert race reloads and resumes the winner's.
func (e *SessionEngine) Start(ctx context.Context, participantID, setID string) (StartResult, error) {
	set, err := e.sets.GetSet(ctx, setID)
	if err != nil {
		return StartResult{}, err
	}
	if !set.Active {
		return StartResult{}, domain.ErrSetInactive
	}
	questions, err := e.sets.GetQuestions(ctx, setID)
	if err != nil {
		return StartResult{}, err
	}

	open, err := e.attempts.FindOpen(ctx, participantID, setID)
	if err != nil {
		return StartResult{}, err
	}
	if open != nil {
		return e.resume(open, set, questions), nil
	}

	// Completed attempts stay as history. Stale non-terminal leftovers for
	// this pair cannot exist past this point: the store's uniqueness
	// constraint on open attempts is the purge, and a separate delete step
	// here would race two concurrent starts into deleting each other's
	// fresh attempt.
	now := e.now()
	attempt := &domain.SessionAttempt{
		ID:            e.newID(),
		ParticipantID: participantID,
		SetID:         setID,
		StartedAt:     now,
		Deadline:      now.Add(time.Duration(set.TimeLimitMinutes) * time.Minute),
	}
	if err := e.attempts.CreateOpen(ctx, attempt); err != nil {
		if err == domain.ErrAttemptConflict {
			winner, ferr := e.attempts.FindOpen(ctx, participantID, setID)
			if ferr != nil {
				return StartResult{}, ferr
			}
			if winner != nil {
				return e.resume(winner, set, questions), nil
			}
		}
		return StartResult{}, err
	}

	return StartResult{
		Message:              "Set started successfully",
		TimeLimitMinutes:     set.TimeLimitMinutes,
		TimeRemainingSeconds: set.TimeLimitMinutes * 60,
		Deadline:             attempt.Deadline,
		Questions:            stripAnswers(questions),
	}, nil
}

func (e *SessionEngine) resume(attempt *domain.SessionAttempt, set domain.QuestionSet, questions []domain.Question) StartResult {
	return StartResult{
		Message:              "Resuming existing session",
		Resumed:              true,
		TimeLimitMinutes:     set.TimeLimitMinutes,
		TimeRemainingSeconds: remainingSeconds(attempt.Deadline, e.now()),
		Deadline:             attempt.Deadline,
		Questions:            stripAnswers(questions),
	}
}

// CheckTime is a pure read against the fixed deadline. Callers interpret
// TimeUp to trigger a force submit; the engine does not self-trigger.
func (e *SessionEngine) CheckTime(ctx context.Context, participantID, setID string) (TimeStatus, error) {
	attempt, err := e.attempts.FindOpen(ctx, participantID, setID)
	if err != nil {
		return TimeStatus{}, err
	}
	if attempt == nil {
		return TimeStatus{}, domain.ErrNoOpenAttempt
	}
	remaining := remainingSeconds(attempt.Deadline, e.now())
	return TimeStatus{
		RemainingSeconds: remaining,
		Deadline:         attempt.Deadline,
		TimeUp:           remaining == 0,
	}, nil
}

// Submit grades the open attempt and makes it terminal. Client-reported
// timeTaken is trusted for display only; scoring runs against the stored
// question list, never client-supplied data. A second submit for the same
// attempt fails with domain.ErrAttemptNotOpen and leaves the stored result
// untouched.
func (e *SessionEngine) Submit(ctx context.Context, participantID, setID string, answers []string, timeTaken *int, timings []*float64) (SubmitResult, error) {
	return e.submit(ctx, participantID, setID, answers, timeTaken, timings, "")
}

// ForceSubmit closes an attempt on behalf of the boundary layer after a
// timeout or client-detected tab switch. Timeout submissions record the full
// window as time taken; tab-switch submissions trust the reported elapsed
// time. Calling it on an already-completed attempt fails with
// domain.ErrAttemptNotOpen without corrupting state — the boundary decides
// whether to swallow that.
func (e *SessionEngine) ForceSubmit(ctx context.Context, participantID, setID string, reason domain.ForceSubmitReason, elapsedSeconds *int) (SubmitResult, error) {
	timeTaken := elapsedSeconds
	if reason == domain.ForceTimeout || timeTaken == nil {
		set, err := e.sets.GetSet(ctx, setID)
		if err != nil {
			return SubmitResult{}, err
		}
		full := set.TimeLimitMinutes * 60
		timeTaken = &full
	}
	return e.submit(ctx, participantID, setID, nil, timeTaken, nil, reason)
}

func (e *SessionEngine) submit(ctx context.Context, participantID, setID string, answers []string, timeTaken *int, timings []*float64, reason domain.ForceSubmitReason) (SubmitResult, error) {
	attempt, err := e.attempts.FindOpen(ctx, participantID, setID)
	if err != nil {
		return SubmitResult{}, err
	}
	if attempt == nil {
		return SubmitResult{}, domain.ErrAttemptNotOpen
	}
	if attempt.ParticipantID != participantID {
		return SubmitResult{}, domain.ErrUnauthorized
	}

	questions, err := e.sets.GetQuestions(ctx, setID)
	if err != nil {
		return SubmitResult{}, err
	}

	now := e.now()
	actualTimeTaken := int(now.Sub(attempt.StartedAt) / time.Second)
	if timeTaken != nil {
		actualTimeTaken = *timeTaken
	}

	result := scoring.Score(questions, answers, timings)

	attempt.Answers = answers
	attempt.Score = result.Score
	attempt.CorrectCount = result.CorrectCount
	attempt.WrongCount = result.WrongCount
	attempt.SkippedCount = result.SkippedCount
	attempt.Percentage = result.Percentage
	attempt.TimeTakenSeconds = actualTimeTaken
	attempt.SubmitReason = reason
	attempt.CompletedAt = &now

	if err := e.attempts.CompleteOpen(ctx, attempt); err != nil {
		return SubmitResult{}, err
	}

	return SubmitResult{
		ScoreResult:      result,
		TimeTakenSeconds: actualTimeTaken,
		CompletedAt:      now,
	}, nil
}

// ToggleSet switches a set's activation. Enabling one set atomically
// deactivates its siblings; the admin credential check happens upstream.
func (e *SessionEngine) ToggleSet(ctx context.Context, setID string, enable bool) error {
	return e.sets.ToggleActive(ctx, setID, enable)
}

// History lists a participant's completed attempts, newest first.
func (e *SessionEngine) History(ctx context.Context, participantID string) ([]domain.SessionAttempt, error) {
	return e.attempts.ListCompleted(ctx, participantID, 50)
}

func remainingSeconds(deadline, now time.Time) int {
	remaining := int(deadline.Sub(now) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func stripAnswers(questions []domain.Question) []domain.QuestionView {
	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View())
	}
	return views
}
