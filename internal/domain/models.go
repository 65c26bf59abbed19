package domain

import (
	"sort"
	"time"
)

// Status is a participant's lifecycle state.
type Status string

const (
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusTimeout      Status = "timeout"
	StatusDisqualified Status = "disqualified"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusTimeout || s == StatusDisqualified
}

func (s Status) Valid() bool {
	return s == StatusActive || s.IsTerminal()
}

// Participant is one quiz-taker's record from login to terminal outcome.
type Participant struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"username"`
	Status      Status            `json:"status"`
	Score       int               `json:"score"`
	Answers     map[string]string `json:"answers,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	SubmittedAt *time.Time        `json:"submitted_at"`
}

// Duration is the time between login and the terminal transition.
func (p Participant) Duration() (time.Duration, bool) {
	if p.SubmittedAt == nil {
		return 0, false
	}
	return p.SubmittedAt.Sub(p.CreatedAt), true
}

// Transition is a compare-and-swap request against an active participant.
// A nil Score or Answers leaves the stored value untouched.
type Transition struct {
	Status  Status
	At      time.Time
	Score   *int
	Answers map[string]string
}

// Question models a multiple-choice question together with its correct answer.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Text          string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty" yaml:"answer"`
}

// Public strips the correct answer.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{ID: q.ID, Text: q.Text, Options: options}
}

// PublicQuestion is the client-facing view of a question.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// AnswerKey maps question id to the correct answer text.
type AnswerKey map[string]string

// NewAnswerKey indexes the correct answers of questions.
func NewAnswerKey(questions []Question) AnswerKey {
	key := make(AnswerKey, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectAnswer
	}
	return key
}

// SubmitResult is returned to a participant after a successful submit.
type SubmitResult struct {
	ParticipantID string     `json:"participantId"`
	Status        Status     `json:"status"`
	Score         int        `json:"score"`
	CreatedAt     time.Time  `json:"created_at"`
	SubmittedAt   *time.Time `json:"submitted_at"`
}

// Standing is a ranked row of the admin results view.
type Standing struct {
	Participant
	Rank       int    `json:"rank"`
	DurationMs *int64 `json:"duration_ms"`
}

// SortBySubmission orders participants by submitted_at desc with unsubmitted ones last,
// breaking ties by id asc.
func SortBySubmission(participants []Participant) {
	sort.Slice(participants, func(i, j int) bool {
		a, b := participants[i].SubmittedAt, participants[j].SubmittedAt
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && !a.Equal(*b):
			return a.After(*b)
		}
		return participants[i].ID < participants[j].ID
	})
}
