package models

import "time"

// SessionState is the interview turn state machine. Recording may only start
// while the state is idle.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateUserSpeaking SessionState = "user-speaking"
	StateAIThinking   SessionState = "ai-thinking"
	StateAISpeaking   SessionState = "ai-speaking"
	StateEnded        SessionState = "ended"
)

type Sender string

const (
	SenderInterviewer Sender = "interviewer"
	SenderCandidate   Sender = "candidate"
)

// InterviewConfig is the user-chosen setup for a session. It is also
// persisted per user as the last-used configuration.
type InterviewConfig struct {
	QuestionCount int      `json:"question_count"`
	Difficulty    string   `json:"difficulty,omitempty"`
	DurationMin   int      `json:"duration_min"`
	TechStack     []string `json:"tech_stack,omitempty"`
}

// Question is an ordinal interview prompt. Immutable once asked.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	FollowUp bool   `json:"follow_up,omitempty"`
	Asked    bool   `json:"asked"`
}

// Message is one turn of dialogue. The message list is append-only and
// timestamp-ordered.
type Message struct {
	ID        string    `json:"id"`
	TurnID    string    `json:"turn_id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
}

type EmotionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// EmotionSample is a snapshot of named affect scores captured around a
// recording boundary. TurnID ties the sample to the question/answer pair it
// was captured for.
type EmotionSample struct {
	TurnID    string         `json:"turn_id"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Scores    []EmotionScore `json:"scores,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	FollowUp  bool           `json:"follow_up,omitempty"`
}

// SessionResult is the durable summary record written at session end.
type SessionResult struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Samples        []EmotionSample `json:"samples"`
	Transcriptions []string        `json:"transcriptions"`
	CreatedAt      time.Time       `json:"created_at"`
}

// User is the auth record. The profile document lives separately, keyed by
// the same ID.
type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

// UserProfile mirrors the profile document written at sign-up.
type UserProfile struct {
	DisplayName         string   `json:"display_name"`
	Email               string   `json:"email"`
	Expertise           []string `json:"expertise,omitempty"`
	Experience          string   `json:"experience,omitempty"`
	Location            string   `json:"location,omitempty"`
	Education           string   `json:"education,omitempty"`
	ExpectedSalary      string   `json:"expected_salary,omitempty"`
	LinkedIn            string   `json:"linkedin,omitempty"`
	Portfolio           string   `json:"portfolio,omitempty"`
	Skills              []string `json:"skills,omitempty"`
	PhotoURL            string   `json:"photo_url,omitempty"`
	ResumeURL           string   `json:"resume_url,omitempty"`
	InterviewsCompleted int      `json:"interviews_completed"`
	CreatedAt           string   `json:"created_at"`
}
