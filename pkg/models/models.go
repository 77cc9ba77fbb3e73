// Package models defines the shared domain types for the UM-SAFE chat
// service: chat messages, knowledge-base records (embassies, recruiters,
// rights resources), incident reports, and the wire shapes of the chat
// endpoint. All persisted entities live in the external relational store;
// the service treats them as read-mostly inputs and append-only outputs.
package models

import "time"

// ── Languages ────────────────────────────────────────────────

// BaseLanguage is the working language of the knowledge context and the
// model prompt. Translation is applied on the way in and out of it.
const BaseLanguage = "en"

// ── Chat ─────────────────────────────────────────────────────

// ChatRole is the speaker of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ChatMessage is one turn in a user's conversation. Messages are ordered
// by creation time per user; the chat handler appends exactly one
// user+assistant pair per request, plus a system-tagged emergency marker
// when distress is detected.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundMessage is one element of the chat request body. Only role and
// content cross the wire; user and language are resolved server-side.
type InboundMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages []InboundMessage `json:"messages"`
	Language string           `json:"language,omitempty"`
}

// ── Streaming wire shape ─────────────────────────────────────

// StreamDelta is the incremental content of one streamed chunk.
type StreamDelta struct {
	Content string `json:"content,omitempty"`
}

// StreamChoice wraps a delta in the OpenAI-compatible choice envelope.
type StreamChoice struct {
	Delta StreamDelta `json:"delta"`
}

// StreamChunk is one SSE event payload. Both the pass-through path and the
// synthetic re-translated stream emit this same shape so clients consume
// the response identically regardless of language.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
}

// Chunk builds a StreamChunk carrying a single content delta.
func Chunk(content string) StreamChunk {
	return StreamChunk{Choices: []StreamChoice{{Delta: StreamDelta{Content: content}}}}
}

// ── Profiles ─────────────────────────────────────────────────

// Profile holds per-user settings. PreferredLanguage drives language
// resolution for chat responses.
type Profile struct {
	UserID            string    `json:"user_id"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ── Knowledge base ───────────────────────────────────────────

// EmbassyContact is a read-only embassy record rendered into the
// knowledge context. PhonePrimary is mandatory; everything else optional.
type EmbassyContact struct {
	ID               string `json:"id,omitempty"`
	Country          string `json:"country"`
	EmbassyName      string `json:"embassy_name"`
	PhonePrimary     string `json:"phone_primary"`
	PhoneSecondary   string `json:"phone_secondary,omitempty"`
	Email            string `json:"email,omitempty"`
	Address          string `json:"address,omitempty"`
	EmergencyHotline string `json:"emergency_hotline,omitempty"`
	WorkingHours     string `json:"working_hours,omitempty"`
}

// RecruiterStatus is the licensing state of a recruiter.
type RecruiterStatus string

const (
	RecruiterActive    RecruiterStatus = "active"
	RecruiterSuspended RecruiterStatus = "suspended"
	RecruiterExpired   RecruiterStatus = "expired"
)

// Recruiter is a labour recruiter record. Only active recruiters enter
// the knowledge context; a non-zero complaint count is flagged.
type Recruiter struct {
	ID                   string          `json:"id,omitempty"`
	CompanyName          string          `json:"company_name"`
	LicenseNumber        string          `json:"license_number,omitempty"`
	Status               RecruiterStatus `json:"status"`
	ExpiryDate           string          `json:"expiry_date,omitempty"`
	CountriesOfOperation []string        `json:"countries_of_operation,omitempty"`
	ComplaintsCount      int             `json:"complaints_count"`
}

// RightsResource is a prioritized rights/safety information block.
// The store returns these ordered by descending priority.
type RightsResource struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

// ── Incidents ────────────────────────────────────────────────

// IncidentType classifies what the user reported.
type IncidentType string

const (
	IncidentAbuse                IncidentType = "abuse"
	IncidentPassportConfiscation IncidentType = "passport_confiscation"
	IncidentWageTheft            IncidentType = "wage_theft"
	IncidentTrafficking          IncidentType = "trafficking"
	IncidentHealthIssue          IncidentType = "health_issue"
	IncidentOther                IncidentType = "other"
)

// IncidentSeverity ranks how urgently an incident needs follow-up.
type IncidentSeverity string

const (
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// MaxIncidentDescription bounds the stored description length.
const MaxIncidentDescription = 500

// IncidentReport is created as a side effect of the chat handler when
// escalation criteria are met. It is never read back within the same
// request.
type IncidentReport struct {
	ID             string           `json:"id,omitempty"`
	UserID         string           `json:"user_id"`
	IncidentType   IncidentType     `json:"incident_type"`
	Severity       IncidentSeverity `json:"severity"`
	Description    string           `json:"description"`
	Status         string           `json:"status"`
	FollowUpNeeded bool             `json:"follow_up_needed"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Truncate shortens s to at most n runes for bounded storage fields.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
