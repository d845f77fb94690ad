package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category groups audit events by the part of the back office they touch.
type Category string

const (
	CategoryAccount  Category = "account"
	CategoryRequest  Category = "request"
	CategoryOffer    Category = "offer"
	CategoryContract Category = "contract"
	CategoryDocument Category = "document"
	CategoryContent  Category = "content"
	CategorySecurity Category = "security"
	CategorySystem   Category = "system"
)

// Action represents the action that occurred.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionStatusChange Action = "status_change"
	ActionAssign       Action = "assign"
	ActionReview       Action = "review"
	ActionSend         Action = "send"
	ActionPublish      Action = "publish"
	ActionLogin        Action = "login"
	ActionLoginFailed  Action = "login_failed"
	ActionLogout       Action = "logout"
	ActionRetry        Action = "retry"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit log entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorID      string    `json:"actor_id"`
	ActorEmail   string    `json:"actor_email"`
	ActorRole    string    `json:"actor_role"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Metadata     string    `json:"metadata"`
}

// Actor identifies who performed an action.
type Actor struct {
	ID    string
	Email string
	Role  string
	IP    string
	Agent string
}

// NewEvent creates an event stamped with the current time.
// PRE: action is non-empty
// POST: Returns an Event with a fresh ID and info severity
func NewEvent(actor Actor, category Category, action Action) Event {
	return Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Category:   category,
		Action:     action,
		Severity:   SeverityInfo,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		IPAddress:  actor.IP,
		UserAgent:  actor.Agent,
	}
}

// WithSeverity sets the severity level.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets resource information.
// PRE: resourceType and resourceID are non-empty
// POST: Event resource fields are populated
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithMetadata sets optional JSON metadata.
// PRE: metadata is valid JSON or empty
func (e Event) WithMetadata(metadata string) Event {
	e.Metadata = metadata
	return e
}
