package crash

import "time"

type GroupStatus string

const (
	GroupNew           GroupStatus = "new"
	GroupInvestigating GroupStatus = "investigating"
	GroupResolved      GroupStatus = "resolved"
	GroupIgnored       GroupStatus = "ignored"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Group is a deduplicated cluster of crash reports sharing a fingerprint.
type Group struct {
	ID                 string
	AppID              string
	Fingerprint        string
	ErrorType          string
	ErrorMessage       string
	OccurrenceCount    int64
	AffectedUsersCount int64
	FirstSeenAt        time.Time
	LastSeenAt         time.Time
	AffectedVersions   []string
	AffectedPlatforms  []string
	Status             GroupStatus
	Assignee           *string
	ResolutionNotes    *string
	ResolvedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Event is the inbound payload from an SDK crash submission.
type Event struct {
	ErrorType    string
	ErrorMessage string
	StackTrace   []Frame
	AppVersion   string
	Platform     string
	OSVersion    *string
	DeviceInfo   map[string]any
	AppState     map[string]any
	Breadcrumbs  []map[string]any
	UserID       *string
	Severity     Severity
}

// Report is a single stored crash occurrence within a Group.
type Report struct {
	ID           string
	AppID        string
	GroupID      string
	PublicKeyID  string
	ErrorType    string
	ErrorMessage string
	StackTrace   []Frame
	AppVersion   string
	Platform     string
	OSVersion    *string
	Fingerprint  string
	Severity     Severity
	UserID       *string
	CreatedAt    time.Time
}

// Feedback is the supplemented, un-grouped SDK feedback entity
// (SPEC_FULL.md §3 — the spec's distillation omits grouping for this
// entity since free-text feedback has no natural fingerprint).
type Feedback struct {
	ID          string
	AppID       string
	PublicKeyID string
	Message     string
	Email       *string
	Rating      *int16
	AppVersion  *string
	Platform    *string
	CreatedAt   time.Time
}
