package releases

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Release is a versioned release within an app (§3 Release).
type Release struct {
	ID        string
	AppID     string
	Version   string
	Notes     *string
	Status    Status
	PubDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
