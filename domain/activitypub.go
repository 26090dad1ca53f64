package domain

import (
	"github.com/google/uuid"
	"time"
)

// Activity is a row in the activity log. The unique ActivityURI is the sole
// idempotence gate: a second delivery of the same URI is a no-op.
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Create, Delete, Like, Announce, Undo, etc.
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Local        bool // originated from this instance
	Sensitive    bool // not served via the replay endpoint
	CreatedAt    time.Time
}

// Moderation log actions
const (
	ModRemoveBoard      = "ModRemoveBoard"
	ModRemovePost       = "ModRemovePost"
	ModRemoveComment    = "ModRemoveComment"
	ModRestoreBoard     = "ModRestoreBoard"
	ModRestorePost      = "ModRestorePost"
	ModRestoreComment   = "ModRestoreComment"
	ModLockPost         = "ModLockPost"
	ModUnlockPost       = "ModUnlockPost"
	ModBanFromBoard     = "ModBanFromBoard"
	ModUnbanFromBoard   = "ModUnbanFromBoard"
)

// ModLogEntry is the audit trail for moderation actions. An entry is
// written before the visible state change it describes.
type ModLogEntry struct {
	Id           uuid.UUID
	Action       string
	ModeratorURI string
	BoardId      uuid.UUID
	TargetURI    string
	Reason       string
	CreatedAt    time.Time
}

// BoardBan records an actor banned from a board; banned actors fail the
// member-in-good-standing check.
type BoardBan struct {
	Id        uuid.UUID
	BoardId   uuid.UUID
	ActorURI  string
	Reason    string
	CreatedAt time.Time
}

// DeliveryQueueItem represents an item in the delivery queue
type DeliveryQueueItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActorURI     string // local signing actor (person or board)
	ActivityJSON string // the complete activity to deliver
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}
