package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// Board is a community, represented in federation as a Group actor. A board
// is either local (this instance owns it and holds the private key) or a
// mirror of a remote instance's board.
type Board struct {
	Id              uuid.UUID
	Name            string // url-safe name, unique per domain
	Title           string
	Description     string
	Domain          string
	Local           bool
	ActorURI        string
	InboxURI        string
	SharedInboxURI  string
	OutboxURI       string
	ModeratorsURI   string
	FeaturedURI     string
	PublicKeyPem    string
	PrivateKeyPem   string // empty for remote boards
	EnableDownvotes bool
	Deleted         bool // owner deletion
	Removed         bool // admin removal
	CreatedAt       time.Time
	LastRefreshedAt time.Time
}

// Handle returns the canonical board@domain form
func (b *Board) Handle() string {
	return fmt.Sprintf("%s@%s", b.Name, b.Domain)
}

// BoardMod is a moderator membership, keyed by actor URI so local and
// remote moderators live in one table.
type BoardMod struct {
	Id        uuid.UUID
	BoardId   uuid.UUID
	ActorURI  string
	Rank      int // 0 is the board owner
	CreatedAt time.Time
}

// Subscription is a board follower (ActivityPub Follow of the Group actor).
type Subscription struct {
	Id        uuid.UUID
	BoardId   uuid.UUID
	ActorURI  string
	URI       string // Follow activity URI, empty for local subscriptions
	Local     bool
	Pending   bool
	CreatedAt time.Time
}
