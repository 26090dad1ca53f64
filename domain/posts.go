package domain

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// Post is a top-level submission to a board (a Page in federation terms).
type Post struct {
	Id        uuid.UUID
	BoardId   uuid.UUID
	AuthorURI string // actor URI, local or remote
	Title     string
	Body      string
	Url       string
	ObjectURI string
	Language  string
	Local     bool
	Deleted   bool // self-delete by the author
	Removed   bool // moderator removal
	Locked    bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func (p *Post) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tTitle: %s \n\tAuthor: %s \n\tCreatedAt: %s)", p.Id, p.Title, p.AuthorURI, p.CreatedAt)
}

// Comment is a reply to a post or to another comment (a Note in federation
// terms). InReplyToURI points at the parent object.
type Comment struct {
	Id           uuid.UUID
	PostId       uuid.UUID
	BoardId      uuid.UUID
	AuthorURI    string
	Body         string
	ObjectURI    string
	InReplyToURI string
	Language     string
	Local        bool
	Deleted      bool
	Removed      bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Vote is a single directional score by an actor on a post or comment.
// Uniqueness over (actor, object) makes re-votes replace, never stack.
type Vote struct {
	Id        uuid.UUID
	ActorURI  string
	ObjectURI string
	Score     int // +1 or -1
	CreatedAt time.Time
}
