package activitypub

import (
	"encoding/json"
	"time"
)

// The two deliverable object kinds: a Page is a post, a Note is a comment.
const (
	ObjectTypePage      = "Page"
	ObjectTypeNote      = "Note"
	ObjectTypeTombstone = "Tombstone"
	ActorTypePerson     = "Person"
	ActorTypeGroup      = "Group"
)

// Page is the wire form of a post.
type Page struct {
	AtContext    interface{} `json:"@context,omitempty"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	AttributedTo string      `json:"attributedTo"`
	To           StringList  `json:"to,omitempty"`
	Cc           StringList  `json:"cc,omitempty"`
	Audience     string      `json:"audience,omitempty"`
	Name         string      `json:"name"`
	Content      string      `json:"content,omitempty"`
	URL          string      `json:"url,omitempty"`
	Language     string      `json:"language,omitempty"`
	Sensitive    bool        `json:"sensitive,omitempty"`
	Published    string      `json:"published,omitempty"`
	Updated      string      `json:"updated,omitempty"`
}

// Note is the wire form of a comment.
type Note struct {
	AtContext    interface{} `json:"@context,omitempty"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	AttributedTo string      `json:"attributedTo"`
	To           StringList  `json:"to,omitempty"`
	Cc           StringList  `json:"cc,omitempty"`
	Audience     string      `json:"audience,omitempty"`
	Content      string      `json:"content"`
	InReplyTo    string      `json:"inReplyTo,omitempty"`
	Language     string      `json:"language,omitempty"`
	Published    string      `json:"published,omitempty"`
	Updated      string      `json:"updated,omitempty"`
}

// Tombstone replaces a deleted actor or object in federation responses
// (served with 410 Gone).
type Tombstone struct {
	AtContext  interface{} `json:"@context,omitempty"`
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	FormerType string      `json:"formerType,omitempty"`
	Deleted    string      `json:"deleted,omitempty"`
}

func NewTombstone(id, formerType string) *Tombstone {
	return &Tombstone{
		AtContext:  ActivityStreamsContext,
		ID:         id,
		Type:       ObjectTypeTombstone,
		FormerType: formerType,
		Deleted:    time.Now().UTC().Format(time.RFC3339),
	}
}

// PublicKey is the embedded signing key of an actor document.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// ActorEndpoints carries the optional shared inbox.
type ActorEndpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// ActorDocument is the wire form of a Person or Group actor, used both
// for serving local actors and parsing fetched remote ones.
type ActorDocument struct {
	AtContext         interface{}     `json:"@context,omitempty"`
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	PreferredUsername string          `json:"preferredUsername"`
	Name              string          `json:"name,omitempty"`
	Summary           string          `json:"summary,omitempty"`
	Inbox             string          `json:"inbox"`
	Outbox            string          `json:"outbox,omitempty"`
	Followers         string          `json:"followers,omitempty"`
	Following         string          `json:"following,omitempty"`
	// Group-only collections
	Moderators string `json:"attributedTo,omitempty"`
	Featured   string `json:"featured,omitempty"`

	URL                       string          `json:"url,omitempty"`
	Icon                      *Icon           `json:"icon,omitempty"`
	ManuallyApprovesFollowers bool            `json:"manuallyApprovesFollowers"`
	Discoverable              bool            `json:"discoverable"`
	PostingRestrictedToMods   bool            `json:"postingRestrictedToMods,omitempty"`
	Endpoints                 *ActorEndpoints `json:"endpoints,omitempty"`
	PublicKey                 PublicKey       `json:"publicKey"`
	Published                 string          `json:"published,omitempty"`
}

type Icon struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url"`
}

// SharedInbox returns the endpoint shared inbox, or "" if the actor has
// none.
func (a *ActorDocument) SharedInbox() string {
	if a.Endpoints == nil {
		return ""
	}
	return a.Endpoints.SharedInbox
}

// OrderedCollection is the header document of a paginated collection.
type OrderedCollection struct {
	AtContext  interface{}       `json:"@context,omitempty"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	TotalItems int               `json:"totalItems"`
	First      string            `json:"first,omitempty"`
	Next       string            `json:"next,omitempty"`
	OrderedItems []json.RawMessage `json:"orderedItems,omitempty"`
}

// CollectionItemURIs returns the items that are bare URI strings,
// skipping embedded documents.
func (c *OrderedCollection) CollectionItemURIs() []string {
	uris := make([]string, 0, len(c.OrderedItems))
	for _, item := range c.OrderedItems {
		var uri string
		if err := json.Unmarshal(item, &uri); err == nil && uri != "" {
			uris = append(uris, uri)
		}
	}
	return uris
}
