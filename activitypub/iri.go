package activitypub

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
)

// Local URI space. These paths are part of the federation contract other
// instances rely on; changing them breaks already-delivered ids.
//
//	person   https://{domain}/@{name}
//	board    https://{domain}/+{name}
//	post     https://{domain}/post/{uuid}
//	comment  https://{domain}/comment/{uuid}
//	activity https://{domain}/activities/{type}/{uuid}

func PersonURI(conf *util.AppConfig, username string) string {
	return fmt.Sprintf("https://%s/@%s", conf.Conf.SslDomain, username)
}

func BoardURI(conf *util.AppConfig, name string) string {
	return fmt.Sprintf("https://%s/+%s", conf.Conf.SslDomain, name)
}

func PersonInboxURI(conf *util.AppConfig, username string) string {
	return PersonURI(conf, username) + "/inbox"
}

func BoardInboxURI(conf *util.AppConfig, name string) string {
	return BoardURI(conf, name) + "/inbox"
}

func BoardFollowersURI(conf *util.AppConfig, name string) string {
	return BoardURI(conf, name) + "/followers"
}

func BoardModeratorsURI(conf *util.AppConfig, name string) string {
	return BoardURI(conf, name) + "/moderators"
}

func BoardOutboxURI(conf *util.AppConfig, name string) string {
	return BoardURI(conf, name) + "/outbox"
}

func BoardFeaturedURI(conf *util.AppConfig, name string) string {
	return BoardURI(conf, name) + "/featured"
}

func SharedInboxURI(conf *util.AppConfig) string {
	return fmt.Sprintf("https://%s/inbox", conf.Conf.SslDomain)
}

func PostURI(conf *util.AppConfig, id uuid.UUID) string {
	return fmt.Sprintf("https://%s/post/%s", conf.Conf.SslDomain, id.String())
}

func CommentURI(conf *util.AppConfig, id uuid.UUID) string {
	return fmt.Sprintf("https://%s/comment/%s", conf.Conf.SslDomain, id.String())
}

// NewActivityID stamps a fresh globally unique activity id: the instance
// origin is unique, the uuid suffix avoids local collision.
func NewActivityID(conf *util.AppConfig, kind Kind) string {
	return fmt.Sprintf("https://%s/activities/%s/%s",
		conf.Conf.SslDomain, strings.ToLower(string(kind)), uuid.New().String())
}

// ActivityURIFor reconstructs the local activity URI served by the replay
// endpoint.
func ActivityURIFor(conf *util.AppConfig, activityType, id string) string {
	return fmt.Sprintf("https://%s/activities/%s/%s",
		conf.Conf.SslDomain, strings.ToLower(activityType), id)
}

// KeyID returns the fragment form of a local actor's signing key id.
func KeyID(actorURI string) string {
	return actorURI + "#main-key"
}

// ExtractDomain extracts the host from an actor or object URI
// Example: "https://pangea.example/@alice" -> "pangea.example"
func ExtractDomain(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid URI: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URI %q has no host", uri)
	}
	return strings.ToLower(parsed.Host), nil
}

// IsLocalURI reports whether a URI belongs to this instance's origin.
func IsLocalURI(conf *util.AppConfig, uri string) bool {
	d, err := ExtractDomain(uri)
	if err != nil {
		return false
	}
	return d == strings.ToLower(conf.Conf.SslDomain)
}

// LocalUsernameFromURI extracts the username from a local person URI, or
// "" when the URI is not a local person.
func LocalUsernameFromURI(conf *util.AppConfig, uri string) string {
	prefix := fmt.Sprintf("https://%s/@", conf.Conf.SslDomain)
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	name := strings.TrimPrefix(uri, prefix)
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// LocalBoardNameFromURI extracts the board name from a local board URI,
// or "" when the URI is not a local board.
func LocalBoardNameFromURI(conf *util.AppConfig, uri string) string {
	prefix := fmt.Sprintf("https://%s/+", conf.Conf.SslDomain)
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	name := strings.TrimPrefix(uri, prefix)
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name = name[:idx]
	}
	return name
}
