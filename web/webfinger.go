package web

import (
	"fmt"
	"strings"

	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
)

// WebfingerResponse is the JRD document answering a webfinger lookup.
type WebfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []WebfingerLink `json:"links"`
}

type WebfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// Webfinger resolves an acct: resource against local accounts and
// boards. Board names carry a leading "+" in the handle, matching the
// board URI scheme.
func Webfinger(ctx *app.Context, resource string) (*WebfingerResponse, error) {
	if !strings.HasPrefix(resource, "acct:") {
		return nil, fmt.Errorf("unsupported resource %q", resource)
	}
	handle := strings.TrimPrefix(resource, "acct:")
	handle = strings.TrimSuffix(handle, "@"+ctx.Conf.Conf.SslDomain)
	if strings.Contains(handle, "@") {
		return nil, fmt.Errorf("resource %q is not local", resource)
	}

	var actorURI string
	if name, ok := strings.CutPrefix(handle, "+"); ok {
		err, board := ctx.DB.ReadBoardByName(name, ctx.Conf.Conf.SslDomain)
		if err != nil || board == nil || board.Deleted || board.Removed {
			return nil, fmt.Errorf("board %q not found", name)
		}
		actorURI = board.ActorURI
	} else {
		name := strings.TrimPrefix(handle, "@")
		err, acc := ctx.DB.ReadAccByUsername(name)
		if err != nil || acc == nil {
			return nil, fmt.Errorf("account %q not found", name)
		}
		actorURI = activitypub.PersonURI(ctx.Conf, acc.Username)
	}

	return &WebfingerResponse{
		Subject: fmt.Sprintf("acct:%s@%s", handle, ctx.Conf.Conf.SslDomain),
		Links: []WebfingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: actorURI,
			},
		},
	}, nil
}

func WebFingerNotFound() string {
	return `{"detail":"Not Found"}`
}
