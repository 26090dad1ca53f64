package web

import (
	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
)

// PersonActor builds the actor document for a local account.
func PersonActor(ctx *app.Context, username string) (*activitypub.ActorDocument, error) {
	err, acc := ctx.DB.ReadAccByUsername(username)
	if err != nil || acc == nil {
		return nil, &activitypub.ResolutionError{Target: username}
	}

	displayName := acc.DisplayName
	if displayName == "" {
		displayName = acc.Username
	}

	actorURI := activitypub.PersonURI(ctx.Conf, acc.Username)
	return &activitypub.ActorDocument{
		AtContext:         activitypub.ActivityStreamsContext,
		ID:                actorURI,
		Type:              activitypub.ActorTypePerson,
		PreferredUsername: acc.Username,
		Name:              displayName,
		Summary:           acc.Summary,
		Inbox:             activitypub.PersonInboxURI(ctx.Conf, acc.Username),
		Outbox:            actorURI + "/outbox",
		Followers:         actorURI + "/followers",
		URL:               actorURI,
		Discoverable:      true,
		Endpoints: &activitypub.ActorEndpoints{
			SharedInbox: activitypub.SharedInboxURI(ctx.Conf),
		},
		PublicKey: activitypub.PublicKey{
			ID:           activitypub.KeyID(actorURI),
			Owner:        actorURI,
			PublicKeyPem: acc.WebPublicKey,
		},
		Published: acc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

// BoardActor builds the Group actor document for a local board. Deleted
// or removed boards are served as tombstones by the caller.
func BoardActor(ctx *app.Context, board *domain.Board) *activitypub.ActorDocument {
	return &activitypub.ActorDocument{
		AtContext:         activitypub.ActivityStreamsContext,
		ID:                board.ActorURI,
		Type:              activitypub.ActorTypeGroup,
		PreferredUsername: board.Name,
		Name:              board.Title,
		Summary:           board.Description,
		Inbox:             activitypub.BoardInboxURI(ctx.Conf, board.Name),
		Outbox:            activitypub.BoardOutboxURI(ctx.Conf, board.Name),
		Followers:         activitypub.BoardFollowersURI(ctx.Conf, board.Name),
		Moderators:        activitypub.BoardModeratorsURI(ctx.Conf, board.Name),
		Featured:          activitypub.BoardFeaturedURI(ctx.Conf, board.Name),
		URL:               board.ActorURI,
		Discoverable:      true,
		Endpoints: &activitypub.ActorEndpoints{
			SharedInbox: activitypub.SharedInboxURI(ctx.Conf),
		},
		PublicKey: activitypub.PublicKey{
			ID:           activitypub.KeyID(board.ActorURI),
			Owner:        board.ActorURI,
			PublicKeyPem: board.PublicKeyPem,
		},
		Published: board.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
