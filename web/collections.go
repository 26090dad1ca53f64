package web

import (
	"encoding/json"

	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
)

// BoardFollowers serves a local board's subscriber collection. Only
// totals and actor URIs are exposed; the authoritative set stays here.
func BoardFollowers(ctx *app.Context, board *domain.Board) (*activitypub.OrderedCollection, error) {
	err, subs := ctx.DB.ReadSubscriptionsByBoardId(board.Id)
	if err != nil {
		return nil, err
	}

	collection := &activitypub.OrderedCollection{
		AtContext: activitypub.ActivityStreamsContext,
		ID:        activitypub.BoardFollowersURI(ctx.Conf, board.Name),
		Type:      "OrderedCollection",
	}
	if subs != nil {
		collection.TotalItems = len(*subs)
		for _, sub := range *subs {
			collection.OrderedItems = append(collection.OrderedItems, rawURI(sub.ActorURI))
		}
	}
	return collection, nil
}

// BoardModerators serves a local board's moderator collection, ordered
// by rank so remote instances reconcile against the same ordering.
func BoardModerators(ctx *app.Context, board *domain.Board) (*activitypub.OrderedCollection, error) {
	err, mods := ctx.DB.ReadBoardMods(board.Id)
	if err != nil {
		return nil, err
	}

	collection := &activitypub.OrderedCollection{
		AtContext: activitypub.ActivityStreamsContext,
		ID:        activitypub.BoardModeratorsURI(ctx.Conf, board.Name),
		Type:      "OrderedCollection",
	}
	if mods != nil {
		collection.TotalItems = len(*mods)
		for _, mod := range *mods {
			collection.OrderedItems = append(collection.OrderedItems, rawURI(mod.ActorURI))
		}
	}
	return collection, nil
}

// BoardOutbox serves a local board's recent announces so a newly
// subscribing instance can backfill the board's history.
func BoardOutbox(ctx *app.Context, board *domain.Board) (*activitypub.OrderedCollection, error) {
	err, posts := ctx.DB.ReadPostsByBoardId(board.Id, activitypub.FetchLimitMax)
	if err != nil {
		return nil, err
	}

	collection := &activitypub.OrderedCollection{
		AtContext: activitypub.ActivityStreamsContext,
		ID:        activitypub.BoardOutboxURI(ctx.Conf, board.Name),
		Type:      "OrderedCollection",
	}
	if posts == nil {
		return collection, nil
	}

	// Replays come from the activity log so every serve carries the
	// originally stamped ids and remote dedup holds across fetches.
	for _, post := range *posts {
		if post.Deleted || post.Removed {
			continue
		}
		err, logged := ctx.DB.ReadActivityByObjectURI(post.ObjectURI)
		if err != nil || logged == nil || !logged.Local {
			continue
		}
		collection.OrderedItems = append(collection.OrderedItems, json.RawMessage(logged.RawJSON))
	}
	collection.TotalItems = len(collection.OrderedItems)
	return collection, nil
}

// BoardFeatured serves the board's pinned posts. Pinning is a local
// moderator affordance surfaced through the locked flag's sibling
// collection; an empty collection is valid.
func BoardFeatured(ctx *app.Context, board *domain.Board) *activitypub.OrderedCollection {
	return &activitypub.OrderedCollection{
		AtContext: activitypub.ActivityStreamsContext,
		ID:        activitypub.BoardFeaturedURI(ctx.Conf, board.Name),
		Type:      "OrderedCollection",
	}
}

func rawURI(uri string) json.RawMessage {
	b, _ := json.Marshal(uri)
	return b
}
