package web

import (
	"time"

	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
	"github.com/google/uuid"
)

// PostObject serves a local post as a Page. Deleted or removed posts
// come back as a Tombstone so remote instances learn the object is gone
// rather than missing.
func PostObject(ctx *app.Context, id uuid.UUID) (interface{}, bool, error) {
	err, post := ctx.DB.ReadPostById(id)
	if err != nil || post == nil {
		return nil, false, &activitypub.ResolutionError{Target: id.String()}
	}

	if post.Deleted || post.Removed {
		return activitypub.NewTombstone(post.ObjectURI, activitypub.ObjectTypePage), true, nil
	}

	err, board := ctx.DB.ReadBoardById(post.BoardId)
	if err != nil || board == nil {
		return nil, false, &activitypub.ResolutionError{Target: post.BoardId.String()}
	}

	page := &activitypub.Page{
		AtContext:    activitypub.ActivityStreamsContext,
		ID:           post.ObjectURI,
		Type:         activitypub.ObjectTypePage,
		AttributedTo: post.AuthorURI,
		To:           activitypub.StringList{activitypub.PublicMarker},
		Cc:           activitypub.StringList{board.ActorURI},
		Audience:     board.ActorURI,
		Name:         post.Title,
		Content:      post.Body,
		URL:          post.Url,
		Language:     post.Language,
		Published:    post.CreatedAt.UTC().Format(time.RFC3339),
	}
	if post.UpdatedAt != nil {
		page.Updated = post.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return page, false, nil
}

// CommentObject serves a local comment as a Note, or a Tombstone when it
// is deleted or removed.
func CommentObject(ctx *app.Context, id uuid.UUID) (interface{}, bool, error) {
	err, comment := ctx.DB.ReadCommentById(id)
	if err != nil || comment == nil {
		return nil, false, &activitypub.ResolutionError{Target: id.String()}
	}

	if comment.Deleted || comment.Removed {
		return activitypub.NewTombstone(comment.ObjectURI, activitypub.ObjectTypeNote), true, nil
	}

	err, board := ctx.DB.ReadBoardById(comment.BoardId)
	if err != nil || board == nil {
		return nil, false, &activitypub.ResolutionError{Target: comment.BoardId.String()}
	}

	note := &activitypub.Note{
		AtContext:    activitypub.ActivityStreamsContext,
		ID:           comment.ObjectURI,
		Type:         activitypub.ObjectTypeNote,
		AttributedTo: comment.AuthorURI,
		To:           activitypub.StringList{activitypub.PublicMarker},
		Cc:           activitypub.StringList{board.ActorURI},
		Audience:     board.ActorURI,
		Content:      comment.Body,
		InReplyTo:    comment.InReplyToURI,
		Language:     comment.Language,
		Published:    comment.CreatedAt.UTC().Format(time.RFC3339),
	}
	if comment.UpdatedAt != nil {
		note.Updated = comment.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return note, false, nil
}

// ActivityReplay looks a logged local activity up for the replay
// endpoint. Sensitive activities and activities this instance did not
// originate are refused.
func ActivityReplay(ctx *app.Context, activityType, id string) (string, int, error) {
	uri := activitypub.ActivityURIFor(ctx.Conf, activityType, id)
	err, activity := ctx.DB.ReadActivityByURI(uri)
	if err != nil || activity == nil {
		return "", 404, &activitypub.ResolutionError{Target: uri}
	}
	if activity.Sensitive {
		return "", 403, nil
	}
	if !activity.Local {
		return "", 400, nil
	}
	return activity.RawJSON, 200, nil
}
