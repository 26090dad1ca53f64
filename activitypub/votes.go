package activitypub

import (
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// handleVote applies a Like or Dislike to a post or comment. A new vote
// always clears the actor's previous vote on the same object first, so
// re-votes and direction flips stay idempotent.
func handleVote(ctx *app.Context, env *Envelope) error {
	target, err := ResolveObject(ctx, env.ObjectURI())
	if err != nil {
		return err
	}

	err2, board := ctx.DB.ReadBoardById(target.BoardId())
	if err2 != nil || board == nil {
		return &ResolutionError{Target: env.ObjectURI()}
	}
	if err := VerifyPersonInBoard(ctx, board, env.Actor); err != nil {
		return err
	}
	if err := VerifyAudience(ctx, env, target); err != nil {
		return err
	}

	score := 1
	if env.Kind() == KindDislike {
		if !board.EnableDownvotes {
			return verificationErrorf("board %s does not accept downvotes", board.Name)
		}
		score = -1
	}

	return ctx.DB.ApplyVote(&domain.Vote{
		Id:        uuid.New(),
		ActorURI:  env.Actor,
		ObjectURI: target.ObjectURI(),
		Score:     score,
		CreatedAt: time.Now(),
	})
}

// handleUndoVote removes the actor's vote on the object. Removal is keyed
// by (actor, object) identity; the original direction is irrelevant, and
// undoing a vote that was never applied is a no-op.
func handleUndoVote(ctx *app.Context, inner *Envelope) error {
	return ctx.DB.RemoveVote(inner.Actor, inner.ObjectURI())
}
