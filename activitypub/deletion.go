package activitypub

import (
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// DeletableObject points at exactly one of the three object kinds a
// Delete may target. Anything else fails closed at resolution.
type DeletableObject struct {
	Board   *domain.Board
	Post    *domain.Post
	Comment *domain.Comment
}

// ResolveDeletable looks a delete target up locally, boards first. Only
// objects this instance already knows can be deleted; a Delete for an
// unknown object has nothing to apply to.
func ResolveDeletable(ctx *app.Context, objectURI string) (DeletableObject, error) {
	if err, board := ctx.DB.ReadBoardByActorURI(objectURI); err == nil && board != nil {
		return DeletableObject{Board: board}, nil
	}
	if err, post := ctx.DB.ReadPostByObjectURI(objectURI); err == nil && post != nil {
		return DeletableObject{Post: post}, nil
	}
	if err, comment := ctx.DB.ReadCommentByObjectURI(objectURI); err == nil && comment != nil {
		return DeletableObject{Comment: comment}, nil
	}
	return DeletableObject{}, &ResolutionError{Target: objectURI}
}

// ownerURI returns the actor that owns the target and may self-delete it.
func (d DeletableObject) ownerURI() string {
	switch {
	case d.Board != nil:
		return d.Board.ActorURI
	case d.Post != nil:
		return d.Post.AuthorURI
	case d.Comment != nil:
		return d.Comment.AuthorURI
	}
	return ""
}

// boardOf returns the board the target lives in, which for a board is
// itself.
func (d DeletableObject) boardOf(ctx *app.Context) (*domain.Board, error) {
	if d.Board != nil {
		return d.Board, nil
	}
	var boardId uuid.UUID
	switch {
	case d.Post != nil:
		boardId = d.Post.BoardId
	case d.Comment != nil:
		boardId = d.Comment.BoardId
	default:
		return nil, &ResolutionError{Target: "empty delete target"}
	}
	err, board := ctx.DB.ReadBoardById(boardId)
	if err != nil || board == nil {
		return nil, &ResolutionError{Target: boardId.String()}
	}
	return board, nil
}

// handleDelete applies a Delete activity. Without a summary it is the
// owning actor deleting their own content; with a summary it is a
// moderator removal for the stated reason, which writes the mod-log row
// before the removal flag flips.
func handleDelete(ctx *app.Context, env *Envelope) error {
	objectURI := env.ObjectURI()

	// An actor deleting itself tombstones its cached mirror. Boards are
	// the exception: a board actor's id is also its object id, and the
	// mirror lives in the boards table, not remote_accounts.
	if objectURI == env.Actor {
		err, board := ctx.DB.ReadBoardByActorURI(env.Actor)
		if err != nil || board == nil {
			return ctx.DB.MarkRemoteAccountDeleted(env.Actor, true)
		}
	}

	target, err := ResolveDeletable(ctx, objectURI)
	if err != nil {
		return err
	}

	if env.Summary == nil {
		return applySelfDelete(ctx, env, target, true)
	}
	return applyModRemoval(ctx, env, target, true)
}

// handleUndoDelete mirrors handleDelete: the summary on the inner Delete
// decides whether a self-delete or a removal is being reversed.
func handleUndoDelete(ctx *app.Context, env *Envelope, inner *Envelope) error {
	target, err := ResolveDeletable(ctx, inner.ObjectURI())
	if err != nil {
		return err
	}

	if inner.Summary == nil {
		return applySelfDelete(ctx, inner, target, false)
	}
	return applyModRemoval(ctx, inner, target, false)
}

func applySelfDelete(ctx *app.Context, env *Envelope, target DeletableObject, deleted bool) error {
	if target.ownerURI() != env.Actor {
		return verificationErrorf("actor %s does not own object %s", env.Actor, env.ObjectURI())
	}

	switch {
	case target.Board != nil:
		return ctx.DB.UpdateBoardDeleted(target.Board.Id, deleted)
	case target.Post != nil:
		return ctx.DB.UpdatePostDeleted(target.Post.Id, deleted)
	case target.Comment != nil:
		return ctx.DB.UpdateCommentDeleted(target.Comment.Id, deleted)
	}
	return verificationErrorf("nothing to delete")
}

func applyModRemoval(ctx *app.Context, env *Envelope, target DeletableObject, removed bool) error {
	board, err := target.boardOf(ctx)
	if err != nil {
		return err
	}

	// Removing a whole local board is reserved for this instance's own
	// admins; remote moderators cannot take a local board down.
	if target.Board != nil && board.Local {
		if !IsLocalURI(ctx.Conf, env.Actor) {
			return verificationErrorf("remote actor %s cannot remove local board %s", env.Actor, board.Name)
		}
		name := LocalUsernameFromURI(ctx.Conf, env.Actor)
		err, acc := ctx.DB.ReadAccByUsername(name)
		if err != nil || acc == nil || !acc.Admin {
			return verificationErrorf("actor %s is not an admin of this instance", env.Actor)
		}
	} else {
		if err := VerifyModAction(ctx, board, env.Actor); err != nil {
			return err
		}
	}

	action, apply := removalAction(ctx, target, removed)
	if action == "" {
		return verificationErrorf("nothing to remove")
	}

	// Audit trail first, visible change second
	if err := writeModLog(ctx, board.Id, env.Actor, action, env.ObjectURI(), summaryOrEmpty(env)); err != nil {
		return err
	}
	return apply()
}

func removalAction(ctx *app.Context, target DeletableObject, removed bool) (string, func() error) {
	switch {
	case target.Board != nil:
		action := domain.ModRemoveBoard
		if !removed {
			action = domain.ModRestoreBoard
		}
		return action, func() error { return ctx.DB.UpdateBoardRemoved(target.Board.Id, removed) }
	case target.Post != nil:
		action := domain.ModRemovePost
		if !removed {
			action = domain.ModRestorePost
		}
		return action, func() error { return ctx.DB.UpdatePostRemoved(target.Post.Id, removed) }
	case target.Comment != nil:
		action := domain.ModRemoveComment
		if !removed {
			action = domain.ModRestoreComment
		}
		return action, func() error { return ctx.DB.UpdateCommentRemoved(target.Comment.Id, removed) }
	}
	return "", nil
}
