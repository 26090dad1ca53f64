package activitypub

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// HandleInbox runs the full inbound pipeline for one delivered activity:
// parse, instance policy, signature verification, trust checks, dedup
// insert, dispatch. It returns the HTTP status the inbox endpoint should
// answer with.
//
// The dedup insert happens before the handler runs. A handler failure
// leaves the activity-log row in place, so a redelivery of the same id is
// treated as a duplicate instead of being applied twice.
func HandleInbox(ctx *app.Context, req *http.Request, body []byte) (int, error) {
	env, err := ParseActivity(body)
	if err != nil {
		return http.StatusBadRequest, err
	}

	actorDomain, err := ExtractDomain(env.Actor)
	if err != nil {
		return http.StatusBadRequest, verificationErrorf("invalid actor URI: %v", err)
	}
	if !InstanceAllowed(ctx.Conf, actorDomain) {
		return http.StatusForbidden, verificationErrorf("instance %s is not allowed", actorDomain)
	}

	if req.Header.Get("Signature") == "" {
		return http.StatusUnauthorized, verificationErrorf("request carries no signature")
	}

	pubKeyPem, err := publicKeyPemForActor(ctx, env.Actor)
	if err != nil {
		return http.StatusUnauthorized, err
	}
	signer, err := VerifyRequest(req, pubKeyPem)
	if err != nil {
		return http.StatusUnauthorized, verificationErrorf("signature verification failed: %v", err)
	}
	if signer != env.Actor {
		return http.StatusUnauthorized, verificationErrorf("signature key %s does not belong to actor %s", signer, env.Actor)
	}

	if err := VerifyActivityOrigin(env); err != nil {
		return http.StatusForbidden, err
	}
	if err := VerifyPublicAddressing(env); err != nil {
		return http.StatusForbidden, err
	}

	if err := logActivity(ctx, env, body, false); err != nil {
		if errors.Is(err, ErrDuplicateActivity) {
			// Already applied, silent success
			return http.StatusAccepted, nil
		}
		return http.StatusInternalServerError, err
	}

	if err := dispatch(ctx, env); err != nil {
		var verr *VerificationError
		if errors.As(err, &verr) {
			return http.StatusForbidden, err
		}
		var rerr *ResolutionError
		if errors.As(err, &rerr) {
			// The target is gone or unreachable; nothing to apply, and
			// redelivery would hit the dedup gate anyway
			log.Printf("Inbox: Dropping %s %s: %v", env.Type, env.ID, err)
			return http.StatusAccepted, nil
		}
		return http.StatusInternalServerError, &HandlerError{ActivityType: env.Type, Err: err}
	}

	return http.StatusAccepted, nil
}

// logActivity inserts the dedup row for an activity id. A unique
// violation maps to ErrDuplicateActivity.
func logActivity(ctx *app.Context, env *Envelope, raw []byte, local bool) error {
	activity := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  env.ID,
		ActivityType: env.Type,
		ActorURI:     env.Actor,
		ObjectURI:    env.ObjectURI(),
		RawJSON:      string(raw),
		Local:        local,
		Sensitive:    isSensitive(env.Kind()),
		CreatedAt:    time.Now(),
	}
	if err := ctx.DB.CreateActivity(activity); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateActivity
		}
		return err
	}
	return nil
}

// isSensitive marks activity kinds whose replay endpoint must not serve
// them to the public. Follows and their accepts expose social graph
// details.
func isSensitive(kind Kind) bool {
	switch kind {
	case KindFollow, KindAccept, KindBlock:
		return true
	}
	return false
}

// dispatch routes a verified activity to its handler. The kind set is
// closed: a new activity type means a new case here, vetted at compile
// time.
func dispatch(ctx *app.Context, env *Envelope) error {
	switch env.Kind() {
	case KindCreate:
		return handleCreate(ctx, env)
	case KindUpdate:
		return handleUpdate(ctx, env)
	case KindDelete:
		return handleDelete(ctx, env)
	case KindUndo:
		return dispatchUndo(ctx, env)
	case KindAccept:
		return handleAccept(ctx, env)
	case KindFollow:
		return handleFollow(ctx, env)
	case KindLike, KindDislike:
		return handleVote(ctx, env)
	case KindBlock:
		return handleBlock(ctx, env)
	case KindLock:
		return handleLock(ctx, env, true)
	case KindAnnounce:
		return handleAnnounce(ctx, env)
	}
	return verificationErrorf("unhandled activity type %s", env.Type)
}

// dispatchUndo unwraps an Undo and routes on the inner activity's kind.
// The undoing actor must be the actor of the activity being undone.
func dispatchUndo(ctx *app.Context, env *Envelope) error {
	inner, err := env.InnerActivity()
	if err != nil {
		return verificationErrorf("undo carries no parseable inner activity: %v", err)
	}
	if inner.Actor != env.Actor {
		return verificationErrorf("actor %s cannot undo activity of %s", env.Actor, inner.Actor)
	}

	switch inner.Kind() {
	case KindDelete:
		return handleUndoDelete(ctx, env, inner)
	case KindLike, KindDislike:
		return handleUndoVote(ctx, inner)
	case KindFollow:
		return handleUndoFollow(ctx, inner)
	case KindLock:
		return handleLock(ctx, inner, false)
	case KindBlock:
		return handleUndoBlock(ctx, inner)
	}
	return verificationErrorf("cannot undo activity type %s", inner.Type)
}

// handleFollow subscribes a remote actor to a local board or person and
// answers with an Accept. Subscriptions to persons and boards share one
// table, keyed by the followed local entity's id.
func handleFollow(ctx *app.Context, env *Envelope) error {
	targetURI := env.ObjectURI()
	if !IsLocalURI(ctx.Conf, targetURI) {
		return verificationErrorf("follow target %s is not hosted here", targetURI)
	}

	var targetId uuid.UUID
	if err, board := ctx.DB.ReadBoardByActorURI(targetURI); err == nil && board != nil {
		if !board.Local {
			return verificationErrorf("board %s is not hosted here", targetURI)
		}
		if err := VerifyPersonInBoard(ctx, board, env.Actor); err != nil {
			return err
		}
		targetId = board.Id
	} else if name := LocalUsernameFromURI(ctx.Conf, targetURI); name != "" {
		err, acc := ctx.DB.ReadAccByUsername(name)
		if err != nil || acc == nil {
			return &ResolutionError{Target: targetURI}
		}
		targetId = acc.Id
	} else {
		return &ResolutionError{Target: targetURI}
	}

	follower, err := GetOrFetchActor(ctx, env.Actor)
	if err != nil {
		return err
	}

	sub := &domain.Subscription{
		Id:        uuid.New(),
		BoardId:   targetId,
		ActorURI:  env.Actor,
		URI:       env.ID,
		Local:     false,
		Pending:   false,
		CreatedAt: time.Now(),
	}
	if err := ctx.DB.CreateSubscription(sub); err != nil && !db.IsUniqueViolation(err) {
		return err
	}

	if err := SendAccept(ctx, targetURI, env, follower.InboxURI); err != nil {
		log.Printf("Inbox: Failed to deliver Accept to %s: %v", follower.InboxURI, err)
	}
	return nil
}

// handleAccept marks a pending outbound subscription as accepted. The
// accepting actor must be the board the Follow addressed.
func handleAccept(ctx *app.Context, env *Envelope) error {
	inner, err := env.InnerActivity()
	if err != nil {
		return verificationErrorf("accept carries no parseable inner activity: %v", err)
	}
	if inner.Kind() != KindFollow {
		return verificationErrorf("cannot accept activity type %s", inner.Type)
	}
	if inner.ObjectURI() != env.Actor {
		return verificationErrorf("accept actor %s does not match followed board %s", env.Actor, inner.ObjectURI())
	}
	return ctx.DB.AcceptSubscriptionByURI(inner.ID)
}

func handleUndoFollow(ctx *app.Context, inner *Envelope) error {
	return ctx.DB.DeleteSubscriptionByURI(inner.ID)
}

// handleBlock bans an actor from a board. Only board moderators may ban.
func handleBlock(ctx *app.Context, env *Envelope) error {
	board, err := boardFromAudience(ctx, env)
	if err != nil {
		return err
	}
	if err := VerifyModAction(ctx, board, env.Actor); err != nil {
		return err
	}

	target := env.ObjectURI()
	ban := &domain.BoardBan{
		Id:        uuid.New(),
		BoardId:   board.Id,
		ActorURI:  target,
		Reason:    summaryOrEmpty(env),
		CreatedAt: time.Now(),
	}
	if err := ctx.DB.CreateBoardBan(ban); err != nil && !db.IsUniqueViolation(err) {
		return err
	}
	return writeModLog(ctx, board.Id, env.Actor, domain.ModBanFromBoard, target, summaryOrEmpty(env))
}

func handleUndoBlock(ctx *app.Context, inner *Envelope) error {
	board, err := boardFromAudience(ctx, inner)
	if err != nil {
		return err
	}
	if err := VerifyModAction(ctx, board, inner.Actor); err != nil {
		return err
	}

	target := inner.ObjectURI()
	if err := ctx.DB.DeleteBoardBan(board.Id, target); err != nil {
		return err
	}
	return writeModLog(ctx, board.Id, inner.Actor, domain.ModUnbanFromBoard, target, "")
}

// handleLock locks or unlocks a post against new comments.
func handleLock(ctx *app.Context, env *Envelope, locked bool) error {
	err, post := ctx.DB.ReadPostByObjectURI(env.ObjectURI())
	if err != nil || post == nil {
		return &ResolutionError{Target: env.ObjectURI()}
	}
	err, board := ctx.DB.ReadBoardById(post.BoardId)
	if err != nil || board == nil {
		return &ResolutionError{Target: post.BoardId.String()}
	}
	if err := VerifyModAction(ctx, board, env.Actor); err != nil {
		return err
	}

	action := domain.ModLockPost
	if !locked {
		action = domain.ModUnlockPost
	}
	if err := writeModLog(ctx, board.Id, env.Actor, action, post.ObjectURI, summaryOrEmpty(env)); err != nil {
		return err
	}
	return ctx.DB.UpdatePostLocked(post.Id, locked)
}

// handleAnnounce unwraps a board's announce and replays the inner
// activity through the normal checks. The announcing board vouches for
// the inner activity having passed its own inbox, but origin and
// addressing are still enforced here.
func handleAnnounce(ctx *app.Context, env *Envelope) error {
	board, err := GetOrFetchBoard(ctx, env.Actor)
	if err != nil {
		return verificationErrorf("announce from non-board actor %s", env.Actor)
	}

	inner, err := env.InnerActivity()
	if err != nil {
		return verificationErrorf("announce carries no parseable inner activity: %v", err)
	}
	if inner.Kind() == KindAnnounce {
		return verificationErrorf("nested announce rejected")
	}

	innerDomain, err := ExtractDomain(inner.Actor)
	if err != nil {
		return verificationErrorf("invalid inner actor URI: %v", err)
	}
	if !InstanceAllowed(ctx.Conf, innerDomain) {
		return verificationErrorf("instance %s is not allowed", innerDomain)
	}
	if claimed := inner.BoardIRI(); claimed != "" && claimed != board.ActorURI {
		return verificationErrorf("announced activity targets board %s, not announcer %s", claimed, board.ActorURI)
	}
	if err := VerifyActivityOrigin(inner); err != nil {
		return err
	}
	if err := VerifyPublicAddressing(inner); err != nil {
		return err
	}

	raw, err := inner.Marshal()
	if err != nil {
		return err
	}
	if err := logActivity(ctx, inner, raw, false); err != nil {
		if errors.Is(err, ErrDuplicateActivity) {
			return nil
		}
		return err
	}

	return dispatch(ctx, inner)
}

// boardFromAudience resolves the board an activity claims via audience.
func boardFromAudience(ctx *app.Context, env *Envelope) (*domain.Board, error) {
	boardURI := env.BoardIRI()
	if boardURI == "" {
		return nil, verificationErrorf("activity names no board audience")
	}
	board, err := GetOrFetchBoard(ctx, boardURI)
	if err != nil {
		return nil, err
	}
	return board, nil
}

func writeModLog(ctx *app.Context, boardId uuid.UUID, actorURI, action, targetURI, reason string) error {
	return ctx.DB.CreateModLogEntry(&domain.ModLogEntry{
		Id:           uuid.New(),
		Action:       action,
		ModeratorURI: actorURI,
		BoardId:      boardId,
		TargetURI:    targetURI,
		Reason:       reason,
		CreatedAt:    time.Now(),
	})
}

func summaryOrEmpty(env *Envelope) string {
	if env.Summary == nil {
		return ""
	}
	return *env.Summary
}

// publicKeyPemForActor finds an actor's signing key, checking local
// actors first, then the remote cache, fetching on miss. The actor may
// be a person or a board.
func publicKeyPemForActor(ctx *app.Context, actorURI string) (string, error) {
	if IsLocalURI(ctx.Conf, actorURI) {
		if name := LocalUsernameFromURI(ctx.Conf, actorURI); name != "" {
			if err, acc := ctx.DB.ReadAccByUsername(name); err == nil && acc != nil {
				return acc.WebPublicKey, nil
			}
		}
		if err, board := ctx.DB.ReadBoardByActorURI(actorURI); err == nil && board != nil {
			return board.PublicKeyPem, nil
		}
		return "", &ResolutionError{Target: actorURI}
	}

	if acc, err := GetOrFetchActor(ctx, actorURI); err == nil {
		return acc.PublicKeyPem, nil
	}
	board, err := GetOrFetchBoard(ctx, actorURI)
	if err != nil {
		return "", err
	}
	if board.PublicKeyPem == "" {
		return "", fmt.Errorf("actor %s has no public key", actorURI)
	}
	return board.PublicKeyPem, nil
}
