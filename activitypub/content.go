package activitypub

import (
	"encoding/json"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// handleCreate stores a remote Page as a post or a remote Note as a
// comment. The embedded object rides on the verified envelope; nothing
// trust-sensitive is re-fetched here.
func handleCreate(ctx *app.Context, env *Envelope) error {
	obj, err := embeddedObject(env)
	if err != nil {
		return err
	}

	switch obj.Type {
	case ObjectTypePage:
		return createPost(ctx, env, obj)
	case ObjectTypeNote:
		return createComment(ctx, env, obj)
	}
	return verificationErrorf("cannot create object of type %q", obj.Type)
}

// handleUpdate edits an existing object in place. Content objects may
// only be edited by their author; actor objects refresh the cached
// mirror from the embedded document.
func handleUpdate(ctx *app.Context, env *Envelope) error {
	objType := env.ObjectType()

	switch objType {
	case ActorTypePerson:
		return updatePersonFromEnvelope(ctx, env)
	case ActorTypeGroup:
		return updateBoardFromEnvelope(ctx, env)
	}

	obj, err := embeddedObject(env)
	if err != nil {
		return err
	}

	switch obj.Type {
	case ObjectTypePage:
		return updatePost(ctx, env, obj)
	case ObjectTypeNote:
		return updateComment(ctx, env, obj)
	}
	return verificationErrorf("cannot update object of type %q", obj.Type)
}

func embeddedObject(env *Envelope) (*remoteObject, error) {
	if len(env.Object) == 0 {
		return nil, verificationErrorf("%s carries no object", env.Type)
	}
	var obj remoteObject
	if err := json.Unmarshal(env.Object, &obj); err != nil {
		return nil, verificationErrorf("unparseable embedded object: %v", err)
	}
	if obj.ID == "" {
		return nil, verificationErrorf("embedded object has no id")
	}
	if obj.AttributedTo != "" && obj.AttributedTo != env.Actor {
		return nil, verificationErrorf("object attributed to %s but sent by %s", obj.AttributedTo, env.Actor)
	}
	return &obj, nil
}

func createPost(ctx *app.Context, env *Envelope, obj *remoteObject) error {
	board, err := boardFromAudience(ctx, env)
	if err != nil {
		return err
	}
	if err := VerifyPersonInBoard(ctx, board, env.Actor); err != nil {
		return err
	}

	obj.AttributedTo = env.Actor
	obj.Audience = board.ActorURI
	_, err = storeFetchedPost(ctx, obj, board)
	return err
}

func createComment(ctx *app.Context, env *Envelope, obj *remoteObject) error {
	if obj.InReplyTo == "" {
		return verificationErrorf("comment has no inReplyTo")
	}

	parent, err := ResolveObject(ctx, obj.InReplyTo)
	if err != nil {
		return err
	}

	err2, board := ctx.DB.ReadBoardById(parent.BoardId())
	if err2 != nil || board == nil {
		return &ResolutionError{Target: obj.InReplyTo}
	}
	if err := VerifyPersonInBoard(ctx, board, env.Actor); err != nil {
		return err
	}
	if err := VerifyAudience(ctx, env, parent); err != nil {
		return err
	}

	var targetPostId uuid.UUID
	if parent.Post != nil {
		targetPostId = parent.Post.Id
	} else {
		targetPostId = parent.Comment.PostId
	}

	if err, post := ctx.DB.ReadPostById(targetPostId); err == nil && post != nil && post.Locked {
		return verificationErrorf("post %s is locked", post.ObjectURI)
	}

	obj.AttributedTo = env.Actor
	_, err = storeFetchedComment(ctx, obj, targetPostId, board.Id)
	return err
}

func updatePost(ctx *app.Context, env *Envelope, obj *remoteObject) error {
	err, post := ctx.DB.ReadPostByObjectURI(obj.ID)
	if err != nil || post == nil {
		return &ResolutionError{Target: obj.ID}
	}
	if post.AuthorURI != env.Actor {
		return verificationErrorf("actor %s is not the author of %s", env.Actor, obj.ID)
	}
	return ctx.DB.UpdatePostContent(post.Id, obj.Name, obj.Content, obj.URL)
}

func updateComment(ctx *app.Context, env *Envelope, obj *remoteObject) error {
	err, comment := ctx.DB.ReadCommentByObjectURI(obj.ID)
	if err != nil || comment == nil {
		return &ResolutionError{Target: obj.ID}
	}
	if comment.AuthorURI != env.Actor {
		return verificationErrorf("actor %s is not the author of %s", env.Actor, obj.ID)
	}
	return ctx.DB.UpdateCommentContent(comment.Id, obj.Content)
}

// updatePersonFromEnvelope refreshes a cached remote account from the
// actor document embedded in an Update. Only the actor itself may update
// its own document, which the origin check already guarantees.
func updatePersonFromEnvelope(ctx *app.Context, env *Envelope) error {
	var actor ActorDocument
	if err := json.Unmarshal(env.Object, &actor); err != nil {
		return verificationErrorf("unparseable actor document: %v", err)
	}
	if actor.ID != env.Actor {
		return verificationErrorf("actor %s cannot update document of %s", env.Actor, actor.ID)
	}

	err, cached := ctx.DB.ReadRemoteAccountByURI(actor.ID)
	if err != nil || cached == nil {
		// Never seen this actor, nothing to refresh
		return nil
	}

	cached.DisplayName = actor.Name
	cached.Summary = actor.Summary
	cached.InboxURI = actor.Inbox
	cached.SharedInboxURI = actor.SharedInbox()
	cached.OutboxURI = actor.Outbox
	if actor.PublicKey.PublicKeyPem != "" {
		cached.PublicKeyPem = actor.PublicKey.PublicKeyPem
	}
	if actor.Icon != nil {
		cached.AvatarURL = actor.Icon.URL
	}
	cached.LastFetchedAt = time.Now()
	return ctx.DB.UpdateRemoteAccount(cached)
}

// updateBoardFromEnvelope refreshes a mirrored board from the Group
// document embedded in an Update sent by the board itself.
func updateBoardFromEnvelope(ctx *app.Context, env *Envelope) error {
	var actor ActorDocument
	if err := json.Unmarshal(env.Object, &actor); err != nil {
		return verificationErrorf("unparseable actor document: %v", err)
	}
	if actor.ID != env.Actor {
		return verificationErrorf("actor %s cannot update document of %s", env.Actor, actor.ID)
	}

	err, board := ctx.DB.ReadBoardByActorURI(actor.ID)
	if err != nil || board == nil {
		return nil
	}
	if board.Local {
		return verificationErrorf("local board %s is not updated over federation", board.Name)
	}

	updated := &domain.Board{
		ActorURI:        board.ActorURI,
		Title:           actor.Name,
		Description:     actor.Summary,
		InboxURI:        actor.Inbox,
		SharedInboxURI:  actor.SharedInbox(),
		OutboxURI:       actor.Outbox,
		ModeratorsURI:   actor.Moderators,
		FeaturedURI:     actor.Featured,
		PublicKeyPem:    board.PublicKeyPem,
		EnableDownvotes: board.EnableDownvotes,
	}
	if actor.PublicKey.PublicKeyPem != "" {
		updated.PublicKeyPem = actor.PublicKey.PublicKeyPem
	}
	return ctx.DB.UpdateBoardFromRefresh(updated)
}
