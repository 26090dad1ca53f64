package activitypub

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
)

// localSigner is a local actor's signing identity.
type localSigner struct {
	ActorURI      string
	KeyId         string
	PrivateKeyPem string
}

// signerForActor resolves the signing key of a local person or board.
func signerForActor(ctx *app.Context, actorURI string) (*localSigner, error) {
	if !IsLocalURI(ctx.Conf, actorURI) {
		return nil, fmt.Errorf("cannot sign as remote actor %s", actorURI)
	}

	if name := LocalUsernameFromURI(ctx.Conf, actorURI); name != "" {
		if err, acc := ctx.DB.ReadAccByUsername(name); err == nil && acc != nil {
			return &localSigner{
				ActorURI:      actorURI,
				KeyId:         KeyID(actorURI),
				PrivateKeyPem: acc.WebPrivateKey,
			}, nil
		}
	}
	if err, board := ctx.DB.ReadBoardByActorURI(actorURI); err == nil && board != nil && board.Local {
		return &localSigner{
			ActorURI:      actorURI,
			KeyId:         KeyID(actorURI),
			PrivateKeyPem: board.PrivateKeyPem,
		}, nil
	}
	return nil, fmt.Errorf("no signing key for actor %s", actorURI)
}

// SendActivity delivers one activity to one inbox with a signed POST.
// Used for direct responses (Accept); fan-out goes through the queue.
func SendActivity(ctx *app.Context, env *Envelope, signingActorURI, inboxURI string) error {
	signer, err := signerForActor(ctx, signingActorURI)
	if err != nil {
		return err
	}

	activityJSON, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	req, err := http.NewRequest("POST", inboxURI, bytes.NewReader(activityJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "glyptodon/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", Digest(activityJSON))

	privateKey, err := ParsePrivateKey(signer.PrivateKeyPem)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	if err := SignRequest(req, privateKey, signer.KeyId); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := ctx.Client.Do(req)
	if err != nil {
		return &DeliveryError{InboxURI: inboxURI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{InboxURI: inboxURI, Err: fmt.Errorf("remote server returned status: %d", resp.StatusCode)}
	}

	log.Printf("Outbox: Sent %s to %s (status: %d)", env.Type, inboxURI, resp.StatusCode)
	return nil
}

// CollectInboxes computes the delivery set for a list of subscribers:
// one inbox per remote actor, preferring the instance's shared inbox so
// two followers on the same instance produce a single delivery.
func CollectInboxes(ctx *app.Context, subs []domain.Subscription) []string {
	seen := make(map[string]bool)
	var inboxes []string

	for _, sub := range subs {
		if IsLocalURI(ctx.Conf, sub.ActorURI) {
			continue
		}
		err, acc := ctx.DB.ReadRemoteAccountByURI(sub.ActorURI)
		if err != nil || acc == nil || acc.Deleted {
			continue
		}
		inbox := acc.InboxURI
		if acc.SharedInboxURI != "" {
			inbox = acc.SharedInboxURI
		}
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true
		inboxes = append(inboxes, inbox)
	}
	return inboxes
}

// enqueueFanout queues one delivery per inbox. Each item is retried
// independently by the delivery worker, so one dead instance never
// blocks the rest of the set.
func enqueueFanout(ctx *app.Context, env *Envelope, signingActorURI string, inboxes []string) {
	activityJSON, err := env.Marshal()
	if err != nil {
		log.Printf("Outbox: Failed to marshal %s: %v", env.Type, err)
		return
	}

	for _, inbox := range inboxes {
		item := &domain.DeliveryQueueItem{
			Id:           uuid.New(),
			InboxURI:     inbox,
			ActorURI:     signingActorURI,
			ActivityJSON: string(activityJSON),
			Attempts:     0,
			NextRetryAt:  time.Now(),
			CreatedAt:    time.Now(),
		}
		if err := ctx.DB.EnqueueDelivery(item); err != nil {
			log.Printf("Outbox: Failed to queue delivery to %s: %v", inbox, err)
		}
	}
	if len(inboxes) > 0 {
		log.Printf("Outbox: Queued %s to %d inboxes", env.Type, len(inboxes))
	}
}

// FederateActivity fans a locally produced, already-applied activity out
// to the federation.
//
// If the target board is local, this instance owns the authoritative
// subscriber set: the activity is wrapped in an Announce by the board and
// queued straight to the subscribers. If the board is remote, the raw
// activity goes to the board's own inbox and its home instance
// re-announces. Moderation-only actions skip the author's follower
// fan-out either way.
func FederateActivity(ctx *app.Context, env *Envelope, board *domain.Board, moderationOnly bool) error {
	raw, err := env.Marshal()
	if err != nil {
		return err
	}
	if err := logActivity(ctx, env, raw, true); err != nil && err != ErrDuplicateActivity {
		return err
	}

	if !moderationOnly {
		fanOutToFollowers(ctx, env)
	}

	if board == nil {
		return nil
	}

	if board.Local {
		announce, err := NewAnnounce(ctx.Conf, board, env)
		if err != nil {
			return err
		}
		announceRaw, err := announce.Marshal()
		if err != nil {
			return err
		}
		if err := logActivity(ctx, announce, announceRaw, true); err != nil && err != ErrDuplicateActivity {
			return err
		}

		err2, subs := ctx.DB.ReadSubscriptionsByBoardId(board.Id)
		if err2 != nil || subs == nil {
			return err2
		}
		enqueueFanout(ctx, announce, board.ActorURI, CollectInboxes(ctx, *subs))
		return nil
	}

	inbox := board.InboxURI
	if board.SharedInboxURI != "" {
		inbox = board.SharedInboxURI
	}
	if inbox == "" {
		return &DeliveryError{InboxURI: board.ActorURI, Err: fmt.Errorf("board has no inbox")}
	}
	enqueueFanout(ctx, env, env.Actor, []string{inbox})
	return nil
}

// fanOutToFollowers queues the activity to the acting person's own
// followers. Follower lookup failure is logged, not fatal.
func fanOutToFollowers(ctx *app.Context, env *Envelope) {
	if !IsLocalURI(ctx.Conf, env.Actor) {
		return
	}
	name := LocalUsernameFromURI(ctx.Conf, env.Actor)
	if name == "" {
		return
	}
	err, acc := ctx.DB.ReadAccByUsername(name)
	if err != nil || acc == nil {
		return
	}
	err, subs := ctx.DB.ReadSubscriptionsByBoardId(acc.Id)
	if err != nil || subs == nil {
		log.Printf("Outbox: Failed to get followers: %v", err)
		return
	}
	enqueueFanout(ctx, env, env.Actor, CollectInboxes(ctx, *subs))
}

// SendAccept answers a Follow with an Accept from the followed local
// actor, delivered directly rather than queued so the follower sees the
// subscription confirmed promptly.
func SendAccept(ctx *app.Context, localActorURI string, follow *Envelope, inboxURI string) error {
	accept := &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(ctx.Conf, KindAccept),
		Type:      string(KindAccept),
		Actor:     localActorURI,
		To:        StringList{follow.Actor},
		Object:    mustRaw(follow),
	}
	return SendActivity(ctx, accept, localActorURI, inboxURI)
}

// NewCreatePost builds the Create for a local post.
func NewCreatePost(conf *util.AppConfig, authorURI string, post *domain.Post, board *domain.Board) *Envelope {
	page := Page{
		ID:           post.ObjectURI,
		Type:         ObjectTypePage,
		AttributedTo: authorURI,
		To:           StringList{PublicMarker},
		Cc:           StringList{board.ActorURI},
		Audience:     board.ActorURI,
		Name:         post.Title,
		Content:      post.Body,
		URL:          post.Url,
		Language:     post.Language,
		Published:    post.CreatedAt.UTC().Format(time.RFC3339),
	}
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindCreate),
		Type:      string(KindCreate),
		Actor:     authorURI,
		To:        StringList{PublicMarker},
		Cc:        StringList{board.ActorURI},
		Audience:  board.ActorURI,
		Object:    mustRaw(page),
	}
}

// NewUpdatePost builds the Update for an edited local post.
func NewUpdatePost(conf *util.AppConfig, authorURI string, post *domain.Post, board *domain.Board) *Envelope {
	env := NewCreatePost(conf, authorURI, post, board)
	env.ID = NewActivityID(conf, KindUpdate)
	env.Type = string(KindUpdate)
	return env
}

// NewCreateComment builds the Create for a local comment.
func NewCreateComment(conf *util.AppConfig, authorURI string, comment *domain.Comment, board *domain.Board) *Envelope {
	note := Note{
		ID:           comment.ObjectURI,
		Type:         ObjectTypeNote,
		AttributedTo: authorURI,
		To:           StringList{PublicMarker},
		Cc:           StringList{board.ActorURI},
		Audience:     board.ActorURI,
		Content:      comment.Body,
		InReplyTo:    comment.InReplyToURI,
		Language:     comment.Language,
		Published:    comment.CreatedAt.UTC().Format(time.RFC3339),
	}
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindCreate),
		Type:      string(KindCreate),
		Actor:     authorURI,
		To:        StringList{PublicMarker},
		Cc:        StringList{board.ActorURI},
		Audience:  board.ActorURI,
		Object:    mustRaw(note),
	}
}

// NewDelete builds a Delete. A nil summary is the owner deleting their
// own content; a summary makes it a moderator removal with that reason.
func NewDelete(conf *util.AppConfig, actorURI, objectURI string, summary *string, boardURI string) *Envelope {
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindDelete),
		Type:      string(KindDelete),
		Actor:     actorURI,
		To:        StringList{PublicMarker},
		Audience:  boardURI,
		Summary:   summary,
		Object:    rawString(objectURI),
	}
}

// NewUndo wraps a previously sent activity in an Undo by the same actor.
func NewUndo(conf *util.AppConfig, inner *Envelope) *Envelope {
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindUndo),
		Type:      string(KindUndo),
		Actor:     inner.Actor,
		To:        inner.To,
		Audience:  inner.Audience,
		Object:    mustRaw(inner),
	}
}

// NewVote builds a Like or Dislike on a post or comment.
func NewVote(conf *util.AppConfig, actorURI, objectURI, boardURI string, down bool) *Envelope {
	kind := KindLike
	if down {
		kind = KindDislike
	}
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, kind),
		Type:      string(kind),
		Actor:     actorURI,
		To:        StringList{PublicMarker},
		Audience:  boardURI,
		Object:    rawString(objectURI),
	}
}

// NewFollow builds a Follow of a remote board or person.
func NewFollow(conf *util.AppConfig, actorURI, targetURI string) *Envelope {
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindFollow),
		Type:      string(KindFollow),
		Actor:     actorURI,
		To:        StringList{targetURI},
		Object:    rawString(targetURI),
	}
}

// NewLock builds a Lock on a post.
func NewLock(conf *util.AppConfig, actorURI, postURI, boardURI string, summary *string) *Envelope {
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindLock),
		Type:      string(KindLock),
		Actor:     actorURI,
		To:        StringList{PublicMarker},
		Audience:  boardURI,
		Summary:   summary,
		Object:    rawString(postURI),
	}
}

// NewBlock builds a board-level ban of an actor.
func NewBlock(conf *util.AppConfig, modURI, targetActorURI, boardURI string, reason *string) *Envelope {
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindBlock),
		Type:      string(KindBlock),
		Actor:     modURI,
		To:        StringList{PublicMarker},
		Audience:  boardURI,
		Summary:   reason,
		Object:    rawString(targetActorURI),
	}
}

// NewAnnounce wraps an activity in the board's Announce for fan-out to
// the board's subscribers.
func NewAnnounce(conf *util.AppConfig, board *domain.Board, inner *Envelope) (*Envelope, error) {
	if !board.Local {
		return nil, fmt.Errorf("only local boards announce")
	}
	return &Envelope{
		AtContext: ActivityStreamsContext,
		ID:        NewActivityID(conf, KindAnnounce),
		Type:      string(KindAnnounce),
		Actor:     board.ActorURI,
		To:        StringList{PublicMarker},
		Cc:        StringList{BoardFollowersURI(conf, board.Name)},
		Object:    mustRaw(inner),
	}, nil
}

// SendFollow subscribes a local actor to a remote board: a pending
// subscription row first, then the Follow itself, delivered directly so
// the Accept can resolve it.
func SendFollow(ctx *app.Context, localActorURI string, board *domain.Board) error {
	if board.Local {
		return fmt.Errorf("local boards are followed without federation")
	}

	follow := NewFollow(ctx.Conf, localActorURI, board.ActorURI)

	sub := &domain.Subscription{
		Id:        uuid.New(),
		BoardId:   board.Id,
		ActorURI:  localActorURI,
		URI:       follow.ID,
		Local:     true,
		Pending:   true,
		CreatedAt: time.Now(),
	}
	if err := ctx.DB.CreateSubscription(sub); err != nil && !db.IsUniqueViolation(err) {
		return err
	}

	inbox := board.InboxURI
	if board.SharedInboxURI != "" {
		inbox = board.SharedInboxURI
	}
	return SendActivity(ctx, follow, localActorURI, inbox)
}
