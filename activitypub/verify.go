package activitypub

import (
	"strings"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/util"
)

// InstanceAllowed applies the instance allow/deny policy to a domain.
// The blocklist always wins; with strict allowlisting enabled, anything
// not explicitly listed is rejected.
func InstanceAllowed(conf *util.AppConfig, instanceDomain string) bool {
	instanceDomain = strings.ToLower(instanceDomain)

	for _, blocked := range conf.Conf.BlockedInstances {
		if strings.EqualFold(blocked, instanceDomain) {
			return false
		}
	}

	if conf.Conf.StrictAllowlist {
		for _, allowed := range conf.Conf.AllowedInstances {
			if strings.EqualFold(allowed, instanceDomain) {
				return true
			}
		}
		return false
	}

	return true
}

// VerifyActivityOrigin checks that the activity id, the actor and any
// embedded object all live on the same origin domain. An instance only
// speaks for its own objects.
func VerifyActivityOrigin(env *Envelope) error {
	actorDomain, err := ExtractDomain(env.Actor)
	if err != nil {
		return verificationErrorf("invalid actor URI: %v", err)
	}

	activityDomain, err := ExtractDomain(env.ID)
	if err != nil {
		return verificationErrorf("invalid activity id: %v", err)
	}
	if !strings.EqualFold(actorDomain, activityDomain) {
		return verificationErrorf("activity id domain %s does not match actor domain %s", activityDomain, actorDomain)
	}

	// Announce forwards foreign objects by design, everything else must
	// carry objects from its own origin.
	if env.Kind() == KindAnnounce {
		return nil
	}

	objectURI := env.ObjectURI()
	if objectURI == "" {
		return nil
	}
	objectDomain, err := ExtractDomain(objectURI)
	if err != nil {
		return verificationErrorf("invalid object URI: %v", err)
	}
	if !strings.EqualFold(actorDomain, objectDomain) {
		return verificationErrorf("object domain %s does not match actor domain %s", objectDomain, actorDomain)
	}

	return nil
}

// VerifyPublicAddressing requires the public marker on activities that
// create or change visible content. Follows, accepts and undos address
// single actors instead.
func VerifyPublicAddressing(env *Envelope) error {
	switch env.Kind() {
	case KindFollow, KindAccept, KindUndo:
		return nil
	}
	if !env.IsPublic() {
		return verificationErrorf("%s activity is not publicly addressed", env.Type)
	}
	return nil
}

// VerifyPersonInBoard checks that an actor may currently act in a board:
// the board has to be live and the actor not banned from it.
func VerifyPersonInBoard(ctx *app.Context, board *domain.Board, actorURI string) error {
	if board.Deleted {
		return verificationErrorf("board %s is deleted", board.Name)
	}
	if board.Removed {
		return verificationErrorf("board %s is removed", board.Name)
	}

	err, banned := ctx.DB.IsBannedFromBoard(board.Id, actorURI)
	if err != nil {
		return err
	}
	if banned {
		return verificationErrorf("actor %s is banned from board %s", actorURI, board.Name)
	}
	return nil
}

// VerifyModAction checks that an actor may moderate a board. Board
// moderators qualify everywhere; local instance admins additionally
// qualify for local boards.
func VerifyModAction(ctx *app.Context, board *domain.Board, actorURI string) error {
	err, isMod := ctx.DB.IsBoardMod(board.Id, actorURI)
	if err != nil {
		return err
	}
	if isMod {
		return nil
	}

	if board.Local && IsLocalURI(ctx.Conf, actorURI) {
		name := LocalUsernameFromURI(ctx.Conf, actorURI)
		if err, acc := ctx.DB.ReadAccByUsername(name); err == nil && acc != nil && acc.Admin {
			return nil
		}
	}

	return verificationErrorf("actor %s is not a moderator of board %s", actorURI, board.Name)
}

// VerifyAudience cross-checks the board an activity claims against the
// board its target object actually belongs to. A mismatch means the
// activity is trying to smuggle content across boards.
func VerifyAudience(ctx *app.Context, env *Envelope, target PostOrComment) error {
	claimed := env.BoardIRI()
	if claimed == "" {
		return nil
	}
	err, board := ctx.DB.ReadBoardById(target.BoardId())
	if err != nil || board == nil {
		return verificationErrorf("target object belongs to unknown board")
	}
	if board.ActorURI != claimed {
		return verificationErrorf("audience %s does not match target board %s", claimed, board.ActorURI)
	}
	return nil
}
