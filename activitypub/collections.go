package activitypub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// SyncReport summarizes one reconciliation run. Skipped counts items
// that failed individually without aborting the run.
type SyncReport struct {
	Added   int
	Removed int
	Skipped int
	Errors  []error
}

func (r *SyncReport) skip(err error) {
	r.Skipped++
	r.Errors = append(r.Errors, err)
}

// FetchCollection pulls a remote ordered collection, following pagination
// until FetchLimitMax items are gathered. The cap bounds how much work a
// remote collection can trigger.
func FetchCollection(ctx *app.Context, collectionURI string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	cursor := collectionURI

	for cursor != "" && len(items) < FetchLimitMax {
		body, err := fetchActivityJSON(ctx, cursor)
		if err != nil {
			return items, &ResolutionError{Target: cursor, Err: err}
		}

		var page OrderedCollection
		if err := json.Unmarshal(body, &page); err != nil {
			return items, &ResolutionError{Target: cursor, Err: fmt.Errorf("failed to parse collection: %w", err)}
		}

		if len(page.OrderedItems) == 0 {
			if page.First != "" && page.First != cursor {
				cursor = page.First
				continue
			}
			break
		}

		for _, item := range page.OrderedItems {
			if len(items) >= FetchLimitMax {
				break
			}
			items = append(items, item)
		}

		if page.Next == cursor {
			break
		}
		cursor = page.Next
	}

	return items, nil
}

// SyncModerators reconciles a mirrored board's local moderator list
// against the authoritative collection on the board's home instance.
// Local-only members are removed, remote-only members are added; a
// member that cannot be dereferenced is skipped, not fatal.
//
// Each add and remove commits independently. A crash mid-sync leaves a
// partial diff that the next sync converges.
func SyncModerators(ctx *app.Context, board *domain.Board) (*SyncReport, error) {
	report := &SyncReport{}

	if board.ModeratorsURI == "" {
		return report, nil
	}

	items, err := FetchCollection(ctx, board.ModeratorsURI)
	if err != nil {
		return report, err
	}

	remote := make(map[string]int)
	for rank, item := range items {
		var uri string
		if err := json.Unmarshal(item, &uri); err != nil || uri == "" {
			var embedded struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(item, &embedded); err != nil || embedded.ID == "" {
				report.skip(fmt.Errorf("unparseable moderator item"))
				continue
			}
			uri = embedded.ID
		}
		remote[uri] = rank
	}

	err2, localMods := ctx.DB.ReadBoardMods(board.Id)
	if err2 != nil {
		return report, err2
	}

	local := make(map[string]bool)
	if localMods != nil {
		for _, mod := range *localMods {
			local[mod.ActorURI] = true
			if _, still := remote[mod.ActorURI]; !still {
				if err := ctx.DB.DeleteBoardMod(board.Id, mod.ActorURI); err != nil {
					report.skip(err)
					continue
				}
				report.Removed++
			}
		}
	}

	for uri, rank := range remote {
		if local[uri] {
			continue
		}
		if !IsLocalURI(ctx.Conf, uri) {
			if _, err := GetOrFetchActor(ctx, uri); err != nil {
				report.skip(err)
				continue
			}
		}
		mod := &domain.BoardMod{
			Id:        uuid.New(),
			BoardId:   board.Id,
			ActorURI:  uri,
			Rank:      rank,
			CreatedAt: time.Now(),
		}
		if err := ctx.DB.CreateBoardMod(mod); err != nil && !db.IsUniqueViolation(err) {
			report.skip(err)
			continue
		}
		report.Added++
	}

	return report, nil
}

// SyncOutbox ingests a remote board's post history by replaying each
// outbox item through the normal inbound checks. One malformed item is
// skipped so the rest of the history still lands.
func SyncOutbox(ctx *app.Context, board *domain.Board) (*SyncReport, error) {
	report := &SyncReport{}

	if board.Local || board.OutboxURI == "" {
		return report, nil
	}

	items, err := FetchCollection(ctx, board.OutboxURI)
	if err != nil {
		return report, err
	}

	for _, item := range items {
		if err := ReplayActivity(ctx, item); err != nil {
			if errors.Is(err, ErrDuplicateActivity) {
				continue
			}
			log.Printf("CollectionSync: Skipping outbox item: %v", err)
			report.skip(err)
			continue
		}
		report.Added++
	}

	return report, nil
}

// ReplayActivity runs a fetched activity through the same verification,
// dedup and dispatch steps an inbox delivery gets, minus the transport
// signature, which a historical fetch cannot carry. Announces are
// unwrapped so a board outbox full of announced posts ingests the inner
// activities.
func ReplayActivity(ctx *app.Context, raw []byte) error {
	env, err := ParseActivity(raw)
	if err != nil {
		return err
	}

	if env.Kind() == KindAnnounce {
		return handleAnnounce(ctx, env)
	}

	actorDomain, err := ExtractDomain(env.Actor)
	if err != nil {
		return verificationErrorf("invalid actor URI: %v", err)
	}
	if !InstanceAllowed(ctx.Conf, actorDomain) {
		return verificationErrorf("instance %s is not allowed", actorDomain)
	}
	if err := VerifyActivityOrigin(env); err != nil {
		return err
	}
	if err := VerifyPublicAddressing(env); err != nil {
		return err
	}

	if err := logActivity(ctx, env, raw, false); err != nil {
		return err
	}

	return dispatch(ctx, env)
}
