package activitypub

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// actorRefreshTTL is how long a cached remote actor stays fresh before a
// lookup triggers a re-fetch.
const actorRefreshTTL = 24 * time.Hour

// fetchActorDocument GETs and parses a remote actor document.
func fetchActorDocument(ctx *app.Context, actorURI string) (*ActorDocument, error) {
	body, err := fetchActivityJSON(ctx, actorURI)
	if err != nil {
		return nil, err
	}

	var actor ActorDocument
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	// Validate required fields
	if actor.ID == "" || actor.Inbox == "" || actor.PublicKey.PublicKeyPem == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	return &actor, nil
}

// fetchActivityJSON performs a federation GET with the activity+json
// accept header, bounded by the context client's timeout.
func fetchActivityJSON(ctx *app.Context, uri string) ([]byte, error) {
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "glyptodon/1.0 ActivityPub")

	resp, err := ctx.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("remote object is tombstoned (410)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// FetchRemoteActor fetches a Person actor from a remote server and stores
// it in the cache. A remote actor's id is decided by its origin instance
// and never changes once fetched.
func FetchRemoteActor(ctx *app.Context, actorURI string) (*domain.RemoteAccount, error) {
	actor, err := fetchActorDocument(ctx, actorURI)
	if err != nil {
		return nil, &ResolutionError{Target: actorURI, Err: err}
	}

	if actor.Type != ActorTypePerson {
		return nil, &ResolutionError{Target: actorURI, Err: fmt.Errorf("expected Person actor, got %s", actor.Type)}
	}

	domainName, err := ExtractDomain(actor.ID)
	if err != nil {
		return nil, &ResolutionError{Target: actorURI, Err: err}
	}

	avatarURL := ""
	if actor.Icon != nil {
		avatarURL = actor.Icon.URL
	}

	remoteAcc := &domain.RemoteAccount{
		Id:             uuid.New(),
		Username:       actor.PreferredUsername,
		Domain:         domainName,
		ActorURI:       actor.ID,
		DisplayName:    actor.Name,
		Summary:        actor.Summary,
		InboxURI:       actor.Inbox,
		SharedInboxURI: actor.SharedInbox(),
		OutboxURI:      actor.Outbox,
		PublicKeyPem:   actor.PublicKey.PublicKeyPem,
		AvatarURL:      avatarURL,
		LastFetchedAt:  time.Now(),
	}

	err = ctx.DB.CreateRemoteAccount(remoteAcc)
	if err != nil {
		// Already cached, refresh the mutable fields instead
		err = ctx.DB.UpdateRemoteAccount(remoteAcc)
		if err != nil {
			return nil, fmt.Errorf("failed to store remote account: %w", err)
		}
		if err, cached := ctx.DB.ReadRemoteAccountByURI(actor.ID); err == nil && cached != nil {
			return cached, nil
		}
	}

	return remoteAcc, nil
}

// GetOrFetchActor returns an actor from the cache, or fetches it when
// absent or stale.
func GetOrFetchActor(ctx *app.Context, actorURI string) (*domain.RemoteAccount, error) {
	err, cached := ctx.DB.ReadRemoteAccountByURI(actorURI)
	if err == nil && cached != nil {
		if time.Since(cached.LastFetchedAt) < actorRefreshTTL {
			return cached, nil
		}
	}

	fetched, fetchErr := FetchRemoteActor(ctx, actorURI)
	if fetchErr != nil {
		// A stale cache entry still beats a failed refresh
		if cached != nil {
			return cached, nil
		}
		return nil, fetchErr
	}
	return fetched, nil
}

// FetchRemoteBoard fetches a Group actor from a remote server and mirrors
// it in the boards table.
func FetchRemoteBoard(ctx *app.Context, actorURI string) (*domain.Board, error) {
	actor, err := fetchActorDocument(ctx, actorURI)
	if err != nil {
		return nil, &ResolutionError{Target: actorURI, Err: err}
	}

	if actor.Type != ActorTypeGroup {
		return nil, &ResolutionError{Target: actorURI, Err: fmt.Errorf("expected Group actor, got %s", actor.Type)}
	}

	domainName, err := ExtractDomain(actor.ID)
	if err != nil {
		return nil, &ResolutionError{Target: actorURI, Err: err}
	}

	board := &domain.Board{
		Id:              uuid.New(),
		Name:            actor.PreferredUsername,
		Title:           actor.Name,
		Description:     actor.Summary,
		Domain:          domainName,
		Local:           false,
		ActorURI:        actor.ID,
		InboxURI:        actor.Inbox,
		SharedInboxURI:  actor.SharedInbox(),
		OutboxURI:       actor.Outbox,
		ModeratorsURI:   actor.Moderators,
		FeaturedURI:     actor.Featured,
		PublicKeyPem:    actor.PublicKey.PublicKeyPem,
		EnableDownvotes: true,
		CreatedAt:       time.Now(),
		LastRefreshedAt: time.Now(),
	}

	err = ctx.DB.CreateBoard(board)
	if err != nil {
		err = ctx.DB.UpdateBoardFromRefresh(board)
		if err != nil {
			return nil, fmt.Errorf("failed to store remote board: %w", err)
		}
		if err, mirrored := ctx.DB.ReadBoardByActorURI(actor.ID); err == nil && mirrored != nil {
			return mirrored, nil
		}
	}

	return board, nil
}

// GetOrFetchBoard returns a board from the local table (authoritative for
// local boards, cache for mirrors), refreshing stale mirrors.
func GetOrFetchBoard(ctx *app.Context, actorURI string) (*domain.Board, error) {
	err, cached := ctx.DB.ReadBoardByActorURI(actorURI)
	if err == nil && cached != nil {
		if cached.Local || time.Since(cached.LastRefreshedAt) < actorRefreshTTL {
			return cached, nil
		}
	}

	fetched, fetchErr := FetchRemoteBoard(ctx, actorURI)
	if fetchErr != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, fetchErr
	}
	return fetched, nil
}

// webfingerResponse is the subset of a webfinger document the resolver
// needs.
type webfingerResponse struct {
	Subject string `json:"subject"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// Webfinger resolves name@domain to the canonical actor URI via the
// remote instance's well-known endpoint.
func Webfinger(ctx *app.Context, name, remoteDomain string) (string, error) {
	wfURL := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s",
		remoteDomain, url.QueryEscape(fmt.Sprintf("acct:%s@%s", name, remoteDomain)))

	req, err := http.NewRequest("GET", wfURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "glyptodon/1.0 ActivityPub")

	resp, err := ctx.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webfinger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webfinger failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read webfinger response: %w", err)
	}

	var wf webfingerResponse
	if err := json.Unmarshal(body, &wf); err != nil {
		return "", fmt.Errorf("failed to parse webfinger response: %w", err)
	}

	for _, link := range wf.Links {
		if link.Rel == "self" && link.Type == "application/activity+json" && link.Href != "" {
			return link.Href, nil
		}
	}

	return "", fmt.Errorf("webfinger response has no self link")
}

// SplitIdentifier splits "name" or "name@domain" into its parts. A bare
// name has an empty domain.
func SplitIdentifier(identifier string) (name string, identifierDomain string) {
	identifier = strings.TrimPrefix(identifier, "@")
	identifier = strings.TrimPrefix(identifier, "+")
	if idx := strings.IndexByte(identifier, '@'); idx >= 0 {
		return identifier[:idx], strings.ToLower(identifier[idx+1:])
	}
	return identifier, ""
}

// ResolvePerson resolves a person identifier (name, name@domain or actor
// URL) to a local account or cached/fetched remote account. Only one of
// the two returns is non-nil on success.
//
// Unauthenticated callers never trigger a remote fetch; a cache miss is a
// plain NotFound for them. This keeps anonymous requests from amplifying
// into outbound traffic.
func ResolvePerson(ctx *app.Context, identifier string, authenticated bool) (*domain.Account, *domain.RemoteAccount, error) {
	if strings.HasPrefix(identifier, "https://") || strings.HasPrefix(identifier, "http://") {
		if IsLocalURI(ctx.Conf, identifier) {
			name := LocalUsernameFromURI(ctx.Conf, identifier)
			err, acc := ctx.DB.ReadAccByUsername(name)
			if err != nil || acc == nil {
				return nil, nil, &ResolutionError{Target: identifier}
			}
			return acc, nil, nil
		}
		remote, err := resolveRemotePerson(ctx, identifier, authenticated)
		return nil, remote, err
	}

	name, identifierDomain := SplitIdentifier(identifier)

	// Local identifier: direct lookup, no fallback
	if identifierDomain == "" || identifierDomain == strings.ToLower(ctx.Conf.Conf.SslDomain) {
		err, acc := ctx.DB.ReadAccByUsername(name)
		if err != nil || acc == nil {
			return nil, nil, &ResolutionError{Target: identifier}
		}
		return acc, nil, nil
	}

	// Remote identifier: mirror lookup first
	err, cached := ctx.DB.ReadRemoteAccountByHandle(name, identifierDomain)
	if err == nil && cached != nil {
		return nil, cached, nil
	}

	if !authenticated {
		return nil, nil, &ResolutionError{Target: identifier}
	}

	actorURI, wfErr := Webfinger(ctx, name, identifierDomain)
	if wfErr != nil {
		return nil, nil, &ResolutionError{Target: identifier, Err: wfErr}
	}

	remote, fetchErr := GetOrFetchActor(ctx, actorURI)
	if fetchErr != nil {
		return nil, nil, fetchErr
	}
	return nil, remote, nil
}

func resolveRemotePerson(ctx *app.Context, actorURI string, authenticated bool) (*domain.RemoteAccount, error) {
	err, cached := ctx.DB.ReadRemoteAccountByURI(actorURI)
	if err == nil && cached != nil {
		return cached, nil
	}
	if !authenticated {
		return nil, &ResolutionError{Target: actorURI}
	}
	return GetOrFetchActor(ctx, actorURI)
}

// ResolveBoard resolves a board identifier (name, name@domain or actor
// URL) the same way ResolvePerson does, with the same unauthenticated
// fetch refusal.
func ResolveBoard(ctx *app.Context, identifier string, authenticated bool) (*domain.Board, error) {
	if strings.HasPrefix(identifier, "https://") || strings.HasPrefix(identifier, "http://") {
		err, cached := ctx.DB.ReadBoardByActorURI(identifier)
		if err == nil && cached != nil {
			return cached, nil
		}
		if !authenticated {
			return nil, &ResolutionError{Target: identifier}
		}
		return GetOrFetchBoard(ctx, identifier)
	}

	name, identifierDomain := SplitIdentifier(identifier)

	if identifierDomain == "" || identifierDomain == strings.ToLower(ctx.Conf.Conf.SslDomain) {
		err, board := ctx.DB.ReadBoardByName(name, ctx.Conf.Conf.SslDomain)
		if err != nil || board == nil {
			return nil, &ResolutionError{Target: identifier}
		}
		return board, nil
	}

	err, cached := ctx.DB.ReadBoardByName(name, identifierDomain)
	if err == nil && cached != nil {
		return cached, nil
	}

	if !authenticated {
		return nil, &ResolutionError{Target: identifier}
	}

	actorURI, wfErr := Webfinger(ctx, name, identifierDomain)
	if wfErr != nil {
		return nil, &ResolutionError{Target: identifier, Err: wfErr}
	}

	board, fetchErr := GetOrFetchBoard(ctx, actorURI)
	if fetchErr != nil {
		return nil, fetchErr
	}
	return board, nil
}

// RefreshStaleBoards re-fetches mirrored boards past the TTL. Called from
// the background worker; failures are logged per board and skipped.
func RefreshStaleBoards(ctx *app.Context) {
	err, boards := ctx.DB.ReadRemoteBoards()
	if err != nil || boards == nil {
		return
	}
	for _, b := range *boards {
		if time.Since(b.LastRefreshedAt) < actorRefreshTTL {
			continue
		}
		if _, err := FetchRemoteBoard(ctx, b.ActorURI); err != nil {
			log.Printf("Resolver: Failed to refresh board %s: %v", b.ActorURI, err)
		}
	}
}
