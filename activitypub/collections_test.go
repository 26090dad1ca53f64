package activitypub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

func collectionJSON(id string, next string, items ...string) []byte {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw = append(raw, rawString(item))
	}
	data, _ := json.Marshal(OrderedCollection{
		ID:           id,
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		Next:         next,
		OrderedItems: raw,
	})
	return data
}

func TestFetchCollectionSinglePage(t *testing.T) {
	ctx := newTestContext(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		w.Write(collectionJSON(r.URL.String(), "", "https://remote.example/@a", "https://remote.example/@b"))
	}))
	defer server.Close()

	items, err := FetchCollection(ctx, server.URL+"/moderators")
	if err != nil {
		t.Fatalf("FetchCollection failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(items))
	}
}

func TestFetchCollectionFollowsPages(t *testing.T) {
	ctx := newTestContext(t)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		switch r.URL.RawQuery {
		case "page=1":
			w.Write(collectionJSON(server.URL+"/outbox?page=1", server.URL+"/outbox?page=2",
				"https://remote.example/activities/1"))
		case "page=2":
			w.Write(collectionJSON(server.URL+"/outbox?page=2", "",
				"https://remote.example/activities/2"))
		default:
			// Index page pointing at the first real page
			data, _ := json.Marshal(OrderedCollection{
				ID:    server.URL + "/outbox",
				Type:  "OrderedCollection",
				First: server.URL + "/outbox?page=1",
			})
			w.Write(data)
		}
	}))
	defer server.Close()

	items, err := FetchCollection(ctx, server.URL+"/outbox")
	if err != nil {
		t.Fatalf("FetchCollection failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items across pages, got %d", len(items))
	}
}

func TestFetchCollectionCapped(t *testing.T) {
	ctx := newTestContext(t)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every page points at itself with fresh items; the cap has
		// to stop the walk.
		items := make([]string, 25)
		for i := range items {
			items[i] = fmt.Sprintf("https://remote.example/activities/%s", uuid.New())
		}
		w.Header().Set("Content-Type", "application/activity+json")
		w.Write(collectionJSON(server.URL+"/outbox", server.URL+"/outbox?more", items...))
	}))
	defer server.Close()

	items, err := FetchCollection(ctx, server.URL+"/outbox")
	if err != nil {
		t.Fatalf("FetchCollection failed: %v", err)
	}
	if len(items) > FetchLimitMax {
		t.Errorf("Expected at most %d items, got %d", FetchLimitMax, len(items))
	}
}

func TestSyncModeratorsConverges(t *testing.T) {
	ctx := newTestContext(t)
	carol := seedRemoteActor(t, ctx, "carol")
	dave := seedRemoteActor(t, ctx, "dave")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		w.Write(collectionJSON(r.URL.String(), "", carol.ActorURI, dave.ActorURI))
	}))
	defer server.Close()

	board := &domain.Board{
		Id:              uuid.New(),
		Name:            "gardening",
		Domain:          "remote.example",
		Local:           false,
		ActorURI:        "https://remote.example/+gardening",
		ModeratorsURI:   server.URL + "/moderators",
		CreatedAt:       time.Now(),
		LastRefreshedAt: time.Now(),
	}
	if err := ctx.DB.CreateBoard(board); err != nil {
		t.Fatalf("Failed to seed board: %v", err)
	}

	// A stale local-only moderator has to go
	stale := &domain.BoardMod{
		Id:        uuid.New(),
		BoardId:   board.Id,
		ActorURI:  "https://remote.example/@gone",
		Rank:      1,
		CreatedAt: time.Now(),
	}
	if err := ctx.DB.CreateBoardMod(stale); err != nil {
		t.Fatalf("Failed to seed stale moderator: %v", err)
	}

	report, err := SyncModerators(ctx, board)
	if err != nil {
		t.Fatalf("SyncModerators failed: %v", err)
	}
	if report.Added != 2 {
		t.Errorf("Expected 2 added, got %d", report.Added)
	}
	if report.Removed != 1 {
		t.Errorf("Expected 1 removed, got %d", report.Removed)
	}

	err, mods := ctx.DB.ReadBoardMods(board.Id)
	if err != nil {
		t.Fatalf("Failed to read moderators: %v", err)
	}
	if mods == nil || len(*mods) != 2 {
		t.Fatalf("Expected 2 moderators after sync, got %v", mods)
	}

	// A second sync against the same collection changes nothing
	report, err = SyncModerators(ctx, board)
	if err != nil {
		t.Fatalf("Second SyncModerators failed: %v", err)
	}
	if report.Added != 0 || report.Removed != 0 {
		t.Errorf("Expected converged sync to change nothing, got +%d -%d", report.Added, report.Removed)
	}
}

func TestReplayActivityStoresPostOnce(t *testing.T) {
	ctx := newTestContext(t)
	board := seedLocalBoard(t, ctx, "gardening", true)
	author := seedRemoteActor(t, ctx, "alice")

	postURI := "https://remote.example/post/" + uuid.New().String()
	raw := []byte(fmt.Sprintf(`{
		"id": "https://remote.example/activities/create/1",
		"type": "Create",
		"actor": "%s",
		"to": ["%s"],
		"audience": "%s",
		"object": {
			"id": "%s",
			"type": "Page",
			"attributedTo": "%s",
			"audience": "%s",
			"name": "Tomatoes",
			"content": "They grow."
		}
	}`, author.ActorURI, PublicMarker, board.ActorURI, postURI, author.ActorURI, board.ActorURI))

	if err := ReplayActivity(ctx, raw); err != nil {
		t.Fatalf("ReplayActivity failed: %v", err)
	}

	err, post := ctx.DB.ReadPostByObjectURI(postURI)
	if err != nil {
		t.Fatalf("Failed to read stored post: %v", err)
	}
	if post.Title != "Tomatoes" {
		t.Errorf("Expected title 'Tomatoes', got '%s'", post.Title)
	}
	if post.BoardId != board.Id {
		t.Errorf("Expected post to land in board %s, got %s", board.Id, post.BoardId)
	}
	if post.Local {
		t.Error("Expected replayed post to be marked remote")
	}

	// Replaying the same activity again is the duplicate no-op
	if err := ReplayActivity(ctx, raw); err != ErrDuplicateActivity {
		t.Errorf("Expected ErrDuplicateActivity on replay, got %v", err)
	}
}

func TestReplayActivityBlockedInstance(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Conf.Conf.BlockedInstances = []string{"remote.example"}

	raw := []byte(`{
		"id": "https://remote.example/activities/create/2",
		"type": "Create",
		"actor": "https://remote.example/@alice",
		"to": ["` + PublicMarker + `"],
		"object": {"id": "https://remote.example/post/x", "type": "Page", "name": "x"}
	}`)

	err := ReplayActivity(ctx, raw)
	if err == nil {
		t.Fatal("Expected activity from blocked instance to be rejected")
	}
	if !IsVerificationError(err) {
		t.Errorf("Expected a verification error, got %T", err)
	}
}
