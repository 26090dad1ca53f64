package activitypub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

func pageJSON(id, attributedTo, audience, title string) string {
	return fmt.Sprintf(`{
		"id": "%s",
		"type": "Page",
		"attributedTo": "%s",
		"audience": "%s",
		"name": "%s",
		"content": "body"
	}`, id, attributedTo, audience, title)
}

func noteJSON(id, attributedTo, inReplyTo string) string {
	return fmt.Sprintf(`{
		"id": "%s",
		"type": "Note",
		"attributedTo": "%s",
		"inReplyTo": "%s",
		"content": "reply"
	}`, id, attributedTo, inReplyTo)
}

func TestResolveObjectWalksReplyChain(t *testing.T) {
	ctx := newTestContext(t)
	board := seedLocalBoard(t, ctx, "gardening", true)
	author := seedRemoteActor(t, ctx, "alice")

	// A post and two nested replies, none known locally. Resolving the
	// deepest reply has to fetch and store the whole chain root-first.
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/activity+json")
		switch r.URL.Path {
		case "/post/root":
			fmt.Fprint(w, pageJSON(server.URL+"/post/root", author.ActorURI, board.ActorURI, "Tomatoes"))
		case "/comment/1":
			fmt.Fprint(w, noteJSON(server.URL+"/comment/1", author.ActorURI, server.URL+"/post/root"))
		case "/comment/2":
			fmt.Fprint(w, noteJSON(server.URL+"/comment/2", author.ActorURI, server.URL+"/comment/1"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	result, err := ResolveObject(ctx, server.URL+"/comment/2")
	if err != nil {
		t.Fatalf("ResolveObject failed: %v", err)
	}
	if result.Comment == nil {
		t.Fatal("Expected resolution to yield a comment")
	}
	if result.Comment.ObjectURI != server.URL+"/comment/2" {
		t.Errorf("Expected the requested comment, got '%s'", result.Comment.ObjectURI)
	}

	// The whole ancestry landed locally, anchored on the stored post
	err, post := ctx.DB.ReadPostByObjectURI(server.URL + "/post/root")
	if err != nil {
		t.Fatalf("Expected the root post to be stored: %v", err)
	}
	if post.BoardId != board.Id {
		t.Errorf("Expected post in board %s, got %s", board.Id, post.BoardId)
	}
	err, parent := ctx.DB.ReadCommentByObjectURI(server.URL + "/comment/1")
	if err != nil {
		t.Fatalf("Expected the intermediate comment to be stored: %v", err)
	}
	if parent.PostId != post.Id {
		t.Errorf("Expected comment anchored to post %s, got %s", post.Id, parent.PostId)
	}
	if result.Comment.PostId != post.Id {
		t.Errorf("Expected resolved comment anchored to post %s, got %s", post.Id, result.Comment.PostId)
	}
}

func TestResolveObjectDepthCap(t *testing.T) {
	ctx := newTestContext(t)
	author := seedRemoteActor(t, ctx, "alice")

	// Every reply points at yet another unknown reply; the walk has to
	// stop at the depth cap instead of following the chain forever.
	var fetches int64
	chain := regexp.MustCompile(`^/c/(\d+)$`)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		m := chain.FindStringSubmatch(r.URL.Path)
		if m == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		n, _ := strconv.Atoi(m[1])
		w.Header().Set("Content-Type", "application/activity+json")
		fmt.Fprint(w, noteJSON(
			fmt.Sprintf("%s/c/%d", server.URL, n),
			author.ActorURI,
			fmt.Sprintf("%s/c/%d", server.URL, n+1),
		))
	}))
	defer server.Close()

	_, err := ResolveObject(ctx, server.URL+"/c/0")
	if err == nil {
		t.Fatal("Expected an over-deep reply chain to fail resolution")
	}
	if !strings.Contains(err.Error(), "exceeds depth") {
		t.Errorf("Expected a depth error, got %v", err)
	}
	if got := atomic.LoadInt64(&fetches); got > MaxCommentDepth+1 {
		t.Errorf("Expected the walk to stop at the cap, fetched %d objects", got)
	}

	// Nothing from the rejected chain was stored
	if err, comment := ctx.DB.ReadCommentByObjectURI(server.URL + "/c/0"); err == nil && comment != nil {
		t.Error("Expected no comment from the rejected chain to be stored")
	}
}
