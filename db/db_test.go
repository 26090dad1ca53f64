package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
)

// setupTestDB creates an in-memory SQLite database with all tables. The
// shared-cache URI keeps all pooled connections on the same database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := database.RunFederationMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return database
}

func testBoard(dbDomain string, local bool) *domain.Board {
	return &domain.Board{
		Id:              uuid.New(),
		Name:            "gardening",
		Title:           "Gardening",
		Description:     "plants and dirt",
		Domain:          dbDomain,
		Local:           local,
		ActorURI:        fmt.Sprintf("https://%s/+gardening", dbDomain),
		InboxURI:        fmt.Sprintf("https://%s/+gardening/inbox", dbDomain),
		EnableDownvotes: true,
		CreatedAt:       time.Now(),
		LastRefreshedAt: time.Now(),
	}
}

func TestCreateAndReadAccount(t *testing.T) {
	db := setupTestDB(t)

	id := uuid.New()
	if err := db.CreateAccDirect(id, "alice", util.GeneratePemKeypair(), true); err != nil {
		t.Fatalf("CreateAccDirect failed: %v", err)
	}

	err, acc := db.ReadAccByUsername("alice")
	if err != nil {
		t.Fatalf("ReadAccByUsername failed: %v", err)
	}
	if acc.Id != id {
		t.Errorf("Expected id %s, got %s", id, acc.Id)
	}
	if !acc.Admin {
		t.Error("Expected admin flag to survive the round trip")
	}
	if acc.WebPrivateKey == "" {
		t.Error("Expected a web private key")
	}

	err, byId := db.ReadAccById(id)
	if err != nil {
		t.Fatalf("ReadAccById failed: %v", err)
	}
	if byId.Username != "alice" {
		t.Errorf("Expected username 'alice', got '%s'", byId.Username)
	}
}

func TestUpdateProfileById(t *testing.T) {
	db := setupTestDB(t)

	id := uuid.New()
	if err := db.CreateAccDirect(id, "changeme", util.GeneratePemKeypair(), false); err != nil {
		t.Fatalf("CreateAccDirect failed: %v", err)
	}

	if err := db.UpdateProfileById(id, "alice", "Alice", "gardener"); err != nil {
		t.Fatalf("UpdateProfileById failed: %v", err)
	}

	err, acc := db.ReadAccById(id)
	if err != nil {
		t.Fatalf("ReadAccById failed: %v", err)
	}
	if acc.Username != "alice" {
		t.Errorf("Expected username 'alice', got '%s'", acc.Username)
	}
	if acc.DisplayName != "Alice" {
		t.Errorf("Expected display name 'Alice', got '%s'", acc.DisplayName)
	}
	if acc.Summary != "gardener" {
		t.Errorf("Expected summary 'gardener', got '%s'", acc.Summary)
	}
	if acc.FirstTimeLogin != domain.FALSE {
		t.Error("Expected first time login flag to be cleared")
	}
}

func TestBoardRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	board := testBoard("pangea.example", true)
	if err := db.CreateBoard(board); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	err, byName := db.ReadBoardByName("gardening", "pangea.example")
	if err != nil {
		t.Fatalf("ReadBoardByName failed: %v", err)
	}
	if byName.Id != board.Id {
		t.Errorf("Expected board %s, got %s", board.Id, byName.Id)
	}
	if !byName.Local {
		t.Error("Expected local flag to survive")
	}
	if !byName.EnableDownvotes {
		t.Error("Expected downvote flag to survive")
	}

	err, byURI := db.ReadBoardByActorURI(board.ActorURI)
	if err != nil {
		t.Fatalf("ReadBoardByActorURI failed: %v", err)
	}
	if byURI.Name != "gardening" {
		t.Errorf("Expected name 'gardening', got '%s'", byURI.Name)
	}
}

func TestLocalAndRemoteBoardListing(t *testing.T) {
	db := setupTestDB(t)

	local := testBoard("pangea.example", true)
	if err := db.CreateBoard(local); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	remote := testBoard("remote.example", false)
	remote.Name = "cooking"
	remote.ActorURI = "https://remote.example/+cooking"
	if err := db.CreateBoard(remote); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	err, locals := db.ReadLocalBoards()
	if err != nil {
		t.Fatalf("ReadLocalBoards failed: %v", err)
	}
	if len(*locals) != 1 || (*locals)[0].Id != local.Id {
		t.Errorf("Expected only the local board, got %v", locals)
	}

	err, remotes := db.ReadRemoteBoards()
	if err != nil {
		t.Fatalf("ReadRemoteBoards failed: %v", err)
	}
	if len(*remotes) != 1 || (*remotes)[0].Id != remote.Id {
		t.Errorf("Expected only the remote board, got %v", remotes)
	}
}

func TestBoardFlagUpdates(t *testing.T) {
	db := setupTestDB(t)

	board := testBoard("pangea.example", true)
	if err := db.CreateBoard(board); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	if err := db.UpdateBoardDeleted(board.Id, true); err != nil {
		t.Fatalf("UpdateBoardDeleted failed: %v", err)
	}
	if err := db.UpdateBoardRemoved(board.Id, true); err != nil {
		t.Fatalf("UpdateBoardRemoved failed: %v", err)
	}

	err, stored := db.ReadBoardById(board.Id)
	if err != nil {
		t.Fatalf("ReadBoardById failed: %v", err)
	}
	if !stored.Deleted || !stored.Removed {
		t.Error("Expected both flags to be set")
	}

	if err := db.UpdateBoardDeleted(board.Id, false); err != nil {
		t.Fatalf("UpdateBoardDeleted(false) failed: %v", err)
	}
	err, stored = db.ReadBoardById(board.Id)
	if err != nil {
		t.Fatalf("ReadBoardById failed: %v", err)
	}
	if stored.Deleted {
		t.Error("Expected delete flag to be cleared")
	}
	if !stored.Removed {
		t.Error("Expected removed flag to be untouched")
	}
}

func TestPostRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	board := testBoard("pangea.example", true)
	if err := db.CreateBoard(board); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}

	post := &domain.Post{
		Id:        uuid.New(),
		BoardId:   board.Id,
		AuthorURI: "https://pangea.example/@alice",
		Title:     "Tomatoes",
		Body:      "They grow.",
		Url:       "https://example.com/tomatoes",
		ObjectURI: "https://pangea.example/post/" + uuid.New().String(),
		Language:  "en",
		Local:     true,
		CreatedAt: time.Now(),
	}
	if err := db.CreatePost(post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	err, stored := db.ReadPostByObjectURI(post.ObjectURI)
	if err != nil {
		t.Fatalf("ReadPostByObjectURI failed: %v", err)
	}
	if stored.Title != "Tomatoes" {
		t.Errorf("Expected title 'Tomatoes', got '%s'", stored.Title)
	}
	if stored.Url != post.Url {
		t.Errorf("Expected url '%s', got '%s'", post.Url, stored.Url)
	}

	// Duplicate object URI is a unique violation
	dup := *post
	dup.Id = uuid.New()
	err = db.CreatePost(&dup)
	if err == nil {
		t.Fatal("Expected duplicate object URI to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("Expected a unique violation, got %v", err)
	}

	if err := db.UpdatePostContent(post.Id, "Cucumbers", "They also grow.", ""); err != nil {
		t.Fatalf("UpdatePostContent failed: %v", err)
	}
	err, stored = db.ReadPostById(post.Id)
	if err != nil {
		t.Fatalf("ReadPostById failed: %v", err)
	}
	if stored.Title != "Cucumbers" {
		t.Errorf("Expected updated title, got '%s'", stored.Title)
	}
	if stored.UpdatedAt == nil {
		t.Error("Expected edit to stamp updated_at")
	}
}

func TestCommentRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	board := testBoard("pangea.example", true)
	if err := db.CreateBoard(board); err != nil {
		t.Fatalf("CreateBoard failed: %v", err)
	}
	post := &domain.Post{
		Id:        uuid.New(),
		BoardId:   board.Id,
		AuthorURI: "https://pangea.example/@alice",
		Title:     "Tomatoes",
		ObjectURI: "https://pangea.example/post/" + uuid.New().String(),
		CreatedAt: time.Now(),
	}
	if err := db.CreatePost(post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	comment := &domain.Comment{
		Id:           uuid.New(),
		PostId:       post.Id,
		BoardId:      board.Id,
		AuthorURI:    "https://remote.example/@bob",
		Body:         "Nice tomatoes",
		ObjectURI:    "https://remote.example/comment/" + uuid.New().String(),
		InReplyToURI: post.ObjectURI,
		CreatedAt:    time.Now(),
	}
	if err := db.CreateComment(comment); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}

	err, stored := db.ReadCommentByObjectURI(comment.ObjectURI)
	if err != nil {
		t.Fatalf("ReadCommentByObjectURI failed: %v", err)
	}
	if stored.PostId != post.Id {
		t.Errorf("Expected comment on post %s, got %s", post.Id, stored.PostId)
	}
	if stored.InReplyToURI != post.ObjectURI {
		t.Errorf("Expected inReplyTo '%s', got '%s'", post.ObjectURI, stored.InReplyToURI)
	}
}

func TestVoteReplaceAndRemove(t *testing.T) {
	db := setupTestDB(t)

	objectURI := "https://pangea.example/post/" + uuid.New().String()
	actorURI := "https://remote.example/@bob"

	up := &domain.Vote{Id: uuid.New(), ActorURI: actorURI, ObjectURI: objectURI, Score: 1, CreatedAt: time.Now()}
	if err := db.ApplyVote(up); err != nil {
		t.Fatalf("ApplyVote failed: %v", err)
	}

	down := &domain.Vote{Id: uuid.New(), ActorURI: actorURI, ObjectURI: objectURI, Score: -1, CreatedAt: time.Now()}
	if err := db.ApplyVote(down); err != nil {
		t.Fatalf("ApplyVote (replace) failed: %v", err)
	}

	err, score := db.ScoreForObject(objectURI)
	if err != nil {
		t.Fatalf("ScoreForObject failed: %v", err)
	}
	if score != -1 {
		t.Errorf("Expected score -1 after replacement, got %d", score)
	}

	// A second voter stacks normally
	other := &domain.Vote{Id: uuid.New(), ActorURI: "https://remote.example/@carol", ObjectURI: objectURI, Score: 1, CreatedAt: time.Now()}
	if err := db.ApplyVote(other); err != nil {
		t.Fatalf("ApplyVote (second voter) failed: %v", err)
	}
	err, score = db.ScoreForObject(objectURI)
	if err != nil {
		t.Fatalf("ScoreForObject failed: %v", err)
	}
	if score != 0 {
		t.Errorf("Expected score 0 with two opposing votes, got %d", score)
	}

	if err := db.RemoveVote(actorURI, objectURI); err != nil {
		t.Fatalf("RemoveVote failed: %v", err)
	}
	err, score = db.ScoreForObject(objectURI)
	if err != nil {
		t.Fatalf("ScoreForObject failed: %v", err)
	}
	if score != 1 {
		t.Errorf("Expected score 1 after removal, got %d", score)
	}
}

func TestActivityLogUnique(t *testing.T) {
	db := setupTestDB(t)

	activity := &domain.Activity{
		Id:           uuid.New(),
		ActivityURI:  "https://remote.example/activities/1",
		ActivityType: "Create",
		ActorURI:     "https://remote.example/@alice",
		ObjectURI:    "https://remote.example/post/1",
		RawJSON:      "{}",
		CreatedAt:    time.Now(),
	}
	if err := db.CreateActivity(activity); err != nil {
		t.Fatalf("CreateActivity failed: %v", err)
	}

	dup := *activity
	dup.Id = uuid.New()
	err := db.CreateActivity(&dup)
	if err == nil {
		t.Fatal("Expected duplicate activity URI to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("Expected a unique violation, got %v", err)
	}

	err, stored := db.ReadActivityByURI(activity.ActivityURI)
	if err != nil {
		t.Fatalf("ReadActivityByURI failed: %v", err)
	}
	if stored.ActivityType != "Create" {
		t.Errorf("Expected type 'Create', got '%s'", stored.ActivityType)
	}
}

func TestDeliveryQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)

	item := &domain.DeliveryQueueItem{
		Id:           uuid.New(),
		InboxURI:     "https://remote.example/inbox",
		ActorURI:     "https://pangea.example/+gardening",
		ActivityJSON: "{}",
		Attempts:     0,
		NextRetryAt:  time.Now().Add(-time.Minute),
		CreatedAt:    time.Now(),
	}
	if err := db.EnqueueDelivery(item); err != nil {
		t.Fatalf("EnqueueDelivery failed: %v", err)
	}

	err, pending := db.ReadPendingDeliveries(10)
	if err != nil {
		t.Fatalf("ReadPendingDeliveries failed: %v", err)
	}
	if len(*pending) != 1 {
		t.Fatalf("Expected 1 pending delivery, got %d", len(*pending))
	}

	// Push the retry into the future; the item leaves the pending set
	if err := db.UpdateDeliveryAttempt(item.Id, 1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateDeliveryAttempt failed: %v", err)
	}
	err, pending = db.ReadPendingDeliveries(10)
	if err != nil {
		t.Fatalf("ReadPendingDeliveries failed: %v", err)
	}
	if len(*pending) != 0 {
		t.Errorf("Expected no pending deliveries, got %d", len(*pending))
	}

	if err := db.DeleteDelivery(item.Id); err != nil {
		t.Fatalf("DeleteDelivery failed: %v", err)
	}
}

func TestBoardModsAndBans(t *testing.T) {
	db := setupTestDB(t)

	boardId := uuid.New()
	modURI := "https://remote.example/@carol"

	mod := &domain.BoardMod{Id: uuid.New(), BoardId: boardId, ActorURI: modURI, Rank: 1, CreatedAt: time.Now()}
	if err := db.CreateBoardMod(mod); err != nil {
		t.Fatalf("CreateBoardMod failed: %v", err)
	}

	err, isMod := db.IsBoardMod(boardId, modURI)
	if err != nil {
		t.Fatalf("IsBoardMod failed: %v", err)
	}
	if !isMod {
		t.Error("Expected actor to be a moderator")
	}

	if err := db.DeleteBoardMod(boardId, modURI); err != nil {
		t.Fatalf("DeleteBoardMod failed: %v", err)
	}
	err, isMod = db.IsBoardMod(boardId, modURI)
	if err != nil {
		t.Fatalf("IsBoardMod failed: %v", err)
	}
	if isMod {
		t.Error("Expected moderator to be gone")
	}

	banURI := "https://remote.example/@mallory"
	ban := &domain.BoardBan{Id: uuid.New(), BoardId: boardId, ActorURI: banURI, Reason: "spam", CreatedAt: time.Now()}
	if err := db.CreateBoardBan(ban); err != nil {
		t.Fatalf("CreateBoardBan failed: %v", err)
	}
	err, banned := db.IsBannedFromBoard(boardId, banURI)
	if err != nil {
		t.Fatalf("IsBannedFromBoard failed: %v", err)
	}
	if !banned {
		t.Error("Expected actor to be banned")
	}

	if err := db.DeleteBoardBan(boardId, banURI); err != nil {
		t.Fatalf("DeleteBoardBan failed: %v", err)
	}
	err, banned = db.IsBannedFromBoard(boardId, banURI)
	if err != nil {
		t.Fatalf("IsBannedFromBoard failed: %v", err)
	}
	if banned {
		t.Error("Expected ban to be lifted")
	}
}

func TestModLogByBoardAndTarget(t *testing.T) {
	db := setupTestDB(t)

	boardId := uuid.New()
	targetURI := "https://pangea.example/post/" + uuid.New().String()

	entry := &domain.ModLogEntry{
		Id:           uuid.New(),
		Action:       domain.ModRemovePost,
		ModeratorURI: "https://remote.example/@carol",
		BoardId:      boardId,
		TargetURI:    targetURI,
		Reason:       "spam",
		CreatedAt:    time.Now(),
	}
	if err := db.CreateModLogEntry(entry); err != nil {
		t.Fatalf("CreateModLogEntry failed: %v", err)
	}

	err, byBoard := db.ReadModLogByBoardId(boardId, 10)
	if err != nil {
		t.Fatalf("ReadModLogByBoardId failed: %v", err)
	}
	if len(*byBoard) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(*byBoard))
	}
	if (*byBoard)[0].Action != domain.ModRemovePost {
		t.Errorf("Expected action '%s', got '%s'", domain.ModRemovePost, (*byBoard)[0].Action)
	}

	err, byTarget := db.ReadModLogByTarget(targetURI)
	if err != nil {
		t.Fatalf("ReadModLogByTarget failed: %v", err)
	}
	if len(*byTarget) != 1 {
		t.Errorf("Expected 1 entry by target, got %d", len(*byTarget))
	}
}

func TestRemoteAccountCache(t *testing.T) {
	db := setupTestDB(t)

	acc := &domain.RemoteAccount{
		Id:            uuid.New(),
		Username:      "alice",
		Domain:        "remote.example",
		ActorURI:      "https://remote.example/@alice",
		InboxURI:      "https://remote.example/@alice/inbox",
		PublicKeyPem:  "pem",
		LastFetchedAt: time.Now(),
	}
	if err := db.CreateRemoteAccount(acc); err != nil {
		t.Fatalf("CreateRemoteAccount failed: %v", err)
	}

	err, byHandle := db.ReadRemoteAccountByHandle("alice", "remote.example")
	if err != nil {
		t.Fatalf("ReadRemoteAccountByHandle failed: %v", err)
	}
	if byHandle.ActorURI != acc.ActorURI {
		t.Errorf("Expected actor URI '%s', got '%s'", acc.ActorURI, byHandle.ActorURI)
	}

	acc.DisplayName = "Alice the Gardener"
	if err := db.UpdateRemoteAccount(acc); err != nil {
		t.Fatalf("UpdateRemoteAccount failed: %v", err)
	}
	err, updated := db.ReadRemoteAccountByURI(acc.ActorURI)
	if err != nil {
		t.Fatalf("ReadRemoteAccountByURI failed: %v", err)
	}
	if updated.DisplayName != "Alice the Gardener" {
		t.Errorf("Expected updated display name, got '%s'", updated.DisplayName)
	}
}
