package boards

import (
	"fmt"
	"testing"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
)

func newTestContext(t *testing.T, downvotes bool) *app.Context {
	t.Helper()
	database, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := database.RunFederationMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	conf := &util.AppConfig{}
	conf.Conf.Host = "localhost"
	conf.Conf.SslDomain = "pangea.example"
	conf.Conf.EnableDownvotes = downvotes
	return app.NewContext(conf, database)
}

func testAccount() domain.Account {
	return domain.Account{
		Id:        uuid.New(),
		Username:  "alice",
		CreatedAt: time.Now(),
	}
}

func TestCreateBoardUsesDownvotePolicy(t *testing.T) {
	for _, downvotes := range []bool{true, false} {
		t.Run(fmt.Sprintf("downvotes_%v", downvotes), func(t *testing.T) {
			ctx := newTestContext(t, downvotes)

			createBoardModelCmd(ctx, testAccount(), "gardening")()

			err, board := ctx.DB.ReadBoardByName("gardening", "pangea.example")
			if err != nil {
				t.Fatalf("Failed to read created board: %v", err)
			}
			if board.EnableDownvotes != downvotes {
				t.Errorf("Expected EnableDownvotes=%v from config, got %v", downvotes, board.EnableDownvotes)
			}
		})
	}
}

func TestCreateBoardInstallsCreatorAsMod(t *testing.T) {
	ctx := newTestContext(t, true)
	acc := testAccount()

	createBoardModelCmd(ctx, acc, "gardening")()

	err, board := ctx.DB.ReadBoardByName("gardening", "pangea.example")
	if err != nil {
		t.Fatalf("Failed to read created board: %v", err)
	}
	if !board.Local {
		t.Error("Expected a local board")
	}
	if board.PrivateKeyPem == "" || board.PublicKeyPem == "" {
		t.Error("Expected the board to carry its own keypair")
	}

	err, isMod := ctx.DB.IsBoardMod(board.Id, "https://pangea.example/@alice")
	if err != nil {
		t.Fatalf("IsBoardMod failed: %v", err)
	}
	if !isMod {
		t.Error("Expected the creator to be installed as moderator")
	}
}
