package web

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const activityJSON = "application/activity+json; charset=utf-8"

// Router starts the HTTP server: federation endpoints, webfinger and the
// board RSS feeds. It blocks until the server stops.
func Router(ctx *app.Context) error {
	log.Printf("Starting federation server on %s:%d", ctx.Conf.Conf.Host, ctx.Conf.Conf.HttpPort)
	g := NewRouter(ctx)
	return g.Run(fmt.Sprintf(":%d", ctx.Conf.Conf.HttpPort))
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(ctx *app.Context) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// RSS feed per board, served under the board's own path
	g.GET("/:actor/feed", func(c *gin.Context) {
		name, ok := strings.CutPrefix(c.Param("actor"), "+")
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		rss, err := BoardRSS(ctx, name)
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Header("Content-Type", "application/xml; charset=utf-8")
		c.Render(200, render.String{Format: "%s", Data: []interface{}{rss}})
	})

	if ctx.Conf.Conf.WithFederation {
		registerFederation(g, ctx)
	}

	return g
}

func registerFederation(g *gin.Engine, ctx *app.Context) {
	// Stricter rate limit for federation endpoints: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

	inboxChain := []gin.HandlerFunc{RateLimitMiddleware(apLimiter), maxBodySize, DigestMiddleware()}

	// Shared inbox. The pipeline routes by activity content, so every
	// local actor's deliveries land here identically.
	g.POST("/inbox", append(inboxChain, func(c *gin.Context) {
		log.Println("POST /inbox (shared inbox)")
		handleInboxRequest(c, ctx)
	})...)

	// Per-actor inbox, same pipeline
	g.POST("/:actor/inbox", append(inboxChain, func(c *gin.Context) {
		log.Printf("POST /%s/inbox", c.Param("actor"))
		handleInboxRequest(c, ctx)
	})...)

	// Actor documents: /@name is a person, /+name is a board
	g.GET("/:actor", func(c *gin.Context) {
		handleActor(c, ctx)
	})

	g.GET("/:actor/outbox", func(c *gin.Context) {
		handleBoardCollection(c, ctx, func(b *boardRoute) (interface{}, error) {
			return BoardOutbox(ctx, b.board)
		})
	})

	g.GET("/:actor/followers", func(c *gin.Context) {
		handleBoardCollection(c, ctx, func(b *boardRoute) (interface{}, error) {
			return BoardFollowers(ctx, b.board)
		})
	})

	g.GET("/:actor/moderators", func(c *gin.Context) {
		handleBoardCollection(c, ctx, func(b *boardRoute) (interface{}, error) {
			return BoardModerators(ctx, b.board)
		})
	})

	g.GET("/:actor/featured", func(c *gin.Context) {
		handleBoardCollection(c, ctx, func(b *boardRoute) (interface{}, error) {
			return BoardFeatured(ctx, b.board), nil
		})
	})

	g.GET("/post/:id", func(c *gin.Context) {
		handleObject(c, func(id uuid.UUID) (interface{}, bool, error) {
			return PostObject(ctx, id)
		})
	})

	g.GET("/comment/:id", func(c *gin.Context) {
		handleObject(c, func(id uuid.UUID) (interface{}, bool, error) {
			return CommentObject(ctx, id)
		})
	})

	// Replay of previously logged local activities
	g.GET("/activities/:type/:id", func(c *gin.Context) {
		c.Header("Content-Type", activityJSON)
		raw, status, _ := ActivityReplay(ctx, c.Param("type"), c.Param("id"))
		if status != 200 {
			c.Status(status)
			return
		}
		c.Render(200, render.String{Format: "%s", Data: []interface{}{raw}})
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		resp, err := Webfinger(ctx, c.Query("resource"))
		if err != nil {
			c.Render(404, render.String{Format: WebFingerNotFound()})
			return
		}
		c.JSON(200, resp)
	})
}

func handleInboxRequest(c *gin.Context, ctx *app.Context) {
	body, err := c.GetRawData()
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	status, err := activitypub.HandleInbox(ctx, c.Request, body)
	if err != nil {
		log.Printf("Inbox: Rejected with %d: %v", status, err)
	}
	c.Status(status)
}

func handleActor(c *gin.Context, ctx *app.Context) {
	c.Header("Content-Type", activityJSON)
	actor := c.Param("actor")

	if name, ok := strings.CutPrefix(actor, "+"); ok {
		err, board := ctx.DB.ReadBoardByName(name, ctx.Conf.Conf.SslDomain)
		if err != nil || board == nil || !board.Local {
			c.JSON(404, gin.H{"error": "Board not found"})
			return
		}
		if board.Deleted || board.Removed {
			c.JSON(http.StatusGone, activitypub.NewTombstone(board.ActorURI, activitypub.ActorTypeGroup))
			return
		}
		c.JSON(200, BoardActor(ctx, board))
		return
	}

	if name, ok := strings.CutPrefix(actor, "@"); ok {
		doc, err := PersonActor(ctx, name)
		if err != nil {
			c.JSON(404, gin.H{"error": "Account not found"})
			return
		}
		c.JSON(200, doc)
		return
	}

	c.JSON(404, gin.H{"error": "Not found"})
}

type boardRoute struct {
	board *domain.Board
}

func handleBoardCollection(c *gin.Context, ctx *app.Context, build func(*boardRoute) (interface{}, error)) {
	c.Header("Content-Type", activityJSON)

	name, ok := strings.CutPrefix(c.Param("actor"), "+")
	if !ok {
		// Person collections exist but stay private
		c.JSON(200, &activitypub.OrderedCollection{
			AtContext: activitypub.ActivityStreamsContext,
			Type:      "OrderedCollection",
		})
		return
	}

	err, board := ctx.DB.ReadBoardByName(name, ctx.Conf.Conf.SslDomain)
	if err != nil || board == nil || !board.Local {
		c.JSON(404, gin.H{"error": "Board not found"})
		return
	}
	if board.Deleted || board.Removed {
		c.JSON(http.StatusGone, activitypub.NewTombstone(board.ActorURI, activitypub.ActorTypeGroup))
		return
	}

	doc, err := build(&boardRoute{board: board})
	if err != nil {
		c.JSON(500, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(200, doc)
}

func handleObject(c *gin.Context, lookup func(uuid.UUID) (interface{}, bool, error)) {
	c.Header("Content-Type", activityJSON)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "Invalid object ID"})
		return
	}

	doc, gone, err := lookup(id)
	if err != nil {
		c.JSON(404, gin.H{"error": "Object not found"})
		return
	}
	if gone {
		c.JSON(http.StatusGone, doc)
		return
	}
	c.JSON(200, doc)
}
