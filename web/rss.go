package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/deemkeen/glyptodon/app"
	"github.com/gorilla/feeds"
)

// BoardRSS renders a local board's recent posts as an RSS feed.
func BoardRSS(ctx *app.Context, boardName string) (string, error) {
	err, board := ctx.DB.ReadBoardByName(boardName, ctx.Conf.Conf.SslDomain)
	if err != nil || board == nil || board.Deleted || board.Removed {
		log.Println(fmt.Sprintf("Could not get board %s!", boardName), err)
		return "", errors.New("error retrieving board")
	}

	err, posts := ctx.DB.ReadPostsByBoardId(board.Id, activitypub.FetchLimitMax)
	if err != nil || posts == nil {
		log.Println(fmt.Sprintf("Could not get posts from +%s!", boardName), err)
		return "", errors.New("error retrieving board posts")
	}

	title := board.Title
	if title == "" {
		title = "+" + board.Name
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Glyptodon - %s", title),
		Link:        &feeds.Link{Href: board.ActorURI},
		Description: board.Description,
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, post := range *posts {
		if post.Deleted || post.Removed {
			continue
		}
		feedItems = append(feedItems,
			&feeds.Item{
				Id:      post.ObjectURI,
				Title:   post.Title,
				Link:    &feeds.Link{Href: post.ObjectURI},
				Content: post.Body,
				Author:  &feeds.Author{Name: post.AuthorURI},
				Created: post.CreatedAt,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}
