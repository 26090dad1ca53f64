package activitypub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/db"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

const (
	// FetchLimitMax bounds how many items a single collection page fetch
	// pulls from a remote instance.
	FetchLimitMax = 50

	// MaxCommentDepth caps the parent-chain walk when resolving a reply
	// whose ancestors are not known locally.
	MaxCommentDepth = 25
)

// PostOrComment points at exactly one of a post or a comment. Both nil
// means the object is unknown.
type PostOrComment struct {
	Post    *domain.Post
	Comment *domain.Comment
}

func (pc PostOrComment) IsZero() bool {
	return pc.Post == nil && pc.Comment == nil
}

// ObjectURI returns the canonical id of whichever object is present.
func (pc PostOrComment) ObjectURI() string {
	if pc.Post != nil {
		return pc.Post.ObjectURI
	}
	if pc.Comment != nil {
		return pc.Comment.ObjectURI
	}
	return ""
}

// BoardId returns the board whichever object belongs to.
func (pc PostOrComment) BoardId() uuid.UUID {
	if pc.Post != nil {
		return pc.Post.BoardId
	}
	if pc.Comment != nil {
		return pc.Comment.BoardId
	}
	return uuid.Nil
}

// ReadPostOrComment looks an object URI up locally, posts first.
func ReadPostOrComment(ctx *app.Context, objectURI string) (PostOrComment, error) {
	err, post := ctx.DB.ReadPostByObjectURI(objectURI)
	if err == nil && post != nil {
		return PostOrComment{Post: post}, nil
	}
	err, comment := ctx.DB.ReadCommentByObjectURI(objectURI)
	if err == nil && comment != nil {
		return PostOrComment{Comment: comment}, nil
	}
	return PostOrComment{}, &ResolutionError{Target: objectURI}
}

// remoteObject is the union of the Page and Note fields the resolver
// needs before it knows which one it fetched.
type remoteObject struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	AttributedTo string     `json:"attributedTo"`
	Audience     string     `json:"audience"`
	Name         string     `json:"name"`
	Content      string     `json:"content"`
	URL          string     `json:"url"`
	InReplyTo    string     `json:"inReplyTo"`
	Published    *time.Time `json:"published"`
}

func fetchRemoteObject(ctx *app.Context, objectURI string) (*remoteObject, error) {
	body, err := fetchActivityJSON(ctx, objectURI)
	if err != nil {
		return nil, &ResolutionError{Target: objectURI, Err: err}
	}

	var obj remoteObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &ResolutionError{Target: objectURI, Err: fmt.Errorf("failed to parse object JSON: %w", err)}
	}
	if obj.ID == "" || obj.AttributedTo == "" {
		return nil, &ResolutionError{Target: objectURI, Err: fmt.Errorf("object missing required fields")}
	}
	return &obj, nil
}

// storeFetchedPost mirrors a remote Page locally.
func storeFetchedPost(ctx *app.Context, obj *remoteObject, board *domain.Board) (*domain.Post, error) {
	published := time.Now()
	if obj.Published != nil {
		published = *obj.Published
	}
	post := &domain.Post{
		Id:        uuid.New(),
		BoardId:   board.Id,
		AuthorURI: obj.AttributedTo,
		ObjectURI: obj.ID,
		Title:     obj.Name,
		Body:      obj.Content,
		Url:       obj.URL,
		Local:     false,
		CreatedAt: published,
	}
	if err := ctx.DB.CreatePost(post); err != nil {
		if db.IsUniqueViolation(err) {
			if rerr, existing := ctx.DB.ReadPostByObjectURI(obj.ID); rerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return post, nil
}

func storeFetchedComment(ctx *app.Context, obj *remoteObject, postId, boardId uuid.UUID) (*domain.Comment, error) {
	published := time.Now()
	if obj.Published != nil {
		published = *obj.Published
	}
	comment := &domain.Comment{
		Id:           uuid.New(),
		PostId:       postId,
		BoardId:      boardId,
		AuthorURI:    obj.AttributedTo,
		ObjectURI:    obj.ID,
		InReplyToURI: obj.InReplyTo,
		Body:         obj.Content,
		Local:        false,
		CreatedAt:    published,
	}
	if err := ctx.DB.CreateComment(comment); err != nil {
		if db.IsUniqueViolation(err) {
			if rerr, existing := ctx.DB.ReadCommentByObjectURI(obj.ID); rerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return comment, nil
}

// ResolveObject returns the local mirror of objectURI, fetching and
// storing the object and its missing ancestors first when necessary.
//
// The walk is iterative: unknown parents are pushed onto a stack until a
// locally known anchor or a Page is reached, then the chain is stored
// root-first so every comment lands with its post id already resolved.
// A chain deeper than MaxCommentDepth fails the whole resolution.
func ResolveObject(ctx *app.Context, objectURI string) (PostOrComment, error) {
	if known, err := ReadPostOrComment(ctx, objectURI); err == nil {
		return known, nil
	}

	var pending []*remoteObject
	cursor := objectURI
	var anchor PostOrComment

	for {
		if len(pending) >= MaxCommentDepth {
			return PostOrComment{}, &ResolutionError{
				Target: objectURI,
				Err:    fmt.Errorf("reply chain exceeds depth %d", MaxCommentDepth),
			}
		}

		obj, err := fetchRemoteObject(ctx, cursor)
		if err != nil {
			return PostOrComment{}, err
		}

		switch obj.Type {
		case ObjectTypePage:
			board, err := boardForObject(ctx, obj)
			if err != nil {
				return PostOrComment{}, err
			}
			post, err := storeFetchedPost(ctx, obj, board)
			if err != nil {
				return PostOrComment{}, err
			}
			anchor = PostOrComment{Post: post}
		case ObjectTypeNote:
			if obj.InReplyTo == "" {
				return PostOrComment{}, &ResolutionError{
					Target: obj.ID,
					Err:    fmt.Errorf("comment has no inReplyTo"),
				}
			}
			pending = append(pending, obj)
			if known, err := ReadPostOrComment(ctx, obj.InReplyTo); err == nil {
				anchor = known
			} else {
				cursor = obj.InReplyTo
				continue
			}
		default:
			return PostOrComment{}, &ResolutionError{
				Target: cursor,
				Err:    fmt.Errorf("unsupported object type %q", obj.Type),
			}
		}
		break
	}

	// Unwind: store the fetched replies from the anchor down
	var parentPostId uuid.UUID
	boardId := anchor.BoardId()
	if anchor.Post != nil {
		parentPostId = anchor.Post.Id
	} else if anchor.Comment != nil {
		parentPostId = anchor.Comment.PostId
	}

	result := anchor
	for i := len(pending) - 1; i >= 0; i-- {
		comment, err := storeFetchedComment(ctx, pending[i], parentPostId, boardId)
		if err != nil {
			return PostOrComment{}, err
		}
		result = PostOrComment{Comment: comment}
	}

	return result, nil
}

// boardForObject resolves the board a fetched object claims via its
// audience field. Objects without an audience cannot be placed and are
// rejected.
func boardForObject(ctx *app.Context, obj *remoteObject) (*domain.Board, error) {
	if obj.Audience == "" {
		return nil, &ResolutionError{
			Target: obj.ID,
			Err:    fmt.Errorf("object has no audience"),
		}
	}
	board, err := GetOrFetchBoard(ctx, obj.Audience)
	if err != nil {
		return nil, err
	}
	return board, nil
}
