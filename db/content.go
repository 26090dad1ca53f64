package db

import (
	"database/sql"
	"time"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

const (
	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts(
                        id uuid NOT NULL PRIMARY KEY,
                        board_id uuid NOT NULL,
                        author_uri varchar(500) NOT NULL,
                        title varchar(255) NOT NULL,
                        body text default '',
                        url varchar(1000) default '',
                        object_uri varchar(500) UNIQUE NOT NULL,
                        language varchar(10) default '',
                        local int default 0,
                        deleted int default 0,
                        removed int default 0,
                        locked int default 0,
                        created_at timestamp default current_timestamp,
                        updated_at timestamp
                        )`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments(
                        id uuid NOT NULL PRIMARY KEY,
                        post_id uuid NOT NULL,
                        board_id uuid NOT NULL,
                        author_uri varchar(500) NOT NULL,
                        body text default '',
                        object_uri varchar(500) UNIQUE NOT NULL,
                        in_reply_to_uri varchar(500) default '',
                        language varchar(10) default '',
                        local int default 0,
                        deleted int default 0,
                        removed int default 0,
                        created_at timestamp default current_timestamp,
                        updated_at timestamp
                        )`

	sqlInsertPost = `INSERT INTO posts(id, board_id, author_uri, title, body, url, object_uri, language, local, deleted, removed, locked, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlSelectPostCols         = `SELECT id, board_id, author_uri, title, body, url, object_uri, language, local, deleted, removed, locked, created_at, updated_at FROM posts`
	sqlSelectPostById         = sqlSelectPostCols + ` WHERE id = ?`
	sqlSelectPostByObjectURI  = sqlSelectPostCols + ` WHERE object_uri = ?`
	sqlSelectPostsByBoardId   = sqlSelectPostCols + ` WHERE board_id = ? AND deleted = 0 AND removed = 0 ORDER BY created_at DESC LIMIT ?`
	sqlUpdatePostContent      = `UPDATE posts SET title = ?, body = ?, url = ?, updated_at = ? WHERE id = ?`
	sqlUpdatePostDeleted      = `UPDATE posts SET deleted = ? WHERE id = ?`
	sqlUpdatePostRemoved      = `UPDATE posts SET removed = ? WHERE id = ?`
	sqlUpdatePostLocked       = `UPDATE posts SET locked = ? WHERE id = ?`

	sqlInsertComment            = `INSERT INTO comments(id, post_id, board_id, author_uri, body, object_uri, in_reply_to_uri, language, local, deleted, removed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectCommentCols        = `SELECT id, post_id, board_id, author_uri, body, object_uri, in_reply_to_uri, language, local, deleted, removed, created_at, updated_at FROM comments`
	sqlSelectCommentById        = sqlSelectCommentCols + ` WHERE id = ?`
	sqlSelectCommentByObjectURI = sqlSelectCommentCols + ` WHERE object_uri = ?`
	sqlUpdateCommentContent     = `UPDATE comments SET body = ?, updated_at = ? WHERE id = ?`
	sqlUpdateCommentDeleted     = `UPDATE comments SET deleted = ? WHERE id = ?`
	sqlUpdateCommentRemoved     = `UPDATE comments SET removed = ? WHERE id = ?`

	sqlCreateVotesTable = `CREATE TABLE IF NOT EXISTS votes(
                        id uuid NOT NULL PRIMARY KEY,
                        actor_uri varchar(500) NOT NULL,
                        object_uri varchar(500) NOT NULL,
                        score int NOT NULL,
                        created_at timestamp default current_timestamp,
                        UNIQUE(actor_uri, object_uri)
                        )`
	sqlDeleteVote      = `DELETE FROM votes WHERE actor_uri = ? AND object_uri = ?`
	sqlInsertVote      = `INSERT INTO votes(id, actor_uri, object_uri, score, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectVote      = `SELECT id, actor_uri, object_uri, score, created_at FROM votes WHERE actor_uri = ? AND object_uri = ?`
	sqlSumVotesByObject = `SELECT COALESCE(SUM(score), 0) FROM votes WHERE object_uri = ?`
)

func (db *DB) CreatePost(p *domain.Post) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPost,
			p.Id.String(), p.BoardId.String(), p.AuthorURI, p.Title, p.Body,
			p.Url, p.ObjectURI, p.Language, boolToInt(p.Local),
			boolToInt(p.Deleted), boolToInt(p.Removed), boolToInt(p.Locked), p.CreatedAt)
		return err
	})
}

func (db *DB) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	return db.readPost(sqlSelectPostById, id.String())
}

func (db *DB) ReadPostByObjectURI(uri string) (error, *domain.Post) {
	return db.readPost(sqlSelectPostByObjectURI, uri)
}

func (db *DB) readPost(query string, arg interface{}) (error, *domain.Post) {
	row := db.db.QueryRow(query, arg)
	var p domain.Post
	var idStr, boardIdStr string
	var local, deleted, removed, locked int
	err := row.Scan(&idStr, &boardIdStr, &p.AuthorURI, &p.Title, &p.Body,
		&p.Url, &p.ObjectURI, &p.Language, &local, &deleted, &removed, &locked,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if p.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	if p.BoardId, err = uuid.Parse(boardIdStr); err != nil {
		return err, nil
	}
	p.Local = local != 0
	p.Deleted = deleted != 0
	p.Removed = removed != 0
	p.Locked = locked != 0
	return nil, &p
}

func (db *DB) ReadPostsByBoardId(boardId uuid.UUID, limit int) (error, *[]domain.Post) {
	rows, err := db.db.Query(sqlSelectPostsByBoardId, boardId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var posts []domain.Post

	for rows.Next() {
		var p domain.Post
		var idStr, boardIdStr string
		var local, deleted, removed, locked int
		if err := rows.Scan(&idStr, &boardIdStr, &p.AuthorURI, &p.Title, &p.Body,
			&p.Url, &p.ObjectURI, &p.Language, &local, &deleted, &removed, &locked,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return err, &posts
		}
		if id, err := uuid.Parse(idStr); err == nil {
			p.Id = id
		}
		if id, err := uuid.Parse(boardIdStr); err == nil {
			p.BoardId = id
		}
		p.Local = local != 0
		p.Deleted = deleted != 0
		p.Removed = removed != 0
		p.Locked = locked != 0
		posts = append(posts, p)
	}
	if err = rows.Err(); err != nil {
		return err, &posts
	}

	return nil, &posts
}

func (db *DB) UpdatePostContent(id uuid.UUID, title, body, url string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostContent, title, body, url, time.Now(), id.String())
		return err
	})
}

func (db *DB) UpdatePostDeleted(id uuid.UUID, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostDeleted, boolToInt(deleted), id.String())
		return err
	})
}

func (db *DB) UpdatePostRemoved(id uuid.UUID, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostRemoved, boolToInt(removed), id.String())
		return err
	})
}

func (db *DB) UpdatePostLocked(id uuid.UUID, locked bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostLocked, boolToInt(locked), id.String())
		return err
	})
}

func (db *DB) CreateComment(c *domain.Comment) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertComment,
			c.Id.String(), c.PostId.String(), c.BoardId.String(), c.AuthorURI,
			c.Body, c.ObjectURI, c.InReplyToURI, c.Language, boolToInt(c.Local),
			boolToInt(c.Deleted), boolToInt(c.Removed), c.CreatedAt)
		return err
	})
}

func (db *DB) ReadCommentById(id uuid.UUID) (error, *domain.Comment) {
	return db.readComment(sqlSelectCommentById, id.String())
}

func (db *DB) ReadCommentByObjectURI(uri string) (error, *domain.Comment) {
	return db.readComment(sqlSelectCommentByObjectURI, uri)
}

func (db *DB) readComment(query string, arg interface{}) (error, *domain.Comment) {
	row := db.db.QueryRow(query, arg)
	var c domain.Comment
	var idStr, postIdStr, boardIdStr string
	var local, deleted, removed int
	err := row.Scan(&idStr, &postIdStr, &boardIdStr, &c.AuthorURI, &c.Body,
		&c.ObjectURI, &c.InReplyToURI, &c.Language, &local, &deleted, &removed,
		&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if c.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	if c.PostId, err = uuid.Parse(postIdStr); err != nil {
		return err, nil
	}
	if c.BoardId, err = uuid.Parse(boardIdStr); err != nil {
		return err, nil
	}
	c.Local = local != 0
	c.Deleted = deleted != 0
	c.Removed = removed != 0
	return nil, &c
}

func (db *DB) UpdateCommentContent(id uuid.UUID, body string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateCommentContent, body, time.Now(), id.String())
		return err
	})
}

func (db *DB) UpdateCommentDeleted(id uuid.UUID, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateCommentDeleted, boolToInt(deleted), id.String())
		return err
	})
}

func (db *DB) UpdateCommentRemoved(id uuid.UUID, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateCommentRemoved, boolToInt(removed), id.String())
		return err
	})
}

// ApplyVote clears any prior vote by the actor on the object, then inserts
// the new one. A re-vote therefore replaces instead of stacking.
func (db *DB) ApplyVote(v *domain.Vote) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlDeleteVote, v.ActorURI, v.ObjectURI); err != nil {
			return err
		}
		_, err := tx.Exec(sqlInsertVote, v.Id.String(), v.ActorURI, v.ObjectURI, v.Score, v.CreatedAt)
		return err
	})
}

// RemoveVote deletes the vote for the (actor, object) pair. Removal is
// keyed by identity, never by score direction.
func (db *DB) RemoveVote(actorURI, objectURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteVote, actorURI, objectURI)
		return err
	})
}

func (db *DB) ReadVote(actorURI, objectURI string) (error, *domain.Vote) {
	row := db.db.QueryRow(sqlSelectVote, actorURI, objectURI)
	var v domain.Vote
	var idStr string
	err := row.Scan(&idStr, &v.ActorURI, &v.ObjectURI, &v.Score, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if v.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	return nil, &v
}

// ScoreForObject sums the votes on a post or comment object URI.
func (db *DB) ScoreForObject(objectURI string) (error, int) {
	var score int
	err := db.db.QueryRow(sqlSumVotesByObject, objectURI).Scan(&score)
	return err, score
}
