package db

import (
	"database/sql"
	"time"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

const (
	sqlCreateBoardsTable = `CREATE TABLE IF NOT EXISTS boards(
                        id uuid NOT NULL PRIMARY KEY,
                        name varchar(100) NOT NULL,
                        title varchar(255) default '',
                        description text default '',
                        domain varchar(255) NOT NULL,
                        local int default 0,
                        actor_uri varchar(500) UNIQUE NOT NULL,
                        inbox_uri varchar(500) default '',
                        shared_inbox_uri varchar(500) default '',
                        outbox_uri varchar(500) default '',
                        moderators_uri varchar(500) default '',
                        featured_uri varchar(500) default '',
                        public_key_pem text default '',
                        private_key_pem text default '',
                        enable_downvotes int default 1,
                        deleted int default 0,
                        removed int default 0,
                        created_at timestamp default current_timestamp,
                        last_refreshed_at timestamp default current_timestamp,
                        UNIQUE(name, domain)
                        )`

	sqlInsertBoard = `INSERT INTO boards(id, name, title, description, domain, local, actor_uri, inbox_uri, shared_inbox_uri, outbox_uri, moderators_uri, featured_uri, public_key_pem, private_key_pem, enable_downvotes, deleted, removed, created_at, last_refreshed_at)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlSelectBoardCols = `SELECT id, name, title, description, domain, local, actor_uri, inbox_uri, shared_inbox_uri, outbox_uri, moderators_uri, featured_uri, public_key_pem, private_key_pem, enable_downvotes, deleted, removed, created_at, last_refreshed_at FROM boards`

	sqlSelectBoardById       = sqlSelectBoardCols + ` WHERE id = ?`
	sqlSelectBoardByActorURI = sqlSelectBoardCols + ` WHERE actor_uri = ?`
	sqlSelectBoardByName     = sqlSelectBoardCols + ` WHERE name = ? AND domain = ?`
	sqlSelectLocalBoards     = sqlSelectBoardCols + ` WHERE local = 1 ORDER BY name`
	sqlSelectRemoteBoards    = sqlSelectBoardCols + ` WHERE local = 0 ORDER BY name`

	sqlUpdateBoardRefresh = `UPDATE boards SET title = ?, description = ?, inbox_uri = ?, shared_inbox_uri = ?, outbox_uri = ?, moderators_uri = ?, featured_uri = ?, public_key_pem = ?, enable_downvotes = ?, last_refreshed_at = ? WHERE actor_uri = ?`
	sqlUpdateBoardDeleted = `UPDATE boards SET deleted = ? WHERE id = ?`
	sqlUpdateBoardRemoved = `UPDATE boards SET removed = ? WHERE id = ?`
)

func (db *DB) CreateBoard(b *domain.Board) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBoard,
			b.Id.String(), b.Name, b.Title, b.Description, b.Domain,
			boolToInt(b.Local), b.ActorURI, b.InboxURI, b.SharedInboxURI,
			b.OutboxURI, b.ModeratorsURI, b.FeaturedURI,
			b.PublicKeyPem, b.PrivateKeyPem, boolToInt(b.EnableDownvotes),
			boolToInt(b.Deleted), boolToInt(b.Removed), b.CreatedAt, b.LastRefreshedAt)
		return err
	})
}

func (db *DB) ReadBoardById(id uuid.UUID) (error, *domain.Board) {
	return db.readBoard(sqlSelectBoardById, id.String())
}

func (db *DB) ReadBoardByActorURI(uri string) (error, *domain.Board) {
	return db.readBoard(sqlSelectBoardByActorURI, uri)
}

func (db *DB) ReadBoardByName(name string, boardDomain string) (error, *domain.Board) {
	return db.readBoard(sqlSelectBoardByName, name, boardDomain)
}

func (db *DB) readBoard(query string, args ...interface{}) (error, *domain.Board) {
	row := db.db.QueryRow(query, args...)
	var b domain.Board
	var idStr string
	var local, downvotes, deleted, removed int
	err := row.Scan(&idStr, &b.Name, &b.Title, &b.Description, &b.Domain,
		&local, &b.ActorURI, &b.InboxURI, &b.SharedInboxURI, &b.OutboxURI,
		&b.ModeratorsURI, &b.FeaturedURI, &b.PublicKeyPem, &b.PrivateKeyPem,
		&downvotes, &deleted, &removed, &b.CreatedAt, &b.LastRefreshedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	b.Id, err = uuid.Parse(idStr)
	if err != nil {
		return err, nil
	}
	b.Local = local != 0
	b.EnableDownvotes = downvotes != 0
	b.Deleted = deleted != 0
	b.Removed = removed != 0
	return nil, &b
}

func (db *DB) ReadLocalBoards() (error, *[]domain.Board) {
	return db.readBoards(sqlSelectLocalBoards)
}

func (db *DB) ReadRemoteBoards() (error, *[]domain.Board) {
	return db.readBoards(sqlSelectRemoteBoards)
}

func (db *DB) readBoards(query string) (error, *[]domain.Board) {
	rows, err := db.db.Query(query)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var boards []domain.Board

	for rows.Next() {
		var b domain.Board
		var idStr string
		var local, downvotes, deleted, removed int
		if err := rows.Scan(&idStr, &b.Name, &b.Title, &b.Description, &b.Domain,
			&local, &b.ActorURI, &b.InboxURI, &b.SharedInboxURI, &b.OutboxURI,
			&b.ModeratorsURI, &b.FeaturedURI, &b.PublicKeyPem, &b.PrivateKeyPem,
			&downvotes, &deleted, &removed, &b.CreatedAt, &b.LastRefreshedAt); err != nil {
			return err, &boards
		}
		if id, err := uuid.Parse(idStr); err == nil {
			b.Id = id
		}
		b.Local = local != 0
		b.EnableDownvotes = downvotes != 0
		b.Deleted = deleted != 0
		b.Removed = removed != 0
		boards = append(boards, b)
	}
	if err = rows.Err(); err != nil {
		return err, &boards
	}

	return nil, &boards
}

// UpdateBoardFromRefresh overwrites the mutable fields of a mirrored board
// with freshly fetched values. The actor URI itself never changes.
func (db *DB) UpdateBoardFromRefresh(b *domain.Board) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateBoardRefresh,
			b.Title, b.Description, b.InboxURI, b.SharedInboxURI,
			b.OutboxURI, b.ModeratorsURI, b.FeaturedURI, b.PublicKeyPem,
			boolToInt(b.EnableDownvotes), time.Now(), b.ActorURI)
		return err
	})
}

func (db *DB) UpdateBoardDeleted(id uuid.UUID, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateBoardDeleted, boolToInt(deleted), id.String())
		return err
	})
}

func (db *DB) UpdateBoardRemoved(id uuid.UUID, removed bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateBoardRemoved, boolToInt(removed), id.String())
		return err
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
