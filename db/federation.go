package db

import (
	"database/sql"
	"time"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

// Remote account queries
const (
	sqlInsertRemoteAccount      = `INSERT INTO remote_accounts(id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, public_key_pem, avatar_url, deleted, last_fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRemoteAccountCols  = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, public_key_pem, avatar_url, deleted, last_fetched_at FROM remote_accounts`
	sqlSelectRemoteAccountByURI = sqlSelectRemoteAccountCols + ` WHERE actor_uri = ?`
	sqlSelectRemoteAccountById  = sqlSelectRemoteAccountCols + ` WHERE id = ?`
	sqlSelectRemoteAccByHandle  = sqlSelectRemoteAccountCols + ` WHERE username = ? AND domain = ?`
	sqlUpdateRemoteAccount      = `UPDATE remote_accounts SET display_name = ?, summary = ?, inbox_uri = ?, shared_inbox_uri = ?, outbox_uri = ?, public_key_pem = ?, avatar_url = ?, last_fetched_at = ? WHERE actor_uri = ?`
	sqlUpdateRemoteAccDeleted   = `UPDATE remote_accounts SET deleted = ? WHERE actor_uri = ?`
)

func (db *DB) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRemoteAccount,
			acc.Id.String(), acc.Username, acc.Domain, acc.ActorURI,
			acc.DisplayName, acc.Summary, acc.InboxURI, acc.SharedInboxURI,
			acc.OutboxURI, acc.PublicKeyPem, acc.AvatarURL,
			boolToInt(acc.Deleted), acc.LastFetchedAt)
		return err
	})
}

func (db *DB) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteAccount,
			acc.DisplayName, acc.Summary, acc.InboxURI, acc.SharedInboxURI,
			acc.OutboxURI, acc.PublicKeyPem, acc.AvatarURL,
			acc.LastFetchedAt, acc.ActorURI)
		return err
	})
}

// MarkRemoteAccountDeleted tombstones a remote actor. The row is kept so
// the id stays resolvable.
func (db *DB) MarkRemoteAccountDeleted(actorURI string, deleted bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteAccDeleted, boolToInt(deleted), actorURI)
		return err
	})
}

func (db *DB) ReadRemoteAccountByURI(uri string) (error, *domain.RemoteAccount) {
	return db.readRemoteAccount(sqlSelectRemoteAccountByURI, uri)
}

func (db *DB) ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount) {
	return db.readRemoteAccount(sqlSelectRemoteAccountById, id.String())
}

func (db *DB) ReadRemoteAccountByHandle(username, accDomain string) (error, *domain.RemoteAccount) {
	return db.readRemoteAccount(sqlSelectRemoteAccByHandle, username, accDomain)
}

func (db *DB) readRemoteAccount(query string, args ...interface{}) (error, *domain.RemoteAccount) {
	row := db.db.QueryRow(query, args...)
	var acc domain.RemoteAccount
	var idStr string
	var deleted int
	err := row.Scan(&idStr, &acc.Username, &acc.Domain, &acc.ActorURI,
		&acc.DisplayName, &acc.Summary, &acc.InboxURI, &acc.SharedInboxURI,
		&acc.OutboxURI, &acc.PublicKeyPem, &acc.AvatarURL, &deleted,
		&acc.LastFetchedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if acc.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	acc.Deleted = deleted != 0
	return nil, &acc
}

// Subscription queries
const (
	sqlInsertSubscription        = `INSERT INTO subscriptions(id, board_id, actor_uri, uri, local, pending, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectSubscriptionCols    = `SELECT id, board_id, actor_uri, uri, local, pending, created_at FROM subscriptions`
	sqlSelectSubscription        = sqlSelectSubscriptionCols + ` WHERE board_id = ? AND actor_uri = ?`
	sqlSelectSubsByBoardId       = sqlSelectSubscriptionCols + ` WHERE board_id = ? AND pending = 0`
	sqlDeleteSubscriptionByURI   = `DELETE FROM subscriptions WHERE uri = ?`
	sqlDeleteSubscription        = `DELETE FROM subscriptions WHERE board_id = ? AND actor_uri = ?`
	sqlAcceptSubscriptionByURI   = `UPDATE subscriptions SET pending = 0 WHERE uri = ?`
)

func (db *DB) CreateSubscription(s *domain.Subscription) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertSubscription,
			s.Id.String(), s.BoardId.String(), s.ActorURI, s.URI,
			boolToInt(s.Local), boolToInt(s.Pending), s.CreatedAt)
		return err
	})
}

func (db *DB) ReadSubscription(boardId uuid.UUID, actorURI string) (error, *domain.Subscription) {
	row := db.db.QueryRow(sqlSelectSubscription, boardId.String(), actorURI)
	return scanSubscription(row)
}

func (db *DB) ReadSubscriptionsByBoardId(boardId uuid.UUID) (error, *[]domain.Subscription) {
	rows, err := db.db.Query(sqlSelectSubsByBoardId, boardId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var subs []domain.Subscription

	for rows.Next() {
		var s domain.Subscription
		var idStr, boardIdStr string
		var local, pending int
		if err := rows.Scan(&idStr, &boardIdStr, &s.ActorURI, &s.URI, &local, &pending, &s.CreatedAt); err != nil {
			return err, &subs
		}
		if id, err := uuid.Parse(idStr); err == nil {
			s.Id = id
		}
		if id, err := uuid.Parse(boardIdStr); err == nil {
			s.BoardId = id
		}
		s.Local = local != 0
		s.Pending = pending != 0
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return err, &subs
	}

	return nil, &subs
}

func scanSubscription(row *sql.Row) (error, *domain.Subscription) {
	var s domain.Subscription
	var idStr, boardIdStr string
	var local, pending int
	err := row.Scan(&idStr, &boardIdStr, &s.ActorURI, &s.URI, &local, &pending, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if s.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	if s.BoardId, err = uuid.Parse(boardIdStr); err != nil {
		return err, nil
	}
	s.Local = local != 0
	s.Pending = pending != 0
	return nil, &s
}

func (db *DB) DeleteSubscriptionByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteSubscriptionByURI, uri)
		return err
	})
}

func (db *DB) DeleteSubscription(boardId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteSubscription, boardId.String(), actorURI)
		return err
	})
}

func (db *DB) AcceptSubscriptionByURI(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptSubscriptionByURI, uri)
		return err
	})
}

// Moderator and ban queries
const (
	sqlInsertBoardMod      = `INSERT INTO board_mods(id, board_id, actor_uri, rank, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectBoardMods     = `SELECT id, board_id, actor_uri, rank, created_at FROM board_mods WHERE board_id = ? ORDER BY rank`
	sqlSelectBoardMod      = `SELECT COUNT(*) FROM board_mods WHERE board_id = ? AND actor_uri = ?`
	sqlDeleteBoardMod      = `DELETE FROM board_mods WHERE board_id = ? AND actor_uri = ?`
	sqlInsertBoardBan      = `INSERT INTO board_bans(id, board_id, actor_uri, reason, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectBoardBanCount = `SELECT COUNT(*) FROM board_bans WHERE board_id = ? AND actor_uri = ?`
	sqlDeleteBoardBan      = `DELETE FROM board_bans WHERE board_id = ? AND actor_uri = ?`
)

func (db *DB) CreateBoardMod(m *domain.BoardMod) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBoardMod, m.Id.String(), m.BoardId.String(), m.ActorURI, m.Rank, m.CreatedAt)
		return err
	})
}

func (db *DB) DeleteBoardMod(boardId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteBoardMod, boardId.String(), actorURI)
		return err
	})
}

func (db *DB) ReadBoardMods(boardId uuid.UUID) (error, *[]domain.BoardMod) {
	rows, err := db.db.Query(sqlSelectBoardMods, boardId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var mods []domain.BoardMod

	for rows.Next() {
		var m domain.BoardMod
		var idStr, boardIdStr string
		if err := rows.Scan(&idStr, &boardIdStr, &m.ActorURI, &m.Rank, &m.CreatedAt); err != nil {
			return err, &mods
		}
		if id, err := uuid.Parse(idStr); err == nil {
			m.Id = id
		}
		if id, err := uuid.Parse(boardIdStr); err == nil {
			m.BoardId = id
		}
		mods = append(mods, m)
	}
	if err = rows.Err(); err != nil {
		return err, &mods
	}

	return nil, &mods
}

func (db *DB) IsBoardMod(boardId uuid.UUID, actorURI string) (error, bool) {
	var count int
	err := db.db.QueryRow(sqlSelectBoardMod, boardId.String(), actorURI).Scan(&count)
	return err, count > 0
}

func (db *DB) CreateBoardBan(b *domain.BoardBan) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBoardBan, b.Id.String(), b.BoardId.String(), b.ActorURI, b.Reason, b.CreatedAt)
		return err
	})
}

func (db *DB) DeleteBoardBan(boardId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteBoardBan, boardId.String(), actorURI)
		return err
	})
}

func (db *DB) IsBannedFromBoard(boardId uuid.UUID, actorURI string) (error, bool) {
	var count int
	err := db.db.QueryRow(sqlSelectBoardBanCount, boardId.String(), actorURI).Scan(&count)
	return err, count > 0
}

// Activity log queries
const (
	sqlInsertActivity            = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, local, sensitive, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActivityCols        = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, local, sensitive, created_at FROM activities`
	sqlSelectActivityByURI       = sqlSelectActivityCols + ` WHERE activity_uri = ?`
	sqlSelectActivityByObjectURI = sqlSelectActivityCols + ` WHERE object_uri = ? ORDER BY created_at DESC`
	sqlSelectRecentActivities    = sqlSelectActivityCols + ` ORDER BY created_at DESC LIMIT ?`
)

// CreateActivity inserts a log row. The UNIQUE constraint on activity_uri
// makes this the idempotence gate; callers check IsUniqueViolation.
func (db *DB) CreateActivity(activity *domain.Activity) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			activity.Id.String(), activity.ActivityURI, activity.ActivityType,
			activity.ActorURI, activity.ObjectURI, activity.RawJSON,
			boolToInt(activity.Local), boolToInt(activity.Sensitive), activity.CreatedAt)
		return err
	})
}

func (db *DB) ReadActivityByURI(uri string) (error, *domain.Activity) {
	return db.readActivity(sqlSelectActivityByURI, uri)
}

func (db *DB) ReadActivityByObjectURI(uri string) (error, *domain.Activity) {
	return db.readActivity(sqlSelectActivityByObjectURI, uri)
}

func (db *DB) readActivity(query string, arg interface{}) (error, *domain.Activity) {
	row := db.db.QueryRow(query, arg)
	var a domain.Activity
	var idStr string
	var local, sensitive int
	err := row.Scan(&idStr, &a.ActivityURI, &a.ActivityType, &a.ActorURI,
		&a.ObjectURI, &a.RawJSON, &local, &sensitive, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	if a.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	a.Local = local != 0
	a.Sensitive = sensitive != 0
	return nil, &a
}

func (db *DB) ReadRecentActivities(limit int) (error, *[]domain.Activity) {
	rows, err := db.db.Query(sqlSelectRecentActivities, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var activities []domain.Activity

	for rows.Next() {
		var a domain.Activity
		var idStr string
		var local, sensitive int
		if err := rows.Scan(&idStr, &a.ActivityURI, &a.ActivityType, &a.ActorURI,
			&a.ObjectURI, &a.RawJSON, &local, &sensitive, &a.CreatedAt); err != nil {
			return err, &activities
		}
		if id, err := uuid.Parse(idStr); err == nil {
			a.Id = id
		}
		a.Local = local != 0
		a.Sensitive = sensitive != 0
		activities = append(activities, a)
	}
	if err = rows.Err(); err != nil {
		return err, &activities
	}

	return nil, &activities
}

// Moderation log queries
const (
	sqlInsertModLogEntry     = `INSERT INTO mod_log(id, action, moderator_uri, board_id, target_uri, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectModLogByBoardId = `SELECT id, action, moderator_uri, board_id, target_uri, reason, created_at FROM mod_log WHERE board_id = ? ORDER BY created_at DESC LIMIT ?`
	sqlSelectModLogByTarget  = `SELECT id, action, moderator_uri, board_id, target_uri, reason, created_at FROM mod_log WHERE target_uri = ? ORDER BY created_at DESC`
)

func (db *DB) CreateModLogEntry(e *domain.ModLogEntry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertModLogEntry,
			e.Id.String(), e.Action, e.ModeratorURI, e.BoardId.String(),
			e.TargetURI, e.Reason, e.CreatedAt)
		return err
	})
}

func (db *DB) ReadModLogByBoardId(boardId uuid.UUID, limit int) (error, *[]domain.ModLogEntry) {
	rows, err := db.db.Query(sqlSelectModLogByBoardId, boardId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	return scanModLogRows(rows)
}

func (db *DB) ReadModLogByTarget(targetURI string) (error, *[]domain.ModLogEntry) {
	rows, err := db.db.Query(sqlSelectModLogByTarget, targetURI)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	return scanModLogRows(rows)
}

func scanModLogRows(rows *sql.Rows) (error, *[]domain.ModLogEntry) {
	var entries []domain.ModLogEntry

	for rows.Next() {
		var e domain.ModLogEntry
		var idStr, boardIdStr string
		if err := rows.Scan(&idStr, &e.Action, &e.ModeratorURI, &boardIdStr, &e.TargetURI, &e.Reason, &e.CreatedAt); err != nil {
			return err, &entries
		}
		if id, err := uuid.Parse(idStr); err == nil {
			e.Id = id
		}
		if id, err := uuid.Parse(boardIdStr); err == nil {
			e.BoardId = id
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return err, &entries
	}

	return nil, &entries
}

// Delivery queue queries
const (
	sqlEnqueueDelivery         = `INSERT INTO delivery_queue(id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPendingDeliveries = `SELECT id, inbox_uri, actor_uri, activity_json, attempts, next_retry_at, created_at FROM delivery_queue WHERE next_retry_at <= ? ORDER BY next_retry_at LIMIT ?`
	sqlUpdateDeliveryAttempt   = `UPDATE delivery_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteDelivery          = `DELETE FROM delivery_queue WHERE id = ?`
)

func (db *DB) EnqueueDelivery(item *domain.DeliveryQueueItem) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlEnqueueDelivery,
			item.Id.String(), item.InboxURI, item.ActorURI, item.ActivityJSON,
			item.Attempts, item.NextRetryAt, item.CreatedAt)
		return err
	})
}

func (db *DB) ReadPendingDeliveries(limit int) (error, *[]domain.DeliveryQueueItem) {
	rows, err := db.db.Query(sqlSelectPendingDeliveries, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.DeliveryQueueItem

	for rows.Next() {
		var item domain.DeliveryQueueItem
		var idStr string
		if err := rows.Scan(&idStr, &item.InboxURI, &item.ActorURI, &item.ActivityJSON, &item.Attempts, &item.NextRetryAt, &item.CreatedAt); err != nil {
			return err, &items
		}
		if id, err := uuid.Parse(idStr); err == nil {
			item.Id = id
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return err, &items
	}

	return nil, &items
}

func (db *DB) UpdateDeliveryAttempt(id uuid.UUID, attempts int, nextRetry time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateDeliveryAttempt, attempts, nextRetry, id.String())
		return err
	})
}

func (db *DB) DeleteDelivery(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteDelivery, id.String())
		return err
	})
}
