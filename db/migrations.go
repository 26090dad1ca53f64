package db

import (
	"database/sql"
	"log"
)

// SQL for the federation tables
const (
	// Remote accounts cache table
	sqlCreateRemoteAccountsTable = `CREATE TABLE IF NOT EXISTS remote_accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT,
		outbox_uri TEXT,
		public_key_pem TEXT NOT NULL,
		avatar_url TEXT,
		deleted INTEGER DEFAULT 0,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateRemoteAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_actor_uri ON remote_accounts(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_domain ON remote_accounts(domain);
	`

	// Board subscriptions (followers of a Group actor)
	sqlCreateSubscriptionsTable = `CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT NOT NULL PRIMARY KEY,
		board_id TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		uri TEXT,
		local INTEGER DEFAULT 0,
		pending INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(board_id, actor_uri)
	)`

	sqlCreateSubscriptionsIndices = `
		CREATE INDEX IF NOT EXISTS idx_subscriptions_board_id ON subscriptions(board_id);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_actor_uri ON subscriptions(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_uri ON subscriptions(uri);
	`

	// Board moderators
	sqlCreateBoardModsTable = `CREATE TABLE IF NOT EXISTS board_mods (
		id TEXT NOT NULL PRIMARY KEY,
		board_id TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		rank INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(board_id, actor_uri)
	)`

	sqlCreateBoardModsIndices = `
		CREATE INDEX IF NOT EXISTS idx_board_mods_board_id ON board_mods(board_id);
	`

	// Board bans
	sqlCreateBoardBansTable = `CREATE TABLE IF NOT EXISTS board_bans (
		id TEXT NOT NULL PRIMARY KEY,
		board_id TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(board_id, actor_uri)
	)`

	// Activity log table (deduplication gate and replay source)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT,
		raw_json TEXT NOT NULL,
		local INTEGER DEFAULT 0,
		sensitive INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_object_uri ON activities(object_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`

	// Moderation log
	sqlCreateModLogTable = `CREATE TABLE IF NOT EXISTS mod_log (
		id TEXT NOT NULL PRIMARY KEY,
		action TEXT NOT NULL,
		moderator_uri TEXT NOT NULL,
		board_id TEXT NOT NULL,
		target_uri TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateModLogIndices = `
		CREATE INDEX IF NOT EXISTS idx_mod_log_board_id ON mod_log(board_id);
		CREATE INDEX IF NOT EXISTS idx_mod_log_target_uri ON mod_log(target_uri);
	`

	// Outbound delivery queue
	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		inbox_uri TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		activity_json TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
	`

	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_board_id ON posts(board_id);
		CREATE INDEX IF NOT EXISTS idx_posts_object_uri ON posts(object_uri);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE INDEX IF NOT EXISTS idx_comments_object_uri ON comments(object_uri);
		CREATE INDEX IF NOT EXISTS idx_votes_object_uri ON votes(object_uri);
	`
)

// RunFederationMigrations creates the federation tables and indices.
// Everything is IF NOT EXISTS so reruns are harmless.
func (db *DB) RunFederationMigrations() error {
	log.Println("Running federation migrations...")
	return db.wrapTransaction(func(tx *sql.Tx) error {
		statements := []string{
			sqlCreateRemoteAccountsTable,
			sqlCreateRemoteAccountsIndices,
			sqlCreateSubscriptionsTable,
			sqlCreateSubscriptionsIndices,
			sqlCreateBoardModsTable,
			sqlCreateBoardModsIndices,
			sqlCreateBoardBansTable,
			sqlCreateVotesTable,
			sqlCreateActivitiesTable,
			sqlCreateActivitiesIndices,
			sqlCreateModLogTable,
			sqlCreateModLogIndices,
			sqlCreateDeliveryQueueTable,
			sqlCreateDeliveryQueueIndices,
			sqlCreatePostsIndices,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
