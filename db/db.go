package db

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/util"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database handle. It is constructed once in main and passed
// around explicitly; nothing in here is a process-wide singleton.
type DB struct {
	db *sql.DB
}

const (
	//Accounts
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts(
                        id uuid NOT NULL PRIMARY KEY,
                        username varchar(100) UNIQUE NOT NULL,
                        publickey varchar(1000) UNIQUE,
                        created_at timestamp default current_timestamp,
                        first_time_login int default 1,
                        web_public_key text,
                        web_private_key text,
                        display_name varchar(255) default '',
                        summary text default '',
                        admin int default 0
                        )`
	sqlInsertAccount            = `INSERT INTO accounts(id, username, publickey, web_public_key, web_private_key, created_at, admin) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateLoginAccountById   = `UPDATE accounts SET first_time_login = 0, username = ? WHERE id = ?`
	sqlUpdateProfileById        = `UPDATE accounts SET first_time_login = 0, username = ?, display_name = ?, summary = ? WHERE id = ?`
	sqlSelectAccountByPublicKey = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, display_name, summary, admin FROM accounts WHERE publickey = ?`
	sqlSelectAccountById        = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, display_name, summary, admin FROM accounts WHERE id = ?`
	sqlSelectAccountByUsername  = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, display_name, summary, admin FROM accounts WHERE username = ?`
	sqlSelectAllAccounts        = `SELECT id, username, publickey, created_at, first_time_login, web_public_key, web_private_key, display_name, summary, admin FROM accounts ORDER BY created_at`
	sqlCountAccounts            = `SELECT COUNT(*) FROM accounts`
)

// Open opens (or creates) the sqlite database at the given path and runs
// the schema setup.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = sqlDB.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		err = sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
		}
	} else {
		log.Printf("Database journal mode: %s", journalMode)
	}

	// Optimize PRAGMAs for the concurrent federation workload
	sqlDB.Exec("PRAGMA synchronous = NORMAL")
	sqlDB.Exec("PRAGMA cache_size = -64000")
	sqlDB.Exec("PRAGMA temp_store = MEMORY")
	sqlDB.Exec("PRAGMA busy_timeout = 5000")
	sqlDB.Exec("PRAGMA foreign_keys = ON")
	sqlDB.Exec("PRAGMA auto_vacuum = INCREMENTAL")

	database := &DB{db: sqlDB}

	if err := database.CreateDB(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return database, nil
}

// MustOpen opens the default database file, resolving its path the same way
// the config file is resolved, and panics on failure.
func MustOpen() *DB {
	database, err := Open(util.ResolveFilePath("database.db"))
	if err != nil {
		panic(err)
	}
	return database
}

// CreateDB creates the core tables.
func (db *DB) CreateDB() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, stmt := range []string{
			sqlCreateAccountsTable,
			sqlCreateBoardsTable,
			sqlCreatePostsTable,
			sqlCreateCommentsTable,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) CreateAccount(s ssh.Session, username string) (error, bool) {
	err, found := db.ReadAccBySession(s)
	if err != nil {
		log.Printf("No records for %s found, creating new user..", username)
	}

	if found != nil {
		return nil, true
	}

	// The first account on a fresh instance becomes the admin
	var count int
	if err := db.db.QueryRow(sqlCountAccounts).Scan(&count); err != nil {
		return err, false
	}

	keypair := util.GeneratePemKeypair()
	err2 := db.CreateAccByUsername(s, username, keypair, count == 0)
	if err2 != nil {
		log.Println("Creating new user failed: ", err2)
		return err2, false
	}
	return nil, true
}

func (db *DB) CreateAccByUsername(s ssh.Session, username string, webKeyPair *util.RsaKeyPair, admin bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		adminFlag := 0
		if admin {
			adminFlag = 1
		}
		_, err := tx.Exec(sqlInsertAccount, uuid.New(), username, util.PkToHash(util.PublicKeyToString(s.PublicKey())), webKeyPair.Public, webKeyPair.Private, time.Now(), adminFlag)
		return err
	})
}

// CreateAccDirect inserts an account without an SSH session, for accounts
// provisioned outside the key-auth flow.
func (db *DB) CreateAccDirect(id uuid.UUID, username string, webKeyPair *util.RsaKeyPair, admin bool) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		adminFlag := 0
		if admin {
			adminFlag = 1
		}
		_, err := tx.Exec(sqlInsertAccount, id, username, util.RandomString(32), webKeyPair.Public, webKeyPair.Private, time.Now(), adminFlag)
		return err
	})
}

func (db *DB) UpdateLoginById(username string, id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateLoginAccountById, username, id)
		return err
	})
}

func (db *DB) UpdateProfileById(id uuid.UUID, username, displayName, summary string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateProfileById, username, displayName, summary, id)
		return err
	})
}

func (db *DB) ReadAccBySession(s ssh.Session) (error, *domain.Account) {
	publicKeyToString := util.PublicKeyToString(s.PublicKey())
	return db.readAccount(sqlSelectAccountByPublicKey, util.PkToHash(publicKeyToString))
}

func (db *DB) ReadAccByPkHash(pkHash string) (error, *domain.Account) {
	return db.readAccount(sqlSelectAccountByPublicKey, pkHash)
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	return db.readAccount(sqlSelectAccountById, id)
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	return db.readAccount(sqlSelectAccountByUsername, username)
}

func (db *DB) readAccount(query string, arg interface{}) (error, *domain.Account) {
	row := db.db.QueryRow(query, arg)
	var tempAcc domain.Account
	var admin int
	err := row.Scan(&tempAcc.Id, &tempAcc.Username, &tempAcc.Publickey, &tempAcc.CreatedAt, &tempAcc.FirstTimeLogin, &tempAcc.WebPublicKey, &tempAcc.WebPrivateKey, &tempAcc.DisplayName, &tempAcc.Summary, &admin)
	if err == sql.ErrNoRows {
		return err, nil
	}
	tempAcc.Admin = admin != 0
	return err, &tempAcc
}

func (db *DB) ReadAllAccounts() (error, *[]domain.Account) {
	rows, err := db.db.Query(sqlSelectAllAccounts)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var accounts []domain.Account

	for rows.Next() {
		var acc domain.Account
		var admin int
		if err := rows.Scan(&acc.Id, &acc.Username, &acc.Publickey, &acc.CreatedAt, &acc.FirstTimeLogin, &acc.WebPublicKey, &acc.WebPrivateKey, &acc.DisplayName, &acc.Summary, &admin); err != nil {
			return err, &accounts
		}
		acc.Admin = admin != 0
		accounts = append(accounts, acc)
	}
	if err = rows.Err(); err != nil {
		return err, &accounts
	}

	return nil, &accounts
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

// IsUniqueViolation reports whether err is a sqlite UNIQUE constraint
// failure. The inbox pipeline relies on this to turn a duplicate activity
// insert into a no-op.
func IsUniqueViolation(err error) bool {
	serr, ok := err.(*sqlite.Error)
	if !ok {
		return false
	}
	return serr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}
