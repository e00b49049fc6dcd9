// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the durable SQLite-backed cache (C3): users,
// chats, messages, shared files, and per-chat freshness statistics. It is
// built on lib/sqlitepool, following the single-dependency, write-SQL-
// directly style of cmd/bureau-telemetry-service's store rather than
// introducing a query builder or ORM.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/tgerr"
	"github.com/telegramfs/tgfs/lib/clock"
	"github.com/telegramfs/tgfs/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              INTEGER PRIMARY KEY,
	username        TEXT,
	first_name      TEXT,
	last_name       TEXT,
	phone           TEXT,
	bio             TEXT,
	is_contact      INTEGER NOT NULL DEFAULT 0,
	status          INTEGER NOT NULL DEFAULT 0,
	last_seen_ts    INTEGER NOT NULL DEFAULT 0,
	last_message_id INTEGER NOT NULL DEFAULT 0,
	last_message_ts INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chats (
	id              INTEGER PRIMARY KEY,
	kind            INTEGER NOT NULL,
	title           TEXT,
	username        TEXT,
	last_message_id INTEGER NOT NULL DEFAULT 0,
	last_message_ts INTEGER NOT NULL DEFAULT 0,
	can_send        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_chats_username ON chats(username);
CREATE INDEX IF NOT EXISTS idx_chats_kind ON chats(kind);

CREATE TABLE IF NOT EXISTS messages (
	chat_id        INTEGER NOT NULL,
	id             INTEGER NOT NULL,
	sender_id      INTEGER NOT NULL,
	ts             INTEGER NOT NULL,
	text           TEXT NOT NULL DEFAULT '',
	outgoing       INTEGER NOT NULL DEFAULT 0,
	media_kind     INTEGER,
	media_file_id  TEXT,
	media_filename TEXT,
	media_mime     TEXT,
	media_size     INTEGER,
	media_width    INTEGER,
	media_height   INTEGER,
	media_duration INTEGER,
	PRIMARY KEY (chat_id, id)
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_messages_chat_media ON messages(chat_id, media_kind) WHERE media_kind IS NOT NULL;

CREATE TABLE IF NOT EXISTS files (
	chat_id    INTEGER NOT NULL,
	message_id INTEGER NOT NULL,
	filename   TEXT NOT NULL,
	size       INTEGER NOT NULL,
	ts         INTEGER NOT NULL,
	kind       INTEGER NOT NULL,
	file_id    TEXT NOT NULL,
	PRIMARY KEY (chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_files_chat_kind ON files(chat_id, kind);
CREATE INDEX IF NOT EXISTS idx_files_chat_ts ON files(chat_id, ts DESC);

CREATE TABLE IF NOT EXISTS chat_message_stats (
	chat_id           INTEGER PRIMARY KEY,
	message_count     INTEGER NOT NULL DEFAULT 0,
	content_size      INTEGER NOT NULL DEFAULT 0,
	last_message_ts   INTEGER NOT NULL DEFAULT 0,
	last_fetch_ts     INTEGER NOT NULL DEFAULT 0,
	oldest_message_ts INTEGER NOT NULL DEFAULT 0
);
`

// Config holds the parameters for opening the durable cache.
type Config struct {
	// Path is the SQLite database file path. Required.
	Path string

	// PoolSize is the connection pool size. Zero uses sqlitepool's default.
	PoolSize int

	// Clock provides current time for stats bookkeeping. Required.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Store is the durable SQLite-backed cache (C3) for entity metadata,
// message history, and shared-file listings.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open creates or opens the durable cache at cfg.Path, creating the schema
// on first connect.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("store: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Store{pool: pool, clock: cfg.Clock, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func backendErr(cause error, format string, args ...any) error {
	return tgerr.Wrap(tgerr.Backend, cause, fmt.Sprintf(format, args...))
}

// CacheUser inserts or replaces a cached user row.
func (s *Store) CacheUser(ctx context.Context, u telegram.User) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	isContact := 0
	if u.IsContact {
		isContact = 1
	}

	err = sqlitex.Execute(conn, `INSERT INTO users
		(id, username, first_name, last_name, phone, bio, is_contact,
		 status, last_seen_ts, last_message_id, last_message_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			bio = excluded.bio,
			is_contact = excluded.is_contact,
			status = excluded.status,
			last_seen_ts = excluded.last_seen_ts,
			last_message_id = excluded.last_message_id,
			last_message_ts = excluded.last_message_ts`,
		&sqlitex.ExecOptions{
			Args: []any{
				u.ID, u.Username, u.FirstName, u.LastName, u.Phone, u.Bio,
				isContact, int(u.Status), u.LastSeenTS, u.LastMessageID, u.LastMessageTS,
			},
		})
	if err != nil {
		return backendErr(err, "cache user %d", u.ID)
	}
	return nil
}

// GetUser fetches a cached user by id. ok is false if no row exists.
func (s *Store) GetUser(ctx context.Context, id int64) (u telegram.User, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return telegram.User{}, false, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT id, username, first_name, last_name, phone, bio,
		is_contact, status, last_seen_ts, last_message_id, last_message_ts
		FROM users WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			u = scanUser(stmt)
			ok = true
			return nil
		},
	})
	if err != nil {
		return telegram.User{}, false, backendErr(err, "get user %d", id)
	}
	return u, ok, nil
}

func scanUser(stmt *sqlite.Stmt) telegram.User {
	return telegram.User{
		ID:            stmt.ColumnInt64(0),
		Username:      stmt.ColumnText(1),
		FirstName:     stmt.ColumnText(2),
		LastName:      stmt.ColumnText(3),
		Phone:         stmt.ColumnText(4),
		Bio:           stmt.ColumnText(5),
		IsContact:     stmt.ColumnInt(6) != 0,
		Status:        telegram.UserStatus(stmt.ColumnInt(7)),
		LastSeenTS:    stmt.ColumnInt64(8),
		LastMessageID: stmt.ColumnInt64(9),
		LastMessageTS: stmt.ColumnInt64(10),
	}
}

// CacheChat inserts or replaces a cached chat row.
func (s *Store) CacheChat(ctx context.Context, c telegram.Chat) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	canSend := 0
	if c.CanSend {
		canSend = 1
	}

	err = sqlitex.Execute(conn, `INSERT INTO chats
		(id, kind, title, username, last_message_id, last_message_ts, can_send)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			username = excluded.username,
			last_message_id = excluded.last_message_id,
			last_message_ts = excluded.last_message_ts,
			can_send = excluded.can_send`,
		&sqlitex.ExecOptions{
			Args: []any{c.ID, int(c.Kind), c.Title, c.Username, c.LastMessageID, c.LastMessageTS, canSend},
		})
	if err != nil {
		return backendErr(err, "cache chat %d", c.ID)
	}
	return nil
}

// GetChat fetches a cached chat by id. ok is false if no row exists.
func (s *Store) GetChat(ctx context.Context, id int64) (c telegram.Chat, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return telegram.Chat{}, false, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT id, kind, title, username,
		last_message_id, last_message_ts, can_send FROM chats WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				c = scanChat(stmt)
				ok = true
				return nil
			},
		})
	if err != nil {
		return telegram.Chat{}, false, backendErr(err, "get chat %d", id)
	}
	return c, ok, nil
}

func scanChat(stmt *sqlite.Stmt) telegram.Chat {
	return telegram.Chat{
		ID:            stmt.ColumnInt64(0),
		Kind:          telegram.ChatKind(stmt.ColumnInt(1)),
		Title:         stmt.ColumnText(2),
		Username:      stmt.ColumnText(3),
		LastMessageID: stmt.ColumnInt64(4),
		LastMessageTS: stmt.ColumnInt64(5),
		CanSend:       stmt.ColumnInt(6) != 0,
	}
}
