// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/telegramfs/tgfs/internal/telegram"
)

// ListUsers returns every cached user, ordered by last_message_ts
// descending, for the prefetcher's contacts/non-contacts ordering (§4.8).
func (s *Store) ListUsers(ctx context.Context) ([]telegram.User, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	var users []telegram.User
	err = sqlitex.Execute(conn, `SELECT id, username, first_name, last_name, phone, bio,
		is_contact, status, last_seen_ts, last_message_id, last_message_ts
		FROM users ORDER BY last_message_ts DESC`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			users = append(users, scanUser(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, backendErr(err, "list users")
	}
	return users, nil
}

// ListChatsByKind returns cached chats of the given kind, ordered by
// last_message_ts descending, for the prefetcher's groups/channels
// ordering (§4.8).
func (s *Store) ListChatsByKind(ctx context.Context, kind telegram.ChatKind) ([]telegram.Chat, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	var chats []telegram.Chat
	err = sqlitex.Execute(conn, `SELECT id, kind, title, username,
		last_message_id, last_message_ts, can_send FROM chats
		WHERE kind = ? ORDER BY last_message_ts DESC`, &sqlitex.ExecOptions{
		Args: []any{int(kind)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			chats = append(chats, scanChat(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, backendErr(err, "list chats by kind %d", int(kind))
	}
	return chats, nil
}
