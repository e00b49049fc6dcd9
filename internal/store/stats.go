// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/telegramfs/tgfs/internal/telegram"
)

// GetChatMessageStats fetches the freshness/sizing statistics for chatID.
// ok is false if the chat has never been fetched.
func (s *Store) GetChatMessageStats(ctx context.Context, chatID int64) (stats telegram.ChatMessageStats, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return telegram.ChatMessageStats{}, false, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT chat_id, message_count, content_size,
		last_message_ts, last_fetch_ts, oldest_message_ts
		FROM chat_message_stats WHERE chat_id = ?`, &sqlitex.ExecOptions{
		Args: []any{chatID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats = scanStats(stmt)
			ok = true
			return nil
		},
	})
	if err != nil {
		return telegram.ChatMessageStats{}, false, backendErr(err, "get chat message stats %d", chatID)
	}
	return stats, ok, nil
}

func scanStats(stmt *sqlite.Stmt) telegram.ChatMessageStats {
	return telegram.ChatMessageStats{
		ChatID:          stmt.ColumnInt64(0),
		MessageCount:    stmt.ColumnInt(1),
		ContentSize:     stmt.ColumnInt(2),
		LastMessageTS:   stmt.ColumnInt64(3),
		LastFetchTS:     stmt.ColumnInt64(4),
		OldestMessageTS: stmt.ColumnInt64(5),
	}
}

// PutChatMessageStats inserts or replaces the freshness/sizing statistics
// for a chat wholesale, used after a full refetch.
func (s *Store) PutChatMessageStats(ctx context.Context, stats telegram.ChatMessageStats) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO chat_message_stats
		(chat_id, message_count, content_size, last_message_ts, last_fetch_ts, oldest_message_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			message_count = excluded.message_count,
			content_size = excluded.content_size,
			last_message_ts = excluded.last_message_ts,
			last_fetch_ts = excluded.last_fetch_ts,
			oldest_message_ts = excluded.oldest_message_ts`,
		&sqlitex.ExecOptions{
			Args: []any{stats.ChatID, stats.MessageCount, stats.ContentSize,
				stats.LastMessageTS, stats.LastFetchTS, stats.OldestMessageTS},
		})
	if err != nil {
		return backendErr(err, "put chat message stats %d", stats.ChatID)
	}
	return nil
}

// IncrementChatStats adds addedCount/addedSize to the running totals for
// chatID, bumping last_message_ts and last_fetch_ts, and creating the row
// if it does not exist. Used by the message-callback fan-out (C9) to keep
// stats current as new messages arrive, without a full refetch.
func (s *Store) IncrementChatStats(ctx context.Context, chatID int64, addedCount, addedSize int, lastMessageTS int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().Unix()

	err = sqlitex.Execute(conn, `INSERT INTO chat_message_stats
		(chat_id, message_count, content_size, last_message_ts, last_fetch_ts, oldest_message_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			message_count = message_count + excluded.message_count,
			content_size = content_size + excluded.content_size,
			last_message_ts = MAX(last_message_ts, excluded.last_message_ts),
			last_fetch_ts = excluded.last_fetch_ts`,
		&sqlitex.ExecOptions{
			Args: []any{chatID, addedCount, addedSize, lastMessageTS, now, lastMessageTS},
		})
	if err != nil {
		return backendErr(err, "increment chat stats %d", chatID)
	}
	return nil
}
