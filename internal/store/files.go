// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/telegramfs/tgfs/internal/telegram"
)

// CacheFile inserts or replaces a single shared-file listing entry, keyed
// by (chat_id, message_id).
func (s *Store) CacheFile(ctx context.Context, item telegram.FileListItem) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	if err := insertFile(conn, item); err != nil {
		return backendErr(err, "cache file chat=%d message=%d", item.ChatID, item.MessageID)
	}
	return nil
}

// CacheFiles inserts or replaces a batch of shared-file listing entries in
// a single transaction.
func (s *Store) CacheFiles(ctx context.Context, items []telegram.FileListItem) (err error) {
	if len(items) == 0 {
		return nil
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return backendErr(err, "begin transaction")
	}
	defer endTransaction(&err)

	for _, item := range items {
		if err = insertFile(conn, item); err != nil {
			err = backendErr(err, "cache file chat=%d message=%d", item.ChatID, item.MessageID)
			return err
		}
	}
	return nil
}

func insertFile(conn *sqlite.Conn, item telegram.FileListItem) error {
	return sqlitex.Execute(conn, `INSERT INTO files
		(chat_id, message_id, filename, size, ts, kind, file_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, message_id) DO UPDATE SET
			filename = excluded.filename,
			size = excluded.size,
			ts = excluded.ts,
			kind = excluded.kind,
			file_id = excluded.file_id`,
		&sqlitex.ExecOptions{
			Args: []any{item.ChatID, item.MessageID, item.Filename, item.Size, item.TS, int(item.Kind), item.FileID},
		})
}

// ListFiles returns the shared files for chatID, newest first. If
// mediaOnly is true, only entries whose kind is a "media" kind (photo,
// video, animation) are returned, for the media/ projection; otherwise
// only "document" kinds are returned, for the files/ projection.
func (s *Store) ListFiles(ctx context.Context, chatID int64, mediaOnly bool) ([]telegram.FileListItem, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	var items []telegram.FileListItem
	err = sqlitex.Execute(conn, `SELECT chat_id, message_id, filename, size, ts, kind, file_id
		FROM files WHERE chat_id = ? ORDER BY ts DESC`, &sqlitex.ExecOptions{
		Args: []any{chatID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			item := scanFile(stmt)
			if mediaOnly == item.Kind.IsMedia() {
				items = append(items, item)
			}
			return nil
		},
	})
	if err != nil {
		return nil, backendErr(err, "list files chat=%d", chatID)
	}
	return items, nil
}

func scanFile(stmt *sqlite.Stmt) telegram.FileListItem {
	return telegram.FileListItem{
		ChatID:    stmt.ColumnInt64(0),
		MessageID: stmt.ColumnInt64(1),
		Filename:  stmt.ColumnText(2),
		Size:      stmt.ColumnInt64(3),
		TS:        stmt.ColumnInt64(4),
		Kind:      telegram.MediaKind(stmt.ColumnInt(5)),
		FileID:    stmt.ColumnText(6),
	}
}

// LookupFile finds a shared-file entry by chat and original filename
// matched to the minute of its timestamp, used to resolve the
// "YYYYMMDD-HHMM-<filename>" entry names synthesized for files/ and
// media/ directories (C6).
func (s *Store) LookupFile(ctx context.Context, chatID int64, filename string, minuteTS int64) (item telegram.FileListItem, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return telegram.FileListItem{}, false, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT chat_id, message_id, filename, size, ts, kind, file_id
		FROM files WHERE chat_id = ? AND filename = ? AND ts / 60 = ?`, &sqlitex.ExecOptions{
		Args: []any{chatID, filename, minuteTS / 60},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			item = scanFile(stmt)
			ok = true
			return nil
		},
	})
	if err != nil {
		return telegram.FileListItem{}, false, backendErr(err, "lookup file chat=%d name=%s", chatID, filename)
	}
	return item, ok, nil
}
