// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/telegramfs/tgfs/internal/telegram"
)

// CacheMessage inserts or replaces a single message row, keyed by
// (chat_id, id).
func (s *Store) CacheMessage(ctx context.Context, msg telegram.Message) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	if err := insertMessage(conn, msg); err != nil {
		return backendErr(err, "cache message chat=%d id=%d", msg.ChatID, msg.ID)
	}
	return nil
}

// CacheMessages inserts or replaces a batch of messages in a single
// transaction, as the fetch pipeline (C5) does after each RPC page.
func (s *Store) CacheMessages(ctx context.Context, msgs []telegram.Message) (err error) {
	if len(msgs) == 0 {
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

	for _, msg := range msgs {
		if err = insertMessage(conn, msg); err != nil {
			err = backendErr(err, "cache message chat=%d id=%d", msg.ChatID, msg.ID)
			return err
		}
	}
	return nil
}

func insertMessage(conn *sqlite.Conn, msg telegram.Message) error {
	outgoing := 0
	if msg.Outgoing {
		outgoing = 1
	}

	var mediaKind, fileID, filename, mime any
	var size, width, height, duration any
	if msg.Media != nil {
		mediaKind = int(msg.Media.Kind)
		fileID = msg.Media.FileID
		filename = msg.Media.Filename
		mime = msg.Media.MIME
		size = msg.Media.Size
		width = msg.Media.Width
		height = msg.Media.Height
		duration = msg.Media.Duration
	}

	return sqlitex.Execute(conn, `INSERT INTO messages
		(chat_id, id, sender_id, ts, text, outgoing,
		 media_kind, media_file_id, media_filename, media_mime,
		 media_size, media_width, media_height, media_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, id) DO UPDATE SET
			sender_id = excluded.sender_id,
			ts = excluded.ts,
			text = excluded.text,
			outgoing = excluded.outgoing,
			media_kind = excluded.media_kind,
			media_file_id = excluded.media_file_id,
			media_filename = excluded.media_filename,
			media_mime = excluded.media_mime,
			media_size = excluded.media_size,
			media_width = excluded.media_width,
			media_height = excluded.media_height,
			media_duration = excluded.media_duration`,
		&sqlitex.ExecOptions{
			Args: []any{
				msg.ChatID, msg.ID, msg.SenderID, msg.TS, msg.Text, outgoing,
				mediaKind, fileID, filename, mime, size, width, height, duration,
			},
		})
}

// GetMessagesForDisplay returns messages for chatID with ts >= now -
// maxAgeS, ordered ascending by ts (oldest first), matching the
// top-to-bottom chat-log layout rendered into the messages file. A zero
// maxAgeS returns every cached message for the chat.
func (s *Store) GetMessagesForDisplay(ctx context.Context, chatID int64, maxAgeS int64) ([]telegram.Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	query := "SELECT chat_id, id, sender_id, ts, text, outgoing, media_kind, " +
		"media_file_id, media_filename, media_mime, media_size, media_width, " +
		"media_height, media_duration FROM messages WHERE chat_id = ?"
	args := []any{chatID}

	if maxAgeS > 0 {
		cutoff := s.clock.Now().Unix() - maxAgeS
		query += " AND ts >= ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY ts ASC"

	var messages []telegram.Message
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			messages = append(messages, scanMessage(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, backendErr(err, "get messages for display chat=%d", chatID)
	}
	return messages, nil
}

func scanMessage(stmt *sqlite.Stmt) telegram.Message {
	msg := telegram.Message{
		ChatID:   stmt.ColumnInt64(0),
		ID:       stmt.ColumnInt64(1),
		SenderID: stmt.ColumnInt64(2),
		TS:       stmt.ColumnInt64(3),
		Text:     stmt.ColumnText(4),
		Outgoing: stmt.ColumnInt(5) != 0,
	}
	if !stmt.ColumnIsNull(6) {
		msg.Media = &telegram.MediaInfo{
			Kind:     telegram.MediaKind(stmt.ColumnInt(6)),
			FileID:   stmt.ColumnText(7),
			Filename: stmt.ColumnText(8),
			MIME:     stmt.ColumnText(9),
			Size:     stmt.ColumnInt64(10),
			Width:    stmt.ColumnInt(11),
			Height:   stmt.ColumnInt(12),
			Duration: stmt.ColumnInt(13),
		}
	}
	return msg
}

// EvictOldMessages deletes cached messages for chatID older than
// cutoffTS, bounding the cache's growth per chat.
func (s *Store) EvictOldMessages(ctx context.Context, chatID int64, cutoffTS int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return backendErr(err, "take connection")
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM messages WHERE chat_id = ? AND ts < ?",
		&sqlitex.ExecOptions{Args: []any{chatID, cutoffTS}})
	if err != nil {
		return backendErr(err, "evict old messages chat=%d", chatID)
	}
	return nil
}
