// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"context"
	"sync"
)

var _ Client = (*Mock)(nil)

// Mock is an in-memory, deterministic Client used by every other
// package's tests. It has no network I/O and no RPC rate limiting; tests
// drive its state directly via the Add*/Seed* helpers and assert on the
// Sent/Downloaded slices for side effects.
type Mock struct {
	mu sync.Mutex

	me       User
	users    map[int64]User
	chats    map[int64]Chat
	messages map[int64][]Message // chat_id -> messages, insertion order
	files    map[int64][]FileListItem

	nextMessageID int64

	callback            MessageCallback
	userCallback        UserCallback
	chatCallback        ChatCallback
	chatLastMsgCallback ChatLastMessageCallback

	// Sent records every SendText/SendFile call, in order, for assertions.
	Sent []SentItem
	// Downloaded records every DownloadFile call, in order.
	Downloaded []string

	// FailSendText, when non-nil, is returned by the next SendText call
	// (then cleared), letting tests simulate upstream failures.
	FailSendText error
}

// SentItem records one SendText or SendFile invocation.
type SentItem struct {
	ChatID int64
	Text   string
	Path   string
	Mode   SendMode
	IsFile bool
}

// NewMock returns an empty Mock ready for Add*/Seed* calls.
func NewMock() *Mock {
	return &Mock{
		users:    make(map[int64]User),
		chats:    make(map[int64]Chat),
		messages: make(map[int64][]Message),
		files:    make(map[int64][]FileListItem),
	}
}

// SetMe configures the GetMe() response.
func (m *Mock) SetMe(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.me = u
}

// AddUser registers a user and its 1:1 private chat.
func (m *Mock) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	if _, ok := m.chats[u.ID]; !ok {
		m.chats[u.ID] = Chat{ID: u.ID, Kind: ChatPrivate, Title: u.DisplayName(), Username: u.Username, CanSend: true}
	}
}

// AddChat registers a group or channel.
func (m *Mock) AddChat(c Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[c.ID] = c
}

// SeedMessages injects messages directly into a chat's history, as if
// they had been fetched already. Messages are appended in the given
// order; callers are responsible for ascending timestamps if order
// matters to the test.
func (m *Mock) SeedMessages(chatID int64, msgs ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[chatID] = append(m.messages[chatID], msgs...)
	for _, msg := range msgs {
		if msg.ID >= m.nextMessageID {
			m.nextMessageID = msg.ID + 1
		}
	}
}

// SeedFiles injects FileListItems for a chat's files/media listing.
func (m *Mock) SeedFiles(chatID int64, items ...FileListItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[chatID] = append(m.files[chatID], items...)
}

// DeliverMessage simulates an incoming updateNewMessage event: it stores
// the message and invokes the registered callback synchronously, as the
// RPC update thread would.
func (m *Mock) DeliverMessage(msg Message) {
	m.mu.Lock()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	if msg.ID >= m.nextMessageID {
		m.nextMessageID = msg.ID + 1
	}
	cb := m.callback
	m.mu.Unlock()

	if cb != nil {
		cb(msg)
	}
}

// DeliverUserUpdate simulates an incoming updateUser event: it updates
// the mock's own user table and invokes the registered callback
// synchronously.
func (m *Mock) DeliverUserUpdate(u User) {
	m.mu.Lock()
	m.users[u.ID] = u
	cb := m.userCallback
	m.mu.Unlock()

	if cb != nil {
		cb(u)
	}
}

// DeliverNewChat simulates an incoming updateNewChat event.
func (m *Mock) DeliverNewChat(c Chat) {
	m.mu.Lock()
	m.chats[c.ID] = c
	cb := m.chatCallback
	m.mu.Unlock()

	if cb != nil {
		cb(c)
	}
}

// DeliverChatLastMessage simulates an incoming updateChatLastMessage
// event.
func (m *Mock) DeliverChatLastMessage(chatID, messageID, ts int64) {
	m.mu.Lock()
	if c, ok := m.chats[chatID]; ok {
		c.LastMessageID, c.LastMessageTS = messageID, ts
		m.chats[chatID] = c
	}
	cb := m.chatLastMsgCallback
	m.mu.Unlock()

	if cb != nil {
		cb(chatID, messageID, ts)
	}
}

func (m *Mock) Start(ctx context.Context) error { return nil }
func (m *Mock) Stop(ctx context.Context) error  { return nil }

func (m *Mock) AuthState(ctx context.Context) (AuthState, error) { return AuthReady, nil }
func (m *Mock) Login(ctx context.Context, phone string) error    { return nil }
func (m *Mock) SubmitCode(ctx context.Context, code string) error { return nil }
func (m *Mock) SubmitPassword(ctx context.Context, password string) error { return nil }
func (m *Mock) Logout(ctx context.Context) error { return nil }

func (m *Mock) GetUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *Mock) GetGroups(ctx context.Context) ([]Chat, error) {
	return m.chatsByKind(ChatGroup, ChatSupergroup), nil
}

func (m *Mock) GetChannels(ctx context.Context) ([]Chat, error) {
	return m.chatsByKind(ChatChannel), nil
}

func (m *Mock) chatsByKind(kinds ...ChatKind) []Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Chat
	for _, c := range m.chats {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (m *Mock) GetAllChats(ctx context.Context) ([]Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chat, 0, len(m.chats))
	for _, c := range m.chats {
		out = append(out, c)
	}
	return out, nil
}

func (m *Mock) ResolveUsername(ctx context.Context, name string) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.Username == name {
			return c, nil
		}
	}
	return Chat{}, errNotFound("chat @" + name)
}

func (m *Mock) GetChat(ctx context.Context, id int64) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return Chat{}, errNotFound("chat")
	}
	return c, nil
}

func (m *Mock) GetUser(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, errNotFound("user")
	}
	return u, nil
}

func (m *Mock) GetMe(ctx context.Context) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.me, nil
}

func (m *Mock) GetUserBio(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return "", errNotFound("user")
	}
	return u.Bio, nil
}

func (m *Mock) SendText(ctx context.Context, chatID int64, text string) (Message, error) {
	m.mu.Lock()
	if m.FailSendText != nil {
		err := m.FailSendText
		m.FailSendText = nil
		m.mu.Unlock()
		return Message{}, err
	}
	id := m.nextMessageID
	m.nextMessageID++
	msg := Message{ID: id, ChatID: chatID, SenderID: m.me.ID, Text: text, Outgoing: true}
	m.Sent = append(m.Sent, SentItem{ChatID: chatID, Text: text})
	m.mu.Unlock()
	return msg, nil
}

func (m *Mock) GetMessages(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[chatID]
	if limit <= 0 || limit >= len(msgs) {
		out := make([]Message, len(msgs))
		copy(out, msgs)
		return out, nil
	}
	out := make([]Message, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out, nil
}

func (m *Mock) GetMessagesUntil(ctx context.Context, chatID int64, minMessages int, maxAge int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[chatID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Mock) SendFile(ctx context.Context, chatID int64, path string, mode SendMode) (Message, error) {
	m.mu.Lock()
	id := m.nextMessageID
	m.nextMessageID++
	m.Sent = append(m.Sent, SentItem{ChatID: chatID, Path: path, Mode: mode, IsFile: true})
	m.mu.Unlock()
	return Message{ID: id, ChatID: chatID, SenderID: m.me.ID, Outgoing: true}, nil
}

func (m *Mock) ListMedia(ctx context.Context, chatID int64) ([]FileListItem, error) {
	return m.filesByPredicate(chatID, func(k MediaKind) bool { return k.IsMedia() }), nil
}

func (m *Mock) ListFiles(ctx context.Context, chatID int64) ([]FileListItem, error) {
	return m.filesByPredicate(chatID, func(k MediaKind) bool { return k.IsDocument() }), nil
}

func (m *Mock) filesByPredicate(chatID int64, keep func(MediaKind) bool) []FileListItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FileListItem
	for _, f := range m.files[chatID] {
		if keep(f.Kind) {
			out = append(out, f)
		}
	}
	return out
}

func (m *Mock) DownloadFile(ctx context.Context, fileID string, dest string) (string, error) {
	m.mu.Lock()
	m.Downloaded = append(m.Downloaded, fileID)
	m.mu.Unlock()
	return dest, nil
}

func (m *Mock) SetMessageCallback(fn MessageCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = fn
}

func (m *Mock) SetUserCallback(fn UserCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCallback = fn
}

func (m *Mock) SetChatCallback(fn ChatCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCallback = fn
}

func (m *Mock) SetChatLastMessageCallback(fn ChatLastMessageCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatLastMsgCallback = fn
}

func errNotFound(what string) error {
	return &notFoundError{what: what}
}

type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return e.what + " not found" }
