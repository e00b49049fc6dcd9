// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import "context"

// AuthState describes the capability's authentication progress.
type AuthState int

const (
	AuthWaitPhone AuthState = iota
	AuthWaitCode
	AuthWaitPassword
	AuthReady
)

// MessageCallback is invoked from the RPC update thread (C9) for every
// updateNewMessage event. Implementations must not block for long; they
// should hand off to a queue or a quick cache write.
type MessageCallback func(Message)

// UserCallback is invoked from the RPC update thread for every
// updateUser event — a changed name, username, bio, or presence status.
type UserCallback func(User)

// ChatCallback is invoked from the RPC update thread for every
// updateNewChat event, delivering the chat in full.
type ChatCallback func(Chat)

// ChatLastMessageCallback is invoked from the RPC update thread for
// every updateChatLastMessage event.
type ChatLastMessageCallback func(chatID, messageID, ts int64)

// Client is the external RPC capability consumed by the core (§6.1). No
// adapter to the real Telegram service lives in this repository; the core
// only depends on this interface, and Mock implements it both for tests
// and for the cmd/tgfs-mount daemon.
//
// Every method conceptually returns a future on the producing side; in
// Go that is expressed as a context-bearing method that blocks the
// calling goroutine until the result is ready or ctx is done.
type Client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	AuthState(ctx context.Context) (AuthState, error)
	Login(ctx context.Context, phone string) error
	SubmitCode(ctx context.Context, code string) error
	SubmitPassword(ctx context.Context, password string) error
	Logout(ctx context.Context) error

	GetUsers(ctx context.Context) ([]User, error)
	GetGroups(ctx context.Context) ([]Chat, error)
	GetChannels(ctx context.Context) ([]Chat, error)
	GetAllChats(ctx context.Context) ([]Chat, error)

	ResolveUsername(ctx context.Context, name string) (Chat, error)
	GetChat(ctx context.Context, id int64) (Chat, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetMe(ctx context.Context) (User, error)
	GetUserBio(ctx context.Context, id int64) (string, error)

	SendText(ctx context.Context, chatID int64, text string) (Message, error)
	GetMessages(ctx context.Context, chatID int64, limit int) ([]Message, error)
	GetMessagesUntil(ctx context.Context, chatID int64, minMessages int, maxAge int64) ([]Message, error)
	SendFile(ctx context.Context, chatID int64, path string, mode SendMode) (Message, error)

	ListMedia(ctx context.Context, chatID int64) ([]FileListItem, error)
	ListFiles(ctx context.Context, chatID int64) ([]FileListItem, error)
	DownloadFile(ctx context.Context, fileID string, dest string) (string, error)

	SetMessageCallback(fn MessageCallback)
	SetUserCallback(fn UserCallback)
	SetChatCallback(fn ChatCallback)
	SetChatLastMessageCallback(fn ChatLastMessageCallback)
}
