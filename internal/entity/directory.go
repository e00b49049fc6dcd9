// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/telegramfs/tgfs/internal/telegram"
)

// UserDirName returns the directory name for a user: username if present,
// else sanitised display name, else decimal id (§3.1).
func UserDirName(u telegram.User) string {
	if u.Username != "" {
		return u.Username
	}
	if u.HasName() {
		return Sanitize(u.DisplayName())
	}
	return strconv.FormatInt(u.ID, 10)
}

// ChatDirName returns the directory name for a group or channel: username
// if present, else sanitised title, else decimal id (§3.1).
func ChatDirName(c telegram.Chat) string {
	if c.Username != "" {
		return c.Username
	}
	if c.Title != "" {
		return Sanitize(c.Title)
	}
	return strconv.FormatInt(c.ID, 10)
}

// Directory is the in-memory entity directory (C2): maps of
// users/groups/channels keyed by directory name, lazily populated from
// the Telegram capability on first touch. One mutex guards all maps; it
// is never held across an RPC call (the "check-acquire-fetch-insert"
// idiom from §5).
type Directory struct {
	client telegram.Client

	mu            sync.Mutex
	users         map[string]telegram.User
	usersByID     map[int64]string
	groups        map[string]telegram.Chat
	groupsByID    map[int64]string
	channels      map[string]telegram.Chat
	channelsByID  map[int64]string
	usersLoaded   bool
	groupsLoaded  bool
	channelsLoaded bool
	me            *telegram.User
}

// NewDirectory constructs an empty Directory bound to client.
func NewDirectory(client telegram.Client) *Directory {
	return &Directory{
		client:       client,
		users:        make(map[string]telegram.User),
		usersByID:    make(map[int64]string),
		groups:       make(map[string]telegram.Chat),
		groupsByID:   make(map[int64]string),
		channels:     make(map[string]telegram.Chat),
		channelsByID: make(map[int64]string),
	}
}

// EnsureUsersLoaded populates the users map on first call; subsequent
// calls are no-ops unless the previous attempt failed to load any users
// (allowing retry, per original_source's ensure_users_loaded).
func (d *Directory) EnsureUsersLoaded(ctx context.Context) error {
	d.mu.Lock()
	loaded := d.usersLoaded
	d.mu.Unlock()
	if loaded {
		return nil
	}
	return d.refreshUsers(ctx)
}

func (d *Directory) refreshUsers(ctx context.Context) error {
	users, err := d.client.GetUsers(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = make(map[string]telegram.User, len(users))
	d.usersByID = make(map[int64]string, len(users))
	for _, u := range users {
		name := UserDirName(u)
		d.users[name] = u
		d.usersByID[u.ID] = name
	}
	if len(users) > 0 {
		d.usersLoaded = true
	}
	return nil
}

// EnsureGroupsLoaded populates the groups map on first call.
func (d *Directory) EnsureGroupsLoaded(ctx context.Context) error {
	d.mu.Lock()
	loaded := d.groupsLoaded
	d.mu.Unlock()
	if loaded {
		return nil
	}
	groups, err := d.client.GetGroups(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups = make(map[string]telegram.Chat, len(groups))
	d.groupsByID = make(map[int64]string, len(groups))
	for _, c := range groups {
		name := ChatDirName(c)
		d.groups[name] = c
		d.groupsByID[c.ID] = name
	}
	if len(groups) > 0 {
		d.groupsLoaded = true
	}
	return nil
}

// EnsureChannelsLoaded populates the channels map on first call.
func (d *Directory) EnsureChannelsLoaded(ctx context.Context) error {
	d.mu.Lock()
	loaded := d.channelsLoaded
	d.mu.Unlock()
	if loaded {
		return nil
	}
	channels, err := d.client.GetChannels(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = make(map[string]telegram.Chat, len(channels))
	d.channelsByID = make(map[int64]string, len(channels))
	for _, c := range channels {
		name := ChatDirName(c)
		d.channels[name] = c
		d.channelsByID[c.ID] = name
	}
	if len(channels) > 0 {
		d.channelsLoaded = true
	}
	return nil
}

// EnsureMeLoaded populates the current-account user once.
func (d *Directory) EnsureMeLoaded(ctx context.Context) error {
	d.mu.Lock()
	if d.me != nil {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	me, err := d.client.GetMe(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.me = &me
	d.mu.Unlock()
	return nil
}

// Me returns the current account's user, if loaded.
func (d *Directory) Me() (telegram.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.me == nil {
		return telegram.User{}, false
	}
	return *d.me, true
}

// LookupUser resolves a directory name to a User.
func (d *Directory) LookupUser(dirName string) (telegram.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[dirName]
	return u, ok
}

// LookupGroup resolves a directory name to a group Chat.
func (d *Directory) LookupGroup(dirName string) (telegram.Chat, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.groups[dirName]
	return c, ok
}

// LookupChannel resolves a directory name to a channel Chat.
func (d *Directory) LookupChannel(dirName string) (telegram.Chat, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.channels[dirName]
	return c, ok
}

// ListUsers returns all known users sorted by directory name, for
// deterministic readdir output.
func (d *Directory) ListUsers() []telegram.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedChats(d.users)
}

// ListGroups returns all known groups sorted by directory name.
func (d *Directory) ListGroups() []telegram.Chat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedValues(d.groups)
}

// ListChannels returns all known channels sorted by directory name.
func (d *Directory) ListChannels() []telegram.Chat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedValues(d.channels)
}

func sortedChats(m map[string]telegram.User) []telegram.User {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]telegram.User, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

func sortedValues(m map[string]telegram.Chat) []telegram.Chat {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]telegram.Chat, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

// UserByID resolves a user by numeric id, fetching and caching via the
// capability if not already known. Used to assemble MessageInfo's
// sender field.
func (d *Directory) UserByID(ctx context.Context, id int64) (telegram.User, error) {
	d.mu.Lock()
	if name, ok := d.usersByID[id]; ok {
		u := d.users[name]
		d.mu.Unlock()
		return u, nil
	}
	d.mu.Unlock()

	u, err := d.client.GetUser(ctx, id)
	if err != nil {
		return telegram.User{}, err
	}
	d.mu.Lock()
	name := UserDirName(u)
	d.users[name] = u
	d.usersByID[u.ID] = name
	d.mu.Unlock()
	return u, nil
}

// ChatByID resolves a chat (private/group/supergroup/channel) by numeric
// id. A group or channel already in the directory is returned from it;
// otherwise the chat is fetched via the capability, and a fetched group
// or channel is cached. Private chats are not cached and are fetched on
// every call. Used to assemble MessageInfo's chat field.
func (d *Directory) ChatByID(ctx context.Context, id int64) (telegram.Chat, error) {
	d.mu.Lock()
	if name, ok := d.groupsByID[id]; ok {
		c := d.groups[name]
		d.mu.Unlock()
		return c, nil
	}
	if name, ok := d.channelsByID[id]; ok {
		c := d.channels[name]
		d.mu.Unlock()
		return c, nil
	}
	d.mu.Unlock()

	c, err := d.client.GetChat(ctx, id)
	if err != nil {
		return telegram.Chat{}, err
	}

	d.mu.Lock()
	name := ChatDirName(c)
	switch {
	case c.IsGroup():
		d.groups[name] = c
		d.groupsByID[c.ID] = name
	case c.IsChannel():
		d.channels[name] = c
		d.channelsByID[c.ID] = name
	}
	d.mu.Unlock()
	return c, nil
}

// UpsertChat applies an incoming updateNewChat event: inserts or
// replaces the cached group/channel row, keyed by its directory name.
// Private chats (users) are ignored — those arrive via UpdateUser.
func (d *Directory) UpsertChat(c telegram.Chat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := ChatDirName(c)
	switch {
	case c.IsGroup():
		d.groups[name] = c
		d.groupsByID[c.ID] = name
	case c.IsChannel():
		d.channels[name] = c
		d.channelsByID[c.ID] = name
	}
}

// UpdateUser applies an incoming updateUser event: refreshes the cached
// row in place, keyed by its (possibly changed) directory name.
func (d *Directory) UpdateUser(u telegram.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if oldName, ok := d.usersByID[u.ID]; ok && oldName != UserDirName(u) {
		delete(d.users, oldName)
	}
	name := UserDirName(u)
	d.users[name] = u
	d.usersByID[u.ID] = name
}

// UpdateChatLastMessage applies an incoming updateChatLastMessage event
// for a known group/channel.
func (d *Directory) UpdateChatLastMessage(chatID, messageID, ts int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name, ok := d.groupsByID[chatID]; ok {
		c := d.groups[name]
		c.LastMessageID, c.LastMessageTS = messageID, ts
		d.groups[name] = c
		return
	}
	if name, ok := d.channelsByID[chatID]; ok {
		c := d.channels[name]
		c.LastMessageID, c.LastMessageTS = messageID, ts
		d.channels[name] = c
	}
}
