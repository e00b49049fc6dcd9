// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/telegram"
)

// resolvedEntity carries the chat id and backing struct for whichever
// entity kind a name resolved to, so callers needing only chatID (files,
// messages) and callers needing the struct (.info) share one lookup.
type resolvedEntity struct {
	chatID int64
	user   telegram.User
	chat   telegram.Chat
	isUser bool
}

// resolveEntity maps a (kind, directory name) pair to its chat id and
// underlying User/Chat, per the invariant that a private chat's id
// equals its User's id (§3.1).
func resolveEntity(opts *Options, kind entity.Kind, name string) (resolvedEntity, bool) {
	switch kind {
	case entity.KindUser:
		u, ok := opts.Directory.LookupUser(name)
		if !ok {
			return resolvedEntity{}, false
		}
		return resolvedEntity{chatID: u.ID, user: u, isUser: true}, true
	case entity.KindGroup:
		c, ok := opts.Directory.LookupGroup(name)
		if !ok {
			return resolvedEntity{}, false
		}
		return resolvedEntity{chatID: c.ID, chat: c}, true
	case entity.KindChannel:
		c, ok := opts.Directory.LookupChannel(name)
		if !ok {
			return resolvedEntity{}, false
		}
		return resolvedEntity{chatID: c.ID, chat: c}, true
	default:
		return resolvedEntity{}, false
	}
}
