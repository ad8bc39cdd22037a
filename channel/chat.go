package channel

import (
	"sort"
	"strings"

	"github.com/yono39/cytui/domain"
)

const defaultHistorySize = 1000

// ChatState is the channel's chat log and emote set. It is mutated only
// on the owning session's dispatch goroutine.
type ChatState struct {
	historySize int
	messages    []domain.ChatMessage
	emotes      []domain.Emote
}

func NewChatState(historySize int) *ChatState {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &ChatState{historySize: historySize}
}

func (c *ChatState) Add(msg domain.ChatMessage) {
	c.messages = append(c.messages, msg)
	if len(c.messages) > c.historySize {
		c.messages = c.messages[len(c.messages)-c.historySize:]
	}
}

func (c *ChatState) Messages() []domain.ChatMessage {
	return c.messages
}

func (c *ChatState) SetEmotes(emotes []domain.Emote) {
	c.emotes = emotes
}

// UpdateEmote replaces the emote with the same name, or appends it.
func (c *ChatState) UpdateEmote(emote domain.Emote) {
	for i, e := range c.emotes {
		if e.Name == emote.Name {
			c.emotes[i] = emote
			return
		}
	}
	c.emotes = append(c.emotes, emote)
}

func (c *ChatState) RemoveEmote(emote domain.Emote) {
	for i, e := range c.emotes {
		if e.Name == emote.Name {
			c.emotes = append(c.emotes[:i], c.emotes[i+1:]...)
			return
		}
	}
}

func (c *ChatState) Emotes() []domain.Emote {
	return c.emotes
}

func (c *ChatState) Reset() {
	c.messages = nil
	c.emotes = nil
}

// UserList mirrors the server's user roster for the channel.
type UserList struct {
	users []domain.User
	count int
}

func NewUserList() *UserList {
	return &UserList{}
}

func (u *UserList) SetUsers(users []domain.User) {
	u.users = append([]domain.User(nil), users...)
	u.sort()
}

func (u *UserList) Add(user domain.User) {
	for i, existing := range u.users {
		if existing.Name == user.Name {
			u.users[i] = user
			u.sort()
			return
		}
	}
	u.users = append(u.users, user)
	u.sort()
}

func (u *UserList) Remove(name string) {
	for i, existing := range u.users {
		if existing.Name == name {
			u.users = append(u.users[:i], u.users[i+1:]...)
			return
		}
	}
}

func (u *UserList) SetAFK(name string, afk bool) {
	for i, existing := range u.users {
		if existing.Name == name {
			u.users[i].AFK = afk
			return
		}
	}
}

func (u *UserList) SetCount(count int) {
	u.count = count
}

func (u *UserList) Count() int {
	return u.count
}

func (u *UserList) Users() []domain.User {
	return u.users
}

func (u *UserList) Reset() {
	u.users = nil
	u.count = 0
}

// sort orders moderators first (rank descending), then by name.
func (u *UserList) sort() {
	sort.SliceStable(u.users, func(i, j int) bool {
		if u.users[i].Rank != u.users[j].Rank {
			return u.users[i].Rank > u.users[j].Rank
		}
		return strings.ToLower(u.users[i].Name) < strings.ToLower(u.users[j].Name)
	})
}
