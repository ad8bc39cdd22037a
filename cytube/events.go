package cytube

import "github.com/yono39/cytui/domain"

// EventHandler receives every decoded inbound event. Handlers are
// invoked synchronously, in registration order, from the transport's
// reader goroutine; implementations that need their own serialization
// should hand the event off to their own dispatcher.
//
// Embed BaseHandler to pick up no-op defaults for events you do not
// care about.
type EventHandler interface {
	OnConnect()
	OnConnectError()
	OnDisconnect()
	OnUserInitiatedDisconnect()
	OnChannelJoin(channel string)
	OnKick(reason string)

	OnChatMessage(msg domain.ChatMessage)
	OnLoginSuccess(name string, guest bool)

	OnEmoteList(emotes []domain.Emote)
	OnUpdateEmote(emote domain.Emote)
	OnRemoveEmote(emote domain.Emote)

	OnUserList(users []domain.User)
	OnUserCount(count int)
	OnSetAFK(name string, afk bool)
	OnAddUser(user domain.User)
	OnUserLeave(name string)

	OnChangeMedia(mrl string)
	OnMediaUpdate(timeMillis int64, paused bool)

	OnQueue(item domain.PlaylistItem, after string)
	OnPlaylist(items []domain.PlaylistItem)
	OnPlaylistMeta(rawTime int64, count int, time string)
	OnDeletePlaylistItem(uid int)
	OnMoveVideo(fromUID, afterUID int)
	OnMoveVideoToStart(uid int)
	OnPlaylistLock(locked bool)

	OnNewPoll(poll domain.Poll)
	OnUpdatePoll(poll domain.Poll)
	OnClosePoll()
}

// BaseHandler implements EventHandler with no-ops.
type BaseHandler struct{}

func (BaseHandler) OnConnect()                                 {}
func (BaseHandler) OnConnectError()                            {}
func (BaseHandler) OnDisconnect()                              {}
func (BaseHandler) OnUserInitiatedDisconnect()                 {}
func (BaseHandler) OnChannelJoin(string)                       {}
func (BaseHandler) OnKick(string)                              {}
func (BaseHandler) OnChatMessage(domain.ChatMessage)           {}
func (BaseHandler) OnLoginSuccess(string, bool)                {}
func (BaseHandler) OnEmoteList([]domain.Emote)                 {}
func (BaseHandler) OnUpdateEmote(domain.Emote)                 {}
func (BaseHandler) OnRemoveEmote(domain.Emote)                 {}
func (BaseHandler) OnUserList([]domain.User)                   {}
func (BaseHandler) OnUserCount(int)                            {}
func (BaseHandler) OnSetAFK(string, bool)                      {}
func (BaseHandler) OnAddUser(domain.User)                      {}
func (BaseHandler) OnUserLeave(string)                         {}
func (BaseHandler) OnChangeMedia(string)                       {}
func (BaseHandler) OnMediaUpdate(int64, bool)                  {}
func (BaseHandler) OnQueue(domain.PlaylistItem, string)        {}
func (BaseHandler) OnPlaylist([]domain.PlaylistItem)           {}
func (BaseHandler) OnPlaylistMeta(int64, int, string)          {}
func (BaseHandler) OnDeletePlaylistItem(int)                   {}
func (BaseHandler) OnMoveVideo(int, int)                       {}
func (BaseHandler) OnMoveVideoToStart(int)                     {}
func (BaseHandler) OnPlaylistLock(bool)                        {}
func (BaseHandler) OnNewPoll(domain.Poll)                      {}
func (BaseHandler) OnUpdatePoll(domain.Poll)                   {}
func (BaseHandler) OnClosePoll()                               {}
