package channel

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/yono39/cytui/cytube"
	"github.com/yono39/cytui/domain"
	"github.com/yono39/cytui/player"
	"github.com/yono39/cytui/settings"
)

// State is the session's position in the per-channel lifecycle.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateConnecting
	StateJoined
	StateAuthenticating
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is the user's relationship to the targeted channel.
type Status struct {
	State              State
	CurrentUser        string
	Guest              bool
	CurrentChannel     string
	HasConnectedBefore bool
	Kicked             bool
	DisconnectReason   string
}

func (s Status) ConnectedAndAuthenticated() bool {
	return s.CurrentUser != "" && s.CurrentChannel != ""
}

// Controller is the slice of the protocol client the session drives.
type Controller interface {
	ResolvePartition(ctx context.Context, channel string) (cytube.Endpoint, error)
	Connect(endpoint cytube.Endpoint) error
	JoinChannel(ctx context.Context, name string) error
	Login(ctx context.Context, username, password string) (string, error)
	Queue(ctx context.Context, url string, putLast, temp bool) error
	SendMessage(message string)
	PollVote(option int)
	Disconnect()
}

// Recorder persists chat lines as they arrive; nil disables it.
type Recorder interface {
	Append(channel string, msg domain.ChatMessage) error
}

// Session owns everything derived from one targeted channel: the chat
// log, roster, playlist, poll and playback timeline, plus the lifecycle
// state machine that reacts to protocol events and user actions.
//
// All state is mutated on a single dispatch goroutine. Protocol events
// and user actions post closures onto it; blocking network calls run on
// worker goroutines that post their results back. This is the only
// place resolver and protocol failures are absorbed: they become
// disconnect reasons, never uncaught errors.
type Session struct {
	client   Controller
	repo     settings.Repository
	recorder Recorder

	status        Status
	targetChannel string

	Chat     *ChatState
	Users    *UserList
	Playlist *PlaylistState
	Poll     *PollState
	Player   *player.State

	tasks    chan func()
	done     chan struct{}
	onUpdate func()
}

func NewSession(client Controller, repo settings.Repository, recorder Recorder) *Session {
	cfg := repo.Load()
	return &Session{
		client:   client,
		repo:     repo,
		recorder: recorder,
		Chat:     NewChatState(cfg.HistorySize),
		Users:    NewUserList(),
		Playlist: NewPlaylistState(),
		Poll:     NewPollState(),
		Player:   player.NewState(cfg.SyncThreshold),
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
	}
}

// SetOnUpdate registers a hook invoked on the dispatch goroutine after
// every applied task; the UI uses it to snapshot state for redraw. The
// hook itself is installed through the dispatch goroutine so it can be
// set while tasks are already flowing.
func (s *Session) SetOnUpdate(fn func()) {
	s.Do(func() { s.onUpdate = fn })
}

// Start runs the dispatch loop until Close.
func (s *Session) Start() {
	go s.run()
}

func (s *Session) Close() {
	close(s.done)
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
			if s.onUpdate != nil {
				s.onUpdate()
			}
		case <-s.done:
			return
		}
	}
}

// Do serializes fn onto the session's dispatch goroutine.
func (s *Session) Do(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

func (s *Session) Status() Status {
	return s.status
}

// --- user actions ---

// SetChannel targets a channel and starts the connect sequence, or
// tears everything down when the name is empty.
func (s *Session) SetChannel(name string) {
	s.Do(func() {
		if name == "" {
			s.teardown()
			return
		}
		s.targetChannel = name
		s.saveChannel(name)
		s.status.Kicked = false
		s.status.State = StateResolving
		go s.connectFlow(name)
	})
}

// Reconnect is the explicit user retry from a disconnected state.
func (s *Session) Reconnect() {
	s.Do(func() {
		if s.targetChannel == "" || s.status.CurrentChannel != "" {
			return
		}
		s.status.Kicked = false
		s.status.State = StateResolving
		go s.connectFlow(s.targetChannel)
	})
}

// SendChat posts a chat line; a no-op while not joined.
func (s *Session) SendChat(message string) {
	s.client.SendMessage(message)
}

// Vote casts a poll vote and records the chosen option locally.
func (s *Session) Vote(option int) {
	s.client.PollVote(option)
	s.Do(func() { s.Poll.Choose(option) })
}

// QueueMedia submits a locator to the playlist; the outcome lands in
// the chat log as a system line.
func (s *Session) QueueMedia(url string, putLast, temp bool) {
	go func() {
		err := s.client.Queue(context.Background(), url, putLast, temp)
		s.Do(func() {
			if err != nil {
				s.Chat.Add(domain.NewSystemMessage(fmt.Sprintf("queue failed: %v", err)))
				return
			}
			s.Chat.Add(domain.NewSystemMessage("queued " + url))
		})
	}()
}

// LoginAs authenticates with explicit credentials and, when remember is
// set, stores them for the automatic login after reconnects.
func (s *Session) LoginAs(username, password string, remember bool) {
	go func() {
		_, err := s.client.Login(context.Background(), username, password)
		s.Do(func() {
			if err != nil {
				s.Chat.Add(domain.NewSystemMessage(fmt.Sprintf("login failed: %v", err)))
				return
			}
			s.status.State = StateActive
			if remember {
				s.saveUsername(username)
				if password != "" {
					if err := s.repo.SetPassword(username, password); err != nil {
						log.Printf("channel: store password: %v", err)
					}
				}
			}
		})
	}()
}

// Logout drops the stored credentials and the authenticated user.
func (s *Session) Logout() {
	s.Do(func() {
		if user := s.status.CurrentUser; user != "" {
			if err := s.repo.DeletePassword(user); err != nil {
				log.Printf("channel: delete password: %v", err)
			}
		}
		s.saveUsername("")
		s.status.CurrentUser = ""
		s.status.Guest = false
	})
}

// Disconnect is the user closing the channel for good.
func (s *Session) Disconnect() {
	go s.client.Disconnect()
}

// ReportPlayerTime is the player adapter's natural-playback heartbeat.
func (s *Session) ReportPlayerTime(ms int64) {
	s.Do(func() { s.Player.UpdateInternally(ms) })
}

// SeekTo is the user scrubbing the timeline.
func (s *Session) SeekTo(ms int64) {
	s.Do(func() { s.Player.SeekTo(ms) })
}

// --- connect sequence (worker goroutine) ---

// connectFlow resolves the partition, connects and joins, posting each
// lifecycle step back to the dispatch goroutine. Every failure is
// converted into a disconnect reason here.
func (s *Session) connectFlow(name string) {
	ctx := context.Background()

	endpoint, err := s.client.ResolvePartition(ctx, name)
	if err != nil {
		s.Do(func() { s.disconnectWithReason(fmt.Sprintf("can't find a server for %s: %v", name, err)) })
		return
	}

	s.Do(func() { s.status.State = StateConnecting })
	if err := s.client.Connect(endpoint); err != nil {
		s.Do(func() { s.disconnectWithReason("can't connect to the server") })
		return
	}

	s.joinAndLogin(name)
}

// joinAndLogin runs the join plus optional stored-credential login. It
// is entered both from the initial connect and from the automatic
// rejoin after a transport-level reconnect.
func (s *Session) joinAndLogin(name string) {
	ctx := context.Background()

	if err := s.client.JoinChannel(ctx, name); err != nil {
		s.Do(func() {
			s.disconnectWithReason(err.Error())
			// A channel the server rejects is not worth retrying on
			// the next transport connect.
			s.targetChannel = ""
			s.saveChannel("")
		})
		return
	}

	// The repository is read on the dispatch goroutine; only the
	// blocking login call goes back out to a worker.
	s.Do(func() {
		s.joined(name)
		username := s.repo.Load().Username
		if username == "" {
			s.status.State = StateActive
			return
		}
		password, ok := s.repo.LoadPassword(username)
		if !ok {
			s.status.State = StateActive
			return
		}
		s.status.State = StateAuthenticating
		go s.storedLogin(username, password)
	})
}

// storedLogin runs the automatic login with remembered credentials.
func (s *Session) storedLogin(username, password string) {
	if _, err := s.client.Login(context.Background(), username, password); err != nil {
		s.Do(func() {
			// Bad stored credentials must not wedge the session; drop
			// the username and carry on unauthenticated.
			log.Printf("channel: stored login failed: %v", err)
			s.saveUsername("")
			s.status.State = StateActive
		})
		return
	}
	s.Do(func() { s.status.State = StateActive })
}

// --- protocol events (cytube.EventHandler) ---

func (s *Session) OnConnect() {
	s.Do(func() {
		// The only automatic-retry path: transport came back while a
		// channel is targeted and nothing is joined. Kicked sessions
		// stay down until the user re-initiates.
		if s.status.Kicked || s.targetChannel == "" || s.status.CurrentChannel != "" || !s.status.HasConnectedBefore {
			return
		}
		go s.joinAndLogin(s.targetChannel)
	})
}

func (s *Session) OnConnectError() {
	s.Do(func() { s.disconnectWithReason("can't connect to the server") })
}

func (s *Session) OnDisconnect() {
	s.Do(func() { s.disconnected() })
}

func (s *Session) OnUserInitiatedDisconnect() {
	s.Do(func() {
		s.status.HasConnectedBefore = false
		s.disconnected()
	})
}

func (s *Session) OnChannelJoin(channel string) {
	s.Do(func() { s.joined(channel) })
}

func (s *Session) OnKick(reason string) {
	s.Do(func() {
		s.status.Kicked = true
		s.Chat.Add(domain.NewConnectionMessage("Kicked: "+reason, domain.ConnectionDisconnected))
		s.statusDisconnect("")
	})
}

func (s *Session) OnChatMessage(msg domain.ChatMessage) {
	s.Do(func() {
		s.Chat.Add(msg)
		if s.recorder != nil && s.status.CurrentChannel != "" {
			if err := s.recorder.Append(s.status.CurrentChannel, msg); err != nil {
				log.Printf("channel: record message: %v", err)
			}
		}
	})
}

func (s *Session) OnLoginSuccess(name string, guest bool) {
	s.Do(func() {
		s.status.CurrentUser = name
		s.status.Guest = guest
	})
}

func (s *Session) OnEmoteList(emotes []domain.Emote) {
	s.Do(func() { s.Chat.SetEmotes(emotes) })
}

func (s *Session) OnUpdateEmote(emote domain.Emote) {
	s.Do(func() { s.Chat.UpdateEmote(emote) })
}

func (s *Session) OnRemoveEmote(emote domain.Emote) {
	s.Do(func() { s.Chat.RemoveEmote(emote) })
}

func (s *Session) OnUserList(users []domain.User) {
	s.Do(func() { s.Users.SetUsers(users) })
}

func (s *Session) OnUserCount(count int) {
	s.Do(func() { s.Users.SetCount(count) })
}

func (s *Session) OnSetAFK(name string, afk bool) {
	s.Do(func() { s.Users.SetAFK(name, afk) })
}

func (s *Session) OnAddUser(user domain.User) {
	s.Do(func() { s.Users.Add(user) })
}

func (s *Session) OnUserLeave(name string) {
	s.Do(func() { s.Users.Remove(name) })
}

func (s *Session) OnChangeMedia(mrl string) {
	s.Do(func() { s.Player.SetMRL(mrl) })
}

func (s *Session) OnMediaUpdate(timeMillis int64, paused bool) {
	s.Do(func() { s.Player.Sync(timeMillis, paused) })
}

func (s *Session) OnQueue(item domain.PlaylistItem, after string) {
	s.Do(func() {
		if after == "prepend" {
			s.Playlist.AddFirst(item)
			return
		}
		uid, err := strconv.Atoi(after)
		if err != nil {
			log.Printf("channel: queue anchor %q: %v", after, err)
			return
		}
		s.Playlist.AddAfter(item, uid)
	})
}

func (s *Session) OnPlaylist(items []domain.PlaylistItem) {
	s.Do(func() { s.Playlist.SetItems(items) })
}

func (s *Session) OnPlaylistMeta(rawTime int64, count int, time string) {
	s.Do(func() { s.Playlist.SetMeta(rawTime, count, time) })
}

func (s *Session) OnDeletePlaylistItem(uid int) {
	s.Do(func() { s.Playlist.Delete(uid) })
}

func (s *Session) OnMoveVideo(fromUID, afterUID int) {
	s.Do(func() { s.Playlist.MoveAfter(fromUID, afterUID) })
}

func (s *Session) OnMoveVideoToStart(uid int) {
	s.Do(func() { s.Playlist.MoveToStart(uid) })
}

func (s *Session) OnPlaylistLock(locked bool) {
	s.Do(func() { s.Playlist.SetLocked(locked) })
}

func (s *Session) OnNewPoll(poll domain.Poll) {
	s.Do(func() {
		s.Poll.StartNew(poll)
		s.Chat.Add(domain.NewAnnouncementMessage(poll.Initiator + " opened a poll: " + poll.Title))
	})
}

func (s *Session) OnUpdatePoll(poll domain.Poll) {
	s.Do(func() { s.Poll.Update(poll) })
}

func (s *Session) OnClosePoll() {
	s.Do(func() { s.Poll.Close() })
}

// --- internal transitions (dispatch goroutine only) ---

func (s *Session) joined(channel string) {
	if s.status.CurrentChannel == channel {
		// Already joined; re-entry from the auto-rejoin race.
		return
	}
	s.status.HasConnectedBefore = true
	s.status.CurrentChannel = channel
	s.status.DisconnectReason = ""
	if s.status.State != StateAuthenticating && s.status.State != StateActive {
		s.status.State = StateJoined
	}
	s.Chat.Add(domain.NewConnectionMessage("Connected", domain.ConnectionConnected))
}

func (s *Session) disconnected() {
	wasFresh := !s.status.HasConnectedBefore
	s.statusDisconnect("")
	if wasFresh {
		s.reset()
		s.status.State = StateIdle
		return
	}
	if !s.status.Kicked {
		s.Chat.Add(domain.NewConnectionMessage("Disconnected", domain.ConnectionDisconnected))
	}
}

func (s *Session) disconnectWithReason(reason string) {
	s.statusDisconnect(reason)
}

func (s *Session) statusDisconnect(reason string) {
	s.status.CurrentUser = ""
	s.status.Guest = false
	s.status.CurrentChannel = ""
	s.status.DisconnectReason = reason
	s.status.State = StateDisconnected
}

// teardown returns to Idle and clears all per-channel derived state.
func (s *Session) teardown() {
	s.targetChannel = ""
	s.saveChannel("")
	s.statusDisconnect("")
	s.status.HasConnectedBefore = false
	s.status.Kicked = false
	s.reset()
	s.status.State = StateIdle
	go s.client.Disconnect()
}

func (s *Session) reset() {
	s.Chat.Reset()
	s.Users.Reset()
	s.Playlist.Reset()
	s.Poll.Reset()
	s.Player.Reset()
}

func (s *Session) saveChannel(name string) {
	cfg := s.repo.Load()
	cfg.Channel = name
	if err := s.repo.Save(cfg); err != nil {
		log.Printf("channel: save settings: %v", err)
	}
}

func (s *Session) saveUsername(name string) {
	cfg := s.repo.Load()
	cfg.Username = name
	if err := s.repo.Save(cfg); err != nil {
		log.Printf("channel: save settings: %v", err)
	}
}
