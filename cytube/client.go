package cytube

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yono39/cytui/domain"
)

const (
	// DefaultBaseURL is the public service the partition lookup runs
	// against. Override with NewClientWithBase for self-hosted servers.
	DefaultBaseURL = "https://cytu.be"

	// YouTubePrefix is the one recognized video-hosting URL shape; a
	// locator starting with it queues as type "yt" with the bare id.
	YouTubePrefix = "https://www.youtube.com/watch?v="

	invalidChannelPrefix = "Invalid channel name"

	defaultRequestTimeout = 10 * time.Second
)

// transport is the slice of Socket the client needs; tests swap in a fake.
type transport interface {
	ID() string
	Emit(event string, payload any) error
	Close()
}

type dialFunc func(Endpoint, func(sid, event string, data json.RawMessage)) (transport, error)

// Client is the single point of wire-protocol knowledge. It owns at
// most one live Transport Session, correlates join/login/queue replies
// to their requests, and fans every decoded inbound event out to the
// registered listeners.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	dial    dialFunc

	mu        sync.Mutex
	socket    transport
	pending   *pendingSet
	listeners []EventHandler
}

func NewClient(httpClient *http.Client) *Client {
	return NewClientWithBase(httpClient, DefaultBaseURL)
}

func NewClientWithBase(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: defaultRequestTimeout,
		dial: func(e Endpoint, onEvent func(string, string, json.RawMessage)) (transport, error) {
			return Dial(e, onEvent)
		},
		pending: newPendingSet(),
	}
}

// AddEventListener registers a listener for inbound events. Listeners
// are never removed for the life of the client; the list is replaced
// wholesale on registration so fan-out can iterate without a lock.
func (c *Client) AddEventListener(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]EventHandler, len(c.listeners), len(c.listeners)+1)
	copy(next, c.listeners)
	c.listeners = append(next, h)
}

// Connect opens a Transport Session to the endpoint, unconditionally
// closing any prior session first. Requests still in flight on the old
// session resolve with ErrClosed.
func (c *Client) Connect(endpoint Endpoint) error {
	c.mu.Lock()
	old := c.socket
	c.socket = nil
	c.pending.failAll(ErrClosed)
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	socket, err := c.dial(endpoint, c.handle)
	if err != nil {
		c.each(func(h EventHandler) { h.OnConnectError() })
		return err
	}

	c.mu.Lock()
	c.socket = socket
	c.mu.Unlock()
	return nil
}

// ConnectToChannel resolves the channel's partition, connects to it and
// joins the channel.
func (c *Client) ConnectToChannel(ctx context.Context, channel string) error {
	endpoint, err := c.ResolvePartition(ctx, channel)
	if err != nil {
		return err
	}
	if err := c.Connect(endpoint); err != nil {
		return err
	}
	return c.JoinChannel(ctx, channel)
}

// Disconnect tears the session down on the user's behalf. Listeners
// hear about the intent first so reconnect handling can stand down
// before the transport-level disconnect event arrives.
func (c *Client) Disconnect() {
	c.each(func(h EventHandler) { h.OnUserInitiatedDisconnect() })

	c.mu.Lock()
	socket := c.socket
	c.socket = nil
	c.pending.failAll(ErrClosed)
	c.mu.Unlock()

	if socket != nil {
		socket.Close()
	}
}

// JoinChannel asks the server for channel membership. It resolves when
// the permissions grant arrives, fails fast on an invalid channel name,
// and times out otherwise. Exactly one of the three happens.
func (c *Client) JoinChannel(ctx context.Context, name string) error {
	c.mu.Lock()
	socket := c.socket
	if socket == nil {
		c.mu.Unlock()
		return fmt.Errorf("join %q: not connected", name)
	}
	req := c.pending.create(kindJoin, "", socket.ID())
	c.mu.Unlock()

	if err := socket.Emit("joinChannel", map[string]any{"name": name}); err != nil {
		c.mu.Lock()
		c.pending.drop(req)
		c.mu.Unlock()
		return err
	}

	if _, err := c.await(ctx, req); err != nil {
		return fmt.Errorf("join %q: %w", name, err)
	}
	c.each(func(h EventHandler) { h.OnChannelJoin(name) })
	return nil
}

// Login authenticates (or guest-logs-in when password is empty) and
// returns the server-confirmed display name, which can differ from the
// requested one for guests.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	c.mu.Lock()
	socket := c.socket
	if socket == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("login %q: not connected", username)
	}
	req := c.pending.create(kindLogin, "", socket.ID())
	c.mu.Unlock()

	payload := map[string]any{"name": username}
	if password != "" {
		payload["pw"] = password
	}
	if err := socket.Emit("login", payload); err != nil {
		c.mu.Lock()
		c.pending.drop(req)
		c.mu.Unlock()
		return "", err
	}

	res, err := c.await(ctx, req)
	if err != nil {
		return "", fmt.Errorf("login %q: %w", username, err)
	}
	return res.name, nil
}

// Queue submits a locator to the playlist and waits for the server to
// accept or reject that specific submission. Replies for other pending
// submissions are ignored, matched by the deterministically derived id.
func (c *Client) Queue(ctx context.Context, url string, putLast, temp bool) error {
	mediaType, submittedID := MediaID(url)

	c.mu.Lock()
	socket := c.socket
	if socket == nil {
		c.mu.Unlock()
		return fmt.Errorf("queue %q: not connected", submittedID)
	}
	req := c.pending.create(kindQueue, submittedID, socket.ID())
	c.mu.Unlock()

	pos := "next"
	if putLast {
		pos = "end"
	}
	err := socket.Emit("queue", map[string]any{
		"id":   submittedID,
		"type": mediaType,
		"pos":  pos,
		"temp": temp,
	})
	if err != nil {
		c.mu.Lock()
		c.pending.drop(req)
		c.mu.Unlock()
		return err
	}

	if _, err := c.await(ctx, req); err != nil {
		return fmt.Errorf("queue %q: %w", submittedID, err)
	}
	return nil
}

// SendMessage posts a chat line. Fire-and-forget; a no-op when no
// session is up, since the UI can race ahead of the connection.
func (c *Client) SendMessage(message string) {
	c.emit("chatMsg", map[string]any{"msg": message, "meta": map[string]any{}})
}

// PollVote casts a vote on the active poll. Fire-and-forget.
func (c *Client) PollVote(option int) {
	c.emit("vote", map[string]any{"option": option})
}

func (c *Client) emit(event string, payload any) {
	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()
	if socket == nil {
		return
	}
	if err := socket.Emit(event, payload); err != nil {
		log.Printf("cytube: emit %s: %v", event, err)
	}
}

// MediaID derives the wire type tag and media id for a locator: a
// recognized video-hosting URL becomes ("yt", bare id), anything else
// ("fi", locator verbatim).
func MediaID(url string) (mediaType, id string) {
	if strings.HasPrefix(url, YouTubePrefix) {
		return "yt", strings.TrimPrefix(url, YouTubePrefix)
	}
	return "fi", url
}

// MediaURL is the inverse mapping for inbound media-change events.
func MediaURL(mediaType, id string) string {
	if mediaType == "yt" {
		return YouTubePrefix + id
	}
	return id
}

// each fans fn out to every listener in registration order. A panic in
// one listener is logged and must not stop delivery to the rest.
func (c *Client) each(fn func(EventHandler)) {
	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()

	for _, h := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("cytube: listener panic: %v", r)
				}
			}()
			fn(h)
		}()
	}
}

// resolvePending completes the outstanding request of the kind, if the
// reply belongs to the current session and carries a matching id.
func (c *Client) resolvePending(sid string, kind requestKind, replyID string, res requestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req, ok := c.pending.reqs[kind]; ok && req.sid != sid {
		// Reply from a session we already replaced; let the timeout
		// or teardown resolve the request instead.
		return
	}
	c.pending.resolve(kind, replyID, res)
}

func (c *Client) currentSocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return ""
	}
	return c.socket.ID()
}

// handle decodes one inbound wire event and dispatches it. It runs on
// the transport's reader goroutine; ordering is receive order.
func (c *Client) handle(sid, event string, data json.RawMessage) {
	if current := c.currentSocketID(); current != "" && current != sid {
		// Stale event from a torn-down session.
		return
	}

	switch event {
	case EventConnect:
		c.each(func(h EventHandler) { h.OnConnect() })

	case EventConnectError:
		c.each(func(h EventHandler) { h.OnConnectError() })

	case EventDisconnect:
		c.mu.Lock()
		c.pending.failAll(ErrClosed)
		c.mu.Unlock()
		c.each(func(h EventHandler) { h.OnDisconnect() })

	case "errorMsg":
		var payload struct {
			Msg string `json:"msg"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		if strings.HasPrefix(payload.Msg, invalidChannelPrefix) {
			c.resolvePending(sid, kindJoin, "", requestResult{err: fmt.Errorf("%s", payload.Msg)})
		}

	case "setPermissions":
		c.resolvePending(sid, kindJoin, "", requestResult{})

	case "login":
		var payload struct {
			Success bool   `json:"success"`
			Name    string `json:"name"`
			Error   string `json:"error"`
			Guest   bool   `json:"guest"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		if payload.Success {
			c.resolvePending(sid, kindLogin, "", requestResult{name: payload.Name, guest: payload.Guest})
			c.each(func(h EventHandler) { h.OnLoginSuccess(payload.Name, payload.Guest) })
		} else {
			c.resolvePending(sid, kindLogin, "", requestResult{err: fmt.Errorf("%s", payload.Error)})
		}

	case "chatMsg":
		var payload struct {
			Time     int64  `json:"time"`
			Username string `json:"username"`
			Msg      string `json:"msg"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		msg := domain.NewUserMessage(time.UnixMilli(payload.Time), payload.Username, payload.Msg)
		c.each(func(h EventHandler) { h.OnChatMessage(msg) })

	case "emoteList":
		var payload []wireEmote
		if err := decode(event, data, &payload); err != nil {
			return
		}
		emotes := make([]domain.Emote, 0, len(payload))
		for _, e := range payload {
			emotes = append(emotes, domain.NewEmote(e.Name, e.Image))
		}
		c.each(func(h EventHandler) { h.OnEmoteList(emotes) })

	case "updateEmote":
		var payload wireEmote
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnUpdateEmote(domain.NewEmote(payload.Name, payload.Image)) })

	case "removeEmote":
		var payload wireEmote
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnRemoveEmote(domain.NewEmote(payload.Name, payload.Image)) })

	case "userlist":
		var payload []wireUser
		if err := decode(event, data, &payload); err != nil {
			return
		}
		users := make([]domain.User, 0, len(payload))
		for _, u := range payload {
			users = append(users, u.toDomain())
		}
		c.each(func(h EventHandler) { h.OnUserList(users) })

	case "usercount":
		var count int
		if err := decode(event, data, &count); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnUserCount(count) })

	case "setAFK":
		var payload struct {
			Name string `json:"name"`
			AFK  bool   `json:"afk"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnSetAFK(payload.Name, payload.AFK) })

	case "addUser":
		var payload wireUser
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnAddUser(payload.toDomain()) })

	case "userLeave":
		var payload struct {
			Name string `json:"name"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnUserLeave(payload.Name) })

	case "changeMedia":
		var payload struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		mrl := MediaURL(payload.Type, payload.ID)
		c.each(func(h EventHandler) { h.OnChangeMedia(mrl) })

	case "mediaUpdate":
		var payload struct {
			CurrentTime float64 `json:"currentTime"`
			Paused      bool    `json:"paused"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		millis := int64(payload.CurrentTime * 1000)
		c.each(func(h EventHandler) { h.OnMediaUpdate(millis, payload.Paused) })

	case "queue":
		var payload struct {
			Item  wirePlaylistItem `json:"item"`
			After flexString       `json:"after"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		item := payload.Item.toDomain()
		c.resolvePending(sid, kindQueue, item.Media.ID, requestResult{})
		c.each(func(h EventHandler) { h.OnQueue(item, string(payload.After)) })

	case "queueFail":
		var payload struct {
			ID  string `json:"id"`
			Msg string `json:"msg"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.resolvePending(sid, kindQueue, payload.ID, requestResult{err: fmt.Errorf("%s", payload.Msg)})

	case "playlist":
		var payload []wirePlaylistItem
		if err := decode(event, data, &payload); err != nil {
			return
		}
		items := make([]domain.PlaylistItem, 0, len(payload))
		for _, item := range payload {
			items = append(items, item.toDomain())
		}
		c.each(func(h EventHandler) { h.OnPlaylist(items) })

	case "setPlaylistMeta":
		var payload struct {
			RawTime int64  `json:"rawTime"`
			Count   int    `json:"count"`
			Time    string `json:"time"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnPlaylistMeta(payload.RawTime, payload.Count, payload.Time) })

	case "delete":
		var payload struct {
			UID int `json:"uid"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnDeletePlaylistItem(payload.UID) })

	case "moveVideo":
		var payload struct {
			From  int        `json:"from"`
			After flexString `json:"after"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		if string(payload.After) == "prepend" {
			c.each(func(h EventHandler) { h.OnMoveVideoToStart(payload.From) })
			return
		}
		after, err := strconv.Atoi(string(payload.After))
		if err != nil {
			log.Printf("cytube: moveVideo: bad after %q", payload.After)
			return
		}
		c.each(func(h EventHandler) { h.OnMoveVideo(payload.From, after) })

	case "setPlaylistLocked":
		var locked bool
		if err := decode(event, data, &locked); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnPlaylistLock(locked) })

	case "kick":
		var payload struct {
			Reason string `json:"reason"`
		}
		if err := decode(event, data, &payload); err != nil {
			return
		}
		c.each(func(h EventHandler) { h.OnKick(payload.Reason) })

	case "newPoll":
		poll, err := decodePoll(data)
		if err != nil {
			log.Printf("cytube: %v", err)
			return
		}
		c.each(func(h EventHandler) { h.OnNewPoll(poll) })

	case "updatePoll":
		poll, err := decodePoll(data)
		if err != nil {
			log.Printf("cytube: %v", err)
			return
		}
		c.each(func(h EventHandler) { h.OnUpdatePoll(poll) })

	case "closePoll":
		c.each(func(h EventHandler) { h.OnClosePoll() })
	}
}

func decode(event string, data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("cytube: dropping malformed %s payload: %v", event, err)
		return err
	}
	return nil
}

// flexString accepts both JSON strings and numbers; the server sends
// playlist anchors either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type wireEmote struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type wireUser struct {
	Name string  `json:"name"`
	Rank float64 `json:"rank"`
	Meta struct {
		AFK   bool `json:"afk"`
		Muted bool `json:"muted"`
	} `json:"meta"`
}

func (u wireUser) toDomain() domain.User {
	return domain.NewUser(u.Name, u.Rank, u.Meta.AFK, u.Meta.Muted)
}

type wirePlaylistItem struct {
	UID     int    `json:"uid"`
	Temp    bool   `json:"temp"`
	QueueBy string `json:"queueby"`
	Media   struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Type     string `json:"type"`
		Duration string `json:"duration"`
		Seconds  int64  `json:"seconds"`
	} `json:"media"`
}

func (w wirePlaylistItem) toDomain() domain.PlaylistItem {
	return domain.NewPlaylistItem(w.UID, w.Temp, w.QueueBy, domain.MediaItem{
		ID:       w.Media.ID,
		Title:    w.Media.Title,
		Type:     w.Media.Type,
		Duration: w.Media.Duration,
		Seconds:  w.Media.Seconds,
	})
}

func decodePoll(data json.RawMessage) (domain.Poll, error) {
	var payload struct {
		Title     string   `json:"title"`
		Initiator string   `json:"initiator"`
		Timestamp int64    `json:"timestamp"`
		Counts    []int    `json:"counts"`
		Options   []string `json:"options"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.Poll{}, fmt.Errorf("decode poll: %w", err)
	}
	options := make([]string, 0, len(payload.Options))
	for _, option := range payload.Options {
		options = append(options, html.UnescapeString(option))
	}
	return domain.NewPoll(
		html.UnescapeString(payload.Title),
		payload.Initiator,
		time.UnixMilli(payload.Timestamp),
		options,
		payload.Counts,
	), nil
}
