package cytube

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yono39/cytui/domain"
)

type emitCall struct {
	event   string
	payload any
}

type fakeSocket struct {
	id     string
	mu     sync.Mutex
	emits  []emitCall
	emitCh chan emitCall
	closed bool
}

func newFakeSocket(id string) *fakeSocket {
	return &fakeSocket{id: id, emitCh: make(chan emitCall, 16)}
}

func (f *fakeSocket) ID() string { return f.id }

func (f *fakeSocket) Emit(event string, payload any) error {
	f.mu.Lock()
	f.emits = append(f.emits, emitCall{event, payload})
	f.mu.Unlock()
	f.emitCh <- emitCall{event, payload}
	return nil
}

func (f *fakeSocket) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// newTestClient wires a client to a fake transport and connects it.
func newTestClient(t *testing.T) (*Client, *fakeSocket) {
	t.Helper()
	c := NewClient(nil)
	c.timeout = 2 * time.Second

	socket := newFakeSocket("sock-1")
	c.dial = func(Endpoint, func(string, string, json.RawMessage)) (transport, error) {
		return socket, nil
	}
	if err := c.Connect(Endpoint{URL: "https://test.invalid"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c, socket
}

func (f *fakeSocket) waitEmit(t *testing.T, event string) emitCall {
	t.Helper()
	select {
	case call := <-f.emitCh:
		if call.event != event {
			t.Fatalf("emitted %q, want %q", call.event, event)
		}
		return call
	case <-time.After(time.Second):
		t.Fatalf("no %q emitted", event)
		return emitCall{}
	}
}

type recordingHandler struct {
	BaseHandler
	mu     sync.Mutex
	events []string
	joined string
}

func (r *recordingHandler) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingHandler) OnChannelJoin(channel string) {
	r.mu.Lock()
	r.joined = channel
	r.mu.Unlock()
	r.record("join:" + channel)
}

func (r *recordingHandler) OnUserInitiatedDisconnect() { r.record("intent") }
func (r *recordingHandler) OnDisconnect()              { r.record("disconnect") }
func (r *recordingHandler) OnUserCount(count int)      { r.record("usercount") }

func (r *recordingHandler) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestJoinChannelSuccess(t *testing.T) {
	c, socket := newTestClient(t)
	handler := &recordingHandler{}
	c.AddEventListener(handler)

	errCh := make(chan error, 1)
	go func() { errCh <- c.JoinChannel(context.Background(), "lounge") }()

	call := socket.waitEmit(t, "joinChannel")
	payload := call.payload.(map[string]any)
	if payload["name"] != "lounge" {
		t.Fatalf("join payload = %v", payload)
	}

	c.handle(socket.id, "setPermissions", json.RawMessage(`{}`))

	if err := <-errCh; err != nil {
		t.Fatalf("join: %v", err)
	}
	if handler.joined != "lounge" {
		t.Fatalf("OnChannelJoin = %q, want lounge", handler.joined)
	}
}

func TestJoinChannelInvalidName(t *testing.T) {
	c, socket := newTestClient(t)

	errCh := make(chan error, 1)
	go func() { errCh <- c.JoinChannel(context.Background(), "xyz") }()
	socket.waitEmit(t, "joinChannel")

	c.handle(socket.id, "errorMsg", json.RawMessage(`{"msg":"Invalid channel name xyz"}`))

	err := <-errCh
	if err == nil || !strings.Contains(err.Error(), "Invalid channel name xyz") {
		t.Fatalf("err = %v, want invalid channel message", err)
	}

	// No success may fire afterwards for that request.
	c.handle(socket.id, "setPermissions", json.RawMessage(`{}`))
}

func TestJoinChannelIgnoresUnrelatedErrors(t *testing.T) {
	c, socket := newTestClient(t)

	errCh := make(chan error, 1)
	go func() { errCh <- c.JoinChannel(context.Background(), "lounge") }()
	socket.waitEmit(t, "joinChannel")

	c.handle(socket.id, "errorMsg", json.RawMessage(`{"msg":"You do not have permission"}`))
	c.handle(socket.id, "setPermissions", json.RawMessage(`{}`))

	if err := <-errCh; err != nil {
		t.Fatalf("unrelated errorMsg must not fail the join: %v", err)
	}
}

func TestJoinChannelTimeout(t *testing.T) {
	c, socket := newTestClient(t)
	c.timeout = 30 * time.Millisecond

	errCh := make(chan error, 1)
	go func() { errCh <- c.JoinChannel(context.Background(), "lounge") }()
	socket.waitEmit(t, "joinChannel")

	if err := <-errCh; !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestSecondJoinSupersedesFirst(t *testing.T) {
	c, socket := newTestClient(t)

	first := make(chan error, 1)
	go func() { first <- c.JoinChannel(context.Background(), "one") }()
	socket.waitEmit(t, "joinChannel")

	second := make(chan error, 1)
	go func() { second <- c.JoinChannel(context.Background(), "two") }()
	socket.waitEmit(t, "joinChannel")

	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first join err = %v, want ErrSuperseded", err)
	}

	c.handle(socket.id, "setPermissions", json.RawMessage(`{}`))
	if err := <-second; err != nil {
		t.Fatalf("second join: %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	c, socket := newTestClient(t)

	nameCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		name, err := c.Login(context.Background(), "alice", "hunter2")
		nameCh <- name
		errCh <- err
	}()
	call := socket.waitEmit(t, "login")
	payload := call.payload.(map[string]any)
	if payload["name"] != "alice" || payload["pw"] != "hunter2" {
		t.Fatalf("login payload = %v", payload)
	}

	c.handle(socket.id, "login", json.RawMessage(`{"success":true,"name":"alice"}`))

	if name := <-nameCh; name != "alice" {
		t.Fatalf("name = %q", name)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestLoginGuestOmitsPassword(t *testing.T) {
	c, socket := newTestClient(t)

	go c.Login(context.Background(), "guest42", "")
	call := socket.waitEmit(t, "login")
	payload := call.payload.(map[string]any)
	if _, ok := payload["pw"]; ok {
		t.Fatalf("guest login must not send pw: %v", payload)
	}
}

func TestLoginFailure(t *testing.T) {
	c, socket := newTestClient(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Login(context.Background(), "alice", "wrong")
		errCh <- err
	}()
	socket.waitEmit(t, "login")

	c.handle(socket.id, "login", json.RawMessage(`{"success":false,"error":"Invalid login"}`))

	err := <-errCh
	if err == nil || !strings.Contains(err.Error(), "Invalid login") {
		t.Fatalf("err = %v, want server error string", err)
	}
}

func TestQueueDerivesIDAndMatchesReply(t *testing.T) {
	c, socket := newTestClient(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Queue(context.Background(), "https://www.youtube.com/watch?v=ABC123", true, true)
	}()
	call := socket.waitEmit(t, "queue")
	payload := call.payload.(map[string]any)
	if payload["id"] != "ABC123" || payload["type"] != "yt" || payload["pos"] != "end" || payload["temp"] != true {
		t.Fatalf("queue payload = %v", payload)
	}

	// A failure for someone else's submission must be ignored.
	c.handle(socket.id, "queueFail", json.RawMessage(`{"id":"OTHER","msg":"no"}`))
	select {
	case err := <-errCh:
		t.Fatalf("foreign queueFail resolved the call: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	c.handle(socket.id, "queueFail", json.RawMessage(`{"id":"ABC123","msg":"This channel has a maximum queue length"}`))
	err := <-errCh
	if err == nil || !strings.Contains(err.Error(), "maximum queue length") {
		t.Fatalf("err = %v, want queueFail message", err)
	}
}

func TestQueueSuccessByItemID(t *testing.T) {
	c, socket := newTestClient(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Queue(context.Background(), "https://example.com/clip.mp4", false, false)
	}()
	call := socket.waitEmit(t, "queue")
	payload := call.payload.(map[string]any)
	if payload["type"] != "fi" || payload["id"] != "https://example.com/clip.mp4" || payload["pos"] != "next" {
		t.Fatalf("queue payload = %v", payload)
	}

	c.handle(socket.id, "queue", json.RawMessage(
		`{"item":{"uid":7,"temp":false,"queueby":"alice","media":{"id":"https://example.com/clip.mp4","title":"clip","type":"fi","duration":"1:00","seconds":60}},"after":"prepend"}`))

	if err := <-errCh; err != nil {
		t.Fatalf("queue: %v", err)
	}
}

func TestConnectCancelsInFlightAndDropsStaleReplies(t *testing.T) {
	c, socket := newTestClient(t)
	handler := &recordingHandler{}
	c.AddEventListener(handler)

	errCh := make(chan error, 1)
	go func() { errCh <- c.JoinChannel(context.Background(), "lounge") }()
	socket.waitEmit(t, "joinChannel")

	next := newFakeSocket("sock-2")
	c.dial = func(Endpoint, func(string, string, json.RawMessage)) (transport, error) {
		return next, nil
	}
	if err := c.Connect(Endpoint{}); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	if err := <-errCh; !errors.Is(err, ErrClosed) {
		t.Fatalf("in-flight join err = %v, want ErrClosed", err)
	}
	if !socket.closed {
		t.Fatalf("old socket not closed")
	}

	// Late reply from the replaced session must be dropped.
	c.handle(socket.id, "setPermissions", json.RawMessage(`{}`))
	if handler.joined != "" {
		t.Fatalf("stale setPermissions triggered OnChannelJoin")
	}
}

func TestDisconnectNotifiesIntentBeforeTeardown(t *testing.T) {
	c, socket := newTestClient(t)
	handler := &recordingHandler{}
	c.AddEventListener(handler)

	c.Disconnect()

	if !socket.closed {
		t.Fatalf("socket not closed")
	}
	events := handler.seen()
	if len(events) == 0 || events[0] != "intent" {
		t.Fatalf("events = %v, want intent first", events)
	}
}

func TestSendMessageNoSessionIsNoop(t *testing.T) {
	c := NewClient(nil)
	// Must not panic with no socket.
	c.SendMessage("hello")
	c.PollVote(1)
}

type panickyHandler struct{ BaseHandler }

func (panickyHandler) OnUserCount(int) { panic("boom") }

func TestListenerPanicDoesNotStopFanout(t *testing.T) {
	c, socket := newTestClient(t)
	second := &recordingHandler{}
	c.AddEventListener(panickyHandler{})
	c.AddEventListener(second)

	c.handle(socket.id, "usercount", json.RawMessage(`5`))

	events := second.seen()
	if len(events) != 1 || events[0] != "usercount" {
		t.Fatalf("second listener missed the event: %v", events)
	}
}

func TestMediaIDMapping(t *testing.T) {
	if typ, id := MediaID("https://www.youtube.com/watch?v=ABC123"); typ != "yt" || id != "ABC123" {
		t.Fatalf("got %q %q", typ, id)
	}
	if typ, id := MediaID("https://example.com/v.mp4"); typ != "fi" || id != "https://example.com/v.mp4" {
		t.Fatalf("got %q %q", typ, id)
	}
	if MediaURL("yt", "ABC123") != "https://www.youtube.com/watch?v=ABC123" {
		t.Fatalf("MediaURL yt mapping broken")
	}
	if MediaURL("fi", "https://example.com/v.mp4") != "https://example.com/v.mp4" {
		t.Fatalf("MediaURL fi mapping broken")
	}
}

type mediaHandler struct {
	BaseHandler
	mu     sync.Mutex
	mrl    string
	millis int64
	paused bool
}

func (m *mediaHandler) OnChangeMedia(mrl string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mrl = mrl
}

func (m *mediaHandler) OnMediaUpdate(millis int64, paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.millis = millis
	m.paused = paused
}

func TestMediaEventsDecoded(t *testing.T) {
	c, socket := newTestClient(t)
	handler := &mediaHandler{}
	c.AddEventListener(handler)

	c.handle(socket.id, "changeMedia", json.RawMessage(`{"type":"yt","id":"ABC123"}`))
	c.handle(socket.id, "mediaUpdate", json.RawMessage(`{"currentTime":12.5,"paused":true}`))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.mrl != "https://www.youtube.com/watch?v=ABC123" {
		t.Fatalf("mrl = %q", handler.mrl)
	}
	if handler.millis != 12500 || !handler.paused {
		t.Fatalf("mediaUpdate = %d, %v", handler.millis, handler.paused)
	}
}

type pollHandler struct {
	BaseHandler
	mu   sync.Mutex
	poll domain.Poll
}

func (p *pollHandler) OnNewPoll(poll domain.Poll) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poll = poll
}

func TestPollDecodedAndUnescaped(t *testing.T) {
	c, socket := newTestClient(t)
	handler := &pollHandler{}
	c.AddEventListener(handler)

	c.handle(socket.id, "newPoll", json.RawMessage(
		`{"title":"Tom &amp; Jerry?","initiator":"alice","timestamp":1700000000000,"counts":[3,1],"options":["yes","no"]}`))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.poll.Title != "Tom & Jerry?" {
		t.Fatalf("title = %q, want unescaped", handler.poll.Title)
	}
	if handler.poll.TotalCount() != 4 {
		t.Fatalf("total = %d, want 4", handler.poll.TotalCount())
	}
	if len(handler.poll.Options) != 2 || handler.poll.Options[0].Count != 3 {
		t.Fatalf("options = %+v", handler.poll.Options)
	}
}
