package cytube

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// Engine.io / socket.io framing over a single websocket. The remote
// service speaks the socket.io wire format: every websocket text frame
// carries an engine.io packet, and event payloads ride inside engine.io
// message packets.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'

	sioConnect    = '0'
	sioDisconnect = '1'
	sioEvent      = '2'
)

const (
	defaultPingInterval = 25 * time.Second
	reconnectInterval   = 2 * time.Second
	maxReconnectWait    = 30 * time.Second
)

// Events synthesized by the transport itself, alongside the server's
// own event names.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

// encodeEvent builds a "42["name",payload]" frame.
func encodeEvent(event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return append([]byte{eioMessage, sioEvent}, body...), nil
}

// decodeEvent parses a "42[...]" frame body into an event name and its
// first payload argument.
func decodeEvent(body []byte) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return "", nil, fmt.Errorf("decode event frame: %w", err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("decode event frame: empty argument list")
	}
	var event string
	if err := json.Unmarshal(args[0], &event); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	var data json.RawMessage
	if len(args) > 1 {
		data = args[1]
	}
	return event, data, nil
}

// Socket is one Transport Session: a persistent bidirectional event
// connection to a single endpoint. It reconnects by itself after an
// unexpected drop and stays down after a deliberate Close. Events,
// including the synthetic connect/connect_error/disconnect ones, are
// delivered in receive order from a single reader goroutine.
type Socket struct {
	id      string
	rawURL  string
	onEvent func(sid, event string, data json.RawMessage)

	mu         sync.Mutex
	conn       *websocket.Conn
	closed     bool
	pingPeriod time.Duration
	generation int
}

// Dial opens a Transport Session to the endpoint. The dial itself is
// synchronous; a failure here is reported as an error and no
// connect_error event fires for it.
func Dial(endpoint Endpoint, onEvent func(sid, event string, data json.RawMessage)) (*Socket, error) {
	wsURL, err := socketURL(endpoint)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		id:         ulid.Make().String(),
		rawURL:     wsURL,
		onEvent:    onEvent,
		pingPeriod: defaultPingInterval,
	}

	conn, err := s.handshake()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.conn = conn
	gen := s.generation
	s.mu.Unlock()

	go s.readLoop(conn, gen)
	go s.pingLoop(conn, gen)
	return s, nil
}

// ID identifies this Transport Session. Consumers compare it to drop
// events from a session they have already replaced.
func (s *Socket) ID() string {
	return s.id
}

func socketURL(endpoint Endpoint) (string, error) {
	u, err := url.Parse(endpoint.URL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint.URL, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"
	u.RawQuery = "EIO=3&transport=websocket"
	return u.String(), nil
}

// handshake dials the websocket and consumes the engine.io open packet.
func (s *Socket) handshake() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(s.rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.rawURL, err)
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read open packet: %w", err)
	}
	if len(frame) == 0 || frame[0] != eioOpen {
		conn.Close()
		return nil, fmt.Errorf("unexpected handshake packet %q", frame)
	}

	var open openPacket
	if err := json.Unmarshal(frame[1:], &open); err != nil {
		conn.Close()
		return nil, fmt.Errorf("parse open packet: %w", err)
	}
	if open.PingInterval > 0 {
		s.pingPeriod = time.Duration(open.PingInterval) * time.Millisecond
	}
	return conn, nil
}

// Emit sends one event frame. Sending on a closed or dropped session
// returns an error; callers treating sends as fire-and-forget may
// ignore it.
func (s *Socket) Emit(event string, payload any) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return fmt.Errorf("emit %s: socket closed", event)
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close tears the session down deliberately: no reconnect follows and
// the pending read error is swallowed.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.emitLocal(EventDisconnect)
}

func (s *Socket) emitLocal(event string) {
	if s.onEvent != nil {
		s.onEvent(s.id, event, nil)
	}
}

func (s *Socket) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(conn, gen)
			return
		}
		if len(frame) == 0 {
			continue
		}

		switch frame[0] {
		case eioPong:
			// Reply to our ping; nothing to deliver.
		case eioPing:
			s.writeControl(conn, []byte{eioPong})
		case eioClose:
			conn.Close()
		case eioMessage:
			s.handleMessage(frame[1:])
		}
	}
}

func (s *Socket) handleMessage(body []byte) {
	if len(body) == 0 {
		return
	}
	switch body[0] {
	case sioConnect:
		s.emitLocal(EventConnect)
	case sioDisconnect:
		s.emitLocal(EventDisconnect)
	case sioEvent:
		event, data, err := decodeEvent(body[1:])
		if err != nil {
			log.Printf("cytube: dropping malformed frame: %v", err)
			return
		}
		if s.onEvent != nil {
			s.onEvent(s.id, event, data)
		}
	}
}

func (s *Socket) writeControl(conn *websocket.Conn, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != conn {
		return
	}
	conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Socket) pingLoop(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		stale := s.closed || s.conn != conn
		s.mu.Unlock()
		if stale {
			return
		}
		s.writeControl(conn, []byte{eioPing})
	}
}

// handleDrop runs when the read loop dies. A deliberate Close already
// announced the disconnect; anything else announces it here and starts
// the reconnect loop.
func (s *Socket) handleDrop(conn *websocket.Conn, gen int) {
	s.mu.Lock()
	if s.closed || s.conn != conn || s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.generation++
	nextGen := s.generation
	s.mu.Unlock()

	conn.Close()
	s.emitLocal(EventDisconnect)
	go s.reconnectLoop(nextGen)
}

func (s *Socket) reconnectLoop(gen int) {
	wait := reconnectInterval
	for {
		// Jitter keeps a flapped server from seeing every client at once.
		time.Sleep(wait + time.Duration(rand.Int63n(int64(time.Second))))

		s.mu.Lock()
		if s.closed || s.generation != gen {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		conn, err := s.handshake()
		if err != nil {
			s.emitLocal(EventConnectError)
			if wait *= 2; wait > maxReconnectWait {
				wait = maxReconnectWait
			}
			continue
		}

		s.mu.Lock()
		if s.closed || s.generation != gen {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		go s.readLoop(conn, gen)
		go s.pingLoop(conn, gen)
		return
	}
}
