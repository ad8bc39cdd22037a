package domain

import "time"

type MessageType int

const (
	MessageUser MessageType = iota
	MessageSystem
	MessageAnnouncement
	MessageConnection
)

func (t MessageType) String() string {
	switch t {
	case MessageUser:
		return "user"
	case MessageSystem:
		return "system"
	case MessageAnnouncement:
		return "announcement"
	case MessageConnection:
		return "connection"
	default:
		return "unknown"
	}
}

type ConnectionKind int

const (
	ConnectionConnected ConnectionKind = iota
	ConnectionDisconnected
)

// ChatMessage is a tagged union of everything the chat log can display.
// Only the fields relevant to Type are set; render code switches on Type.
type ChatMessage struct {
	Type       MessageType
	Time       time.Time
	User       string
	Text       string
	Connection ConnectionKind
}

func NewUserMessage(ts time.Time, user, text string) ChatMessage {
	return ChatMessage{
		Type: MessageUser,
		Time: ts,
		User: user,
		Text: text,
	}
}

func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{
		Type: MessageSystem,
		Time: time.Now(),
		Text: text,
	}
}

func NewAnnouncementMessage(text string) ChatMessage {
	return ChatMessage{
		Type: MessageAnnouncement,
		Time: time.Now(),
		Text: text,
	}
}

func NewConnectionMessage(text string, kind ConnectionKind) ChatMessage {
	return ChatMessage{
		Type:       MessageConnection,
		Time:       time.Now(),
		Text:       text,
		Connection: kind,
	}
}
