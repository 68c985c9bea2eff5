package domain

// AccountRef identifies a Telegram account
type AccountRef struct {
	ID       int64
	Username string
}

// Event is an inbound transport event
type Event interface {
	isEvent()
}

// GroupMessage is a text message posted in a group chat
type GroupMessage struct {
	ChatID    int64 // Marked chat ID
	MessageID int
	Text      string
}

// DirectMessage is a private message sent to the bridged account
type DirectMessage struct {
	From AccountRef
	Text string
}

// ActionEvent is a press on an inline action button
type ActionEvent struct {
	QueryID int64
	ChatID  int64
	Payload []byte
}

func (GroupMessage) isEvent()  {}
func (DirectMessage) isEvent() {}
func (ActionEvent) isEvent()   {}

// Action is an inline button attached to an outgoing message
type Action struct {
	Text    string
	Payload []byte
}

// OutgoingMessage is a message sent through the transport
type OutgoingMessage struct {
	Text    string
	ReplyTo int      // Message ID to reply to, 0 for none
	Actions []Action // One button per row
}
