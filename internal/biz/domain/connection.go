package domain

// ConnectionState is the state of the transport connection supervisor
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateRetryBackoff
	StateFatalStopped
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetryBackoff:
		return "retry_backoff"
	case StateFatalStopped:
		return "fatal_stopped"
	default:
		return "unknown"
	}
}
