package transport

// ConnectionState is the transport's most recent observation of the peer.
// It is not a guarantee of the peer's true state: a FIN racing a liveness
// check can still be reported as Open.
type ConnectionState int

const (
	Open ConnectionState = iota
	ClosedByServer
	TimedOut
	Error
)

func (s ConnectionState) String() string {
	switch s {
	case Open:
		return "Open"
	case ClosedByServer:
		return "ClosedByServer"
	case TimedOut:
		return "TimedOut"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state by name in JSON output.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
