package entities

type Command int

const (
	RequestData Command = iota
	ToggleSiren
	ToggleFan
)

func (c Command) String() string {
	switch c {
	case RequestData:
		return "RequestData"
	case ToggleSiren:
		return "ToggleSiren"
	case ToggleFan:
		return "ToggleFan"
	default:
		return "Unknown"
	}
}

// IsActuator reports whether the command drives an actuator on the node.
func (c Command) IsActuator() bool {
	return c == ToggleSiren || c == ToggleFan
}

// CommandFailure is the reason handed to the boundary when a command was not written.
type CommandFailure string

const (
	NotConnected CommandFailure = "NotConnected"
	WriteFailed  CommandFailure = "WriteFailed"
)
