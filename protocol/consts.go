package protocol

// Program and version identify this protocol in every header
const (
	Program         uint32 = 0x2000F5F5
	ProtocolVersion uint32 = 4
)

// Reserved length words
const (
	LaunchFlag   uint32 = 0xf5f55ff5
	CancelFlag   uint32 = 0xffffeeee
	ProgressFlag uint32 = 0xffff5555
)

// Size limits
const (
	// MessageMax bounds any single frame, exceeding it ends the connection
	MessageMax = 4 << 20

	// MaxChunkSize bounds the payload of a single file chunk
	MaxChunkSize = 8192

	// ErrorLen bounds the error message of an ErrorReply
	ErrorLen = 256

	// ErrnoLen bounds the errno name of an ErrorReply
	ErrnoLen = 32

	// ProgressLen is the fixed size of the Progress body
	ProgressLen = 24

	// HeaderLen is the fixed size of an encoded Header
	HeaderLen = 40
)

// Direction of a message
type Direction int32

// Directions
const (
	DirectionCall Direction = iota
	DirectionReply
)

// Status of a message
type Status int32

// Statuses
const (
	StatusOK Status = iota
	StatusError
)

func (d Direction) String() string {
	switch d {
	case DirectionCall:
		return "call"
	case DirectionReply:
		return "reply"
	default:
		return "unknown"
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
