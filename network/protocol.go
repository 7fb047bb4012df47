package network

// Stream frame types. Every frame is 2 bytes of message id, 4 bytes of
// payload length, then a JSON payload.
const (
	MsgTypeKeepAlive = 1
	MsgTypeHello     = 10
	MsgTypeSnapshot  = 20
	MsgTypeError     = 30
)
