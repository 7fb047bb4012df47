package network

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// headerSize is 2 bytes of message id plus 4 bytes of payload length.
const headerSize = 6

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint32
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetReadDeadline(d time.Duration)
	ReadPacket() (*Packet, error)
}

// WSConnection frames packets over a websocket. Sends are serialized with
// a mutex because the broadcast hub and the keep-alive loop both write.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	// 2-byte message id + 4-byte payload length + payload
	packet := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint32(packet[2:6], uint32(len(data)))
	copy(packet[headerSize:], data)

	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	if len(data) < headerSize {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint32(data[2:6])

	// Websocket messages self-delimit, so the header length must match
	// the payload exactly.
	if uint64(length) != uint64(len(data)-headerSize) {
		return nil, io.ErrUnexpectedEOF
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[headerSize:],
	}, nil
}

// SetReadDeadline bounds how long a client may stay silent. The read loop
// re-arms it before every read, so streams answering keep-alives stay
// open indefinitely.
func (c *WSConnection) SetReadDeadline(d time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(d))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
