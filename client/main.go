package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeKeepAlive = 1
	MsgTypeHello     = 10
	MsgTypeSnapshot  = 20
	MsgTypeError     = 30

	headerSize = 6
)

// send formats and sends a framed message to the stream endpoint.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint32(packet[2:6], uint32(len(data)))
	copy(packet[headerSize:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	host := flag.String("host", "localhost:8080", "server address")
	event := flag.String("event", "demo-event", "event id to subscribe to")
	gameName := flag.String("game", "bingo", "game to subscribe to")
	token := flag.String("token", "", "admin token, omit for the participant projection")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme: "ws",
		Host:   *host,
		Path:   "/v1/events/" + *event + "/" + *gameName + "/stream",
	}
	if *token != "" {
		u.RawQuery = "token=" + *token
	}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < headerSize {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[headerSize:]
			switch msgID {
			case MsgTypeHello:
				log.Printf("<- HELLO session=%s", string(data))
			case MsgTypeSnapshot:
				log.Printf("<- SNAPSHOT: %s", string(data))
			case MsgTypeError:
				log.Printf("<- ERROR: %s", string(data))
			default:
				log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
			}
		}
	}()

	log.Println("Client started. Type 'ping' and press Enter to send a keepalive.")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)

			if text == "ping" {
				if err := send(c, MsgTypeKeepAlive, nil); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: keepalive")
			}
		}
	}
}
