package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/nines-backend/internal/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// session is one participant's connection to one game.
type session struct {
	conn *websocket.Conn

	code     string
	playerID string

	// mirror holds the newest state delivered on this connection.
	mirror *broadcast.Mirror

	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn, code, playerID string) *session {
	return &session{
		conn:     conn,
		code:     code,
		playerID: playerID,
		mirror:   broadcast.NewMirror(),
	}
}

func (that *session) send(action string, payload ResponsePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: body})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return that.write(websocket.TextMessage, data)
}

func (that *session) sendError(action string, err error) error {
	payload := errorPayload(err)

	body, marshalErr := json.Marshal(ResponsePayload{Error: payload})
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal error: %w", marshalErr)
	}

	data, marshalErr := json.Marshal(Message{Action: action, Payload: body})
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal message: %w", marshalErr)
	}

	return that.write(websocket.TextMessage, data)
}

func (that *session) ping() error {
	return that.write(websocket.PingMessage, nil)
}

func (that *session) write(messageType int, data []byte) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *session) close(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)

	that.writeMu.Lock()
	_ = that.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	that.writeMu.Unlock()

	_ = that.conn.Close()
}
