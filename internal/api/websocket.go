package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/larsks/carcontrol/internal/broadcast"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4096
)

// Inbound websocket command types.
const (
	wsCommandToggle = "toggle"
	wsCommandAllOff = "all-off"
)

type wsCommand struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type wsError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
	// Command echoes the command that failed.
	Command string `json:"command,omitempty"`
}

// wsSink writes broadcast messages to one websocket connection. gorilla
// connections allow a single concurrent writer, so every write goes
// through the mutex.
type wsSink struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (ws *wsSink) write(v any) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	if err := ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return ws.conn.WriteJSON(v)
}

func (ws *wsSink) Send(m broadcast.Message) error {
	return ws.write(m)
}

func (ws *wsSink) ping() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	sink := &wsSink{conn: conn}
	observer := s.broadcaster.Subscribe(r.RemoteAddr, s.store, sink)
	defer s.broadcaster.Unsubscribe(observer)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readCommands(conn, sink)
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-observer.Done():
			if err := observer.Err(); err != nil && !errors.Is(err, broadcast.ErrObserverClosed) {
				log.Printf("closing websocket %s: %v", r.RemoteAddr, err)
			}
			return
		case <-readDone:
			return
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				return
			}
		}
	}
}

// readCommands handles inbound commands until the connection fails.
// Errors are reported to this client only.
func (s *Server) readCommands(conn *websocket.Conn, sink *wsSink) {
	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read failed: %v", err)
			}
			return
		}

		if reply := s.handleCommand(data); reply != nil {
			if err := sink.write(reply); err != nil {
				return
			}
		}
	}
}

// handleCommand runs one inbound command and returns an error reply, or
// nil on success. Successful mutations are reported through the broadcast.
func (s *Server) handleCommand(data []byte) *wsError {
	var cmd wsCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return &wsError{Type: "error", Message: ErrInvalidJSON.Error(), Code: "bad_request"}
	}

	var err error
	switch cmd.Type {
	case wsCommandToggle:
		if cmd.ID == "" {
			return &wsError{Type: "error", Message: "toggle requires an id", Code: "bad_request", Command: cmd.Type}
		}
		_, err = s.control.Toggle(cmd.ID)
	case wsCommandAllOff:
		_, err = s.control.AllOff()
	default:
		return &wsError{Type: "error", Message: "unknown command " + cmd.Type, Code: "bad_request", Command: cmd.Type}
	}

	if err != nil {
		_, code := errorStatus(err)
		return &wsError{Type: "error", Message: err.Error(), Code: code, Command: cmd.Type}
	}
	return nil
}
