package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	outboxSize = 128
)

var (
	// ErrNoToken means the session was constructed without a capability token;
	// such a session is never established.
	ErrNoToken = errors.New("realtime: missing session token")
	// ErrAuthRejected means the server refused the handshake token. Redialing
	// with the same token cannot succeed, so no reconnect is attempted.
	ErrAuthRejected = errors.New("realtime: handshake rejected")
	// ErrDisconnected is returned by Emit while no connection is up. Outbound
	// traffic is not queued across disconnects.
	ErrDisconnected = errors.New("realtime: session disconnected")
	// ErrBufferFull means the outbound buffer is saturated; the event was dropped.
	ErrBufferFull = errors.New("realtime: send buffer full")
)

// Session owns one authenticated persistent connection to the chat server.
// It serializes inbound event delivery through its Dispatcher, coordinates
// outbound writes via a buffered channel, and redials with exponential
// backoff when the connection drops, re-establishing room subscriptions for
// every conversation currently joined.
type Session struct {
	ID    string
	url   string
	token string
	log   *zap.Logger

	dispatcher *Dispatcher

	mu        sync.Mutex
	conn      *websocket.Conn
	outbox    chan []byte
	connDone  chan struct{}
	connected bool
	rooms     map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession constructs a session for the given websocket URL. The token is
// required; callers without one must treat all realtime data as unavailable.
func NewSession(url, token string, log *zap.Logger) (*Session, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		ID:         uuid.NewString(),
		url:        url,
		token:      token,
		log:        log,
		dispatcher: NewDispatcher(),
		rooms:      make(map[string]struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Subscribe registers a handler for the named inbound event.
func (s *Session) Subscribe(event string, h Handler) *Subscription {
	return s.dispatcher.Subscribe(event, h)
}

// Connect performs the initial dial. A rejected token surfaces synchronously;
// any other dial failure is treated the same as a dropped connection and the
// session keeps redialing with backoff in the background until Close.
func (s *Session) Connect(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			return err
		}
		s.log.Warn("initial dial failed, retrying in background", zap.Error(err))
		go s.reconnect(ctx)
		return nil
	}
	s.attach(ctx, conn)
	return nil
}

// Connected reports whether a connection is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Emit marshals payload into an event frame and enqueues it for delivery.
// If the session is disconnected the event is dropped and the caller gets
// ErrDisconnected; there is no outbox persistence across reconnects.
func (s *Session) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: encode %s payload: %w", event, err)
	}
	buf, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("realtime: encode %s frame: %w", event, err)
	}

	s.mu.Lock()
	if !s.connected || s.outbox == nil {
		s.mu.Unlock()
		return ErrDisconnected
	}
	ch := s.outbox
	s.mu.Unlock()

	select {
	case ch <- buf:
		return nil
	default:
		return ErrBufferFull
	}
}

// Join subscribes the session to a conversation room. Joining twice is a
// no-op. Membership is recorded even while disconnected so the room is
// re-established on reconnect; the Emit error tells the caller whether the
// join reached the wire now.
func (s *Session) Join(conversationID string) error {
	s.mu.Lock()
	if _, ok := s.rooms[conversationID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.rooms[conversationID] = struct{}{}
	s.mu.Unlock()
	return s.Emit(EventJoin, RoomPayload{ConversationID: conversationID})
}

// Leave unsubscribes from a conversation room. Leaving a room not joined is
// a no-op.
func (s *Session) Leave(conversationID string) error {
	s.mu.Lock()
	if _, ok := s.rooms[conversationID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.rooms, conversationID)
	s.mu.Unlock()
	return s.Emit(EventLeave, RoomPayload{ConversationID: conversationID})
}

// Close tears the session down and stops any reconnection attempts.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		s.connected = false
		connDone := s.connDone
		s.connDone = nil
		s.mu.Unlock()
		if connDone != nil {
			// releases the write loop now instead of at the next failed ping
			close(connDone)
		}
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+s.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, hdr)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, fmt.Errorf("realtime: dial %s (status %d): %w", s.url, resp.StatusCode, ErrAuthRejected)
			}
			return nil, fmt.Errorf("realtime: dial %s (status %d): %w", s.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: dial %s: %w", s.url, err)
	}
	return conn, nil
}

// attach installs a freshly dialed connection, starts its loops and replays
// join events for every room the session is a member of.
func (s *Session) attach(ctx context.Context, conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.outbox = make(chan []byte, outboxSize)
	s.connDone = make(chan struct{})
	s.connected = true
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	outbox, connDone := s.outbox, s.connDone
	s.mu.Unlock()

	go s.writeLoop(conn, outbox, connDone)
	go s.readLoop(ctx, conn)

	for _, id := range rooms {
		if err := s.Emit(EventJoin, RoomPayload{ConversationID: id}); err != nil {
			s.log.Warn("rejoin failed", zap.String("conversation_id", id), zap.Error(err))
		}
	}
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20) // 1MB payload cap
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(ctx, conn, err)
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warn("invalid frame", zap.Error(err))
			continue
		}
		if f.Event == "" {
			continue
		}
		s.dispatcher.Dispatch(f.Event, f.Data)
	}
}

func (s *Session) writeLoop(conn *websocket.Conn, outbox chan []byte, connDone chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-connDone:
			return
		case msg := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleDrop marks the connection down and, unless the session is closed,
// redials with exponential backoff. Tracker state is untouched: a reconnect
// resumes with whatever the trackers last knew.
func (s *Session) handleDrop(ctx context.Context, conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	connDone := s.connDone
	s.connDone = nil
	s.mu.Unlock()

	if connDone != nil {
		close(connDone)
	}
	_ = conn.Close()

	select {
	case <-s.done:
		return
	default:
	}
	if ctx.Err() != nil {
		return
	}

	s.log.Warn("connection dropped, reconnecting", zap.Error(cause))
	s.reconnect(ctx)
}

func (s *Session) reconnect(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retries are not capped

	for {
		wait := bo.NextBackOff()
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(wait):
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				s.log.Warn("redial rejected, giving up", zap.Error(err))
				return
			}
			s.log.Debug("redial failed", zap.Error(err))
			continue
		}
		s.log.Info("session reconnected", zap.String("session_id", s.ID))
		s.attach(ctx, conn)
		return
	}
}
