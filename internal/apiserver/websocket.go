package apiserver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type websocketSubscribeRequest struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
}

type websocketEnvelope struct {
	Type  string `json:"type"`
	Kind  string `json:"kind,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	TS    int64  `json:"ts"`
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleWebsocket streams engine events to the client as they are published.
// With no subscriptions the client receives every kind; subscribe/unsubscribe
// messages narrow the stream to the named kinds.
func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	upgrader := websocketUpgrader
	upgrader.CheckOrigin = func(req *http.Request) bool {
		origin := strings.TrimSpace(req.Header.Get("Origin"))
		return s.isOriginAllowed(origin)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eventCh, unsubscribe := s.broadcaster.Subscribe(s.cfg.EventBuffer)
	defer unsubscribe()

	subs := newSubscriptionSet()
	readErrCh := make(chan error, 1)
	go s.websocketReadLoop(ctx, conn, subs, readErrCh)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErrCh:
			if err != nil {
				s.logger.Debug("websocket read loop ended", "err", err)
			}
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if !subs.Wants(string(event.Kind)) {
				continue
			}
			if err := writeWebsocketJSON(conn, websocketEnvelope{
				Type: "event",
				Kind: string(event.Kind),
				Data: event,
				TS:   time.Now().Unix(),
			}); err != nil {
				return
			}
		}
	}
}

func (s *Service) websocketReadLoop(ctx context.Context, conn *websocket.Conn, subs *subscriptionSet, readErrCh chan<- error) {
	conn.SetReadLimit(1024 * 1024)
	if err := conn.SetReadDeadline(time.Now().Add(90 * time.Second)); err == nil {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		})
	}
	for {
		select {
		case <-ctx.Done():
			readErrCh <- nil
			return
		default:
		}
		var message websocketSubscribeRequest
		if err := conn.ReadJSON(&message); err != nil {
			readErrCh <- err
			return
		}
		message.Type = strings.ToLower(strings.TrimSpace(message.Type))
		message.Kind = strings.TrimSpace(message.Kind)
		if message.Kind == "" {
			continue
		}
		switch message.Type {
		case "subscribe":
			subs.Add(message.Kind)
		case "unsubscribe":
			subs.Remove(message.Kind)
		}
	}
}

func writeWebsocketJSON(conn *websocket.Conn, payload websocketEnvelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}

// subscriptionSet tracks the event kinds a websocket client asked for. An
// empty set means no filter.
type subscriptionSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{items: make(map[string]struct{})}
}

func (s *subscriptionSet) Add(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[kind] = struct{}{}
}

func (s *subscriptionSet) Remove(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, kind)
}

func (s *subscriptionSet) Wants(kind string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return true
	}
	_, ok := s.items[kind]
	return ok
}
