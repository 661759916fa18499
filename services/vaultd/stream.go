package vaultd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"devquestvault/core/events"
)

// StreamEvent is the websocket payload for a committed vault event.
type StreamEvent struct {
	Type       string            `json:"type"`
	Vault      string            `json:"vault"`
	Attributes map[string]string `json:"attributes"`
}

// Broadcaster fans committed events out to live subscribers. Slow
// subscribers miss events rather than block the commit path.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
}

type subscriber struct {
	vault string
	ch    chan StreamEvent
}

// NewBroadcaster creates a broadcaster with per-subscriber buffers of size
// buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[uint64]*subscriber), buffer: buffer}
}

// Emit implements events.Emitter.
func (b *Broadcaster) Emit(evt events.Event) {
	if b == nil || evt == nil || evt.Event() == nil {
		return
	}
	payload := evt.Event()
	attrs := make(map[string]string, len(payload.Attributes))
	for k, v := range payload.Attributes {
		attrs[k] = v
	}
	msg := StreamEvent{Type: payload.Type, Vault: payload.Attribute("vault"), Attributes: attrs}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.vault != "" && sub.vault != msg.Vault {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Subscribe registers a listener for vault, or for every vault when vault is
// empty. The returned function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(vault string) (<-chan StreamEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{vault: vault, ch: make(chan StreamEvent, b.buffer)}
	b.subs[id] = sub
	b.mu.Unlock()
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// originPatterns converts CORS origins into websocket host patterns. An empty
// list leaves the websocket layer enforcing same-origin requests.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, origin := range origins {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

func serveEventStream(w http.ResponseWriter, r *http.Request, b *Broadcaster, origins []string, vault string, logger *slog.Logger) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns(origins)})
	if err != nil {
		logger.Warn("vaultd: websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(r.Context())
	ch, cancel := b.Subscribe(vault)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 10*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
