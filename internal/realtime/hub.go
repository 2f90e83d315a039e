// Package realtime fans out conversation messages to connected clients.
//
// Publish sends a message through Redis pub/sub so every server process
// sees it; Run reads the Redis channel and hands each message to the local
// subscribers of its conversation.  Without Redis the hub delivers locally.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/script-marketplace/internal/model"
)

const (
	channelPrefix = "conversation:"
	// SubscriberBuffer is the per-subscriber queue length.  A subscriber
	// that falls this far behind misses messages and must reload history.
	SubscriberBuffer = 32
)

// Subscription receives the messages of one conversation in publish order.
type Subscription struct {
	C              <-chan model.Message
	ch             chan model.Message
	conversationID uint64
	hub            *Hub
	once           sync.Once
}

// Close detaches the subscription from the hub.  It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub tracks local subscribers per conversation.
type Hub struct {
	rdb *redis.Client
	log *slog.Logger

	mu   sync.RWMutex
	subs map[uint64]map[*Subscription]struct{}
}

// NewHub returns a hub publishing through rdb.  rdb may be nil.
func NewHub(rdb *redis.Client, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{rdb: rdb, log: log, subs: map[uint64]map[*Subscription]struct{}{}}
}

// Subscribe registers a new subscriber for conversationID.
func (h *Hub) Subscribe(conversationID uint64) *Subscription {
	ch := make(chan model.Message, SubscriberBuffer)
	s := &Subscription{C: ch, ch: ch, conversationID: conversationID, hub: h}
	h.mu.Lock()
	set := h.subs[conversationID]
	if set == nil {
		set = map[*Subscription]struct{}{}
		h.subs[conversationID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.conversationID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.conversationID)
	}
	close(s.ch)
}

// Subscribers returns the number of local subscribers of a conversation.
func (h *Hub) Subscribers(conversationID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

// Publish announces a stored message.  With Redis configured the message
// reaches local subscribers through Run.
func (h *Hub) Publish(ctx context.Context, m model.Message) error {
	if h.rdb == nil {
		h.deliver(m)
		return nil
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, Channel(m.ConversationID), payload).Err()
}

// Run relays Redis messages to local subscribers until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}
	ps := h.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	h.log.Info("realtime relay subscribed", "pattern", channelPrefix+"*")
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m model.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				h.log.Warn("dropping malformed realtime payload", "channel", msg.Channel, "error", err)
				continue
			}
			if id, ok := conversationFromChannel(msg.Channel); !ok || id != m.ConversationID {
				h.log.Warn("realtime channel does not match payload", "channel", msg.Channel)
				continue
			}
			h.deliver(m)
		}
	}
}

// deliver hands m to every local subscriber without blocking.  A full
// subscriber misses the message.
func (h *Hub) deliver(m model.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[m.ConversationID] {
		select {
		case s.ch <- m:
		default:
			h.log.Warn("realtime subscriber lagging, message dropped",
				"conversation_id", m.ConversationID, "message_id", m.ID)
		}
	}
}

// Channel returns the Redis channel name for a conversation.
func Channel(conversationID uint64) string {
	return channelPrefix + strconv.FormatUint(conversationID, 10)
}

func conversationFromChannel(ch string) (uint64, bool) {
	rest, ok := strings.CutPrefix(ch, channelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	return id, err == nil
}
