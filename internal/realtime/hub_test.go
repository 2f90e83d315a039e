package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/script-marketplace/internal/model"
)

func receive(t *testing.T, s *Subscription) model.Message {
	t.Helper()
	select {
	case m, ok := <-s.C:
		require.True(t, ok, "subscription closed")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return model.Message{}
}

func TestLocalDelivery(t *testing.T) {
	h := NewHub(nil, nil)
	a := h.Subscribe(1)
	b := h.Subscribe(2)
	defer b.Close()

	require.NoError(t, h.Publish(context.Background(), model.Message{ID: 10, ConversationID: 1, Body: "hi"}))
	assert.Equal(t, uint64(10), receive(t, a).ID)
	select {
	case <-b.C:
		t.Fatal("message leaked to another conversation")
	default:
	}

	a.Close()
	a.Close()
	assert.Equal(t, 0, h.Subscribers(1))
	_, ok := <-a.C
	assert.False(t, ok)
}

func TestOrderingPreserved(t *testing.T) {
	h := NewHub(nil, nil)
	s := h.Subscribe(5)
	defer s.Close()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, h.Publish(context.Background(), model.Message{ID: i, ConversationID: 5}))
	}
	for i := uint64(1); i <= 5; i++ {
		assert.Equal(t, i, receive(t, s).ID)
	}
}

func TestLaggingSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil, nil)
	s := h.Subscribe(1)
	defer s.Close()
	for i := 0; i < SubscriberBuffer+10; i++ {
		h.deliver(model.Message{ID: uint64(i), ConversationID: 1})
	}
	assert.Len(t, s.ch, SubscriberBuffer)
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := NewHub(rdb, nil)
	s := h.Subscribe(7)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumPat() > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Publish(ctx, model.Message{ID: 1, ConversationID: 7, SenderID: 3, Body: "hello"}))
	got := receive(t, s)
	assert.Equal(t, "hello", got.Body)
	assert.Equal(t, uint64(3), got.SenderID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestConversationFromChannel(t *testing.T) {
	id, ok := conversationFromChannel(Channel(42))
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
	_, ok = conversationFromChannel("other:1")
	assert.False(t, ok)
	_, ok = conversationFromChannel("conversation:x")
	assert.False(t, ok)
}
