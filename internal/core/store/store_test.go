// Package store 响应式缓存测试
package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Key   string
	Value int
}

func newItemStore() *Store[string, item] {
	return New(func(v item) string { return v.Key },
		WithEqual[string, item](func(a, b item) bool { return a == b }))
}

func recv(t *testing.T, sub *Subscription[string, item]) Event[string, item] {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "订阅通道被意外关闭")
		return ev
	case <-time.After(time.Second):
		t.Fatalf("等待事件超时")
	}
	return Event[string, item]{}
}

func assertNoEvent(t *testing.T, sub *Subscription[string, item]) {
	t.Helper()
	select {
	case ev := <-sub.C():
		t.Fatalf("不应收到事件: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_UpsertReplacesByKey(t *testing.T) {
	s := newItemStore()
	s.Upsert(item{"a", 1}, item{"b", 2})
	s.Upsert(item{"a", 3})

	require.Equal(t, 2, s.Len())
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v.Value)
	assert.Equal(t, []item{{"a", 3}, {"b", 2}}, s.Snapshot())
}

func TestStore_SubscribeReplaysThenStreams(t *testing.T) {
	s := newItemStore()
	s.Upsert(item{"a", 1}, item{"b", 2})

	sub := s.Subscribe()
	defer sub.Close()

	ev := recv(t, sub)
	assert.Equal(t, EventAdd, ev.Kind)
	assert.Equal(t, "a", ev.Key)
	ev = recv(t, sub)
	assert.Equal(t, EventAdd, ev.Kind)
	assert.Equal(t, "b", ev.Key)

	s.Upsert(item{"a", 5})
	ev = recv(t, sub)
	assert.Equal(t, EventUpdate, ev.Kind)
	assert.Equal(t, item{"a", 5}, ev.Value)

	s.Upsert(item{"c", 7})
	ev = recv(t, sub)
	assert.Equal(t, EventAdd, ev.Kind)
	assert.Equal(t, "c", ev.Key)
}

func TestStore_EqualUpsertIsSilent(t *testing.T) {
	s := newItemStore()
	s.Upsert(item{"a", 1})

	sub := s.Subscribe()
	defer sub.Close()
	_ = recv(t, sub)

	s.Upsert(item{"a", 1})
	assertNoEvent(t, sub)
	assert.Equal(t, 1, s.Len())
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	s := newItemStore()
	sub := s.Subscribe()
	s.Close()

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("关闭后订阅通道应关闭")
	}

	s.Upsert(item{"a", 1})
	assert.Equal(t, 0, s.Len())

	late := s.Subscribe()
	_, ok := <-late.C()
	assert.False(t, ok)
}

func TestStore_SubscriptionCloseStopsDelivery(t *testing.T) {
	s := newItemStore()
	sub := s.Subscribe()
	sub.Close()
	sub.Close()

	s.Upsert(item{"a", 1})
	_, ok := <-sub.C()
	assert.False(t, ok)
}

func TestStore_SlowSubscriberDoesNotBlockWriter(t *testing.T) {
	s := newItemStore()
	sub := s.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			s.Upsert(item{"a", i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("写入方被慢订阅者阻塞")
	}

	for i := 0; i < 10000; i++ {
		ev := recv(t, sub)
		require.Equal(t, i, ev.Value.Value)
	}
}
