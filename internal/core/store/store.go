// Package store 提供按主键去重的响应式缓存。
// 写入方对每个值推导主键后插入或替换；订阅方先收到当前全部内容，再按写入顺序收到增量。
package store

import (
	"sync"
)

// EventKind 变更事件类型
type EventKind int

const (
	// EventAdd 新主键首次写入（订阅时回放的快照也使用该类型）
	EventAdd EventKind = iota + 1
	// EventUpdate 已有主键被替换
	EventUpdate
)

// String 返回事件类型名称
func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Event 单条变更事件
type Event[K comparable, V any] struct {
	Kind  EventKind
	Key   K
	Value V
}

// Option 缓存可选项
type Option[K comparable, V any] func(*Store[K, V])

// WithEqual 设置值相等判断
// 写入与已存值相等的值时不产生事件。
func WithEqual[K comparable, V any](eq func(a, b V) bool) Option[K, V] {
	return func(s *Store[K, V]) {
		s.equal = eq
	}
}

// Store 按主键去重的响应式缓存
// 写入由互斥锁串行化；每个订阅者拥有独立的无界 FIFO 队列，
// 写入方在锁内完成分发，因此所有订阅者以相同顺序恰好收到每次变更一次。
type Store[K comparable, V any] struct {
	mu     sync.RWMutex
	keyOf  func(V) K
	equal  func(a, b V) bool
	items  map[K]V
	order  []K
	subs   map[*Subscription[K, V]]struct{}
	closed bool
}

// New 创建缓存
// 参数 keyOf: 由值推导主键的函数
func New[K comparable, V any](keyOf func(V) K, opts ...Option[K, V]) *Store[K, V] {
	s := &Store[K, V]{
		keyOf: keyOf,
		items: make(map[K]V),
		subs:  make(map[*Subscription[K, V]]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert 插入或替换
// 同一批次内的值按参数顺序写入；缓存关闭后写入被忽略。
func (s *Store[K, V]) Upsert(values ...V) {
	if len(values) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for _, v := range values {
		key := s.keyOf(v)
		kind := EventAdd
		if old, ok := s.items[key]; ok {
			if s.equal != nil && s.equal(old, v) {
				continue
			}
			kind = EventUpdate
		} else {
			s.order = append(s.order, key)
		}
		s.items[key] = v

		ev := Event[K, V]{Kind: kind, Key: key, Value: v}
		for sub := range s.subs {
			sub.q.push(ev)
		}
	}
}

// Get 按主键读取
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Snapshot 按首次写入顺序返回当前全部值的拷贝
func (s *Store[K, V]) Snapshot() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Len 当前主键数量
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe 订阅变更
// 先投递当前内容（EventAdd，按首次写入顺序），再投递后续增量。
// 缓存已关闭时返回的订阅通道立即关闭。
func (s *Store[K, V]) Subscribe() *Subscription[K, V] {
	sub := &Subscription[K, V]{store: s, q: newQueue[Event[K, V]]()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.q.close()
		return sub
	}
	for _, k := range s.order {
		sub.q.push(Event[K, V]{Kind: EventAdd, Key: k, Value: s.items[k]})
	}
	s.subs[sub] = struct{}{}
	return sub
}

// Close 关闭缓存并结束所有订阅
func (s *Store[K, V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.q.close()
		delete(s.subs, sub)
	}
}

func (s *Store[K, V]) unsubscribe(sub *Subscription[K, V]) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.q.close()
}

// Subscription 单个订阅
type Subscription[K comparable, V any] struct {
	store *Store[K, V]
	q     *queue[Event[K, V]]
	once  sync.Once
}

// C 事件通道；订阅关闭后通道被关闭
func (s *Subscription[K, V]) C() <-chan Event[K, V] {
	return s.q.out
}

// Close 取消订阅（可重复调用）
func (s *Subscription[K, V]) Close() {
	s.once.Do(func() {
		s.store.unsubscribe(s)
	})
}
