package live

import (
	"sync"
	"sync/atomic"

	"worksentry/internal/models"

	"github.com/google/uuid"
)

// Hub рассылает обновления подписчикам. У каждого подписчика своя ограниченная очередь,
// при переполнении вытесняется самое старое обновление
type Hub struct {
	mu        sync.Mutex
	subs      map[string]*Subscription
	queueSize int
	dropped   atomic.Int64
}

// Subscription - подписка на обновления. Close освобождает очередь
type Subscription struct {
	ID      string
	ch      chan models.LiveView
	hub     *Hub
	once    sync.Once
	dropped atomic.Int64
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		subs:      make(map[string]*Subscription),
		queueSize: queueSize,
	}
}

// Subscribe регистрирует нового подписчика
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID:  uuid.NewString(),
		ch:  make(chan models.LiveView, h.queueSize),
		hub: h,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	return sub
}

// Publish не блокируется: отправка в очередь без ожидания читателя
func (h *Hub) Publish(view models.LiveView) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- view:
			continue
		default:
		}

		// очередь заполнена, вытесняем самое старое
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			h.dropped.Add(1)
		default:
		}
		select {
		case sub.ch <- view:
		default:
			sub.dropped.Add(1)
			h.dropped.Add(1)
		}
	}
}

// Len возвращает количество подписчиков
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped возвращает общее количество вытесненных обновлений
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// CloseAll отключает всех подписчиков
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Subscription) Updates() <-chan models.LiveView {
	return s.ch
}

func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.ID)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}
