package stream

import (
	"sync"

	"worklink_backend/internal/logger"
)

// Dispatcher раздает события подписчикам по получателям.
// Доставка at-least-once и без порядка между строками гарантируется
// источником; здесь только fan-out. Подписчики обязаны быть
// идемпотентными к дублям.
type Dispatcher struct {
	mu         sync.RWMutex
	subs       map[string]map[*subscription]struct{} // userID -> подписки
	bufferSize int
}

type subscription struct {
	userID string
	ch     chan Event
}

func NewDispatcher(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Dispatcher{
		subs:       make(map[string]map[*subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe возвращает канал событий для пользователя и функцию отписки.
// Канал закрывается при отписке.
func (d *Dispatcher) Subscribe(userID string) (<-chan Event, func()) {
	sub := &subscription{
		userID: userID,
		ch:     make(chan Event, d.bufferSize),
	}

	d.mu.Lock()
	if d.subs[userID] == nil {
		d.subs[userID] = make(map[*subscription]struct{})
	}
	d.subs[userID][sub] = struct{}{}
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			if set, ok := d.subs[sub.userID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(d.subs, sub.userID)
				}
			}
			d.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// Publish маршрутизирует событие каждому получателю.
// Переполненный буфер подписчика - событие пропускается с warn:
// сторы восстановят состояние при следующей загрузке.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, userID := range ev.Recipients {
		for sub := range d.subs[userID] {
			select {
			case sub.ch <- ev:
			default:
				logger.Warn("stream subscriber buffer full, event dropped",
					"user_id", userID,
					"table", ev.Table,
					"op", ev.Op,
				)
			}
		}
	}
}

// SubscriberCount возвращает число активных подписок (для метрик и тестов).
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for _, set := range d.subs {
		total += len(set)
	}
	return total
}
