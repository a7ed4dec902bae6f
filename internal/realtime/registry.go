package realtime

import (
	"sync"

	"worklink_backend/internal/repositories"
	"worklink_backend/internal/stream"
)

// Registry создает и учитывает сессии подключенных акторов.
// Один актор может держать несколько сессий (несколько вкладок),
// каждая со своей подпиской на стрим.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[*Session]struct{} // userID -> сессии

	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	notifications repositories.NotificationRepository
	dispatcher    *stream.Dispatcher
}

func NewRegistry(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	notifications repositories.NotificationRepository,
	dispatcher *stream.Dispatcher,
) *Registry {
	return &Registry{
		sessions:      make(map[string]map[*Session]struct{}),
		conversations: conversations,
		messages:      messages,
		notifications: notifications,
		dispatcher:    dispatcher,
	}
}

// Open создает сессию актора и загружает начальное состояние.
// Цикл обработки событий запускает вызывающая сторона (session.Run)
// после того, как навесит колбэк на изменения.
func (r *Registry) Open(actorID string) *Session {
	session := NewSession(actorID, r.conversations, r.messages, r.notifications, r.dispatcher)

	r.mu.Lock()
	if r.sessions[actorID] == nil {
		r.sessions[actorID] = make(map[*Session]struct{})
	}
	r.sessions[actorID][session] = struct{}{}
	r.mu.Unlock()

	session.Bootstrap()
	return session
}

// Release закрывает сессию и убирает ее из учета.
func (r *Registry) Release(session *Session) {
	session.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.sessions[session.ActorID()]; ok {
		delete(set, session)
		if len(set) == 0 {
			delete(r.sessions, session.ActorID())
		}
	}
}

// ActiveSessions возвращает число открытых сессий.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, set := range r.sessions {
		total += len(set)
	}
	return total
}
