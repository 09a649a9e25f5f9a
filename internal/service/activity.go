package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

const activityBufferSize = 256

// ActivitySink асинхронно пишет ленту активности. Публикация не блокирует
// и не проваливает породившую событие операцию: при переполненном буфере
// или ошибке записи событие теряется с warning в логе.
type ActivitySink struct {
	store  ActivityStore
	events chan domain.ActivityEvent
	done   chan struct{}
}

func NewActivitySink(store ActivityStore) *ActivitySink {
	s := &ActivitySink{
		store:  store,
		events: make(chan domain.ActivityEvent, activityBufferSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *ActivitySink) run() {
	defer close(s.done)
	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Insert(ctx, &event); err != nil {
			log.Printf("[ActivitySink] warning: failed to record %s for node %s: %v",
				event.Operation, event.NodeID, err)
		}
		cancel()
	}
}

// Record публикует событие после успешного коммита мутации.
func (s *ActivitySink) Record(operation domain.OperationKind, nodeID uuid.UUID, ownerID, detail string) {
	event := domain.ActivityEvent{
		Operation: operation,
		NodeID:    nodeID,
		OwnerID:   ownerID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case s.events <- event:
	default:
		log.Printf("[ActivitySink] warning: buffer full, dropping %s for node %s", operation, nodeID)
	}
}

// Close останавливает фоновую запись, дописав накопленные события.
func (s *ActivitySink) Close() {
	close(s.events)
	<-s.done
}

// Recent возвращает последние события владельца.
func (s *ActivitySink) Recent(ctx context.Context, ownerID string, limit int) ([]domain.ActivityEvent, error) {
	return s.store.ListByOwner(ctx, ownerID, limit)
}
