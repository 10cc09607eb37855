package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/shopmesh/shopmesh-client/pkg/db/models"
)

// memoryStore is the degraded backend used when the local database cannot
// be opened. Cart ids recorded here die with the process, which mirrors the
// original behavior when its storage medium was unavailable: the cart still
// works within the session, it just forgets.
type memoryStore struct {
	notifier *Notifier

	mu       sync.RWMutex
	order    []string
	records  map[string]models.CartRecord
	count    int
	hasCount bool
}

// NewMemoryStore builds an empty in-process store publishing on notifier.
func NewMemoryStore(notifier *Notifier) Store {
	return &memoryStore{
		notifier: notifier,
		records:  make(map[string]models.CartRecord),
	}
}

func (s *memoryStore) CartMap(_ context.Context) ([]models.CartRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]models.CartRecord, 0, len(s.order))
	for _, domain := range s.order {
		records = append(records, s.records[domain])
	}
	return records, nil
}

func (s *memoryStore) CartIDForShop(_ context.Context, domain string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[domain]
	if !ok {
		return "", false, nil
	}
	return record.CartID, true, nil
}

func (s *memoryStore) SetCartIDForShop(_ context.Context, domain, cartID string) error {
	now := time.Now().UTC()

	s.mu.Lock()
	record, ok := s.records[domain]
	if !ok {
		record = models.CartRecord{
			ShopDomain: domain,
			Position:   int64(len(s.order) + 1),
			CreatedAt:  now,
		}
		s.order = append(s.order, domain)
	}
	record.CartID = cartID
	record.UpdatedAt = now
	s.records[domain] = record
	s.mu.Unlock()

	s.publish(Event{Kind: EventCartMap, ShopDomain: domain, CartID: cartID})
	return nil
}

func (s *memoryStore) ItemCount(_ context.Context) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, s.hasCount, nil
}

func (s *memoryStore) SetItemCount(_ context.Context, count int) error {
	if count < 0 {
		count = 0
	}
	s.mu.Lock()
	s.count = count
	s.hasCount = true
	s.mu.Unlock()

	s.publish(Event{Kind: EventItemCount, ItemCount: count})
	return nil
}

func (s *memoryStore) IncrementItemCount(_ context.Context, delta int) error {
	s.mu.Lock()
	next := s.count + delta
	if next < 0 {
		next = 0
	}
	s.count = next
	s.hasCount = true
	s.mu.Unlock()

	s.publish(Event{Kind: EventItemCount, ItemCount: next})
	return nil
}

func (s *memoryStore) Subscribe(fn func(Event)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *memoryStore) publish(event Event) {
	if s.notifier != nil {
		s.notifier.Publish(event)
	}
}
