package cartstore

import "sync"

// Notifier fans cart-change events out to in-process subscribers. It stands
// in for the cross-view broadcast the cart state used to get for free from
// its original storage medium: every write publishes, every reader re-reads.
type Notifier struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]func(Event)
}

func NewNotifier() *Notifier {
	return &Notifier{subscribers: make(map[int]func(Event))}
}

// Subscribe registers fn for every future event and returns an unsubscribe
// function. fn runs synchronously on the publisher's goroutine and must not
// block.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subscribers[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subscribers, id)
		n.mu.Unlock()
	}
}

// Publish delivers the event to every current subscriber.
func (n *Notifier) Publish(event Event) {
	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subscribers))
	for _, fn := range n.subscribers {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}
