package memory

import (
	"sync"

	"github.com/petasbytes/turnkit/message"
)

// DefaultCapacity is used when a Store is created with a non-positive capacity.
const DefaultCapacity = 10

// Store is a FIFO log of turn records with a fixed capacity.
//
// The mutex only keeps individual calls atomic. Ordering of writes across
// turns is enforced by the caller (see internal/sequencer).
type Store struct {
	mu       sync.Mutex
	capacity int
	records  []message.Message
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, records: make([]message.Message, 0, capacity)}
}

// Add appends copies of msgs as one step, then evicts the oldest records
// while the store is over capacity. Readers see all of msgs or none.
func (s *Store) Add(msgs ...message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.records = append(s.records, m.Clone())
	}
	if over := len(s.records) - s.capacity; over > 0 {
		// Shift instead of reslicing so the backing array does not grow unbounded.
		n := copy(s.records, s.records[over:])
		clear(s.records[n:])
		s.records = s.records[:n]
	}
}

// List returns a snapshot of the current records in insertion order.
func (s *Store) List() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return message.CloneAll(s.records)
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.records)
	s.records = s.records[:0]
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) Cap() int { return s.capacity }
