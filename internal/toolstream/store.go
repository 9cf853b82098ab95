package toolstream

import "iter"

// Store tracks one Controller per tool call id. Records are never removed.
// A Store is not safe for concurrent use.
type Store struct {
	records        map[string]*Controller
	order          []string
	onArgsComplete func(*Controller)
}

// NewStore creates an empty store. onArgsComplete, when not nil, is invoked
// every time a controller's argument stream is closed through CloseArgsText.
func NewStore(onArgsComplete func(*Controller)) *Store {
	return &Store{
		records:        make(map[string]*Controller),
		onArgsComplete: onArgsComplete,
	}
}

// Get returns the controller for toolCallID.
func (s *Store) Get(toolCallID string) (*Controller, bool) {
	c, ok := s.records[toolCallID]
	return c, ok
}

// GetOrCreate returns the controller for toolCallID, creating it when absent.
// The boolean reports whether the controller was created by this call.
func (s *Store) GetOrCreate(toolCallID, toolName string) (*Controller, bool) {
	if c, ok := s.records[toolCallID]; ok {
		return c, false
	}
	c := newController(toolCallID, toolName, s.onArgsComplete)
	s.records[toolCallID] = c
	s.order = append(s.order, toolCallID)
	return c, true
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// All iterates the controllers in creation order.
func (s *Store) All() iter.Seq[*Controller] {
	return func(yield func(*Controller) bool) {
		for _, id := range s.order {
			if !yield(s.records[id]) {
				return
			}
		}
	}
}
