package descriptor

import (
	"fmt"
	"sync"
)

// Payload is what an observable publishes for one committed write.
type Payload struct {
	EventID      string
	DescriptorID string
	Key          string
	Value        any
	OldValue     any
}

// Handler receives the value of a published payload.
type Handler func(value any)

// Subject is a synchronous push stream. Handlers are keyed by
// (eventID, handlerKey) and run in subscription order before Publish
// returns.
type Subject struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
	order    map[string][]string
}

// NewSubject returns an empty subject.
func NewSubject() *Subject {
	return &Subject{
		handlers: map[string]map[string]Handler{},
		order:    map[string][]string{},
	}
}

// Subscribe registers h for eventID under handlerKey.
func (s *Subject) Subscribe(eventID, handlerKey string, h Handler) error {
	if h == nil {
		return fmt.Errorf("descriptor: handler %q for %q is nil", handlerKey, eventID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.handlers[eventID]
	if byKey == nil {
		byKey = map[string]Handler{}
		s.handlers[eventID] = byKey
	}
	if _, exists := byKey[handlerKey]; exists {
		return fmt.Errorf("descriptor: handler %q already subscribed to %q", handlerKey, eventID)
	}
	byKey[handlerKey] = h
	s.order[eventID] = append(s.order[eventID], handlerKey)
	return nil
}

// Unsubscribe removes one handler.
func (s *Subject) Unsubscribe(eventID, handlerKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey := s.handlers[eventID]
	if _, ok := byKey[handlerKey]; !ok {
		return false
	}
	delete(byKey, handlerKey)
	keys := s.order[eventID]
	for i, k := range keys {
		if k == handlerKey {
			s.order[eventID] = append(keys[:i:i], keys[i+1:]...)
			break
		}
	}
	if len(byKey) == 0 {
		delete(s.handlers, eventID)
		delete(s.order, eventID)
	}
	return true
}

// Count reports how many handlers listen to eventID.
func (s *Subject) Count(eventID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers[eventID])
}

// Publish delivers p.Value to every handler of p.EventID and returns how
// many ran.
func (s *Subject) Publish(p Payload) int {
	s.mu.RLock()
	keys := append([]string(nil), s.order[p.EventID]...)
	handlers := make([]Handler, 0, len(keys))
	for _, key := range keys {
		handlers = append(handlers, s.handlers[p.EventID][key])
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(p.Value)
	}
	return len(handlers)
}
