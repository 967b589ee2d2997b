package descriptor

import "fmt"

type valueSlot struct {
	value any
}

func (s *valueSlot) Get() any { return s.value }

func (s *valueSlot) Set(value any) error {
	s.value = value
	return nil
}

type mapHost struct {
	slots map[string]Slot
}

func newHost(values map[string]any) *mapHost {
	h := &mapHost{slots: map[string]Slot{}}
	for key, value := range values {
		h.slots[key] = &valueSlot{value: value}
	}
	return h
}

func (h *mapHost) Slot(key string) (Slot, bool) {
	slot, ok := h.slots[key]
	return slot, ok
}

func (h *mapHost) ReplaceSlot(key string, slot Slot) error {
	if _, ok := h.slots[key]; !ok {
		return fmt.Errorf("no slot %q", key)
	}
	h.slots[key] = slot
	return nil
}

func (h *mapHost) get(key string) any {
	return h.slots[key].Get()
}

func (h *mapHost) set(key string, value any) error {
	return h.slots[key].Set(value)
}
