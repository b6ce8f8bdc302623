package credentials

import "sync"

// MemoryBackend keeps slots in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	slots Slots
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load() (Slots, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots, nil
}

func (b *MemoryBackend) Store(slots Slots) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = slots
	return nil
}

func (b *MemoryBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = Slots{}
	return nil
}
