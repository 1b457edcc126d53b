package bus

import (
	"context"
	"fmt"
	"sync"
)

// memoryBus delivers in-process, synchronously, in subscription order.
type memoryBus struct {
	mu     sync.RWMutex
	subs   map[int]func(SourceDiscovered)
	nextID int
	closed bool
}

func NewMemoryBus() Bus {
	return &memoryBus{subs: map[int]func(SourceDiscovered){}}
}

func (b *memoryBus) Publish(ctx context.Context, msg SourceDiscovered) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("memory bus closed")
	}
	handlers := make([]func(SourceDiscovered), 0, len(b.subs))
	for i := 0; i < b.nextID; i++ {
		if h, ok := b.subs[i]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		h(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m SourceDiscovered)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = onMsg
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = map[int]func(SourceDiscovered){}
	b.mu.Unlock()
	return nil
}
