package cas

import (
	"context"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
)

const memoryShards = 64

// Memory is an in-process backend. Entries are spread over shards by an
// xxhash of the digest, each shard guarded by its own lock.
type Memory struct {
	shards [memoryShards]memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[domain.Digest][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i].entries = make(map[domain.Digest][]byte)
	}
	return m
}

func (m *Memory) shard(d domain.Digest) *memoryShard {
	return &m.shards[xxhash.Sum64(d[:])%memoryShards]
}

// PutIfAbsent stores a copy of blob unless d is already present.
func (m *Memory) PutIfAbsent(_ context.Context, d domain.Digest, blob []byte) ([]byte, bool, error) {
	sh := m.shard(d)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.entries[d]; ok {
		return slices.Clone(existing), false, nil
	}
	sh.entries[d] = slices.Clone(blob)
	return nil, true, nil
}

// Get returns a copy of the blob under d.
func (m *Memory) Get(_ context.Context, d domain.Digest) ([]byte, bool, error) {
	sh := m.shard(d)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	blob, ok := sh.entries[d]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(blob), true, nil
}

// Contains reports whether d is present.
func (m *Memory) Contains(_ context.Context, d domain.Digest) (bool, error) {
	sh := m.shard(d)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	_, ok := sh.entries[d]
	return ok, nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	n := 0
	for i := range m.shards {
		m.shards[i].mu.RLock()
		n += len(m.shards[i].entries)
		m.shards[i].mu.RUnlock()
	}
	return n
}

// Entries lists every stored digest.
func (m *Memory) Entries(_ context.Context) ([]ports.Entry, error) {
	var out []ports.Entry
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for d, blob := range sh.entries {
			out = append(out, ports.Entry{Digest: d, Size: int64(len(blob))})
		}
		sh.mu.RUnlock()
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
