package respcache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for tests and single-instance
// deployments. Multi-instance deployments should use the Postgres or Redis
// store so all instances observe consistent state.
type MemoryStore struct {
	mu           sync.Mutex
	tables       map[Table]map[string]memoryRow
	cleanupBatch int
}

type memoryRow struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(cleanupBatch int) *MemoryStore {
	if cleanupBatch <= 0 {
		cleanupBatch = DefaultCleanupBatch
	}
	return &MemoryStore{
		tables: map[Table]map[string]memoryRow{
			TablePublic:  {},
			TablePrivate: {},
		},
		cleanupBatch: cleanupBatch,
	}
}

// Get returns the entry if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, table Table, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tables[table][key]
	if !ok || !row.expiresAt.After(time.Now()) {
		return nil, nil
	}
	entry := row.entry
	return &entry, nil
}

// Set upserts the entry and runs bounded lazy cleanup on the written table.
func (s *MemoryStore) Set(ctx context.Context, table Table, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[table][key] = memoryRow{
		entry:     *entry,
		expiresAt: now.Add(ttl),
	}
	s.cleanupLocked(table, now)
	return nil
}

// cleanupLocked removes up to cleanupBatch expired rows, soonest-expired
// first. It runs inside the write path; the bound keeps hot-path work small.
func (s *MemoryStore) cleanupLocked(table Table, now time.Time) {
	type expired struct {
		key       string
		expiresAt time.Time
	}

	var rows []expired
	for key, row := range s.tables[table] {
		if row.expiresAt.Before(now) {
			rows = append(rows, expired{key: key, expiresAt: row.expiresAt})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].expiresAt.Before(rows[j].expiresAt)
	})

	if len(rows) > s.cleanupBatch {
		rows = rows[:s.cleanupBatch]
	}
	for _, row := range rows {
		delete(s.tables[table], row.key)
	}
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, table Table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[table], key)
	return nil
}

// Len returns the number of rows in a table, expired rows included.
func (s *MemoryStore) Len(table Table) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table])
}

// Ping always succeeds for the memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases nothing for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
