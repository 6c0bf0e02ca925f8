package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hal-feed/config"
	"hal-feed/models"
)

// memStore ist ein ObjectStore im Speicher für Tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("kein Objekt unter %q", key)
	}
	return data, nil
}

func (s *memStore) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) keys() []string {
	ks, _ := s.ListPrefix(context.Background(), "")
	return ks
}

type insertCall struct {
	collection string
	records    []models.OaRecord
}

// fakeDocStore protokolliert alle DocumentStore-Operationen in Reihenfolge.
type fakeDocStore struct {
	mu      sync.Mutex
	ops     []string
	drops   []string
	inserts []insertCall
	indexes []string
}

func (d *fakeDocStore) Drop(_ context.Context, collection string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "drop")
	d.drops = append(d.drops, collection)
	return nil
}

func (d *fakeDocStore) BulkInsert(_ context.Context, collection string, records []models.OaRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "insert")
	d.inserts = append(d.inserts, insertCall{collection: collection, records: records})
	return nil
}

func (d *fakeDocStore) CreateIndex(_ context.Context, collection, field string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "index")
	d.indexes = append(d.indexes, collection+":"+field)
	return nil
}

// testServiceConfig liefert eine Konfiguration mit kurzen Timeouts für Tests
// gegen einen httptest-Server.
func testServiceConfig(baseURL string) *config.Config {
	return &config.Config{
		HalBaseURL:    baseURL,
		HalSearchRows: 100,
		HalRefRows:    100,
		HalRetryTries: 2,
		HalRetryDelay: time.Millisecond,
		HalTimeout:    time.Second,
		HalRateLimit:  10000,
		ChunkSize:     10,
		MinYear:       1000,
		PersonIDsKey:  "vip.jsonl",
	}
}
