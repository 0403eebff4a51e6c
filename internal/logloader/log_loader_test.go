package logloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rpattn/orderdesk/internal/domain"
)

type countingStore struct {
	mu      sync.Mutex
	batches [][]domain.RecordRef
	logs    map[domain.RecordKey]string
	err     error
}

func (s *countingStore) ReadLog(ctx context.Context, ref domain.RecordRef) (string, error) {
	logs, err := s.ReadLogs(ctx, []domain.RecordRef{ref})
	return logs[ref], err
}

func (s *countingStore) ReadLogs(_ context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, refs)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[domain.RecordRef]string, len(refs))
	for _, ref := range refs {
		out[ref] = s.logs[ref.Key]
	}
	return out, nil
}

func (s *countingStore) WriteLog(context.Context, domain.RecordRef, string) error {
	return errors.New("read only")
}

func ref(order, sku string, row int) domain.RecordRef {
	return domain.RecordRef{
		Key:    domain.RecordKey{OrderNumber: order, SKU: sku},
		Source: domain.SourceRef{Table: "Sheet1", Row: row},
	}
}

func TestLoadManyBatchesIntoOneRead(t *testing.T) {
	store := &countingStore{logs: map[domain.RecordKey]string{
		{OrderNumber: "1", SKU: "A"}: "first",
		{OrderNumber: "1", SKU: "B"}: "second",
	}}
	loader := NewLogLoader(store)

	refs := []domain.RecordRef{ref("1", "A", 2), ref("1", "B", 3)}
	logs, err := loader.LoadMany(context.Background(), refs)
	if err != nil {
		t.Fatalf("load many: %v", err)
	}
	if logs[refs[0]] != "first" || logs[refs[1]] != "second" {
		t.Fatalf("unexpected logs %v", logs)
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(store.batches))
	}
}

func TestConcurrentLoads(t *testing.T) {
	store := &countingStore{logs: map[domain.RecordKey]string{{OrderNumber: "7", SKU: "X"}: "log"}}
	loader := NewLogLoader(store)

	var wg sync.WaitGroup
	results := make([]string, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = loader.Load(context.Background(), ref("7", "X", i+2))
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != "log" {
			t.Fatalf("result %d: unexpected log %q", i, got)
		}
	}
	if len(store.batches) == 0 || len(store.batches) > len(results) {
		t.Fatalf("unexpected batch count %d", len(store.batches))
	}
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	store := &countingStore{err: errors.New("sheet locked")}
	loader := NewLogLoader(store)

	if _, err := loader.Load(context.Background(), ref("1", "A", 2)); err == nil {
		t.Fatalf("expected error")
	}
}
