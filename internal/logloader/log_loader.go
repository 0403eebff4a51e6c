// Package logloader batches audit log reads issued while serving one request.
package logloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"

	"github.com/graph-gophers/dataloader"
)

// refKey identifies a record by both its key and its source so that a stale source row
// never aliases another line.
type refKey struct {
	ref domain.RecordRef
}

func (k refKey) String() string {
	return k.ref.Key.String() + "@" + k.ref.Source.String()
}

func (k refKey) Raw() interface{} {
	return k.ref
}

type LogLoader struct {
	Loader *dataloader.Loader
}

func NewLogLoader(store datasource.LogStore) *LogLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		refs := make([]domain.RecordRef, len(keys))
		for i, k := range keys {
			ref, ok := k.Raw().(domain.RecordRef)
			if !ok {
				return fill(len(keys), fmt.Errorf("invalid log key %q", k.String()))
			}
			refs[i] = ref
		}

		logs, err := store.ReadLogs(ctx, refs)
		if err != nil {
			return fill(len(keys), err)
		}

		// Results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, ref := range refs {
			results[i] = &dataloader.Result{Data: logs[ref]}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &LogLoader{Loader: loader}
}

func fill(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// Load returns the current audit log of one record.
func (l *LogLoader) Load(ctx context.Context, ref domain.RecordRef) (string, error) {
	value, err := l.Loader.Load(ctx, refKey{ref: ref})()
	if err != nil {
		return "", err
	}
	log, _ := value.(string)
	return log, nil
}

// LoadMany returns the audit logs of several records in one batch.
func (l *LogLoader) LoadMany(ctx context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	keys := make(dataloader.Keys, len(refs))
	for i, ref := range refs {
		keys[i] = refKey{ref: ref}
	}
	values, errs := l.Loader.LoadMany(ctx, keys)()
	out := make(map[domain.RecordRef]string, len(refs))
	for i, ref := range refs {
		if i < len(errs) && errs[i] != nil {
			return nil, fmt.Errorf("load log %s: %w", ref, errs[i])
		}
		if i < len(values) {
			log, _ := values[i].(string)
			out[ref] = log
		}
	}
	return out, nil
}
