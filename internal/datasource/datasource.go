// Package datasource defines the boundary between order logic and the tabular stores that
// hold order lines and their audit logs.
package datasource

import (
	"context"
	"errors"

	"github.com/rpattn/orderdesk/internal/domain"
)

var (
	// ErrLoad marks failures that prevent a full load: unreachable store, missing worksheet or
	// table, empty sheet.
	ErrLoad = errors.New("failed to load order rows")
	// ErrRecordNotFound is returned when a write-back address matches no row.
	ErrRecordNotFound = errors.New("order record not found")
	// ErrAmbiguousRecord is returned when an order number and SKU match more than one row.
	ErrAmbiguousRecord = errors.New("order record is ambiguous")
)

// Table is the raw result of one load.
type Table struct {
	Name    string
	Headers []string
	Rows    []domain.RawRow
}

// Source loads every order row.
type Source interface {
	LoadRows(ctx context.Context) (Table, error)
}

// LogStore reads and writes the audit log of single order lines.
type LogStore interface {
	ReadLog(ctx context.Context, ref domain.RecordRef) (string, error)
	ReadLogs(ctx context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error)
	WriteLog(ctx context.Context, ref domain.RecordRef, value string) error
}

// Backend is a store that serves both roles.
type Backend interface {
	Source
	LogStore
	Close() error
}
