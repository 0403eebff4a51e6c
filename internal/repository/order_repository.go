package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type orderRepository struct {
	pool  *pgxpool.Pool
	table string
	ident string
}

// NewOrderRepository wires an order repository backed by pgxpool.
func NewOrderRepository(pool *pgxpool.Pool, table string) OrderRepository {
	if table == "" {
		table = DefaultTable
	}
	return &orderRepository{pool: pool, table: table, ident: pgx.Identifier{table}.Sanitize()}
}

func (r *orderRepository) LoadRows(ctx context.Context) (datasource.Table, error) {
	if r.pool == nil {
		return datasource.Table{}, fmt.Errorf("%w: order repository not initialized", datasource.ErrLoad)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns()+` FROM `+r.ident+` ORDER BY id`)
	if err != nil {
		return datasource.Table{}, fmt.Errorf("%w: failed to query orders: %w", datasource.ErrLoad, err)
	}
	defer rows.Close()

	table := datasource.Table{Name: r.table, Headers: orderColumns}
	for rows.Next() {
		var id int64
		cells := make([]string, len(orderColumns))
		dest := make([]any, 0, len(cells)+1)
		dest = append(dest, &id)
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return datasource.Table{}, fmt.Errorf("%w: failed to scan order: %w", datasource.ErrLoad, err)
		}
		table.Rows = append(table.Rows, rawRow(r.table, id, cells, len(table.Rows)+1))
	}
	if err := rows.Err(); err != nil {
		return datasource.Table{}, fmt.Errorf("%w: failed to iterate orders: %w", datasource.ErrLoad, err)
	}
	return table, nil
}

func (r *orderRepository) ReadLog(ctx context.Context, ref domain.RecordRef) (string, error) {
	logs, err := r.ReadLogs(ctx, []domain.RecordRef{ref})
	if err != nil {
		return "", err
	}
	return logs[ref], nil
}

func (r *orderRepository) ReadLogs(ctx context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("order repository not initialized")
	}
	candidates, err := r.candidates(ctx, r.pool, refs, false)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.RecordRef]string, len(refs))
	for _, ref := range refs {
		row, err := resolveRow(candidates, ref)
		if err != nil {
			return nil, fmt.Errorf("read log %s: %w", ref, err)
		}
		out[ref] = strings.TrimSpace(row.log)
	}
	return out, nil
}

func (r *orderRepository) WriteLog(ctx context.Context, ref domain.RecordRef, value string) error {
	if r.pool == nil {
		return fmt.Errorf("order repository not initialized")
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		candidates, err := r.candidates(ctx, tx, []domain.RecordRef{ref}, true)
		if err != nil {
			return err
		}
		row, err := resolveRow(candidates, ref)
		if err != nil {
			return fmt.Errorf("write log %s: %w", ref, err)
		}

		tag, err := tx.Exec(ctx, `UPDATE `+r.ident+` SET audit_log = $1, updated_at = NOW() WHERE id = $2`, value, row.id)
		if err != nil {
			return fmt.Errorf("failed to update audit log: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("write log %s: %w", ref, datasource.ErrRecordNotFound)
		}
		return nil
	})
}

func (r *orderRepository) Insert(ctx context.Context, records []domain.OrderRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(orderColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := `INSERT INTO ` + r.ident + ` (` + strings.Join(orderColumns, ", ") + `) VALUES (` + strings.Join(placeholders, ", ") + `)`

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(query, insertValues(record)...)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to insert orders: %w", err)
	}
	return len(records), nil
}

func (r *orderRepository) Close() error {
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepository) candidates(ctx context.Context, q querier, refs []domain.RecordRef, lock bool) ([]logRow, error) {
	if q == nil {
		return nil, fmt.Errorf("order repository not initialized")
	}
	ids, numbers := lookupArgs(refs)
	if len(ids) == 0 && len(numbers) == 0 {
		return nil, nil
	}

	query := `SELECT id, order_number, sku, audit_log FROM ` + r.ident + ` WHERE id = ANY($1) OR order_number = ANY($2)`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, ids, numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (logRow, error) {
		var lr logRow
		err := row.Scan(&lr.id, &lr.orderNumber, &lr.sku, &lr.log)
		return lr, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit logs: %w", err)
	}
	return out, nil
}
