package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpattn/orderdesk/internal/datasource"
	"github.com/rpattn/orderdesk/internal/domain"
)

type sqliteOrderRepository struct {
	db    *sql.DB
	table string
	ident string
}

// NewSQLiteOrderRepository wires an order repository backed by a SQLite database.
func NewSQLiteOrderRepository(db *sql.DB, table string) OrderRepository {
	if table == "" {
		table = DefaultTable
	}
	return &sqliteOrderRepository{db: db, table: table, ident: `"` + strings.ReplaceAll(table, `"`, `""`) + `"`}
}

func (r *sqliteOrderRepository) LoadRows(ctx context.Context) (datasource.Table, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns()+` FROM `+r.ident+` ORDER BY id`)
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

func (r *sqliteOrderRepository) ReadLog(ctx context.Context, ref domain.RecordRef) (string, error) {
	logs, err := r.ReadLogs(ctx, []domain.RecordRef{ref})
	if err != nil {
		return "", err
	}
	return logs[ref], nil
}

func (r *sqliteOrderRepository) ReadLogs(ctx context.Context, refs []domain.RecordRef) (map[domain.RecordRef]string, error) {
	candidates, err := r.candidates(ctx, r.db, refs)
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

func (r *sqliteOrderRepository) WriteLog(ctx context.Context, ref domain.RecordRef, value string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	candidates, err := r.candidates(ctx, tx, []domain.RecordRef{ref})
	if err != nil {
		return err
	}
	row, err := resolveRow(candidates, ref)
	if err != nil {
		return fmt.Errorf("write log %s: %w", ref, err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE `+r.ident+` SET audit_log = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, value, row.id)
	if err != nil {
		return fmt.Errorf("failed to update audit log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("write log %s: %w", ref, datasource.ErrRecordNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteOrderRepository) Insert(ctx context.Context, records []domain.OrderRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(orderColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+r.ident+` (`+strings.Join(orderColumns, ", ")+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, insertValues(record)...); err != nil {
			return 0, fmt.Errorf("failed to insert order %s: %w", record.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(records), nil
}

func (r *sqliteOrderRepository) Close() error {
	return r.db.Close()
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *sqliteOrderRepository) candidates(ctx context.Context, q sqlQuerier, refs []domain.RecordRef) ([]logRow, error) {
	ids, numbers := lookupArgs(refs)
	if len(ids) == 0 && len(numbers) == 0 {
		return nil, nil
	}

	var clauses []string
	args := make([]any, 0, len(ids)+len(numbers))
	if len(ids) > 0 {
		clauses = append(clauses, `id IN (`+strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")+`)`)
		for _, id := range ids {
			args = append(args, id)
		}
	}
	if len(numbers) > 0 {
		clauses = append(clauses, `order_number IN (`+strings.TrimSuffix(strings.Repeat("?, ", len(numbers)), ", ")+`)`)
		for _, number := range numbers {
			args = append(args, number)
		}
	}

	rows, err := q.QueryContext(ctx, `SELECT id, order_number, sku, audit_log FROM `+r.ident+` WHERE `+strings.Join(clauses, " OR "), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var out []logRow
	for rows.Next() {
		var lr logRow
		if err := rows.Scan(&lr.id, &lr.orderNumber, &lr.sku, &lr.log); err != nil {
			return nil, fmt.Errorf("failed to scan audit logs: %w", err)
		}
		out = append(out, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return out, nil
}
