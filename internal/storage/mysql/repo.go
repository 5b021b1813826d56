package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"orion_source/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ReplaceGraph swaps the stored graph for nodes in one transaction. Readers
// see either the previous run's graph or this one, never a mix.
func (r *Repo) ReplaceGraph(ctx context.Context, nodes []domain.Node) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteNodesSQL); err != nil {
		return err
	}
	for start := 0; start < len(nodes); start += insertBatch {
		end := start + insertBatch
		if end > len(nodes) {
			end = len(nodes)
		}
		if err = insertNodes(ctx, tx, start, nodes[start:end]); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, insertRunSQL, len(nodes)); err != nil {
		return err
	}
	return tx.Commit()
}

func insertNodes(ctx context.Context, tx *sql.Tx, offset int, nodes []domain.Node) error {
	values := make([]string, 0, len(nodes))
	args := make([]any, 0, len(nodes)*7) // 7 params per row
	for i, n := range nodes {
		fields, err := json.Marshal(n.Fields)
		if err != nil {
			return fmt.Errorf("fields of %s: %w", n.ID, err)
		}
		values = append(values, "(?,?,?,?,?,?,?)")
		args = append(args,
			offset+i,
			n.ID,
			valStr(n.Parent),
			n.Type,
			n.Content,
			n.ContentDigest,
			string(fields),
		)
	}
	_, err := tx.ExecContext(ctx, insertNodesPrefix+strings.Join(values, ","), args...)
	return err
}

func (r *Repo) GetNode(ctx context.Context, id string) (domain.Node, error) {
	n, err := scanNode(r.db.QueryRowContext(ctx, getNodeSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Node{}, domain.ErrNotFound
	}
	return n, err
}

// GetNodes returns the stored nodes among ids, in no particular order.
func (r *Repo) GetNodes(ctx context.Context, ids []string) ([]domain.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := getNodesPrefix + "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

func (r *Repo) ListByType(ctx context.Context, typ string, limit int) ([]domain.Node, error) {
	rows, err := r.db.QueryContext(ctx, listByTypeSQL, typ, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (domain.Node, error) {
	var (
		n      domain.Node
		parent sql.NullString
		fields []byte
	)
	if err := s.Scan(&n.ID, &parent, &n.Type, &n.Content, &n.ContentDigest, &fields); err != nil {
		return domain.Node{}, err
	}
	if parent.Valid {
		p := parent.String
		n.Parent = &p
	}
	n.Children = []string{}
	if len(fields) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(fields)))
		dec.UseNumber()
		if err := dec.Decode(&n.Fields); err != nil {
			return domain.Node{}, fmt.Errorf("fields of %s: %w", n.ID, err)
		}
	}
	return n, nil
}

func scanNodes(rows *sql.Rows) ([]domain.Node, error) {
	var out []domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
