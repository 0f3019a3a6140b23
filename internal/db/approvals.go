package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"approvalhub/internal/approvals"
	"approvalhub/internal/search"
)

const (
	maxHomeRequests = 20

	requestColumns = `id, request_source, requester_name, approver_id, status,
		justification_text, metadata_json, created_at, updated_at`
)

func (d *DB) CreateApprovalRequest(ctx context.Context, req *approvals.Request) error {
	if d == nil || d.conn == nil {
		return errNotInitialized
	}
	if req == nil {
		return errors.New("request required")
	}
	metaJSON, err := encodeMetadata(req.Metadata)
	if err != nil {
		return err
	}
	var vector any
	if len(req.Embedding) > 0 {
		vector = search.VectorLiteral(req.Embedding)
	}
	status := req.Status
	if status == "" {
		status = approvals.StatusPending
	}
	return d.withTx(ctx, func(conn dbConn) error {
		row := conn.QueryRowContext(ctx, `
			INSERT INTO approval_requests
				(request_source, requester_name, approver_id, status, justification_text, metadata_json, search_vector)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::vector)
			RETURNING id, created_at, updated_at
		`, req.Source, req.RequesterName, req.ApproverID, string(status), nullString(req.JustificationText), metaJSON, vector)
		if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return fmt.Errorf("insert approval request: %w", err)
		}
		req.Status = status
		return nil
	})
}

func (d *DB) GetApprovalRequest(ctx context.Context, id int64) (approvals.Request, error) {
	if d == nil || d.conn == nil {
		return approvals.Request{}, errNotInitialized
	}
	row := d.conn.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return approvals.Request{}, approvals.ErrNotFound
	}
	return req, err
}

// UpdateApprovalStatus only touches rows that are still Pending, so a
// concurrent decision shows up as approvals.ErrAlreadyDecided.
func (d *DB) UpdateApprovalStatus(ctx context.Context, id int64, status approvals.Status) (time.Time, error) {
	if d == nil || d.conn == nil {
		return time.Time{}, errNotInitialized
	}
	var updatedAt time.Time
	err := d.withTx(ctx, func(conn dbConn) error {
		row := conn.QueryRowContext(ctx, `
			UPDATE approval_requests SET status=$2, updated_at=now()
			WHERE id=$1 AND status='Pending'
			RETURNING updated_at
		`, id, string(status))
		if err := row.Scan(&updatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return approvals.ErrAlreadyDecided
			}
			return fmt.Errorf("update approval status: %w", err)
		}
		return nil
	})
	return updatedAt, err
}

func (d *DB) ListApprovalRequests(ctx context.Context, filter approvals.Filter) ([]approvals.Request, error) {
	if d == nil || d.conn == nil {
		return nil, errNotInitialized
	}
	limit, offset := clampPagination(filter.Limit, filter.Offset)

	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status=$%d", string(filter.Status))
	}
	if filter.Source != "" {
		add("request_source=$%d", filter.Source)
	}
	if filter.ApproverID != "" {
		add("approver_id=$%d", filter.ApproverID)
	}

	query := `SELECT ` + requestColumns + ` FROM approval_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return d.queryRequests(ctx, query, args...)
}

// ListPendingRequests returns the approver's pending requests, newest first.
// A non-nil empty IDs slice matches nothing.
func (d *DB) ListPendingRequests(ctx context.Context, q approvals.PendingQuery) ([]approvals.Request, error) {
	if d == nil || d.conn == nil {
		return nil, errNotInitialized
	}
	if q.IDs != nil && len(q.IDs) == 0 {
		return []approvals.Request{}, nil
	}
	limit := q.Limit
	if limit <= 0 || limit > maxHomeRequests {
		limit = maxHomeRequests
	}

	args := []any{q.ApproverID}
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE approver_id=$1 AND status='Pending'`
	if q.Source != "" {
		args = append(args, q.Source)
		query += fmt.Sprintf(` AND request_source=$%d`, len(args))
	}
	if q.IDs != nil {
		args = append(args, pq.Array(q.IDs))
		query += fmt.Sprintf(` AND id = ANY($%d)`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	return d.queryRequests(ctx, query, args...)
}

// ListPendingApprovers returns every approver that has at least one pending request.
func (d *DB) ListPendingApprovers(ctx context.Context) ([]string, error) {
	if d == nil || d.conn == nil {
		return nil, errNotInitialized
	}
	rows, err := d.conn.QueryContext(ctx, `SELECT DISTINCT approver_id FROM approval_requests WHERE status='Pending' ORDER BY approver_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SearchByVector ranks the approver's pending, embedded requests by cosine
// distance to vector.
func (d *DB) SearchByVector(ctx context.Context, approverID string, vector []float32, maxDistance float64, limit int) ([]search.Hit, error) {
	if d == nil || d.conn == nil {
		return nil, errNotInitialized
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, distance FROM (
			SELECT id, (search_vector <=> $2::vector) AS distance
			FROM approval_requests
			WHERE approver_id=$1 AND status='Pending' AND search_vector IS NOT NULL
		) ranked
		WHERE distance <= $3
		ORDER BY distance ASC, id ASC
		LIMIT $4
	`, approverID, search.VectorLiteral(vector), maxDistance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []search.Hit
	for rows.Next() {
		var h search.Hit
		if err := rows.Scan(&h.ID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (d *DB) queryRequests(ctx context.Context, query string, args ...any) ([]approvals.Request, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []approvals.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (approvals.Request, error) {
	var (
		req           approvals.Request
		status        string
		justification sql.NullString
		metaJSON      []byte
	)
	if err := row.Scan(&req.ID, &req.Source, &req.RequesterName, &req.ApproverID, &status,
		&justification, &metaJSON, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return approvals.Request{}, err
	}
	req.Status = approvals.Status(status)
	req.JustificationText = justification.String
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &req.Metadata); err != nil {
			return approvals.Request{}, fmt.Errorf("decode metadata_json: %w", err)
		}
	}
	return req, nil
}

// encodeMetadata returns the JSONB text for meta. lib/pq sends []byte as
// bytea, so the value is passed as a string.
func encodeMetadata(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
