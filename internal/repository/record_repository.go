package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/student-stay/internal/backend"
)

// maxListRecords caps ListRecords results.
const maxListRecords = 500

var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,39}$`)

// terminal statuses cannot be changed by UpdateRecordStatus.
var terminal = map[string]bool{"approved": true, "rejected": true}

// RecordRepo stores schemaless documents in the records table. The status
// field is mirrored into its own column so queues can be listed by index.
type RecordRepo struct{ DB *sql.DB }

func NewRecordRepo(db *sql.DB) *RecordRepo { return &RecordRepo{DB: db} }

func (r *RecordRepo) CreateRecord(ctx context.Context, coll string, f backend.Fields) (string, error) {
	id := uuid.NewString()
	raw, status, err := encodeDoc(f)
	if err != nil {
		return "", err
	}
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO records (id, collection, status, fields) VALUES (?,?,?,?)",
		id, coll, status, raw); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RecordRepo) GetRecord(ctx context.Context, coll, id string) (backend.Fields, error) {
	var raw []byte
	err := r.DB.QueryRowContext(ctx,
		"SELECT fields FROM records WHERE id=? AND collection=? LIMIT 1", id, coll).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc(id, raw)
}

// UpdateRecordStatus sets status and merges extra into the document. A record
// already in a terminal status is left alone and backend.ErrNotPending is
// returned, so two admins deciding at once cannot both win.
func (r *RecordRepo) UpdateRecordStatus(ctx context.Context, coll, id, status string, extra backend.Fields) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return setStatus(ctx, tx, coll, id, status, extra)
}

// PublishRecord moves a non-terminal record to status and inserts doc into
// target in the same transaction. The new id is written back onto the source
// as published_id. Nothing is stored when any step fails.
func (r *RecordRepo) PublishRecord(ctx context.Context, coll, id, status string, extra backend.Fields, target string, doc backend.Fields) (newID string, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			newID = ""
		} else {
			err = tx.Commit()
		}
	}()

	newID = uuid.NewString()
	merged := make(backend.Fields, len(extra)+1)
	for k, v := range extra {
		merged[k] = v
	}
	merged["published_id"] = newID
	if err = setStatus(ctx, tx, coll, id, status, merged); err != nil {
		return "", err
	}
	raw, st, err := encodeDoc(doc)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO records (id, collection, status, fields) VALUES (?,?,?,?)",
		newID, target, st, raw)
	return newID, err
}

// setStatus locks the row before reading it.
func setStatus(ctx context.Context, tx *sql.Tx, coll, id, status string, extra backend.Fields) error {
	var (
		cur string
		raw []byte
	)
	err := tx.QueryRowContext(ctx,
		"SELECT status, fields FROM records WHERE id=? AND collection=? FOR UPDATE", id, coll).Scan(&cur, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ErrNotFound
	}
	if err != nil {
		return err
	}
	if terminal[cur] {
		return backend.ErrNotPending
	}
	doc := backend.Fields{}
	if err = json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode record %s: %w", id, err)
	}
	for k, v := range extra {
		doc[k] = v
	}
	doc["status"] = status
	if raw, err = json.Marshal(doc); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "UPDATE records SET status=?, fields=? WHERE id=?", status, raw, id)
	return err
}

// ListRecords filters by equality on top-level fields. Field names are
// checked against a strict pattern before they are placed in a JSON path.
func (r *RecordRepo) ListRecords(ctx context.Context, coll string, preds []backend.Predicate, order backend.Order) ([]backend.Fields, error) {
	var (
		where = []string{"collection=?"}
		args  = []any{coll}
	)
	for _, p := range preds {
		expr, err := fieldExpr(p.Field)
		if err != nil {
			return nil, err
		}
		where = append(where, expr+"=?")
		args = append(args, p.Value)
	}
	orderBy := "created_at"
	if order.Field != "" {
		expr, err := fieldExpr(order.Field)
		if err != nil {
			return nil, err
		}
		orderBy = expr
	}
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}
	q := fmt.Sprintf("SELECT id, fields FROM records WHERE %s ORDER BY %s %s, created_at %s LIMIT %d",
		strings.Join(where, " AND "), orderBy, dir, dir, maxListRecords)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []backend.Fields{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDoc(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func fieldExpr(name string) (string, error) {
	switch name {
	case "status", "created_at", "id":
		return name, nil
	}
	if !fieldName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrBadField, name)
	}
	return "JSON_UNQUOTE(JSON_EXTRACT(fields, '$." + name + "'))", nil
}

func decodeDoc(id string, raw []byte) (backend.Fields, error) {
	doc := backend.Fields{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}

// encodeDoc drops any id key and returns the JSON body plus the status value
// mirrored into its own column.
func encodeDoc(f backend.Fields) ([]byte, string, error) {
	doc := make(backend.Fields, len(f))
	for k, v := range f {
		if k != "id" {
			doc[k] = v
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", backend.ErrInvalidInput, err)
	}
	status, _ := doc["status"].(string)
	return raw, status, nil
}
