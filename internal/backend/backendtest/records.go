// Package backendtest provides in-memory implementations of the backend
// interfaces for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/student-stay/internal/backend"
)

// Records is an in-memory backend.Records. Documents are deep-copied through
// JSON so callers never share maps with the store.
type Records struct {
	mu    sync.Mutex
	seq   int
	colls map[string]map[string]backend.Fields

	// Calls counts every method invocation by name.
	Calls map[string]int
	// Err, when set, is returned by every call.
	Err error
}

func NewRecords() *Records {
	return &Records{colls: map[string]map[string]backend.Fields{}, Calls: map[string]int{}}
}

func clone(f backend.Fields) backend.Fields {
	raw, _ := json.Marshal(f)
	var out backend.Fields
	_ = json.Unmarshal(raw, &out)
	return out
}

func (r *Records) CreateRecord(_ context.Context, coll string, f backend.Fields) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["CreateRecord"]++
	if r.Err != nil {
		return "", r.Err
	}
	r.seq++
	id := fmt.Sprintf("r%d", r.seq)
	if r.colls[coll] == nil {
		r.colls[coll] = map[string]backend.Fields{}
	}
	r.colls[coll][id] = clone(f)
	return id, nil
}

func (r *Records) GetRecord(_ context.Context, coll, id string) (backend.Fields, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["GetRecord"]++
	if r.Err != nil {
		return nil, r.Err
	}
	f, ok := r.colls[coll][id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	out := clone(f)
	out["id"] = id
	return out, nil
}

// UpdateRecordStatus refuses to leave a terminal status, like the MySQL
// repository does.
func (r *Records) UpdateRecordStatus(_ context.Context, coll, id, status string, extra backend.Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["UpdateRecordStatus"]++
	if r.Err != nil {
		return r.Err
	}
	f, ok := r.colls[coll][id]
	if !ok {
		return backend.ErrNotFound
	}
	if cur, _ := f["status"].(string); cur == "approved" || cur == "rejected" {
		return backend.ErrNotPending
	}
	f["status"] = status
	for k, v := range clone(extra) {
		f[k] = v
	}
	return nil
}

// PublishRecord mirrors the repository: the status change, the copy and the
// published_id link are applied together or not at all.
func (r *Records) PublishRecord(_ context.Context, coll, id, status string, extra backend.Fields, target string, doc backend.Fields) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["PublishRecord"]++
	if r.Err != nil {
		return "", r.Err
	}
	f, ok := r.colls[coll][id]
	if !ok {
		return "", backend.ErrNotFound
	}
	if cur, _ := f["status"].(string); cur == "approved" || cur == "rejected" {
		return "", backend.ErrNotPending
	}
	r.seq++
	newID := fmt.Sprintf("r%d", r.seq)
	if r.colls[target] == nil {
		r.colls[target] = map[string]backend.Fields{}
	}
	c := clone(doc)
	delete(c, "id")
	r.colls[target][newID] = c
	f["status"] = status
	for k, v := range clone(extra) {
		f[k] = v
	}
	f["published_id"] = newID
	return newID, nil
}

func (r *Records) ListRecords(_ context.Context, coll string, preds []backend.Predicate, order backend.Order) ([]backend.Fields, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["ListRecords"]++
	if r.Err != nil {
		return nil, r.Err
	}
	var out []backend.Fields
	ids := make([]string, 0, len(r.colls[coll]))
	for id := range r.colls[coll] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
next:
	for _, id := range ids {
		f := r.colls[coll][id]
		for _, p := range preds {
			if fmt.Sprint(f[p.Field]) != p.Value {
				continue next
			}
		}
		c := clone(f)
		c["id"] = id
		out = append(out, c)
	}
	if order.Field != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := fmt.Sprint(out[i][order.Field]), fmt.Sprint(out[j][order.Field])
			if order.Desc {
				return a > b
			}
			return a < b
		})
	}
	return out, nil
}

// Put stores f under id directly, bypassing CreateRecord.
func (r *Records) Put(coll, id string, f backend.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.colls[coll] == nil {
		r.colls[coll] = map[string]backend.Fields{}
	}
	r.colls[coll][id] = clone(f)
}

// Count returns the number of documents in coll.
func (r *Records) Count(coll string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.colls[coll])
}
