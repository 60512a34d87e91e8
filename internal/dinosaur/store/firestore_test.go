package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDatabase = "/v1/projects/demo/databases/(default)/documents"

type staticToken string

func (s staticToken) Token(ctx context.Context) (string, error) { return string(s), nil }

// fakeFirestore serves the subset of the Firestore REST API used by FirestoreStore.
type fakeFirestore struct {
	mu       sync.Mutex
	docs     map[string]map[string]value
	order    []string
	pageSize int
	auth     []string
	stamp    string
}

func newFakeFirestore() *fakeFirestore {
	return &fakeFirestore{docs: map[string]map[string]value{}, pageSize: 2, stamp: "2026-10-18T10:00:00.123456Z"}
}

func (f *fakeFirestore) writeError(w http.ResponseWriter, code int, status, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]interface{}{"code": code, "message": msg, "status": status}})
}

func (f *fakeFirestore) document(id string) restDocument {
	return restDocument{Name: "projects/demo/databases/(default)/documents/dinosaurs/" + id, Fields: f.docs[id]}
}

func (f *fakeFirestore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	p := r.URL.Path
	switch {
	case r.Method == http.MethodPost && p == testDatabase+":commit":
		var req commitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Writes) != 1 {
			f.writeError(w, 400, "INVALID_ARGUMENT", "bad commit")
			return
		}
		wr := req.Writes[0]
		id := wr.Update.Name[strings.LastIndex(wr.Update.Name, "/")+1:]
		if _, exists := f.docs[id]; exists {
			f.writeError(w, 409, "ALREADY_EXISTS", "exists")
			return
		}
		fields := wr.Update.Fields
		stamp := f.stamp
		for _, tr := range wr.UpdateTransforms {
			if tr.SetToServerValue == "REQUEST_TIME" {
				fields[tr.FieldPath] = value{TimestampValue: &stamp}
			}
		}
		f.docs[id] = fields
		f.order = append(f.order, id)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"writeResults": []interface{}{map[string]interface{}{"updateTime": stamp, "transformResults": []value{{TimestampValue: &stamp}}}},
			"commitTime":   stamp,
		})
	case r.Method == http.MethodGet && p == testDatabase+"/dinosaurs":
		var ids []string
		for _, id := range f.order {
			if _, ok := f.docs[id]; ok {
				ids = append(ids, id)
			}
		}
		start := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			for i, id := range ids {
				if id == tok {
					start = i
				}
			}
		}
		page := listResponse{}
		end := start + f.pageSize
		if end < len(ids) {
			page.NextPageToken = ids[end]
		} else {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			page.Documents = append(page.Documents, f.document(id))
		}
		_ = json.NewEncoder(w).Encode(page)
	case r.Method == http.MethodPost && p == testDatabase+":runQuery":
		var req runQueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		filter := req.StructuredQuery.Where.FieldFilter
		out := []interface{}{}
		for _, id := range f.order {
			fields, ok := f.docs[id]
			if !ok {
				continue
			}
			got, ok := fields[filter.Field.FieldPath]
			if ok && filter.Op == "EQUAL" && sameValue(got, filter.Value) {
				out = append(out, map[string]interface{}{"document": f.document(id), "readTime": f.stamp})
			}
		}
		if len(out) == 0 {
			out = append(out, map[string]interface{}{"readTime": f.stamp})
		}
		_ = json.NewEncoder(w).Encode(out)
	case strings.HasPrefix(p, testDatabase+"/dinosaurs/"):
		id := strings.TrimPrefix(p, testDatabase+"/dinosaurs/")
		switch r.Method {
		case http.MethodGet:
			if _, ok := f.docs[id]; !ok {
				f.writeError(w, 404, "NOT_FOUND", "no document")
				return
			}
			_ = json.NewEncoder(w).Encode(f.document(id))
		case http.MethodPatch:
			fields, ok := f.docs[id]
			if !ok {
				f.writeError(w, 404, "NOT_FOUND", "No document to update")
				return
			}
			var doc restDocument
			_ = json.NewDecoder(r.Body).Decode(&doc)
			for _, path := range r.URL.Query()["updateMask.fieldPaths"] {
				fields[path] = doc.Fields[path]
			}
			_ = json.NewEncoder(w).Encode(f.document(id))
		case http.MethodDelete:
			delete(f.docs, id)
			_, _ = w.Write([]byte("{}"))
		}
	default:
		f.writeError(w, 404, "NOT_FOUND", "unknown route "+r.Method+" "+p)
	}
}

func sameValue(a, b value) bool {
	switch {
	case a.StringValue != nil && b.StringValue != nil:
		return *a.StringValue == *b.StringValue
	case a.BooleanValue != nil && b.BooleanValue != nil:
		return *a.BooleanValue == *b.BooleanValue
	}
	return false
}

func newTestFirestore(t *testing.T) (*FirestoreStore, *fakeFirestore) {
	fake := newFakeFirestore()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s := NewFirestoreStore(FirestoreConfig{
		ProjectID:    "demo",
		Collection:   "dinosaurs",
		EmulatorHost: strings.TrimPrefix(srv.URL, "http://"),
	}, staticToken("id-token-1"))
	return s, fake
}

func TestFirestoreStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestFirestore(t)

	d := &dinosaur.Dinosaur{Name: "Denosaur", Description: "Dinosaurs should be simple.", IsCool: dinosaur.Bool(true)}
	id, err := s.Create(ctx, d)
	require.NoError(t, err)
	require.Len(t, id, 20)
	require.Equal(t, id, d.ID)
	want, _ := time.Parse(time.RFC3339Nano, fake.stamp)
	require.NotNil(t, d.CreatedAt)
	require.True(t, want.Equal(*d.CreatedAt), "createdAt comes from the server transform")

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "Denosaur", list[0].Name)
	require.NotNil(t, list[0].IsCool)
	assert.True(t, *list[0].IsCool)
	require.NotNil(t, list[0].CreatedAt)
	assert.True(t, want.Equal(*list[0].CreatedAt))

	found, err := s.QueryByField(ctx, dinosaur.FieldName, OpEqual, "Denosaur")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, s.Update(ctx, id, dinosaur.Patch{IsCool: dinosaur.Bool(false)}))
	found, err = s.QueryByField(ctx, dinosaur.FieldID, OpEqual, id)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, *found[0].IsCool)
	assert.Equal(t, "Dinosaurs should be simple.", found[0].Description, "unmasked fields survive an update")

	require.NoError(t, s.Delete(ctx, id))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, h := range fake.auth {
		assert.Equal(t, "Bearer id-token-1", h)
	}
}

func TestFirestoreStore_ListWalksPages(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestFirestore(t)
	ids := map[string]bool{}
	for i := 0; i < 5; i++ {
		id, err := s.Create(ctx, &dinosaur.Dinosaur{Name: "n"})
		require.NoError(t, err)
		ids[id] = true
	}
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for _, d := range list {
		assert.True(t, ids[d.ID])
	}
}

func TestFirestoreStore_QueryEmptyResult(t *testing.T) {
	s, _ := newTestFirestore(t)
	got, err := s.QueryByField(context.Background(), dinosaur.FieldName, OpEqual, "nobody")
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = s.QueryByField(context.Background(), dinosaur.FieldID, OpEqual, "missing")
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = s.QueryByField(context.Background(), dinosaur.FieldName, "!=", "x")
	require.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestFirestoreStore_UpdateMissing(t *testing.T) {
	s, _ := newTestFirestore(t)
	err := s.Update(context.Background(), "missing", dinosaur.Patch{Name: dinosaur.String("x")})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Update(context.Background(), "missing", dinosaur.Patch{}), ErrEmptyPatch)
}

func TestFirestoreStore_DeleteUnknownIsNoop(t *testing.T) {
	s, _ := newTestFirestore(t)
	require.NoError(t, s.Delete(context.Background(), "never-created"))
}

func TestFirestoreStore_PermissionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Missing or insufficient permissions.","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()
	s := NewFirestoreStore(FirestoreConfig{ProjectID: "demo", EmulatorHost: srv.URL}, staticToken("t"))

	_, err := s.List(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", apiErr.Status)
	assert.Contains(t, err.Error(), "insufficient permissions")
}

func TestEncodeValue(t *testing.T) {
	v, err := encodeValue("rex")
	require.NoError(t, err)
	require.Equal(t, "rex", *v.StringValue)

	v, err = encodeValue(true)
	require.NoError(t, err)
	require.True(t, *v.BooleanValue)

	v, err = encodeValue(42)
	require.NoError(t, err)
	require.Equal(t, "42", *v.IntegerValue)

	v, err = encodeValue(nil)
	require.NoError(t, err)
	require.Equal(t, "NULL_VALUE", *v.NullValue)

	_, err = encodeValue([]string{"a"})
	require.Error(t, err)
}

func TestDecodeDocument_WithoutCreatedAt(t *testing.T) {
	name := "Rex"
	d, err := decodeDocument(&restDocument{
		Name:   "projects/demo/databases/(default)/documents/dinosaurs/legacy",
		Fields: map[string]value{dinosaur.FieldName: {StringValue: &name}},
	})
	require.NoError(t, err)
	assert.Equal(t, "legacy", d.ID)
	assert.Equal(t, "Rex", d.Name)
	assert.Nil(t, d.CreatedAt)
}

func TestNewFirestoreStore_EmulatorScheme(t *testing.T) {
	for host, want := range map[string]string{
		"localhost:8080":         "http://localhost:8080/v1",
		"http://localhost:8080":  "http://localhost:8080/v1",
		"https://fs.local:8080/": "https://fs.local:8080/v1",
	} {
		s := NewFirestoreStore(FirestoreConfig{ProjectID: "demo", EmulatorHost: host}, staticToken("t"))
		assert.Equal(t, want, s.baseURL, host)
	}
}
