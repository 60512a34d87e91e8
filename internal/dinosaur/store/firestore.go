package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/internal/dinosaur"
)

const (
	firestoreProductionURL = "https://firestore.googleapis.com/v1"
	listPageSize           = 300
)

// TokenSource hands out the bearer credential attached to every store call.
// It is satisfied by the anonymous identity client.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// FirestoreConfig selects the project, collection and endpoint of a FirestoreStore.
type FirestoreConfig struct {
	ProjectID  string
	Collection string
	// EmulatorHost is host:port of a local emulator; empty targets production.
	EmulatorHost string
	HTTPClient   *http.Client
}

// APIError is a non-2xx answer from the Firestore REST API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firestore: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// FirestoreStore implements Store over the Firestore REST API.
type FirestoreStore struct {
	client     *http.Client
	tokens     TokenSource
	baseURL    string
	database   string
	collection string
}

func NewFirestoreStore(cfg FirestoreConfig, tokens TokenSource) *FirestoreStore {
	base := firestoreProductionURL
	if cfg.EmulatorHost != "" {
		base = config.EmulatorURL(cfg.EmulatorHost) + "/v1"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "dinosaurs"
	}
	return &FirestoreStore{
		client:     client,
		tokens:     tokens,
		baseURL:    base,
		database:   "projects/" + cfg.ProjectID + "/databases/(default)/documents",
		collection: collection,
	}
}

type precondition struct {
	Exists *bool `json:"exists,omitempty"`
}

type fieldTransform struct {
	FieldPath        string `json:"fieldPath"`
	SetToServerValue string `json:"setToServerValue"`
}

type write struct {
	Update           *restDocument    `json:"update,omitempty"`
	CurrentDocument  *precondition    `json:"currentDocument,omitempty"`
	UpdateTransforms []fieldTransform `json:"updateTransforms,omitempty"`
}

type commitRequest struct {
	Writes []write `json:"writes"`
}

type commitResponse struct {
	WriteResults []struct {
		UpdateTime       string  `json:"updateTime"`
		TransformResults []value `json:"transformResults"`
	} `json:"writeResults"`
	CommitTime string `json:"commitTime"`
}

type listResponse struct {
	Documents     []restDocument `json:"documents"`
	NextPageToken string         `json:"nextPageToken"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type structuredQuery struct {
	From  []collectionSelector `json:"from"`
	Where struct {
		FieldFilter struct {
			Field fieldReference `json:"field"`
			Op    string         `json:"op"`
			Value value          `json:"value"`
		} `json:"fieldFilter"`
	} `json:"where"`
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type runQueryResult struct {
	Document *restDocument `json:"document"`
}

func (f *FirestoreStore) docName(id string) string {
	return f.database + "/" + f.collection + "/" + id
}

func (f *FirestoreStore) docURL(id string) string {
	return f.baseURL + "/" + f.database + "/" + url.PathEscape(f.collection) + "/" + url.PathEscape(id)
}

// Create writes the record through a commit so createdAt is stamped with
// the server request time.
func (f *FirestoreStore) Create(ctx context.Context, d *dinosaur.Dinosaur) (string, error) {
	id := NewID()
	exists := false
	req := commitRequest{Writes: []write{{
		Update:           &restDocument{Name: f.docName(id), Fields: encodeFields(d)},
		CurrentDocument:  &precondition{Exists: &exists},
		UpdateTransforms: []fieldTransform{{FieldPath: dinosaur.FieldCreatedAt, SetToServerValue: "REQUEST_TIME"}},
	}}}
	var resp commitResponse
	if err := f.do(ctx, http.MethodPost, f.baseURL+"/"+f.database+":commit", req, &resp); err != nil {
		return "", fmt.Errorf("create %s: %w", f.collection, err)
	}

	stamp := resp.CommitTime
	if len(resp.WriteResults) > 0 && len(resp.WriteResults[0].TransformResults) > 0 {
		if ts := resp.WriteResults[0].TransformResults[0].TimestampValue; ts != nil {
			stamp = *ts
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
		d.CreatedAt = &ts
	}
	d.ID = id
	return id, nil
}

// List walks every page of the collection.
func (f *FirestoreStore) List(ctx context.Context) ([]*dinosaur.Dinosaur, error) {
	out := []*dinosaur.Dinosaur{}
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(listPageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page listResponse
		u := f.baseURL + "/" + f.database + "/" + url.PathEscape(f.collection) + "?" + q.Encode()
		if err := f.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", f.collection, err)
		}
		for i := range page.Documents {
			d, err := decodeDocument(&page.Documents[i])
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (f *FirestoreStore) Update(ctx context.Context, id string, p dinosaur.Patch) error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	q := url.Values{}
	for _, field := range p.Fields() {
		q.Add("updateMask.fieldPaths", field)
	}
	q.Set("currentDocument.exists", "true")
	err := f.do(ctx, http.MethodPatch, f.docURL(id)+"?"+q.Encode(), restDocument{Fields: encodePatch(p)}, nil)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", f.collection, id, err)
	}
	return nil
}

// Delete succeeds whether or not the document exists.
func (f *FirestoreStore) Delete(ctx context.Context, id string) error {
	if err := f.do(ctx, http.MethodDelete, f.docURL(id), nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", f.collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) QueryByField(ctx context.Context, field, op string, v interface{}) ([]*dinosaur.Dinosaur, error) {
	if err := checkOperator(op); err != nil {
		return nil, err
	}
	if field == dinosaur.FieldID {
		return f.getByID(ctx, v)
	}
	encoded, err := encodeValue(v)
	if err != nil {
		return nil, err
	}

	var req runQueryRequest
	req.StructuredQuery.From = []collectionSelector{{CollectionID: f.collection}}
	req.StructuredQuery.Where.FieldFilter.Field = fieldReference{FieldPath: field}
	req.StructuredQuery.Where.FieldFilter.Op = "EQUAL"
	req.StructuredQuery.Where.FieldFilter.Value = encoded

	var results []runQueryResult
	if err := f.do(ctx, http.MethodPost, f.baseURL+"/"+f.database+":runQuery", req, &results); err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", f.collection, field, err)
	}
	out := []*dinosaur.Dinosaur{}
	for _, r := range results {
		// results without a document only carry the read time
		if r.Document == nil {
			continue
		}
		d, err := decodeDocument(r.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// getByID answers an id equality query with a direct document read.
func (f *FirestoreStore) getByID(ctx context.Context, v interface{}) ([]*dinosaur.Dinosaur, error) {
	id, ok := v.(string)
	if !ok || id == "" || strings.Contains(id, "/") {
		return []*dinosaur.Dinosaur{}, nil
	}
	var doc restDocument
	err := f.do(ctx, http.MethodGet, f.docURL(id), nil, &doc)
	if isNotFound(err) {
		return []*dinosaur.Dinosaur{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", f.collection, id, err)
	}
	d, err := decodeDocument(&doc)
	if err != nil {
		return nil, err
	}
	return []*dinosaur.Dinosaur{d}, nil
}

func (f *FirestoreStore) do(ctx context.Context, method, u string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.tokens != nil {
		tok, err := f.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func decodeAPIError(status int, data []byte) error {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Status: http.StatusText(status), Message: strings.TrimSpace(string(data))}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		if envelope.Error.Status != "" {
			apiErr.Status = envelope.Error.Status
		}
	}
	return apiErr
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
