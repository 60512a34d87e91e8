package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/denosaur/dinosaurs/internal/dinosaur"
	"github.com/denosaur/dinosaurs/internal/dinosaur/store"
)

const (
	collectionPath = "/api/dinosaurs"
	itemPrefix     = collectionPath + "/"
	maxBodyBytes   = 1 << 20
)

// Response is a JSON answer produced by a route.
type Response struct {
	Status int
	Body   interface{}
}

// Outcome is the result of routing one request: either a Response or
// "not matched", in which case the caller falls through to static files.
type Outcome struct {
	matched  bool
	Response Response
}

// NotMatched is the outcome for requests that are not API routes.
func NotMatched() Outcome { return Outcome{} }

// Matched wraps a response produced by a route.
func Matched(status int, body interface{}) Outcome {
	return Outcome{matched: true, Response: Response{Status: status, Body: body}}
}

func (o Outcome) IsMatched() bool { return o.matched }

// Router dispatches the dinosaur REST routes on method and path.
type Router struct {
	store store.Store
}

func NewRouter(s store.Store) *Router {
	return &Router{store: s}
}

// Route inspects the request and runs the matching handler. Store failures
// are returned as errors; they are never turned into a JSON response here.
func (rt *Router) Route(r *http.Request) (Outcome, error) {
	path := r.URL.Path
	switch {
	case path == collectionPath && r.Method == http.MethodGet:
		return rt.list(r)
	case path == collectionPath && r.Method == http.MethodPost:
		return rt.create(r)
	case strings.HasPrefix(path, itemPrefix) && r.Method == http.MethodDelete:
		// the id is taken from the decoded path, so "a%20b" names "a b"
		id := strings.TrimPrefix(path, itemPrefix)
		if id == "" || strings.Contains(id, "/") {
			return NotMatched(), nil
		}
		return rt.delete(r, id)
	}
	return NotMatched(), nil
}

func (rt *Router) list(r *http.Request) (Outcome, error) {
	items, err := rt.store.List(r.Context())
	if err != nil {
		return Outcome{}, err
	}
	if items == nil {
		items = []*dinosaur.Dinosaur{}
	}
	return Matched(http.StatusOK, items), nil
}

func (rt *Router) create(r *http.Request) (Outcome, error) {
	body := decodeObject(r.Body)
	name, _ := body[dinosaur.FieldName].(string)
	description, _ := body[dinosaur.FieldDescription].(string)

	d := &dinosaur.Dinosaur{Name: name, Description: description}
	if err := d.Validate(); err != nil {
		return Matched(http.StatusBadRequest, map[string]string{"error": err.Error()}), nil
	}
	id, err := rt.store.Create(r.Context(), d)
	if err != nil {
		return Outcome{}, err
	}
	return Matched(http.StatusCreated, map[string]string{"id": id}), nil
}

// delete reports success without checking that the id existed.
func (rt *Router) delete(r *http.Request, id string) (Outcome, error) {
	if err := rt.store.Delete(r.Context(), id); err != nil {
		return Outcome{}, err
	}
	return Matched(http.StatusOK, map[string]bool{"ok": true}), nil
}

// decodeObject reads a JSON object body; anything unparsable, including a
// valid value followed by trailing bytes, is an empty object.
func decodeObject(body io.Reader) map[string]interface{} {
	out := map[string]interface{}{}
	if body == nil {
		return out
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}
