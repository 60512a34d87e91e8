package api

import (
	"encoding/json"
	"net/http"
)

const jsonContentType = "application/json; charset=utf-8"

// WriteJSON serializes v as the response body. A zero status means 200.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	if status == 0 {
		status = http.StatusOK
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}

// Write sends a matched outcome's response.
func (o Outcome) Write(w http.ResponseWriter) error {
	return WriteJSON(w, o.Response.Status, o.Response.Body)
}
