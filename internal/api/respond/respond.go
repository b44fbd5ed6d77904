// Package respond provides shared response utilities for API handlers:
// table encoding as JSON or CSV, cache and ETag headers, and the error
// envelope.
package respond

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/normalize"
	"github.com/albapepper/understat-wrangler/internal/sink"
)

// Content types the API serves.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// ErrorResponse is the standard error shape for all API errors.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail,omitempty"`
	} `json:"error"`
}

// Response formats selected with ?format=.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ChoiceError reports a table selection a bundle cannot satisfy.
type ChoiceError struct {
	Status  int
	Message string
}

func (e *ChoiceError) Error() string { return e.Message }

// EncodeTable renders t as a JSON row array or as UTF-8 CSV.
func EncodeTable(t *normalize.Table, format string) ([]byte, string, error) {
	if format == FormatCSV {
		var buf bytes.Buffer
		if err := sink.WriteCSV(&buf, t, sink.EncodingUTF8); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), ContentTypeCSV, nil
	}
	data, err := t.MarshalJSON()
	if err != nil {
		return nil, "", err
	}
	return data, ContentTypeJSON, nil
}

// EncodeBundle renders a bundle. A single-table bundle, or the table picked
// by label, encodes as that table; otherwise JSON is an object of label to
// rows and CSV is refused. A bad label is a *ChoiceError.
func EncodeBundle(b *normalize.Bundle, format, label string) ([]byte, string, error) {
	var picked *normalize.Table
	switch {
	case label != "":
		t, ok := b.Get(label)
		if !ok {
			return nil, "", &ChoiceError{http.StatusNotFound,
				fmt.Sprintf("no table %q, have %s", label, strings.Join(b.Labels(), ", "))}
		}
		picked = t
	case b.Len() == 1:
		picked, _ = b.Get(b.Labels()[0])
	}
	if picked != nil {
		return EncodeTable(picked, format)
	}
	if format == FormatCSV {
		return nil, "", &ChoiceError{http.StatusBadRequest,
			"csv needs one table, pick one of " + strings.Join(b.Labels(), ", ")}
	}
	data, err := b.MarshalJSON()
	if err != nil {
		return nil, "", err
	}
	return data, ContentTypeJSON, nil
}

// ServeBody answers with 304 when the request's If-None-Match carries etag,
// otherwise writes the body.
func ServeBody(w http.ResponseWriter, r *http.Request, contentType string, data []byte, etag string, ttl time.Duration, cacheHit bool) {
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		WriteNotModified(w, etag)
		return
	}
	WriteBody(w, contentType, data, etag, ttl, cacheHit)
}

// WriteBody writes an already encoded body with cache and ETag headers.
func WriteBody(w http.ResponseWriter, contentType string, data []byte, etag string, ttl time.Duration, cacheHit bool) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Vary", "Accept-Encoding")
	setCacheHeaders(w, ttl, cacheHit)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// WriteNotModified sends a 304 with the matching ETag.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// WriteError sends a structured JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorDetail(w, status, code, message, "")
}

// WriteErrorDetail sends a structured error with additional detail.
func WriteErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	resp := ErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Detail = detail
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSONObject marshals a Go value to JSON and writes it.
// Used for health checks and listings that are never cached.
func WriteJSONObject(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func setCacheHeaders(w http.ResponseWriter, ttl time.Duration, cacheHit bool) {
	maxAge := int(ttl.Seconds())
	swr := maxAge / 2
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, swr))
}
