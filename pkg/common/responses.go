package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	pkgerrors "blogify/pkg/errors"
)

// APIResponse is the envelope every successful JSON response is sent in.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Page      *CursorInfo `json:"page,omitempty"`
}

// CursorInfo describes a cursor-paginated list.
type CursorInfo struct {
	HasMore   bool   `json:"has_more"`
	EndCursor string `json:"end_cursor,omitempty"`
}

// RespondJSON sends data in the standard envelope.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	RespondWithMeta(w, r, status, data, nil)
}

// RespondWithMeta sends data with page metadata. Request id and timestamp
// are filled in here.
func RespondWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, page *CursorInfo) {
	meta := &MetaInfo{Timestamp: time.Now().UTC().Format(time.RFC3339), Page: page}
	if id, ok := GetRequestID(r.Context()); ok {
		meta.RequestID = id
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// DecodeJSONBody decodes a request body of at most maxBytes into v,
// rejecting unknown fields. Failures are validation errors.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return pkgerrors.NewValidationError("request body is empty")
		case errors.As(err, &tooLarge):
			return pkgerrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		default:
			return pkgerrors.NewValidationError("malformed JSON body").WithCause(err)
		}
	}
	return nil
}
