package tee

import (
	"net/http"
	"time"
)

// ResponseRecorder is a wrapper around http.ResponseWriter that remembers what was
// written through it: status code, body size and whether the headers went out.
type ResponseRecorder struct {
	rw           http.ResponseWriter
	status       int
	size         int
	wroteHeaders bool
	CreatedAt    time.Time
}

// Implementation of http.ResponseWriter
func (t *ResponseRecorder) Header() http.Header {
	return t.rw.Header()
}

// Implementation of http.ResponseWriter
func (t *ResponseRecorder) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	// remember that we wrote the headers
	t.wroteHeaders = true
	// set the status code so we can return it later
	t.status = statusCode
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *ResponseRecorder) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	n, err := t.rw.Write(b)
	t.size += n
	return n, err
}

// Flush implements http.Flusher when the underlying writer does.
func (t *ResponseRecorder) Flush() {
	if f, ok := t.rw.(http.Flusher); ok {
		if !t.wroteHeaders {
			t.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// WroteHeaders reports whether the response has been started.
func (t *ResponseRecorder) WroteHeaders() bool {
	return t.wroteHeaders
}

// StatusCode returns the status code of the response, zero if nothing was written.
func (t *ResponseRecorder) StatusCode() int {
	return t.status
}

// Size returns the number of body bytes written.
func (t *ResponseRecorder) Size() int {
	return t.size
}

// NewResponseRecorder returns a new ResponseRecorder writing to w.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{
		CreatedAt: time.Now(),
		rw:        w,
	}
}
