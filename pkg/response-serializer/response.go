package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Snapshot is a fully buffered response, as kept in a store.
type Snapshot struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// The value of the clock when the snapshot was put in a store.
	// Zero for snapshots that were never stored.
	StoredAt time.Time
}

// New creates a snapshot with a plain text body.
func New(statusCode int, body string) *Snapshot {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &Snapshot{
		StatusCode: statusCode,
		Header:     header,
		Body:       []byte(body),
	}
}

// FromResponse reads the response body to the end and closes it.
func FromResponse(res *http.Response) (*Snapshot, error) {
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Snapshot{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Body:       body,
	}, nil
}

// OK reports whether the status is in the 2xx range.
func (s *Snapshot) OK() bool {
	return s.StatusCode >= 200 && s.StatusCode < 300
}

// Bytes returns the HTTP/1.1 representation of the snapshot.
func (s *Snapshot) Bytes() ([]byte, error) {
	res := &http.Response{
		StatusCode:    s.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        s.Header,
		ContentLength: int64(len(s.Body)),
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
	}
	if res.Header == nil {
		res.Header = http.Header{}
	}
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse reads a snapshot from its HTTP/1.1 representation.
func Parse(b []byte) (*Snapshot, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, err
	}
	return FromResponse(res)
}

// Send writes the snapshot to the client.
func (s *Snapshot) Send(w http.ResponseWriter) error {
	copyHeader(w.Header(), s.Header)
	w.Header().Set("Content-Length", strconv.Itoa(len(s.Body)))
	w.WriteHeader(s.StatusCode)
	_, err := w.Write(s.Body)
	return err
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		if k == "Content-Length" {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
