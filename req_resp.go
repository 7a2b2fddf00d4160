package webserver

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	utils "github.com/johnietre/utils/go"
	"github.com/pkg/errors"
)

var (
	// ErrBodyTooLarge means a request body is longer than the server's
	// maximum, whether declared up front or discovered while reading a
	// chunked body.
	ErrBodyTooLarge = fmt.Errorf("body too large")
)

// Headers represents request or response headers. Keys are case-insensitive;
// a header that appears multiple times on the wire keeps its first value.
// Iteration and serialization follow insertion order.
type Headers struct {
	m     map[string]string
	order []string
}

// NewHeaders creates a new, empty Headers.
func NewHeaders() *Headers {
	return &Headers{m: make(map[string]string)}
}

// Get gets the value for the given key, or returns "".
func (h *Headers) Get(key string) string {
	v, _ := h.GetChecked(key)
	return v
}

// GetChecked is the same as Headers.Get but returns false if the key doesn't
// exist.
func (h *Headers) GetChecked(key string) (string, bool) {
	v, ok := h.m[strings.ToLower(key)]
	return v, ok
}

// Set sets the value for the given key, overwriting any prior value.
func (h *Headers) Set(key, value string) {
	key = strings.ToLower(key)
	if _, ok := h.m[key]; !ok {
		h.order = append(h.order, key)
	}
	h.m[key] = value
}

// SetIfAbsent sets the value for the given key only if the key is not already
// present, returning whether the value was set.
func (h *Headers) SetIfAbsent(key, value string) bool {
	key = strings.ToLower(key)
	if _, ok := h.m[key]; ok {
		return false
	}
	h.order = append(h.order, key)
	h.m[key] = value
	return true
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.m)
}

// Keys returns the header keys (lower-cased) in insertion order.
func (h *Headers) Keys() []string {
	return utils.CloneSlice(h.order)
}

// Range iterates through the headers in insertion order, passing each
// key-value pair to `f`. If `f` returns false, iteration stops.
func (h *Headers) Range(f func(string, string) bool) {
	for _, k := range h.order {
		if !f(k, h.m[k]) {
			break
		}
	}
}

// Request is a request received.
type Request struct {
	// Method is the request method, e.g., "GET".
	Method string
	// URI is the raw request target as sent on the request line.
	URI string
	// Path is the URI with any query string removed. Routing matches on this.
	Path string
	// Proto is the protocol version, e.g., "HTTP/1.1".
	Proto string
	// Headers are the request headers.
	Headers *Headers
	// Body reads the request body. It yields io.EOF at the end of the
	// declared body; it never reads past it.
	Body io.Reader
	// ContentLength is the declared body length, or -1 for a chunked body.
	ContentLength int64
	// RemoteAddr is the remote address of the client.
	RemoteAddr string
}

// RequestFromReader reads a request from the reader and returns it. The
// returned request's body is not consumed; it is read from `r` on demand.
// io.EOF is returned unwrapped if the connection ends cleanly before a
// request line.
func RequestFromReader(r *bufio.Reader, maxBodyLen int64) (*Request, error) {
	line, err := readLine(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "failed to read request line")
	}
	fields := strings.Split(line, " ")
	if len(fields) != 3 {
		return nil, errors.Errorf("invalid request line: %q", line)
	}
	req := &Request{
		Method:  fields[0],
		URI:     fields[1],
		Proto:   fields[2],
		Headers: NewHeaders(),
	}
	req.Path = req.URI
	if i := strings.IndexByte(req.URI, '?'); i != -1 {
		req.Path = req.URI[:i]
	}
	if err := readHeaders(r, req.Headers); err != nil {
		return nil, err
	}

	if strings.EqualFold(req.Headers.Get("Transfer-Encoding"), "chunked") {
		req.ContentLength = -1
		req.Body = &maxBodyReader{r: NewChunkedReader(r), left: maxBodyLen}
		return req, nil
	}
	if cl, ok := req.Headers.GetChecked("Content-Length"); ok {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid Content-Length: %q", cl)
		}
		if n > maxBodyLen {
			return nil, ErrBodyTooLarge
		}
		req.ContentLength = n
		req.Body = io.LimitReader(r, n)
		return req, nil
	}
	req.Body = strings.NewReader("")
	return req, nil
}

// maxBodyReader yields ErrBodyTooLarge once more than `left` bytes have been
// read. A body whose undeclared length exceeds the server's maximum is an
// error, not a truncation.
type maxBodyReader struct {
	r    io.Reader
	left int64
}

func (m *maxBodyReader) Read(b []byte) (int, error) {
	n, err := m.r.Read(b)
	m.left -= int64(n)
	if m.left < 0 {
		return 0, ErrBodyTooLarge
	}
	return n, err
}

// Similar to readLineSlice() in net/textproto/reader.go.
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		l, more, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if line == nil && !more {
			return string(l), nil
		}
		line = append(line, l...)
		if !more {
			break
		}
	}
	return string(line), nil
}

func readHeaders(r *bufio.Reader, headers *Headers) error {
	for {
		line, err := readLine(r)
		if err != nil {
			return errors.Wrap(err, "failed to read headers")
		}
		if len(line) == 0 {
			return nil
		}
		fs := strings.SplitN(line, ":", 2)
		if len(fs) != 2 {
			return errors.Errorf("invalid header format: %q", line)
		}
		// A repeated header keeps its first value.
		headers.SetIfAbsent(strings.TrimSpace(fs[0]), strings.TrimSpace(fs[1]))
	}
}

// Response is a response to be sent. It is written back to the client after
// the handler returns; handlers should not hold it after returning.
type Response struct {
	// StatusCode is the status code of the response.
	StatusCode int
	// Headers is the headers to be sent back. Content-Length is set
	// automatically from the body when the response is written.
	Headers *Headers
	body    []byte

	abortErr error
	aborted  bool
}

func newResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    NewHeaders(),
	}
}

// SetBodyString sets the body to the specified string.
func (r *Response) SetBodyString(s string) {
	r.body = []byte(s)
}

// SetBodyBytes sets the body to a copy of the specified bytes.
func (r *Response) SetBodyBytes(b []byte) {
	r.body = utils.CloneSlice(b)
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.body)
}

// Abort marks the connection to be dropped without writing any response
// bytes. The reason, which may be nil, is logged by the server.
func (r *Response) Abort(reason error) {
	r.aborted, r.abortErr = true, reason
}

// Aborted returns whether Abort was called.
func (r *Response) Aborted() bool {
	return r.aborted
}

// AbortReason returns the reason passed to Abort, if any.
func (r *Response) AbortReason() error {
	return r.abortErr
}

// WriteTo writes the response to the writer: status line, headers in
// insertion order, Content-Length, then the body. This is called internally
// when writing a response back to a client.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := fmt.Appendf(nil, "HTTP/1.1 %d %s\r\n", r.StatusCode, http.StatusText(r.StatusCode))
	r.Headers.Range(func(k, v string) bool {
		buf = fmt.Appendf(buf, "%s: %s\r\n", capitalizeHeader(k), v)
		return true
	})
	buf = fmt.Appendf(buf, "Content-Length: %d\r\n\r\n", len(r.body))
	buf = append(buf, r.body...)
	return utils.WriteAll(w, buf)
}

func capitalizeHeader(h string) string {
	ret := make([]rune, 0, len(h))
	cap := true
	for _, r := range h {
		if cap && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
			cap = false
		}
		if r == '-' {
			cap = true
		}
		ret = append(ret, r)
	}
	return string(ret)
}
