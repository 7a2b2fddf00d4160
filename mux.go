package webserver

// Handler handles a single request.
type Handler interface {
	// Takes a request and modifies the response.
	Handle(*Request, *Response)
}

// HandlerFunc is a function implementing Handler.
type HandlerFunc func(*Request, *Response)

func (h HandlerFunc) Handle(req *Request, resp *Response) {
	h(req, resp)
}

// Mux routes requests to handlers by (method, path).
type Mux interface {
	Handle(method, path string, h Handler)
	GetHandler(method, path string) Handler
	// HasPath reports whether any handler is registered for the path,
	// regardless of method.
	HasPath(path string) bool
}

type routeKey struct {
	method, path string
}

// MapMux is a Mux backed by a map keyed on exact (method, path) pairs.
type MapMux struct {
	handlers map[routeKey]Handler
	paths    map[string]bool
}

// NewMapMux creates a new MapMux.
func NewMapMux() MapMux {
	return MapMux{
		handlers: make(map[routeKey]Handler),
		paths:    make(map[string]bool),
	}
}

func (mm MapMux) Handle(method, path string, h Handler) {
	mm.handlers[routeKey{method, path}] = h
	mm.paths[path] = true
}

// HandleFunc adds a HandlerFunc for the given method and path.
func (mm MapMux) HandleFunc(method, path string, f func(*Request, *Response)) {
	mm.Handle(method, path, HandlerFunc(f))
}

func (mm MapMux) GetHandler(method, path string) Handler {
	return mm.handlers[routeKey{method, path}]
}

func (mm MapMux) HasPath(path string) bool {
	return mm.paths[path]
}
