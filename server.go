package webserver

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	utils "github.com/johnietre/utils/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

const (
	// DefaultNumWorkers is the default number of connections handled
	// concurrently.
	DefaultNumWorkers = 8
	// DefaultMaxBodyLen is the default max body length for requests.
	DefaultMaxBodyLen int64 = 1 << 22
)

// Server is an HTTP/1.1 server.
type Server struct {
	// Addr is the address the server runs on.
	Addr string

	// Mux is the multiplexer used to get handlers.
	Mux Mux

	// Logger is the logger the server logs to.
	Logger *logrus.Logger

	// NumWorkers is the number of connections handled concurrently. Further
	// accepted connections wait until one of the workers frees up. If 0,
	// uses DefaultNumWorkers.
	NumWorkers int

	// MaxBodyLen is the maximum body length accepted. If 0, uses
	// DefaultMaxBodyLen. If < 0, the max length is 1<<63 - 1.
	MaxBodyLen int64

	ln    net.Listener
	conns *utils.Mutex[map[string]net.Conn]
}

// NewServer creates a new server.
func NewServer(addr string) *Server {
	return &Server{
		Addr:       addr,
		Mux:        NewMapMux(),
		Logger:     logrus.StandardLogger(),
		NumWorkers: DefaultNumWorkers,
		MaxBodyLen: DefaultMaxBodyLen,
		conns:      utils.NewMutex(make(map[string]net.Conn)),
	}
}

// Handle adds a handler to the Mux for the given method and path.
func (s *Server) Handle(method, path string, h Handler) {
	s.Mux.Handle(method, path, h)
}

// HandleFunc adds a HandlerFunc to the Mux for the given method and path.
func (s *Server) HandleFunc(method, path string, h func(*Request, *Response)) {
	s.Mux.Handle(method, path, HandlerFunc(h))
}

// Listen binds the listening socket. The listener caps the number of
// concurrently handled connections at NumWorkers; connections beyond that
// queue in the accept backlog.
func (s *Server) Listen() error {
	if s.Logger == nil {
		s.Logger = logrus.StandardLogger()
	}
	if s.NumWorkers == 0 {
		s.NumWorkers = DefaultNumWorkers
	}
	if s.MaxBodyLen == 0 {
		s.MaxBodyLen = DefaultMaxBodyLen
	} else if s.MaxBodyLen < 0 {
		s.MaxBodyLen = 1<<63 - 1
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to bind %s", s.Addr)
	}
	s.ln = netutil.LimitListener(ln, s.NumWorkers)
	return nil
}

// ListenerAddr returns the address the bound listener is on, or nil if
// Listen has not been called.
func (s *Server) ListenerAddr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(c)
	}
}

// Run runs the server.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Close closes the listener and all open connections. In-flight handlers are
// not waited for.
func (s *Server) Close() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.conns.Apply(func(mp *map[string]net.Conn) {
		for _, conn := range *mp {
			conn.Close()
		}
		*mp = make(map[string]net.Conn)
	})
	return err
}

func (s *Server) handle(conn net.Conn) {
	id := uuid.NewString()
	s.conns.Apply(func(mp *map[string]net.Conn) {
		(*mp)[id] = conn
	})
	logger := s.Logger.WithFields(logrus.Fields{
		"conn":   id,
		"remote": conn.RemoteAddr().String(),
	})
	logger.Debug("connection accepted")
	defer func() {
		conn.Close()
		s.conns.Apply(func(mp *map[string]net.Conn) {
			delete(*mp, id)
		})
		logger.Debug("connection closed")
	}()

	br := bufio.NewReader(conn)
	for {
		req, err := RequestFromReader(br, s.MaxBodyLen)
		if err != nil {
			if err != io.EOF {
				logger.WithField("err", err).Warn("dropping connection on bad request")
			}
			return
		}
		req.RemoteAddr = conn.RemoteAddr().String()
		logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
		}).Debug("request received")

		resp := newResponse()
		if handler := s.Mux.GetHandler(req.Method, req.Path); handler != nil {
			handler.Handle(req, resp)
		} else if s.Mux.HasPath(req.Path) {
			// Known path, wrong method. Dropped without any response bytes.
			logger.WithFields(logrus.Fields{
				"method": req.Method,
				"path":   req.Path,
			}).Warn("method not allowed, dropping connection")
			return
		} else {
			resp.StatusCode = http.StatusNotFound
			resp.SetBodyString("Not Found")
		}
		if resp.Aborted() {
			if reason := resp.AbortReason(); reason != nil {
				logger.WithField("err", reason).Warn("handler aborted connection")
			}
			return
		}
		if _, err := resp.WriteTo(conn); err != nil {
			logger.WithField("err", err).Warn("failed to write response")
			return
		}
		// Drain whatever the handler left unread so the next request starts
		// at a clean boundary.
		if _, err := io.Copy(io.Discard, req.Body); err != nil {
			logger.WithField("err", err).Warn("failed to drain request body")
			return
		}
		if strings.EqualFold(req.Headers.Get("Connection"), "close") {
			return
		}
	}
}
