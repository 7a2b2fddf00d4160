package webserver

import (
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// StatusPath is the liveness-check endpoint.
	StatusPath = "/status"
	// TaskPath is the multiplication-task endpoint.
	TaskPath = "/task"
)

// New creates a server listening on the given port with the status and task
// endpoints registered.
func New(port uint16) *Server {
	srvr := NewServer(fmt.Sprintf(":%d", port))
	srvr.HandleFunc(http.MethodGet, StatusPath, StatusHandler)
	srvr.HandleFunc(http.MethodPost, TaskPath, TaskHandler)
	return srvr
}

// StatusHandler answers liveness checks.
func StatusHandler(_ *Request, resp *Response) {
	resp.SetBodyString("Server is alive")
}

// TaskHandler multiplies the comma-separated integers in the request body and
// responds with the product. An "X-Test: true" header short-circuits with a
// placeholder response before the body is touched. An "X-Debug: true" header
// attaches the time spent reading and multiplying, in whole milliseconds, as
// an "X-Debug-Message" header. A body that doesn't parse aborts the
// connection.
func TaskHandler(req *Request, resp *Response) {
	if strings.EqualFold(req.Headers.Get("X-Test"), "true") {
		resp.SetBodyString("Dummy response")
		return
	}
	debugMode := strings.EqualFold(req.Headers.Get("X-Debug"), "true")

	startTime := time.Now()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		resp.Abort(errors.Wrap(err, "failed to read request body"))
		return
	}
	result, err := multiplyOperands(string(body))
	if err != nil {
		resp.Abort(err)
		return
	}
	elapsed := time.Since(startTime)

	if debugMode {
		resp.Headers.Set(
			"X-Debug-Message",
			fmt.Sprintf("Request took %d ms", elapsed.Milliseconds()),
		)
	}
	resp.SetBodyString(fmt.Sprintf("Result of the multiplication %s", result))
}

// multiplyOperands parses `body` as a comma-separated list of signed decimal
// integers and returns their product. Substrings are parsed as-is, with no
// trimming; an empty substring is an error.
func multiplyOperands(body string) (*big.Int, error) {
	result := big.NewInt(1)
	operand := new(big.Int)
	for _, number := range strings.Split(body, ",") {
		if _, ok := operand.SetString(number, 10); !ok {
			return nil, errors.Errorf("invalid operand: %q", number)
		}
		result.Mul(result, operand)
	}
	return result, nil
}
