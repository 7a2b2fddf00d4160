package webserver

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read should not have been called")
}

func newTestRequest(method, path string, headers map[string]string, body string) *Request {
	h := NewHeaders()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &Request{
		Method:        method,
		URI:           path,
		Path:          path,
		Proto:         "HTTP/1.1",
		Headers:       h,
		Body:          strings.NewReader(body),
		ContentLength: int64(len(body)),
	}
}

func TestStatusHandler(t *testing.T) {
	resp := newResponse()
	StatusHandler(newTestRequest("GET", StatusPath, nil, ""), resp)
	ExpectEqual(t, false, resp.Aborted())
	ExpectEqual(t, "Server is alive", resp.BodyString())
}

func TestTaskHandlerProduct(t *testing.T) {
	bigProduct := new(big.Int).Mul(
		mustBig(t, "123456789123456789"),
		mustBig(t, "-987654321987654321"),
	)
	for _, tc := range []struct {
		body, result string
	}{
		{"3,4,5", "60"},
		{"7", "7"},
		{"-3,4", "-12"},
		{"0,999", "0"},
		{"123456789123456789,-987654321987654321", bigProduct.String()},
	} {
		resp := newResponse()
		TaskHandler(newTestRequest("POST", TaskPath, nil, tc.body), resp)
		ExpectEqual(t, false, resp.Aborted())
		ExpectEqual(t, "Result of the multiplication "+tc.result, resp.BodyString())
	}
}

func TestTaskHandlerMalformed(t *testing.T) {
	for _, body := range []string{
		"",
		"abc",
		"3,x,5",
		"3,4,",
		"3, 4",
		",",
	} {
		resp := newResponse()
		TaskHandler(newTestRequest("POST", TaskPath, nil, body), resp)
		if !resp.Aborted() {
			t.Errorf("expected abort for body %q", body)
		}
		if resp.AbortReason() == nil {
			t.Errorf("expected abort reason for body %q", body)
		}
	}
}

func TestTaskHandlerTestMode(t *testing.T) {
	for _, value := range []string{"true", "TRUE", "True"} {
		req := newTestRequest("POST", TaskPath, map[string]string{"X-Test": value}, "")
		req.Body = failingReader{}
		resp := newResponse()
		TaskHandler(req, resp)
		ExpectEqual(t, false, resp.Aborted())
		ExpectEqual(t, "Dummy response", resp.BodyString())
	}

	// Any other value does not short-circuit.
	req := newTestRequest("POST", TaskPath, map[string]string{"X-Test": "false"}, "2,3")
	resp := newResponse()
	TaskHandler(req, resp)
	ExpectEqual(t, "Result of the multiplication 6", resp.BodyString())
}

func TestTaskHandlerDebugMode(t *testing.T) {
	req := newTestRequest("POST", TaskPath, map[string]string{"x-debug": "True"}, "6,7")
	resp := newResponse()
	TaskHandler(req, resp)
	ExpectEqual(t, false, resp.Aborted())
	ExpectEqual(t, "Result of the multiplication 42", resp.BodyString())
	msg, ok := resp.Headers.GetChecked("X-Debug-Message")
	if !ok {
		t.Fatal("expected X-Debug-Message header")
	}
	if !regexp.MustCompile(`^Request took \d+ ms$`).MatchString(msg) {
		t.Errorf("unexpected debug message: %q", msg)
	}
}

func TestTaskHandlerTestModeBeatsDebugMode(t *testing.T) {
	req := newTestRequest("POST", TaskPath, map[string]string{
		"X-Test":  "true",
		"X-Debug": "true",
	}, "2,3")
	resp := newResponse()
	TaskHandler(req, resp)
	ExpectEqual(t, "Dummy response", resp.BodyString())
	if _, ok := resp.Headers.GetChecked("X-Debug-Message"); ok {
		t.Error("expected no X-Debug-Message header in test mode")
	}
}

func TestTaskHandlerNoDebugHeaderByDefault(t *testing.T) {
	resp := newResponse()
	TaskHandler(newTestRequest("POST", TaskPath, nil, "2,3"), resp)
	if _, ok := resp.Headers.GetChecked("X-Debug-Message"); ok {
		t.Error("expected no X-Debug-Message header")
	}
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("invalid integer: %q", s)
	}
	return n
}
