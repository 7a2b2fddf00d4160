package webserver

import (
	"net/http"
	"testing"
)

func TestMapMux(t *testing.T) {
	mm := NewMapMux()
	mm.HandleFunc(http.MethodGet, "/status", func(_ *Request, resp *Response) {
		resp.SetBodyString("status")
	})
	mm.HandleFunc(http.MethodPost, "/task", func(_ *Request, resp *Response) {
		resp.SetBodyString("task")
	})

	h := mm.GetHandler(http.MethodGet, "/status")
	if h == nil {
		t.Fatal("expected handler for GET /status")
	}
	resp := newResponse()
	h.Handle(nil, resp)
	ExpectEqual(t, "status", resp.BodyString())

	if mm.GetHandler(http.MethodPost, "/status") != nil {
		t.Error("expected no handler for POST /status")
	}
	if mm.GetHandler(http.MethodGet, "/nope") != nil {
		t.Error("expected no handler for GET /nope")
	}
	ExpectEqual(t, true, mm.HasPath("/status"))
	ExpectEqual(t, true, mm.HasPath("/task"))
	ExpectEqual(t, false, mm.HasPath("/nope"))
}
