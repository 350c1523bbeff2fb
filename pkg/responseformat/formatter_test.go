package responseformat

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string           `json:"name"`
	Value Float            `json:"value"`
	Vals  map[string]Float `json:"vals"`
}

func TestWriteResponseJSON(t *testing.T) {
	f := NewFormatter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	p := payload{Name: "a", Value: Float(math.NaN()), Vals: Floats(map[string]float64{"x": 1.5})}
	if err := f.WriteResponse(rr, req, p, map[string]string{"Cache-Control": "no-cache"}); err != nil {
		t.Fatal(err)
	}
	if got := rr.Header().Get("Content-Type"); got != ContentTypeJSON {
		t.Errorf("content type = %q", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("cache control = %q", got)
	}
	want := `{"name":"a","value":null,"vals":{"x":1.5}}` + "\n"
	if rr.Body.String() != want {
		t.Errorf("body = %q, want %q", rr.Body.String(), want)
	}

	var back payload
	if err := json.Unmarshal(rr.Body.Bytes(), &back); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(float64(back.Value)) {
		t.Errorf("null decoded as %v", back.Value)
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	f := NewFormatter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs?format=msgpack", nil)
	if err := f.WriteResponse(rr, req, payload{Name: "b", Value: Float(math.NaN())}, nil); err != nil {
		t.Fatal(err)
	}
	if got := rr.Header().Get("Content-Type"); got != ContentTypeMsgPack {
		t.Errorf("content type = %q", got)
	}
	var back map[string]any
	if err := msgpack.Unmarshal(rr.Body.Bytes(), &back); err != nil {
		t.Fatal(err)
	}
	if back["name"] != "b" {
		t.Errorf("decoded = %v", back)
	}
	if v, ok := back["value"].(float64); !ok || !math.IsNaN(v) {
		t.Errorf("value = %#v, want NaN", back["value"])
	}
}

func TestWriteError(t *testing.T) {
	f := NewFormatter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/x", nil)
	if err := f.WriteError(rr, req, http.StatusNotFound, "run not found"); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Body.String() != `{"error":"run not found"}`+"\n" {
		t.Errorf("body = %q", rr.Body.String())
	}
}
