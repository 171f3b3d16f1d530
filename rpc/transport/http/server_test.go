package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/serializer"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

type mapHandler struct {
	mu       sync.Mutex
	data     map[string]string
	shutdown bool
}

func (h *mapHandler) sorted() []db.Pair {
	pairs := make([]db.Pair, 0, len(h.data))
	for k, v := range h.data {
		pairs = append(pairs, db.Pair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

func (h *mapHandler) Execute(_ context.Context, cmd command.Command) (common.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown && command.IsMutation(cmd) {
		return common.Response{}, store.ErrQueueClosed
	}
	switch c := cmd.(type) {
	case command.Put:
		h.data[c.Key] = c.Value
	case command.Delete:
		delete(h.data, c.Key)
	case command.Get:
		v, ok := h.data[c.Key]
		if !ok {
			return common.Response{}, store.NewError(store.RetCKeyNotFound, "key "+c.Key+" not found")
		}
		return common.Response{Kind: common.KindValue, Value: v}, nil
	case command.Range:
		pairs := []db.Pair{}
		for _, p := range h.sorted() {
			if p.Key >= c.Start && p.Key <= c.End {
				pairs = append(pairs, p)
			}
		}
		return common.Response{Kind: common.KindPairs, Pairs: pairs}, nil
	case command.Keys:
		keys := []string{}
		for _, p := range h.sorted() {
			if strings.Contains(p.Key, c.Needle) {
				keys = append(keys, p.Key)
			}
		}
		return common.Response{Kind: common.KindList, Items: keys}, nil
	case command.Amount:
		return common.Response{Kind: common.KindCount, Count: len(h.data)}, nil
	case command.DumpAll:
		return common.Response{Kind: common.KindPairs, Pairs: h.sorted()}, nil
	case command.Shutdown:
		h.shutdown = true
	}
	return common.Response{Kind: common.KindOK}, nil
}

func (h *mapHandler) Info() db.DatabaseInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return db.DatabaseInfo{Entries: len(h.data), DbType: db.ImplOrdered}
}

func newTestServer(t *testing.T) (*httptest.Server, *mapHandler) {
	t.Helper()
	h := &mapHandler{data: map[string]string{}}
	tr := &httpServerTransport{config: common.ServerConfig{LogLevel: "debug"}}
	tr.RegisterHandler(h)
	srv := httptest.NewServer(tr.Router())
	t.Cleanup(srv.Close)
	return srv, h
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return resp.StatusCode, string(data)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestKVRoutes(t *testing.T) {
	srv, h := newTestServer(t)

	tests := []struct {
		method   string
		path     string
		body     string
		status   int
		expected string
	}{
		{http.MethodPut, "/kv/a", "hello\nworld", http.StatusNoContent, ""},
		{http.MethodGet, "/kv/a", "", http.StatusOK, "hello\nworld"},
		{http.MethodPut, "/kv/dir/file", "nested", http.StatusNoContent, ""},
		{http.MethodGet, "/kv/dir/file", "", http.StatusOK, "nested"},
		{http.MethodPut, "/kv/with%20space", "x", http.StatusNoContent, ""},
		{http.MethodGet, "/kv/with%20space", "", http.StatusOK, "x"},
		{http.MethodDelete, "/kv/a", "", http.StatusNoContent, ""},
		{http.MethodDelete, "/kv/a", "", http.StatusNoContent, ""},
		{http.MethodGet, "/kv/a", "", http.StatusNotFound, ""},
		{http.MethodGet, "/kv/", "", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		status, body := do(t, tt.method, srv.URL+tt.path, tt.body)
		if status != tt.status {
			t.Errorf("%s %s: status %d, expected %d (%s)", tt.method, tt.path, status, tt.status, body)
		}
		if tt.expected != "" && body != tt.expected {
			t.Errorf("%s %s: body %q, expected %q", tt.method, tt.path, body, tt.expected)
		}
	}

	if _, ok := h.data["with space"]; !ok {
		t.Errorf("Expected the escaped key to be stored unescaped, got %v", h.data)
	}
}

func TestReadRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, k := range []string{"a", "b", "c"} {
		if status, _ := do(t, http.MethodPut, srv.URL+"/kv/"+k, "v"+k); status != http.StatusNoContent {
			t.Fatalf("put %s: status %d", k, status)
		}
	}

	var pairs []db.Pair
	status, body := do(t, http.MethodGet, srv.URL+"/range?start=a&end=b", "")
	if status != http.StatusOK {
		t.Fatalf("range: status %d", status)
	}
	if err := json.Unmarshal([]byte(body), &pairs); err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(pairs) != 2 || pairs[0] != (db.Pair{Key: "a", Value: "va"}) || pairs[1].Key != "b" {
		t.Errorf("range = %v", pairs)
	}

	if status, _ := do(t, http.MethodGet, srv.URL+"/range?start=a", ""); status != http.StatusBadRequest {
		t.Errorf("range without end: status %d, expected 400", status)
	}

	var keys []string
	_, body = do(t, http.MethodGet, srv.URL+"/keys", "")
	if err := json.Unmarshal([]byte(body), &keys); err != nil || len(keys) != 3 {
		t.Errorf("keys = %s (%v)", body, err)
	}

	var amount map[string]int
	_, body = do(t, http.MethodGet, srv.URL+"/amount", "")
	if err := json.Unmarshal([]byte(body), &amount); err != nil || amount["amount"] != 3 {
		t.Errorf("amount = %s (%v)", body, err)
	}

	var info db.DatabaseInfo
	_, body = do(t, http.MethodGet, srv.URL+"/info", "")
	if err := json.Unmarshal([]byte(body), &info); err != nil || info.Entries != 3 {
		t.Errorf("info = %s (%v)", body, err)
	}
}

func TestContentNegotiation(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, k := range []string{"a", "b"} {
		if status, _ := do(t, http.MethodPut, srv.URL+"/kv/"+k, "v\n"+k); status != http.StatusNoContent {
			t.Fatalf("put %s: status %d", k, status)
		}
	}

	expected := common.Response{Kind: common.KindPairs, Pairs: []db.Pair{{Key: "a", Value: "v\na"}, {Key: "b", Value: "v\nb"}}}
	for _, s := range []serializer.IResponseSerializer{
		serializer.NewJSONSerializer(),
		serializer.NewGOBSerializer(),
		serializer.NewBinarySerializer(),
	} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/dump", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Accept", s.ContentType())
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET /dump failed: %v", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}

		if ct := resp.Header.Get("Content-Type"); ct != s.ContentType() {
			t.Errorf("Content-Type = %q, expected %q", ct, s.ContentType())
		}
		var got common.Response
		if err := s.Deserialize(data, &got); err != nil {
			t.Errorf("%s: Deserialize failed: %v", s.ContentType(), err)
			continue
		}
		if !reflect.DeepEqual(got, expected) {
			t.Errorf("%s: response = %+v, expected %+v", s.ContentType(), got, expected)
		}
	}
}

func TestShutdownRejectsMutations(t *testing.T) {
	srv, _ := newTestServer(t)

	if status, _ := do(t, http.MethodPost, srv.URL+"/shutdown", ""); status != http.StatusAccepted {
		t.Fatalf("shutdown: status %d", status)
	}

	status, body := do(t, http.MethodPut, srv.URL+"/kv/a", "v")
	if status != http.StatusServiceUnavailable {
		t.Errorf("put after shutdown: status %d, expected 503", status)
	}
	var e errorBody
	if err := json.Unmarshal([]byte(body), &e); err != nil || e.Code != "QueueClosed" {
		t.Errorf("error body = %s (%v)", body, err)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := do(t, http.MethodGet, srv.URL+"/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("metrics: status %d", status)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Errorf("Expected process metrics in the output")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{store.ErrKeyNotFound, http.StatusNotFound},
		{store.ErrInvalidCommand, http.StatusBadRequest},
		{store.ErrQueueClosed, http.StatusServiceUnavailable},
		{store.ErrIoFailure, http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.expected {
			t.Errorf("statusOf(%v) = %d, expected %d", tt.err, got, tt.expected)
		}
	}
}
