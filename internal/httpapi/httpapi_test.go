package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/crdt"
	"github.com/neviim/ghostmesh/internal/node"
	"github.com/neviim/ghostmesh/internal/registry"
)

func newTestServer(t *testing.T) (*Server, chan node.Command) {
	t.Helper()
	log := crdt.New()
	log.Insert("hello")
	reg := registry.New("local-peer", log)
	commands := make(chan node.Command, 4)
	s := New(reg, commands, t.TempDir(), zap.NewNop())
	return s, commands
}

func TestHandleStateReturnsSnapshot(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "local-peer") {
		t.Fatalf("body missing local_peer_id: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "hello") {
		t.Fatalf("body missing log entry: %s", rec.Body.String())
	}
}

func TestHandleLogPushesCommand(t *testing.T) {
	s, commands := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/log", bytes.NewBufferString("abc"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	select {
	case cmd := <-commands:
		if cmd.Kind != node.CommandLog || cmd.Message != "abc" {
			t.Fatalf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected a command to be pushed")
	}
}

func TestHandleLogRejectsOversizedBody(t *testing.T) {
	s, _ := newTestServer(t)

	body := bytes.Repeat([]byte("a"), maxLogBody+1)
	req := httptest.NewRequest(http.MethodPost, "/api/log", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestHandleDMPushesCommand(t *testing.T) {
	s, commands := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/dm", strings.NewReader(`{"to":"peer-b","content":"hi"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	select {
	case cmd := <-commands:
		if cmd.Kind != node.CommandSendDM || cmd.To != "peer-b" || cmd.Content != "hi" {
			t.Fatalf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected a command to be pushed")
	}
}

func TestHandleDMRejectsInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/dm", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
