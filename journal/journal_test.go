package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/pagewright/mutation"
)

func testBatch() mutation.Batch {
	return mutation.Batch{
		ID:       "b1",
		Action:   mutation.ActionApply,
		Seq:      1,
		Revision: 1,
		Records: []mutation.Record{
			{Op: mutation.OpStyle, Target: "n3", Name: "Style", Old: "", New: "color: red", Docs: []string{"edit"}},
		},
	}
}

type decoded struct {
	Type string         `json:"type"`
	Data mutation.Batch `json:"data"`
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.Send(context.Background(), testBatch()); err != nil {
		t.Fatal(err)
	}
	var got decoded
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got.Type != "batch" || got.Data.ID != "b1" || len(got.Data.Records) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestRouter_FanOutFirstError(t *testing.T) {
	var calls atomic.Int32
	errA := errors.New("a failed")
	r := NewRouter(nil,
		NewCallback(func(context.Context, mutation.Batch) error { calls.Add(1); return errA }),
		NewCallback(func(context.Context, mutation.Batch) error { calls.Add(1); return errors.New("b failed") }),
		NewCallback(nil),
	)
	err := r.Send(context.Background(), testBatch())
	if !errors.Is(err, errA) {
		t.Errorf("got %v, want first error", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls: got %d, want 2", calls.Load())
	}
}

func TestListener(t *testing.T) {
	var got []string
	l := Listener(context.Background(), NewCallback(func(_ context.Context, b mutation.Batch) error {
		got = append(got, b.ID)
		return errors.New("logged, not returned")
	}), nil)
	l(testBatch())
	if len(got) != 1 || got[0] != "b1" {
		t.Errorf("got %v", got)
	}
}

func TestWebhook_Retry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: %q", r.Header.Get("Content-Type"))
		}
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := w.Send(context.Background(), testBatch()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits: got %d, want 2", hits.Load())
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	err := w.Send(context.Background(), testBatch())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("got %v, want exhausted with status 500", err)
	}
}

func TestWebhook_RejectedNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if got := r.Header.Get(HeaderBatchID); got != "b1" {
			t.Errorf("batch header: got %q, want b1", got)
		}
		if got := r.Header.Get(HeaderSeq); got != "1" {
			t.Errorf("seq header: got %q, want 1", got)
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	err := w.Send(context.Background(), testBatch())
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Errorf("got %v, want rejected", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits: got %d, want 1", hits.Load())
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Send(context.Background(), testBatch()); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got decoded
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Data.ID != "b1" || got.Data.Records[0].New != "color: red" {
		t.Errorf("got %+v", got)
	}

	hub.Close()
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after hub close: want error")
	}
	if err := hub.Send(context.Background(), testBatch()); err == nil {
		t.Error("Send after Close: want error")
	}
}
