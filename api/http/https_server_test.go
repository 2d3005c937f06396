package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MarketFlow/internal/modules/processor/application/dto/respond"
	handler "MarketFlow/internal/modules/processor/interface/http"
	"MarketFlow/pkg/jsoncodec"
	"MarketFlow/pkg/util/myjwt"
	"MarketFlow/pkg/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type fakeProcessor struct {
	running   atomic.Bool
	triggered int
	snapshot  []respond.PartitionStatus
}

func newFakeProcessor(snapshot ...respond.PartitionStatus) *fakeProcessor {
	p := &fakeProcessor{snapshot: snapshot}
	p.running.Store(true)
	return p
}

func (f *fakeProcessor) Snapshot() []respond.PartitionStatus { return f.snapshot }

func (f *fakeProcessor) Trigger() bool {
	f.triggered++
	return f.triggered == 1
}

func (f *fakeProcessor) Running() bool { return f.running.Load() }

type envelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func newTestEngine(t *testing.T, p *fakeProcessor) (*gin.Engine, *myjwt.Signer) {
	ge, signer, _ := newTestEngineWithStream(t, p)
	return ge, signer
}

func newTestEngineWithStream(t *testing.T, p *fakeProcessor) (*gin.Engine, *myjwt.Signer, *handler.StreamHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := myjwt.NewSigner("test-key", "marketflow", 1)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "marketflow_test_total", Help: "test"}))
	h := handler.NewProcessorHandler(p, p, p)
	stream := handler.NewStreamHandler(ws.NewHub(), p, p, signer)
	return NewEngine(h, signer, EngineOptions{
		Host:           "localhost",
		Port:           8000,
		MetricsPath:    "/metrics",
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Stream:         stream,
	}), signer, stream
}

func do(t *testing.T, ge *gin.Engine, method, path, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ge.ServeHTTP(w, req)

	var body envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := jsoncodec.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body %q: %v", w.Body.String(), err)
		}
	}
	return w, body
}

func TestHealthz(t *testing.T) {
	p := newFakeProcessor()
	ge, _ := newTestEngine(t, p)

	w, body := do(t, ge, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || body.Code != 200 || body.Data["running"] != true {
		t.Fatalf("unexpected health response %d %+v", w.Code, body)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("expected secure headers, got %v", w.Header())
	}

	p.running.Store(false)
	w, body = do(t, ge, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusServiceUnavailable || body.Code != 503 {
		t.Fatalf("expected 503 while stopping, got %d %+v", w.Code, body)
	}
}

func TestPartitions(t *testing.T) {
	p := newFakeProcessor(
		respond.PartitionStatus{Topic: "daily", Partition: 0, State: "running", StartedAt: time.Unix(0, 0).UTC(), Processed: 5},
		respond.PartitionStatus{Topic: "daily", Partition: 1, State: "crashed", StartedAt: time.Unix(0, 0).UTC(), Dropped: 1},
	)
	ge, _ := newTestEngine(t, p)

	w, body := do(t, ge, http.MethodGet, "/processor/partitions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if body.Data["total"] != 2.0 || body.Data["running"] != true {
		t.Fatalf("unexpected data %+v", body.Data)
	}
	parts := body.Data["partitions"].([]any)
	second := parts[1].(map[string]any)
	if second["state"] != "crashed" || second["dropped"] != 1.0 {
		t.Fatalf("unexpected partition %+v", second)
	}
}

func TestRefreshRequiresAdminToken(t *testing.T) {
	p := newFakeProcessor()
	ge, signer := newTestEngine(t, p)

	if w, _ := do(t, ge, http.MethodPost, "/processor/refresh", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w, _ := do(t, ge, http.MethodPost, "/processor/refresh", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}

	viewer, _ := signer.GenerateToken("viewer", "viewer")
	if w, _ := do(t, ge, http.MethodPost, "/processor/refresh", viewer); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
	if p.triggered != 0 {
		t.Fatal("rejected requests must not trigger discovery")
	}

	admin, _ := signer.GenerateToken("ops", myjwt.RoleAdmin)
	w, body := do(t, ge, http.MethodPost, "/processor/refresh", admin)
	if w.Code != http.StatusOK || body.Data["triggered"] != true {
		t.Fatalf("unexpected refresh response %d %+v", w.Code, body)
	}
	_, body = do(t, ge, http.MethodPost, "/processor/refresh", admin)
	if body.Data["triggered"] != false {
		t.Fatalf("pending refresh should report false, got %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ge, _ := newTestEngine(t, newFakeProcessor())
	w, _ := do(t, ge, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "marketflow_test_total") {
		t.Fatalf("unexpected metrics response %d %s", w.Code, w.Body.String())
	}
}

func TestStreamPushesSnapshots(t *testing.T) {
	p := newFakeProcessor(respond.PartitionStatus{Topic: "options", Partition: 3, State: "running"})
	ge, signer, stream := newTestEngineWithStream(t, p)
	srv := httptest.NewServer(ge)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/processor/stream"

	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", err)
	}

	token, _ := signer.GenerateToken("ops", myjwt.RoleAdmin)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() respond.PartitionListRespond {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got respond.PartitionListRespond
		if err := jsoncodec.Unmarshal(msg, &got); err != nil {
			t.Fatalf("decode %s: %v", msg, err)
		}
		return got
	}

	first := read()
	if first.Total != 1 || first.Partitions[0].Topic != "options" || first.Partitions[0].Partition != 3 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	p.running.Store(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx, 20*time.Millisecond)

	if next := read(); next.Running {
		t.Fatalf("expected broadcast with running=false, got %+v", next)
	}
}
