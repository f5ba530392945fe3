package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return res
}

func TestHealthz(t *testing.T) {
	h := New(Checker{Name: "never", Check: func(context.Context) error { return errors.New("down") }})
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if res := decode(t, rec); res.Status != "ok" {
		t.Errorf("status field = %q", res.Status)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "classifier", Check: func(context.Context) error { return nil }},
				{Name: "store", Check: func(context.Context) error { return nil }},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"classifier": "ok", "store": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "classifier", Check: func(context.Context) error { return nil }},
				{Name: "store", Check: func(context.Context) error { return errors.New("connection refused") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"classifier": "ok", "store": "fail: connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			New(tt.checkers...).Register(mux, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			res := decode(t, rec)
			for name, want := range tt.wantChecks {
				if res.Checks[name] != want {
					t.Errorf("check %q = %q, want %q", name, res.Checks[name], want)
				}
			}
		})
	}
}

func TestReadyzCheckHasDeadline(t *testing.T) {
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}})
	if checks, ok := h.Ready(context.Background()); !ok {
		t.Errorf("Ready = %v", checks)
	}
}

func TestGRPCHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	g := NewGRPC(slog.New(slog.DiscardHandler))
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(func() { g.Stop(time.Second) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := healthgrpc.NewHealthClient(conn)

	check := func() healthgrpc.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthgrpc.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthgrpc.HealthCheckResponse_NOT_SERVING {
		t.Errorf("initial status = %v, want NOT_SERVING", got)
	}
	g.SetServing(true)
	if got := check(); got != healthgrpc.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}
