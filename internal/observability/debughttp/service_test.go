package debughttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "regionsched/pkg/logx"
)

func TestHandlerServesStatus(t *testing.T) {
	t.Parallel()

	svc := New(Config{}, func(context.Context) any {
		return map[string]any{"mode": "regions", "regions": 4}
	}, logx.Nop())

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/sched", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["mode"] != "regions" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandlerAuth(t *testing.T) {
	t.Parallel()

	h := New(Config{Token: "s3cret"}, nil, logx.Nop()).Handler()
	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "missing", target: "/healthz", want: http.StatusUnauthorized},
		{name: "wrong", target: "/healthz?token=nope", want: http.StatusUnauthorized},
		{name: "query", target: "/healthz?token=s3cret", want: http.StatusOK},
		{name: "bearer", target: "/healthz", header: "Bearer s3cret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("code = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestStartRefusesPublicBindWithoutToken(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, nil, logx.Nop())
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("Start accepted a public bind without a token")
	}
}

func TestStartServesAndStops(t *testing.T) {
	t.Parallel()

	svc := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for svc.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatalf("server never bound")
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp, err := http.Get("http://" + svc.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	svc.Stop(ctx)
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":6060":          false,
		"10.0.0.1:6060":  false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v", addr, got)
		}
	}
}
