// Package debughttp serves pprof and a JSON view of scheduler state on a
// local HTTP port.
package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	rtsup "regionsched/internal/runtime/supervisor"
	logx "regionsched/pkg/logx"
)

// Config controls the optional debug server. A non-loopback Addr needs a
// Token unless AllowInsecure is set.
type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool
}

// StatusFunc returns a JSON-encodable view of the running daemon.
type StatusFunc func(ctx context.Context) any

type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	cfg    Config
	status StatusFunc

	sup  *rtsup.Supervisor
	addr string
}

func New(cfg Config, status StatusFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, status: status, log: log.With(logx.String("comp", "debughttp"))}
}

// Addr is the bound listen address, empty until serving.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler builds the mux: /healthz, /debug/sched and /debug/pprof/.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(s.cfg.Token, h) }

	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	mux.HandleFunc("/debug/sched", wrap(func(w http.ResponseWriter, r *http.Request) {
		var body any = struct{}{}
		if s.status != nil {
			body = s.status(r.Context())
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(body)
	}))
	mux.HandleFunc("/debug/pprof/", wrap(hpprof.Index))
	mux.HandleFunc("/debug/pprof/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("/debug/pprof/profile", wrap(hpprof.Profile))
	mux.HandleFunc("/debug/pprof/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("/debug/pprof/trace", wrap(hpprof.Trace))
	return mux
}

// Start is idempotent. The server restarts with backoff if it dies.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled {
		return nil
	}
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6060"
	}
	if s.cfg.Token == "" && !s.cfg.AllowInsecure && !isLoopbackAddr(addr) {
		return errors.New("debughttp: non-loopback addr requires token or allow_insecure")
	}

	// Optional surface; its failures never cancel the daemon.
	s.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	s.sup.GoRestart("http.serve", func(c context.Context) error {
		return s.serveOnce(c, addr)
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	_ = sup.Stop(ctx)
	s.log.Info("debug server stopped")
}

func (s *Service) serveOnce(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info("debug server started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""))

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("debug server exited unexpectedly")
	}
	return err
}

// withAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if got != tok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || strings.TrimSpace(h) == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
