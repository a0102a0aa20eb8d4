package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "regionsched/pkg/logx"
)

// Manager owns the live config: it loads the file, layers REGIOND_*
// environment overrides on top and republishes on change.
type Manager struct {
	path    string
	environ map[string]string // nil reads the process environment

	mu       sync.RWMutex
	cfg      *Config
	lastHash uint64

	// subsMu is held while sending so Unsubscribe never closes a channel
	// mid-send.
	subsMu sync.Mutex
	subs   []chan *Config

	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error
	debounce  time.Duration
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop(), debounce: 250 * time.Millisecond}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs the check Watch runs before committing a reload.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// SetEnviron replaces the process environment as the override source.
func (m *Manager) SetEnviron(environ map[string]string) { m.environ = environ }

func (m *Manager) Path() string { return m.path }

// Parse reads and strictly decodes the file, then applies env overrides.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(m.path, b)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, m.environ); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses JSON or YAML (picked by the extension of name). Unknown
// fields and trailing data are errors.
func Decode(name string, data []byte) (*Config, error) {
	jb, format, err := toJSON(name, data)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("%w: trailing data", ErrInvalid)
		}
		return nil, err
	}
	return &cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Load parses, validates and commits the file.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if _, err := Resolve(cfg); err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

// publish delivers cfg to every subscriber. A full buffer loses its oldest
// entry so the newest config always lands.
func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
		}
	}
}

// reload is one debounced pass: parse, skip if unchanged, validate, commit,
// publish. It reports whether a new config was published.
func (m *Manager) reload(ctx context.Context) bool {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return false
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
		return false
	}
	if _, err := Resolve(cfg); err != nil {
		m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
		return false
	}
	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
			return false
		}
	}
	m.Commit(cfg)
	m.publish(cfg)
	m.log.Debug("config published", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%x", h)))
	return true
}

// Watch reloads on changes to the file until ctx is done. A broken watcher
// is recreated with jittered exponential backoff.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(m.debounce, func() { m.reload(ctx) })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	bo := newBackoff(250*time.Millisecond, 5*time.Second)
	for ctx.Err() == nil {
		err := m.watchOnce(ctx, dir, file, bo, schedule)
		if ctx.Err() != nil {
			return nil
		}
		wait := bo.next()
		m.log.Warn("config watcher stopped; restarting", logx.String("dir", dir), logx.Duration("backoff", wait), logx.Err(err))
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	return nil
}

func (m *Manager) watchOnce(ctx context.Context, dir, file string, bo *backoff, changed func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher init: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	bo.reset()
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
				changed()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watch overflow; forcing reload", logx.String("dir", dir))
				changed()
				continue
			}
			if err != nil {
				m.log.Warn("config watch error", logx.String("dir", dir), logx.Err(err))
			}
		}
	}
}

type backoff struct {
	base, max, cur time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, cur: base}
}

func (b *backoff) reset() { b.cur = b.base }

// next returns the current wait plus up to 50% jitter and doubles the window.
func (b *backoff) next() time.Duration {
	wait := b.cur + rand.N(b.cur/2+1)
	b.cur = min(b.cur*2, b.max)
	return wait
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
