package session

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// MaxKeyLen bounds client supplied session keys.
const MaxKeyLen = 128

// ValidateKey rejects keys that could not be looked up again over HTTP.
func ValidateKey(key string) error {
	if len(key) > MaxKeyLen {
		return ErrKeyTooLong
	}
	return nil
}

// Config holds the poll defaults shared by every session of a registry.
type Config struct {
	DefaultSessionKey string
	DefaultTimeLimit  time.Duration
	MaxTimeLimit      time.Duration
}

// DefaultConfig mirrors the environment defaults in config.Load.
func DefaultConfig() Config {
	return Config{
		DefaultSessionKey: "default",
		DefaultTimeLimit:  60 * time.Second,
		MaxTimeLimit:      time.Hour,
	}
}

// Registry maps session keys to sessions (thread-safe). Sessions live as long as the registry.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	out      Broadcaster
	clock    clockwork.Clock
	logger   *zap.Logger
	onClosed ClosedPollHandler
}

// NewRegistry creates an empty registry that emits through out.
func NewRegistry(cfg Config, out Broadcaster, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.DefaultSessionKey == "" {
		cfg.DefaultSessionKey = def.DefaultSessionKey
	}
	if cfg.DefaultTimeLimit <= 0 {
		cfg.DefaultTimeLimit = def.DefaultTimeLimit
	}
	if cfg.MaxTimeLimit <= 0 {
		cfg.MaxTimeLimit = def.MaxTimeLimit
	}
	if cfg.MaxTimeLimit < cfg.DefaultTimeLimit {
		cfg.MaxTimeLimit = cfg.DefaultTimeLimit
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		out:      out,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
}

// SetClock replaces the clock used by sessions created afterwards (tests use a fake clock).
func (r *Registry) SetClock(clock clockwork.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

// SetClosedPollHandler sets the callback invoked for every closed poll (e.g. archiving).
func (r *Registry) SetClosedPollHandler(fn ClosedPollHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClosed = fn
}

// Key normalizes a client supplied session key.
func (r *Registry) Key(key string) string {
	if key == "" {
		return r.cfg.DefaultSessionKey
	}
	return key
}

// GetOrCreate returns the session for key, creating an empty one if needed.
func (r *Registry) GetOrCreate(key string) *Session {
	key = r.Key(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := newSession(key, r)
	r.sessions[key] = s
	r.logger.Info("session created", zap.String("session_key", key))
	return s
}

// Lookup returns the session for key without creating it.
func (r *Registry) Lookup(key string) (*Session, bool) {
	key = r.Key(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Keys returns the session keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Strings(keys)
	return keys
}

func (r *Registry) closedPollHandler() ClosedPollHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onClosed
}
