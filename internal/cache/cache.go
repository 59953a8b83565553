// Package cache implementa el token cache con TTL, record limit por usuario
// y circuit breaker explícito.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Todas las operaciones corren con timeout por-operación y un tope de
// requests en vuelo (admission control). Ante fallas el cache degrada:
// los callers reciben fallbacks y el sistema sigue confiando solo en el
// store durable.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/attachedclients/internal/metrics"
	"github.com/dropDatabas3/attachedclients/internal/observability/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Errores de cache.
var (
	// ErrNotFound indica que la clave no existe.
	ErrNotFound = errors.New("cache: key not found")

	// ErrUnavailable indica timeout o falla de conexión en la operación.
	ErrUnavailable = errors.New("cache: unavailable")

	// ErrAdmissionRejected indica rechazo por tope de pendientes en vuelo.
	ErrAdmissionRejected = errors.New("cache: admission rejected")

	// ErrMalformedValue indica que un valor guardado no parsea.
	// Los callers lo tratan como miss.
	ErrMalformedValue = errors.New("cache: malformed value")

	// ErrDisabled indica que el circuito está abierto: se agotó el
	// presupuesto de reintentos de conexión.
	ErrDisabled = errors.New("cache: disabled")
)

// State es el estado del circuito del cache.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateDegraded
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateDisabled:
		return "disabled"
	}
	return "unknown"
}

// Config configura el token cache.
type Config struct {
	// Timeout por operación. Default: 1s.
	Timeout time.Duration

	// RecordLimit tope de access tokens por usuario; al insertarse por
	// encima del tope se evictan los más viejos. Default: 100.
	RecordLimit int

	// MaxTTL tope de vida de cualquier entrada. Default: 24h.
	MaxTTL time.Duration

	// MinTTL vida mínima para que valga la pena guardar; debajo de esto
	// el set se descarta en silencio. Default: 1s.
	MinTTL time.Duration

	// MaxPending tope de operaciones en vuelo. Default: 1000.
	MaxPending int

	// MaxConnectRetries presupuesto de reintentos de conexión antes de
	// pasar a Disabled. Default: 5.
	MaxConnectRetries int

	// InitialBackoff delay inicial del backoff exponencial. Default: 100ms.
	InitialBackoff time.Duration
}

func (c *Config) defaults() {
	if c.Timeout == 0 {
		c.Timeout = time.Second
	}
	if c.RecordLimit == 0 {
		c.RecordLimit = 100
	}
	if c.MaxTTL == 0 {
		c.MaxTTL = 24 * time.Hour
	}
	if c.MinTTL == 0 {
		c.MinTTL = time.Second
	}
	if c.MaxPending == 0 {
		c.MaxPending = 1000
	}
	if c.MaxConnectRetries == 0 {
		c.MaxConnectRetries = 5
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
}

// Cache envuelve un Conn con timeout, admisión y circuit breaker.
// Las APIs tipadas (session/refresh/access tokens) están en tokens.go.
type Cache struct {
	conn Conn
	cfg  Config

	state   atomic.Int32
	pending atomic.Int64

	// sf evita lanzar reconexiones duplicadas en paralelo
	sf  singleflight.Group
	log *zap.SugaredLogger
}

// New crea el cache sobre el backend dado. No conecta; llamar Connect.
func New(conn Conn, cfg Config) *Cache {
	cfg.defaults()
	c := &Cache{conn: conn, cfg: cfg, log: logger.Named("cache").Sugar()}
	c.state.Store(int32(StateConnecting))
	return c
}

// State retorna el estado actual del circuito.
func (c *Cache) State() State {
	return State(c.state.Load())
}

// Pending retorna las operaciones en vuelo (para tests/ops).
func (c *Cache) Pending() int64 {
	return c.pending.Load()
}

// Close cierra el backend.
func (c *Cache) Close() error {
	return c.conn.Close()
}

// transition cambia el estado solo si el actual es from. Retorna true si
// aplicó el cambio.
func (c *Cache) transition(from, to State) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	metrics.CacheStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	c.log.Infow("state transition", "from", from.String(), "to", to.String())
	return true
}

// Connect intenta establecer conexión con reintentos y backoff exponencial.
// Si el presupuesto se agota, el cache queda Disabled y todas las
// operaciones cortocircuitan a su fallback. Llamar de nuevo a Connect
// resetea el presupuesto (recuperación desde Disabled).
func (c *Cache) Connect(ctx context.Context) error {
	st := c.State()
	if st != StateConnecting {
		// Recuperación manual: re-entrar al estado Connecting.
		c.transition(st, StateConnecting)
	}
	err := c.pingWithBackoff(ctx)
	if err != nil {
		c.transition(StateConnecting, StateDisabled)
		return ErrDisabled
	}
	c.transition(StateConnecting, StateReady)
	return nil
}

// do ejecuta una operación contra el backend aplicando admisión, timeout
// y transiciones de estado.
func (c *Cache) do(ctx context.Context, scope string, fn func(context.Context) error) error {
	switch c.State() {
	case StateDisabled:
		return ErrDisabled
	case StateConnecting:
		return ErrUnavailable
	}

	if n := c.pending.Add(1); n > int64(c.cfg.MaxPending) {
		c.pending.Add(-1)
		metrics.CacheAdmissionRejected.Inc()
		return ErrAdmissionRejected
	}
	defer c.pending.Add(-1)

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	err := fn(opCtx)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedValue) {
		// Miss y valor corrupto no son señales de salud del backend.
		c.transition(StateDegraded, StateReady)
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		metrics.CacheOpTimeouts.WithLabelValues(scope).Inc()
	} else {
		metrics.CacheOpErrors.WithLabelValues(scope, "io").Inc()
	}

	if c.transition(StateReady, StateDegraded) {
		go c.reconnect()
	}
	return ErrUnavailable
}

// reconnect corre en background mientras el cache está Degraded. Consume
// el presupuesto de reintentos; si se agota pasa a Disabled, si algún
// ping (o alguna operación concurrente) tiene éxito vuelve a Ready.
func (c *Cache) reconnect() {
	_, _, _ = c.sf.Do("reconnect", func() (any, error) {
		// pingWithBackoff ya está acotado por el presupuesto de reintentos
		// y el timeout por ping; no hace falta deadline exterior.
		if err := c.pingWithBackoff(context.Background()); err != nil {
			c.transition(StateDegraded, StateDisabled)
			return nil, nil
		}
		c.transition(StateDegraded, StateReady)
		return nil, nil
	})
}
