package cache

import (
	"context"

	"github.com/sethvargo/go-retry"
)

// pingWithBackoff hace ping al backend con backoff exponencial, acotado
// por MaxConnectRetries. Cada ping individual corre con el timeout
// por-operación.
func (c *Cache) pingWithBackoff(ctx context.Context) error {
	b := retry.WithMaxRetries(uint64(c.cfg.MaxConnectRetries), retry.NewExponential(c.cfg.InitialBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		// Si otra operación ya recuperó el circuito, no hay nada que hacer.
		if c.State() == StateReady {
			return nil
		}
		pingCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		if err := c.conn.Ping(pingCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
