// Package worker holds the background loops that run beside the HTTP
// server.
package worker

import (
	"context"
	"log"
	"time"
)

// ExpiredCartDeleter is the slice of the cart repository the reaper needs.
type ExpiredCartDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StartCartReaper deletes expired carts on a fixed interval until the
// context is cancelled.  Abandoned carts slide their expiry on every
// access, so only truly idle ones are removed.
func StartCartReaper(ctx context.Context, carts ExpiredCartDeleter, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("cart reaper: running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("cart reaper: stopping")
			return
		case <-ticker.C:
			reapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := carts.DeleteExpired(reapCtx)
			cancel()
			if err != nil {
				log.Printf("cart reaper: delete expired failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("cart reaper: removed %d expired carts", n)
			}
		}
	}
}
