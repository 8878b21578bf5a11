// Package scheduler runs the background janitor that removes expired
// session tokens. Token validity is always checked at read time, so the
// sweep is purely housekeeping: the API behaves identically without it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coreybb/doorman/datastore"
)

// Sweeper deletes expired token documents from the store.
type Sweeper struct {
	tokens   *datastore.TokenRepository
	interval time.Duration
	now      func() time.Time
}

// New creates a Sweeper that runs every interval when started with Run.
func New(tokens *datastore.TokenRepository, interval time.Duration) *Sweeper {
	return &Sweeper{
		tokens:   tokens,
		interval: interval,
		now:      time.Now,
	}
}

// HandleTick is an HTTP handler that triggers a sweep.
// Used by external schedulers or manual curl requests.
func (s *Sweeper) HandleTick(w http.ResponseWriter, r *http.Request) {
	log.Println("INFO (Sweeper): Tick triggered via HTTP")

	removed, err := s.Tick(r.Context())
	if err != nil {
		log.Printf("ERROR (Sweeper): Tick failed: %v", err)
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK: removed %d expired tokens", removed)
}

// Tick runs a single sweep cycle and returns the number of tokens
// removed. Tokens that disappear mid-sweep are skipped, not errors.
func (s *Sweeper) Tick(ctx context.Context) (int, error) {
	ids, err := s.tokens.ListTokenIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tokens for sweep: %w", err)
	}

	removed := 0
	for _, id := range ids {
		token, err := s.tokens.GetTokenByID(ctx, id)
		if err != nil {
			continue
		}
		if !token.ExpiredAt(s.now()) {
			continue
		}
		if err := s.tokens.DeleteToken(ctx, id); err != nil {
			if errors.Is(err, datastore.ErrNotFound) {
				continue
			}
			log.Printf("ERROR (Sweeper): failed to delete expired token %s: %v", id, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Tick(ctx)
			if err != nil {
				log.Printf("ERROR (Sweeper): sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("INFO (Sweeper): removed %d expired tokens", removed)
			}
		}
	}
}
