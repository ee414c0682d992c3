package slotcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
)

// Local is the in-process counterpart of Cache for single-instance
// deployments without Redis. It uses the same generation scheme; stale
// generations fall out through LRU eviction or the TTL.
type Local struct {
	mu   sync.Mutex
	gens map[string]int64
	lru  *expirable.LRU[string, []availability.Slot]
}

func NewLocal(size int, ttl time.Duration) *Local {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Local{
		gens: make(map[string]int64),
		lru:  expirable.NewLRU[string, []availability.Slot](size, nil, ttl),
	}
}

func (l *Local) generation(professionalID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gens[professionalID]
}

func localKey(k Key, gen int64) string {
	return fmt.Sprintf("%s:g%d:%s:%d", k.ProfessionalID, gen, k.Date, int(k.Duration/time.Minute))
}

func (l *Local) Get(_ context.Context, k Key) ([]availability.Slot, int64, bool, error) {
	gen := l.generation(k.ProfessionalID)
	slots, ok := l.lru.Get(localKey(k, gen))
	if !ok {
		return nil, gen, false, nil
	}
	return append([]availability.Slot(nil), slots...), gen, true, nil
}

// Set stores slots under the generation returned by Get. A stale generation
// is dropped outright rather than parked until eviction.
func (l *Local) Set(_ context.Context, k Key, gen int64, slots []availability.Slot) error {
	if gen != l.generation(k.ProfessionalID) {
		return nil
	}
	l.lru.Add(localKey(k, gen), append([]availability.Slot(nil), slots...))
	return nil
}

func (l *Local) Invalidate(_ context.Context, professionalID string) error {
	l.mu.Lock()
	l.gens[professionalID]++
	l.mu.Unlock()
	return nil
}

// Len reports the number of cached days, stale generations included.
func (l *Local) Len() int {
	return l.lru.Len()
}
