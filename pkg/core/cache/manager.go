package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/alphadose/haxmap"
	json "github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// TTLs carries the per-stage lifetimes.
type TTLs struct {
	Extraction time.Duration
	Valuation  time.Duration
	Analysis   time.Duration
	Price      time.Duration
}

// Manager coordinates the two cache tiers and the single-flight discipline.
//
// Reads hit the memory tier first, then disk (promoting on hit). Writers go
// through GetOrCompute, which guarantees at most one in-flight producer per
// fingerprint; concurrent arrivals share the producer's result. The
// single-flight slot is released only after the disk write is durable.
type Manager struct {
	store  *Store
	memory *haxmap.Map[string, *Entry]
	ttls   TTLs
	flight singleflight.Group
	gc     *cron.Cron
	logger zerolog.Logger
}

// NewManager builds a Manager over an open store and starts the scheduled
// Badger value-log GC.
func NewManager(store *Store, ttls TTLs, logger zerolog.Logger) *Manager {
	m := &Manager{
		store:  store,
		memory: haxmap.New[string, *Entry](),
		ttls:   ttls,
		logger: logger.With().Str("component", "cache").Logger(),
	}

	m.gc = cron.New()
	_, _ = m.gc.AddFunc("@every 10m", store.RunGC)
	m.gc.Start()

	return m
}

// TTLFor returns the configured lifetime for a stage.
func (m *Manager) TTLFor(stage Stage) time.Duration {
	switch stage {
	case StageExtraction:
		return m.ttls.Extraction
	case StageValuation:
		return m.ttls.Valuation
	case StageAnalysis:
		return m.ttls.Analysis
	case StagePrice:
		return m.ttls.Price
	default:
		return time.Hour
	}
}

// Get returns the cached payload for a fingerprint, or nil on miss.
func (m *Manager) Get(fingerprint string) ([]byte, error) {
	if entry, ok := m.memory.Get(fingerprint); ok {
		if !entry.Expired(time.Now()) {
			return entry.Payload, nil
		}
		m.memory.Del(fingerprint)
	}

	entry, err := m.store.Get(fingerprint)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	m.memory.Set(fingerprint, entry)
	return entry.Payload, nil
}

// Set writes a payload under a fingerprint with the stage's TTL. The disk
// write completes before the memory tier is updated.
func (m *Manager) Set(fingerprint string, stage Stage, payload []byte) error {
	entry := &Entry{
		Fingerprint: fingerprint,
		Stage:       stage,
		Payload:     payload,
		CreatedAt:   time.Now(),
		TTL:         m.TTLFor(stage),
	}
	if err := m.store.Set(entry); err != nil {
		return err
	}
	m.memory.Set(fingerprint, entry)
	return nil
}

// Invalidate removes a fingerprint from both tiers. This and TTL expiry are
// the only mutations an entry ever sees.
func (m *Manager) Invalidate(fingerprint string) error {
	m.memory.Del(fingerprint)
	return m.store.Delete(fingerprint)
}

// GetOrCompute returns the cached payload or runs producer under the key's
// single-flight slot, persisting the result before releasing it.
//
// A cancelled waiter stops waiting but does not cancel the in-flight
// computation: the producer runs detached from the caller's cancellation so
// the leader always completes its write and other waiters still get a
// result.
func (m *Manager) GetOrCompute(ctx context.Context, fingerprint string, stage Stage, producer func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if payload, err := m.Get(fingerprint); err != nil {
		return nil, err
	} else if payload != nil {
		shortKey := fingerprint
		if len(shortKey) > 12 {
			shortKey = shortKey[:12]
		}
		m.logger.Debug().Str("stage", string(stage)).Str("key", shortKey).Msg("cache hit")
		return payload, nil
	}

	ch := m.flight.DoChan(fingerprint, func() (interface{}, error) {
		// Re-check under the slot: a previous leader may have just written.
		if payload, err := m.Get(fingerprint); err != nil {
			return nil, err
		} else if payload != nil {
			return payload, nil
		}

		payload, err := producer(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if err := m.Set(fingerprint, stage, payload); err != nil {
			return nil, err
		}
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("cancelled waiting for in-flight computation: %w", ctx.Err())
	}
}

// GetJSON unmarshals a cached payload into out; returns false on miss.
func (m *Manager) GetJSON(fingerprint string, out interface{}) (bool, error) {
	payload, err := m.Get(fingerprint)
	if err != nil || payload == nil {
		return false, err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("corrupt cache payload for %s: %w", fingerprint[:12], err)
	}
	return true, nil
}

// Stats reports cache occupancy.
func (m *Manager) Stats() map[string]interface{} {
	count, err := m.store.Count()
	stats := map[string]interface{}{
		"memory_entries": int(m.memory.Len()),
		"disk_entries":   count,
	}
	if err != nil {
		stats["error"] = err.Error()
	}
	return stats
}

// Close stops the GC schedule and closes the disk store.
func (m *Manager) Close() error {
	if m.gc != nil {
		m.gc.Stop()
	}
	return m.store.Close()
}
