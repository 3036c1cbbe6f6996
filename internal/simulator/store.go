// Package simulator is a self-contained stand-in for the clearance backend
// and the local signing agent, used for development and tests. It speaks the
// same envelope and endpoints as the real backend.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// record is the stored form of a simulated document, together with the
// scripted clearance behavior attached to it at submission time.
type record struct {
	Doc models.DocumentPayload `json:"doc"`
	// PollsRemaining counts how many clearance checks stay pending before
	// the scripted outcome is applied.
	PollsRemaining int                     `json:"polls_remaining"`
	Outcome        models.ClearanceState   `json:"outcome,omitempty"`
	Errors         []models.ClearanceError `json:"errors,omitempty"`
	Signature      string                  `json:"signature,omitempty"`
}

// Store keeps simulated documents in redis. By default it runs against an
// embedded miniredis so the simulator needs no external processes; pointing
// REDIS_ADDR at a real server lets several processes share one dataset.
type Store struct {
	rdb    *redis.Client
	mini   *miniredis.Miniredis
	logger *logrus.Logger
}

// NewStore connects the document store.
func NewStore(cfg config.RedisConfig, logger *logrus.Logger) (*Store, error) {
	var mini *miniredis.Miniredis
	addr := cfg.Addr
	if addr == "" || cfg.Embedded {
		m, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("error starting embedded redis: %w", err)
		}
		mini = m
		addr = m.Addr()
		logger.WithField("addr", addr).Info("Embedded redis started")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if mini != nil {
			mini.Close()
		}
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}

	return &Store{rdb: client, mini: mini, logger: logger}, nil
}

// Close releases the store and the embedded server, when one is running.
func (s *Store) Close() error {
	err := s.rdb.Close()
	if s.mini != nil {
		s.mini.Close()
	}
	return err
}

func docKey(id int64) string {
	return fmt.Sprintf("doc:%d", id)
}

func indexKey(kind models.Kind) string {
	return "docs:" + string(kind)
}

// NextID allocates the next document id.
func (s *Store) NextID(ctx context.Context) (int64, error) {
	id, err := s.rdb.Incr(ctx, "seq:documents").Result()
	if err != nil {
		return 0, fmt.Errorf("error allocating document id: %w", err)
	}
	return id, nil
}

// Put stores a document record and indexes it under its kind.
func (s *Store) Put(ctx context.Context, rec *record) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error encoding document: %w", err)
	}
	if err := s.rdb.Set(ctx, docKey(rec.Doc.ID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("error storing document: %w", err)
	}
	member := redis.Z{Score: float64(rec.Doc.ID), Member: rec.Doc.ID}
	if err := s.rdb.ZAdd(ctx, indexKey(rec.Doc.Kind), member).Err(); err != nil {
		return fmt.Errorf("error indexing document: %w", err)
	}
	return nil
}

// Get loads a document record. Returns nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id int64) (*record, error) {
	raw, err := s.rdb.Get(ctx, docKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading document: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("error decoding document: %w", err)
	}
	return &rec, nil
}

// Delete removes a document record and its index entry.
func (s *Store) Delete(ctx context.Context, kind models.Kind, id int64) error {
	if err := s.rdb.Del(ctx, docKey(id)).Err(); err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	if err := s.rdb.ZRem(ctx, indexKey(kind), id).Err(); err != nil {
		return fmt.Errorf("error unindexing document: %w", err)
	}
	return nil
}

// ListAll loads every record of a kind, ordered by id.
func (s *Store) ListAll(ctx context.Context, kind models.Kind) ([]*record, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	out := make([]*record, 0, len(ids))
	for _, raw := range ids {
		var id int64
		if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
			continue
		}
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}
