package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
)

type memCollection struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage

	conflicts     map[string]bool
	failInsert    map[string]error
	failInsertAll error
	failWrite     error
	failCount     error
	calls         int
}

func newMemCollection() *memCollection {
	return &memCollection{docs: map[string]json.RawMessage{}}
}

func (c *memCollection) Upsert(_ context.Context, rec domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failWrite != nil {
		return c.failWrite
	}
	c.docs[rec.ID] = rec.Data
	return nil
}

func (c *memCollection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failWrite != nil {
		return c.failWrite
	}
	delete(c.docs, id)
	return nil
}

func (c *memCollection) InsertMany(_ context.Context, recs []domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failInsertAll != nil {
		return c.failInsertAll
	}
	for _, rec := range recs {
		if err := c.insertErr(rec.ID); err != nil {
			return fmt.Errorf("batch: %w", err)
		}
	}
	for _, rec := range recs {
		c.docs[rec.ID] = rec.Data
	}
	return nil
}

func (c *memCollection) Insert(_ context.Context, rec domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if err := c.insertErr(rec.ID); err != nil {
		return err
	}
	c.docs[rec.ID] = rec.Data
	return nil
}

func (c *memCollection) insertErr(id string) error {
	if c.conflicts[id] {
		return fmt.Errorf("insert %s: %w", id, domain.ErrDuplicateKey)
	}
	if _, ok := c.docs[id]; ok {
		return fmt.Errorf("insert %s: %w", id, domain.ErrDuplicateKey)
	}
	if err, ok := c.failInsert[id]; ok {
		return err
	}
	return nil
}

func (c *memCollection) Count(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCount != nil {
		return 0, c.failCount
	}
	return int64(len(c.docs)), nil
}

func (c *memCollection) DeleteAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite != nil {
		return c.failWrite
	}
	c.docs = map[string]json.RawMessage{}
	return nil
}

func (c *memCollection) List(context.Context) ([]domain.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Record, 0, len(c.docs))
	for id, data := range c.docs {
		out = append(out, domain.Record{ID: id, Data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memCollection) get(id string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[id]
	return d, ok
}

// memConnection hands out one memCollection per collection name.
type memConnection struct {
	mu          sync.Mutex
	state       domain.ConnectionState
	collections map[string]*memCollection
	accessed    int
}

func newMemConnection(state domain.ConnectionState) *memConnection {
	return &memConnection{state: state, collections: map[string]*memCollection{}}
}

func (c *memConnection) IsHealthy() bool { return c.State() == domain.StateHealthy }

func (c *memConnection) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *memConnection) Accessor(shape domain.Shape) ports.MirrorCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessed++
	if c.state != domain.StateHealthy {
		return nil
	}
	return c.collectionLocked(shape.Collection)
}

func (c *memConnection) collection(name string) *memCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collectionLocked(name)
}

func (c *memConnection) collectionLocked(name string) *memCollection {
	coll, ok := c.collections[name]
	if !ok {
		coll = newMemCollection()
		c.collections[name] = coll
	}
	return coll
}

type memSource struct {
	records   map[string][]domain.Record
	failSnap  map[string]error
	failCount map[string]error
}

func (s *memSource) Snapshot(_ context.Context, shape domain.Shape) ([]domain.Record, error) {
	if err := s.failSnap[shape.Collection]; err != nil {
		return nil, err
	}
	return append([]domain.Record(nil), s.records[shape.Collection]...), nil
}

func (s *memSource) Count(_ context.Context, shape domain.Shape) (int64, error) {
	if err := s.failCount[shape.Collection]; err != nil {
		return 0, err
	}
	return int64(len(s.records[shape.Collection])), nil
}

func (s *memSource) Load(_ context.Context, shape domain.Shape, id string) (domain.Record, error) {
	for _, rec := range s.records[shape.Collection] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.Record{}, domain.ErrNotFound
}

var errSecondaryDown = errors.New("connection reset by peer")

func rec(id, data string) domain.Record {
	return domain.Record{ID: id, Data: json.RawMessage(data)}
}
