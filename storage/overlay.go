package storage

import "sync"

// Overlay buffers writes and deletes on top of a backing database so that a
// sequence of mutations can be committed atomically or discarded as a unit.
// Reads observe buffered writes before falling through to the backing store.
type Overlay struct {
	mu      sync.Mutex
	backing Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay creates an overlay on top of the provided database.
func NewOverlay(backing Database) *Overlay {
	return &Overlay{
		backing: backing,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		o.mu.Unlock()
		return nil, ErrKeyNotFound
	}
	if value, ok := o.writes[k]; ok {
		o.mu.Unlock()
		return append([]byte(nil), value...), nil
	}
	o.mu.Unlock()
	return o.backing.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.Lock()
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		o.mu.Unlock()
		return false, nil
	}
	if _, ok := o.writes[k]; ok {
		o.mu.Unlock()
		return true, nil
	}
	o.mu.Unlock()
	return o.backing.Has(key)
}

// Close discards all buffered mutations. The backing database stays open.
func (o *Overlay) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

// Commit flushes buffered writes and deletes to the backing database. The
// overlay is empty afterwards and may be reused.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range o.writes {
		if err := o.backing.Put([]byte(k), v); err != nil {
			return err
		}
	}
	for k := range o.deletes {
		if err := o.backing.Delete([]byte(k)); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}
