package storage

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/zeebo/blake3"
)

const PartitionCount = 16

// Store keeps data object trees in memory. Data entries are spread over
// PartitionCount buckets, each behind its own lock. Trees handed to Put
// belong to the store and must not be modified afterwards; trees returned
// by Get must be cloned before modification.
type Store struct {
	Buckets map[uint32]*Bucket
}

type Bucket struct {
	ID    uint32
	Lock  sync.RWMutex
	Index map[string]*Pulse // entry key -> data objects
}

// Pulse holds the data objects of one data entry, keyed by name including
// the occurrence suffix.
type Pulse struct {
	Objects map[string]*Struct
}

func NewStore() *Store {
	s := &Store{Buckets: make(map[uint32]*Bucket)}
	for i := 0; i < PartitionCount; i++ {
		id := uint32(i)
		s.Buckets[id] = &Bucket{ID: id, Index: make(map[string]*Pulse)}
	}
	return s
}

// getBucketID hashes key with BLAKE3 and maps the first 4 bytes of the sum,
// read big-endian, onto a bucket.
func (s *Store) getBucketID(key string) uint32 {
	h := blake3.New()
	h.Write([]byte(key))
	sum := h.Sum(nil)
	val := binary.BigEndian.Uint32(sum[:4])
	return val % PartitionCount
}

func (s *Store) bucket(entry string) *Bucket {
	return s.Buckets[s.getBucketID(entry)]
}

// Exists reports whether the data entry has been created.
func (s *Store) Exists(entry string) bool {
	b := s.bucket(entry)
	b.Lock.RLock()
	defer b.Lock.RUnlock()
	_, ok := b.Index[entry]
	return ok
}

// Create makes the data entry. An existing entry is kept unless truncate is
// set, in which case its data objects are dropped. It reports whether the
// entry already existed.
func (s *Store) Create(entry string, truncate bool) bool {
	b := s.bucket(entry)
	b.Lock.Lock()
	defer b.Lock.Unlock()
	_, existed := b.Index[entry]
	if !existed || truncate {
		b.Index[entry] = &Pulse{Objects: make(map[string]*Struct)}
	}
	return existed
}

// Remove drops the data entry and all its data objects.
func (s *Store) Remove(entry string) bool {
	b := s.bucket(entry)
	b.Lock.Lock()
	defer b.Lock.Unlock()
	_, ok := b.Index[entry]
	delete(b.Index, entry)
	return ok
}

// Get returns the stored tree of a data object.
func (s *Store) Get(entry, object string) (*Struct, bool) {
	b := s.bucket(entry)
	b.Lock.RLock()
	defer b.Lock.RUnlock()
	p, ok := b.Index[entry]
	if !ok {
		return nil, false
	}
	st, ok := p.Objects[object]
	return st, ok
}

// Put replaces the tree of a data object. An empty tree removes it.
func (s *Store) Put(entry, object string, st *Struct) error {
	b := s.bucket(entry)
	b.Lock.Lock()
	defer b.Lock.Unlock()
	p, ok := b.Index[entry]
	if !ok {
		return fmt.Errorf("data entry %s not found", entry)
	}
	if st == nil || st.Empty() {
		delete(p.Objects, object)
		return nil
	}
	p.Objects[object] = st
	return nil
}

// Objects returns the sorted names of the data objects of an entry.
func (s *Store) Objects(entry string) []string {
	b := s.bucket(entry)
	b.Lock.RLock()
	defer b.Lock.RUnlock()
	p, ok := b.Index[entry]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(p.Objects))
	for name := range p.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys returns the keys of all data entries.
func (s *Store) Keys() []string {
	var keys []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, b := range s.Buckets {
		wg.Add(1)
		go func(bucket *Bucket) {
			defer wg.Done()
			bucket.Lock.RLock()
			defer bucket.Lock.RUnlock()

			localKeys := make([]string, 0, len(bucket.Index))
			for k := range bucket.Index {
				localKeys = append(localKeys, k)
			}

			if len(localKeys) > 0 {
				mu.Lock()
				keys = append(keys, localKeys...)
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()
	sort.Strings(keys)
	return keys
}
