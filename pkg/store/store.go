// Package store keeps loaded volumes and computed results in memory. A single
// lock guards both the volume registry and the result cache.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.trai.ch/zerr"

	"volmesh/internal/models"
	"volmesh/pkg/normalization"
	"volmesh/pkg/propagation"
	"volmesh/pkg/surface"
)

// Normalization is the latest normalization of a primary volume.
type Normalization struct {
	// Method is the normalization that was applied
	Method normalization.Method

	// Extraction are the surface parameters the mesh was built with
	Extraction surface.Params

	// Result holds the normalized vertices, the transform record and stats
	Result *normalization.Result

	// Mesh is the normalized mesh
	Mesh *models.Mesh

	// Generation increases with every stored normalization
	Generation uint64

	CreatedAt time.Time
}

// Record is a registry entry. Records handed out by the store are snapshots;
// the fields they point to are never modified, only replaced.
type Record struct {
	Volume *models.Volume

	// Derived is an intensity-normalized copy of the samples, nil when absent
	Derived            []float64
	DerivedMethod      string
	DerivedFingerprint string

	// Normalization is set on primaries after a successful normalize
	Normalization *Normalization

	// Coordinates is set on companions after propagation
	Coordinates *propagation.CoordinateSet

	// CoordinatesGeneration is the primary normalization generation the
	// coordinates were computed from
	CoordinatesGeneration uint64
}

// Samples returns the derived data when present, the raw data otherwise.
func (r Record) Samples() []float64 {
	if r.Derived != nil {
		return r.Derived
	}
	return r.Volume.Data
}

// Fingerprint identifies the data returned by Samples.
func (r Record) Fingerprint() string {
	if r.Derived != nil {
		return r.DerivedFingerprint
	}
	return r.Volume.Fingerprint
}

// Key addresses a cached result: the content fingerprint plus an ordered
// tuple of the parameters that produced it.
type Key struct {
	Fingerprint string
	Params      string
}

// NewKey builds a key from a fingerprint, a result kind and its parameters
// in a fixed order.
func NewKey(fingerprint, kind string, params ...any) Key {
	p := kind
	for _, v := range params {
		p += fmt.Sprintf("|%v", v)
	}
	return Key{Fingerprint: fingerprint, Params: p}
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Fingerprint + "/" + k.Params
}

// Entry is a cached value. Values are immutable once stored.
type Entry struct {
	Value     any
	Size      int64
	CreatedAt time.Time
}

// Stats reports cache and registry occupancy.
type Stats struct {
	Entries int    `json:"cache_entries"`
	Bytes   int64  `json:"cache_bytes"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Volumes int    `json:"loaded_volumes"`
	Enabled bool   `json:"enabled"`
	Cleared uint64 `json:"cleared"`
}

// Store is the in-memory monitor for volumes and results.
type Store struct {
	mu      sync.Mutex
	volumes map[string]Record
	results map[Key]Entry

	enabled    bool
	nextID     uint64
	generation uint64

	hits    uint64
	misses  uint64
	cleared uint64
}

// New creates an empty store. With caching disabled every lookup misses and
// nothing is retained, while the registry keeps working.
func New(cacheEnabled bool) *Store {
	return &Store{
		volumes: make(map[string]Record),
		results: make(map[Key]Entry),
		enabled: cacheEnabled,
	}
}

// Get returns the cached value for key.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		s.misses++
		return nil, false
	}
	e, ok := s.results[key]
	if !ok {
		s.misses++
		return nil, false
	}
	s.hits++
	return e.Value, true
}

// Peek is Get without touching the hit and miss counters.
func (s *Store) Peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil, false
	}
	e, ok := s.results[key]
	return e.Value, ok
}

// Put stores value under key, replacing any previous entry. size is an
// estimate of the payload in bytes, used only for reporting.
func (s *Store) Put(key Key, value any, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}
	s.results[key] = Entry{Value: value, Size: size, CreatedAt: time.Now()}
}

// Clear drops every cached result and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.results)
	s.results = make(map[Key]Entry)
	s.cleared += uint64(n)
	return n
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Entries: len(s.results),
		Hits:    s.hits,
		Misses:  s.misses,
		Volumes: len(s.volumes),
		Enabled: s.enabled,
		Cleared: s.cleared,
	}
	for _, e := range s.results {
		st.Bytes += e.Size
	}
	return st
}

// Register adds a volume and returns its id. A volume without an id gets
// one assigned before it becomes visible to other goroutines. An id that is
// already registered is rejected so its stored results are never replaced.
func (s *Store) Register(vol *models.Volume) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vol.ID == "" {
		id := ""
		for id == "" || s.volumes[id].Volume != nil {
			s.nextID++
			id = fmt.Sprintf("vol-%04d", s.nextID)
		}
		vol.ID = id
	} else if _, ok := s.volumes[vol.ID]; ok {
		return "", zerr.With(zerr.Wrap(models.ErrDuplicateVolume, "volume id in use"), "volume", vol.ID)
	}
	if vol.Role == "" {
		vol.Role = models.RolePrimary
	}
	s.volumes[vol.ID] = Record{Volume: vol}
	return vol.ID, nil
}

// Remove deletes a volume and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.volumes[id]
	delete(s.volumes, id)
	return ok
}

// Snapshot returns the current registry record of a volume.
func (s *Store) Snapshot(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.volumes[id]
	if !ok {
		return Record{}, zerr.With(zerr.Wrap(models.ErrVolumeNotFound, "unknown volume"), "volume", id)
	}
	return rec, nil
}

// Volumes returns snapshots of all registered volumes ordered by id.
func (s *Store) Volumes() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.volumes))
	for _, rec := range s.volumes {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Volume.ID < out[j].Volume.ID })
	return out
}

// Companions returns the companion volumes of a subject ordered by id.
func (s *Store) Companions(subject string) []Record {
	var out []Record
	for _, rec := range s.Volumes() {
		if rec.Volume.Role == models.RoleCompanion && rec.Volume.Subject == subject {
			out = append(out, rec)
		}
	}
	return out
}

// SetDerived replaces the derived samples of a volume. Coordinates propagated
// from the previous samples are dropped.
func (s *Store) SetDerived(id string, data []float64, method string) error {
	fingerprint := models.Fingerprint(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.volumes[id]
	if !ok {
		return zerr.With(zerr.Wrap(models.ErrVolumeNotFound, "unknown volume"), "volume", id)
	}
	if len(data) != rec.Volume.Len() {
		return zerr.With(zerr.Wrap(models.ErrShapeMismatch, "derived data does not match volume"), "volume", id)
	}
	rec.Derived = data
	rec.DerivedMethod = method
	rec.DerivedFingerprint = fingerprint
	rec.Coordinates = nil
	rec.CoordinatesGeneration = 0
	s.volumes[id] = rec
	return nil
}

// SetNormalization stores n as the latest normalization of a primary and
// returns its generation. The last writer wins. Coordinates previously
// propagated to the subject's companions are dropped in the same critical
// section since they no longer match the stored transform.
func (s *Store) SetNormalization(id string, n Normalization) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.volumes[id]
	if !ok {
		return 0, zerr.With(zerr.Wrap(models.ErrVolumeNotFound, "unknown volume"), "volume", id)
	}
	if rec.Volume.Role != models.RolePrimary {
		return 0, zerr.With(zerr.Wrap(models.ErrNotPrimary, "only primary volumes can be normalized"), "volume", id)
	}

	s.generation++
	n.Generation = s.generation
	rec.Normalization = &n
	s.volumes[id] = rec

	for cid, c := range s.volumes {
		if c.Volume.Role == models.RoleCompanion && c.Volume.Subject == rec.Volume.Subject {
			c.Coordinates = nil
			c.CoordinatesGeneration = 0
			s.volumes[cid] = c
		}
	}

	return n.Generation, nil
}

// SetCoordinates stores propagated coordinates on a companion, provided the
// primary's normalization is still the one of the given generation. It
// reports false when a newer normalization has superseded it.
func (s *Store) SetCoordinates(companionID, primaryID string, generation uint64, set *propagation.CoordinateSet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	primary, ok := s.volumes[primaryID]
	if !ok {
		return false, zerr.With(zerr.Wrap(models.ErrVolumeNotFound, "unknown volume"), "volume", primaryID)
	}
	rec, ok := s.volumes[companionID]
	if !ok {
		return false, zerr.With(zerr.Wrap(models.ErrVolumeNotFound, "unknown volume"), "volume", companionID)
	}
	if rec.Volume.Role != models.RoleCompanion {
		return false, zerr.With(zerr.Wrap(models.ErrNotCompanion, "coordinates belong to companion volumes"), "volume", companionID)
	}
	if primary.Normalization == nil || primary.Normalization.Generation != generation {
		return false, nil
	}

	rec.Coordinates = set
	rec.CoordinatesGeneration = generation
	s.volumes[companionID] = rec
	return true, nil
}
