// Package dense provides the embedding-vector index backend: an in-memory
// brute-force store with binary persistence, fronted by an embedder.
package dense

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store is an in-memory vector store using brute-force inner product search.
// Suitable for corpora up to a few hundred thousand chunks.
type Store struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	byID       map[string]int
	mu         sync.RWMutex
}

// NewStore creates an in-memory vector store with the given dimension.
func NewStore(dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Store{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}, nil
}

// Upsert stores vectors under the given IDs. An existing ID has its vector
// replaced in place, so re-indexing a chunk never duplicates an entry.
func (s *Store) Upsert(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != s.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), s.dimensions)
		}
		vec := make([]float32, s.dimensions)
		copy(vec, vectors[i])
		if pos, ok := s.byID[id]; ok {
			s.vectors[pos] = vec
			continue
		}
		s.byID[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, vec)
	}
	return nil
}

// scoredHit pairs an ID with its raw inner-product score.
type scoredHit struct {
	id    string
	score float64
}

// Search returns the top-k vectors by inner product (cosine similarity for
// normalized vectors). Ties break by lower ID for determinism.
func (s *Store) Search(query []float32, k int) ([]scoredHit, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.ids) == 0 {
		return nil, nil
	}
	scores := make([]scoredHit, len(s.ids))
	for i, vec := range s.vectors {
		var dot float64
		for j := 0; j < s.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		scores[i] = scoredHit{id: s.ids[i], score: dot}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// RemoveFunc removes every vector whose ID matches the predicate.
func (s *Store) RemoveFunc(match func(id string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newIDs := s.ids[:0]
	newVectors := s.vectors[:0]
	for i, id := range s.ids {
		if match(id) {
			continue
		}
		newIDs = append(newIDs, id)
		newVectors = append(newVectors, s.vectors[i])
	}
	s.ids = newIDs
	s.vectors = newVectors
	s.byID = make(map[string]int, len(s.ids))
	for i, id := range s.ids {
		s.byID[id] = i
	}
}

// Size returns the number of vectors in the store.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Save persists the store to path. Directory is created if needed. Format:
// dimension (4), n (4), then per vector: idLen (4), id bytes, vector
// (dimension*4 bytes).
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(s.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range s.ids {
		idBytes := []byte(id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(s.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the store from path and replaces the in-memory contents.
// Dimensions must match. A missing file is not an error; the store is
// unchanged.
func (s *Store) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != s.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, store expects %d", dim, s.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make([]string, 0, n)
	s.vectors = make([][]float32, 0, n)
	s.byID = make(map[string]int, n)
	buf := make([]byte, s.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		id := string(idBytes)
		s.byID[id] = len(s.ids)
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, bytesToFloat32Slice(buf))
	}
	return nil
}

func float32SliceToBytes(v []float32) []byte {
	const size = 4
	out := make([]byte, len(v)*size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(f))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
