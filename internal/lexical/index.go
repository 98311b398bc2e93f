package lexical

import (
	"maps"
	"sync/atomic"

	"github.com/grantwell/grantwell/internal/store"
)

// Snapshot is an immutable view of the inverted index. All maps are
// owned by the snapshot and never mutated after publication; Apply
// clones what it touches instead of writing in place.
type Snapshot struct {
	// postings maps term -> chunk ID -> term frequency in that chunk.
	postings map[string]map[string]int
	// docFreq maps term -> number of distinct chunks containing it.
	// Always equal to len(postings[term]).
	docFreq map[string]int
	// chunkTerms maps chunk ID -> its term frequencies, kept so
	// removals can decrement postings without retokenizing.
	chunkTerms map[string]map[string]int
	// chunkLen maps chunk ID -> token count.
	chunkLen map[string]int

	totalLen   int
	generation uint64
}

// ChunkCount returns the number of indexed chunks.
func (s *Snapshot) ChunkCount() int { return len(s.chunkLen) }

// Generation returns the snapshot's monotonic version.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Contains reports whether the chunk is indexed.
func (s *Snapshot) Contains(chunkID string) bool {
	_, ok := s.chunkLen[chunkID]
	return ok
}

// Stats summarizes a snapshot for diagnostics.
type Stats struct {
	Chunks      int
	Terms       int
	AvgChunkLen float64
	Generation  uint64
}

// Stats returns summary statistics for the snapshot.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Chunks:      len(s.chunkLen),
		Terms:       len(s.postings),
		AvgChunkLen: s.avgChunkLen(),
		Generation:  s.generation,
	}
}

// avgChunkLen is the mean token count across indexed chunks.
func (s *Snapshot) avgChunkLen() float64 {
	if len(s.chunkLen) == 0 {
		return 0
	}
	return float64(s.totalLen) / float64(len(s.chunkLen))
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		postings:   map[string]map[string]int{},
		docFreq:    map[string]int{},
		chunkTerms: map[string]map[string]int{},
		chunkLen:   map[string]int{},
	}
}

// Index holds the currently published snapshot. Readers call Snapshot
// and score against it without locks; writers rebuild or diff a new
// snapshot and publish it with a single atomic swap.
type Index struct {
	current atomic.Pointer[Snapshot]
}

// NewIndex returns an index with an empty published snapshot. The
// initial snapshot has generation 0; every Rebuild or Apply publishes
// a higher generation, so 0 marks an index that was never built.
func NewIndex() *Index {
	idx := &Index{}
	idx.current.Store(emptySnapshot())
	return idx
}

// Snapshot returns the currently published snapshot.
func (idx *Index) Snapshot() *Snapshot {
	return idx.current.Load()
}

// Rebuild replaces the published snapshot with one built from scratch.
func (idx *Index) Rebuild(chunks []*store.Chunk) {
	next := emptySnapshot()
	next.generation = idx.current.Load().generation + 1
	e := &edit{s: next, owned: ownedAll{}}
	for _, c := range chunks {
		e.addChunk(c)
	}
	idx.current.Store(next)
}

// Apply publishes a new snapshot with the given chunks added and the
// given chunk IDs removed. A chunk ID appearing in both is treated as
// an update: removed first, then re-added. Unknown removal IDs are
// ignored.
func (idx *Index) Apply(added []*store.Chunk, removed []string) {
	prev := idx.current.Load()
	next := &Snapshot{
		postings:   maps.Clone(prev.postings),
		docFreq:    maps.Clone(prev.docFreq),
		chunkTerms: maps.Clone(prev.chunkTerms),
		chunkLen:   maps.Clone(prev.chunkLen),
		totalLen:   prev.totalLen,
		generation: prev.generation + 1,
	}

	e := &edit{s: next, owned: ownedSet{}}
	for _, id := range removed {
		e.removeChunk(id)
	}
	for _, c := range added {
		if next.Contains(c.ID) {
			e.removeChunk(c.ID)
		}
		e.addChunk(c)
	}
	idx.current.Store(next)
}

// termOwnership tracks which posting maps the edit may mutate in place.
// Maps inherited from the previous snapshot must be cloned before the
// first write; a fresh rebuild owns everything.
type termOwnership interface {
	owns(term string) bool
	claim(term string)
}

type ownedAll struct{}

func (ownedAll) owns(string) bool { return true }
func (ownedAll) claim(string)     {}

type ownedSet map[string]struct{}

func (o ownedSet) owns(term string) bool {
	_, ok := o[term]
	return ok
}
func (o ownedSet) claim(term string) { o[term] = struct{}{} }

// edit accumulates chunk additions and removals into an unpublished
// snapshot, cloning each inherited posting map at most once.
type edit struct {
	s     *Snapshot
	owned termOwnership
}

func (e *edit) posting(term string) map[string]int {
	chunkTF := e.s.postings[term]
	if !e.owned.owns(term) {
		chunkTF = maps.Clone(chunkTF)
		e.owned.claim(term)
	}
	if chunkTF == nil {
		chunkTF = make(map[string]int, 1)
	}
	return chunkTF
}

func (e *edit) addChunk(c *store.Chunk) {
	tf := TermFrequencies(c.Content)
	length := 0
	for term, count := range tf {
		length += count
		chunkTF := e.posting(term)
		chunkTF[c.ID] = count
		e.s.postings[term] = chunkTF
		e.s.docFreq[term] = len(chunkTF)
	}
	e.s.chunkTerms[c.ID] = tf
	e.s.chunkLen[c.ID] = length
	e.s.totalLen += length
}

func (e *edit) removeChunk(chunkID string) {
	tf, ok := e.s.chunkTerms[chunkID]
	if !ok {
		return
	}
	for term := range tf {
		chunkTF := e.posting(term)
		delete(chunkTF, chunkID)
		if len(chunkTF) == 0 {
			delete(e.s.postings, term)
			delete(e.s.docFreq, term)
		} else {
			e.s.postings[term] = chunkTF
			e.s.docFreq[term] = len(chunkTF)
		}
	}
	delete(e.s.chunkTerms, chunkID)
	e.s.totalLen -= e.s.chunkLen[chunkID]
	delete(e.s.chunkLen, chunkID)
}
