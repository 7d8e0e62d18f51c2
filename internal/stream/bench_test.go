package stream

import (
	"math/rand"
	"sort"
	"testing"

	radix "github.com/armon/go-radix"
	anothertrie "github.com/dghubble/trie"
)

// These benchmarks compare the sorted-slice id index used in production
// here against the two tree-shaped string indexes the corpus already
// depends on for this purpose. Both are keyed on the id's string form since
// neither package is generic over a comparable key type.

func genRandIDs(seed int64, count int) []ID {
	randgen := rand.New(rand.NewSource(seed))
	ids := make([]ID, count)
	for i := range count {
		ids[i] = ID{Ms: randgen.Uint64(), Seq: randgen.Uint64()}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func BenchmarkSortedSliceInsert(b *testing.B) {
	ids := genRandIDs(1, 10000)
	s := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := ids[i%len(ids)]
		s.entries = append(s.entries, Entry{ID: id})
	}
}

func BenchmarkGoRadixInsert(b *testing.B) {
	ids := genRandIDs(1, 10000)
	rx := radix.New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rx.Insert(ids[i%len(ids)].String(), "v")
	}
}

func BenchmarkGoRadixSearch(b *testing.B) {
	ids := genRandIDs(1, 10000)
	rx := radix.New()
	for _, id := range ids {
		rx.Insert(id.String(), "v")
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rx.Get(ids[i%len(ids)].String())
	}
}

func BenchmarkDghubbleTrieInsert(b *testing.B) {
	ids := genRandIDs(1, 10000)
	trie := anothertrie.RuneTrie{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trie.Put(ids[i%len(ids)].String(), "v")
	}
}

func BenchmarkDghubbleTrieSearch(b *testing.B) {
	ids := genRandIDs(1, 10000)
	trie := anothertrie.RuneTrie{}
	for _, id := range ids {
		trie.Put(id.String(), "v")
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trie.Get(ids[i%len(ids)].String())
	}
}
