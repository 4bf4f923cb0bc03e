package vectordb

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f[text], nil
}

type countingStore struct {
	*MemoryStore
	batches []int
}

func (c *countingStore) Upsert(ctx context.Context, records []Record) (int, error) {
	c.batches = append(c.batches, len(records))
	return c.MemoryStore.Upsert(ctx, records)
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Upsert(ctx, []Record{
		{ID: "a", Values: []float32{1, 0}, Metadata: map[string]any{"text": "a"}},
		{ID: "b", Values: []float32{0.7, 0.7}},
		{ID: "c", Values: []float32{0, 1}},
		{ID: "wrong-dim", Values: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	got, err := s.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "b", got[1].ID)

	_, err = s.Query(ctx, []float32{1, 0}, 0)
	assert.Error(t, err)
	_, err = s.Query(ctx, []float32{1, 0}, 101)
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 0}))
}

func TestLoadBatches(t *testing.T) {
	emb := fixedEmbedder{}
	var docs []Document
	for i := 0; i < 5; i++ {
		text := string(rune('a' + i))
		emb[text] = []float32{float32(i + 1), 1}
		docs = append(docs, Document{ID: text, Text: text, Metadata: map[string]any{"source": "test"}})
	}

	store := &countingStore{MemoryStore: NewMemoryStore()}
	n, err := Load(context.Background(), store, emb, docs, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 2, 1}, store.batches)

	got, err := store.Query(context.Background(), []float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].Metadata["text"])
	assert.Equal(t, "test", got[0].Metadata["source"])
}

func TestReadDocuments(t *testing.T) {
	in := `{"id":"1","text":"What is DeFi?","metadata":{"source":"faq","response":"DeFi is..."}}

{"id":"2","text":"What is staking?"}
`
	docs, err := ReadDocuments(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "faq", docs[0].Metadata["source"])
	assert.Equal(t, "What is staking?", docs[1].Text)

	_, err = ReadDocuments(strings.NewReader(`{"id":"","text":"x"}`))
	assert.ErrorContains(t, err, "line 1")

	_, err = ReadDocuments(strings.NewReader("not json"))
	assert.Error(t, err)
}
