package vectordb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Embedder is the subset of embedding.Embedder the loaders need.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Document is a knowledge base entry before embedding.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// DemoDocuments is the knowledge base served in demo mode.
var DemoDocuments = []Document{
	{
		ID:   "demo-defi",
		Text: "DeFi (Decentralized Finance) refers to financial services built on blockchain technology.",
		Metadata: map[string]any{
			"source": "DeFi Guide",
		},
	},
	{
		ID:   "demo-yield",
		Text: "Yield farming involves providing liquidity to earn rewards.",
		Metadata: map[string]any{
			"source": "Yield Guide",
		},
	},
	{
		ID:   "demo-liquidity",
		Text: "Liquidity pools hold pairs of tokens so traders can swap against them; providers earn a share of trading fees.",
		Metadata: map[string]any{
			"source": "Liquidity Guide",
		},
	},
	{
		ID:   "demo-impermanent-loss",
		Text: "Impermanent loss is the value difference between holding tokens and providing them as liquidity when prices move.",
		Metadata: map[string]any{
			"source": "Liquidity Guide",
		},
	},
}

// Load embeds docs and upserts them in batches of batchSize. The document
// text is kept in the metadata so direct hits can be answered verbatim.
func Load(ctx context.Context, store Store, emb Embedder, docs []Document, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	total := 0
	batch := make([]Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := store.Upsert(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for _, d := range docs {
		vec, err := emb.Embed(ctx, d.Text)
		if err != nil {
			return total, fmt.Errorf("embed %s: %w", d.ID, err)
		}
		meta := make(map[string]any, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		if _, ok := meta["text"]; !ok {
			meta["text"] = d.Text
		}
		batch = append(batch, Record{ID: d.ID, Values: vec, Metadata: meta})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// ReadDocuments parses one JSON document per line. Blank lines are skipped.
func ReadDocuments(r io.Reader) ([]Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var docs []Document
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var d Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if d.ID == "" || strings.TrimSpace(d.Text) == "" {
			return nil, fmt.Errorf("line %d: id and text are required", line)
		}
		docs = append(docs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
