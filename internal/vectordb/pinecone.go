package vectordb

import (
	"context"
	"errors"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeStore queries a serverless Pinecone index.
type PineconeStore struct {
	index     string
	namespace string
	conn      *pinecone.IndexConnection
}

// NewPineconeStore resolves the index host and opens a data plane connection.
func NewPineconeStore(ctx context.Context, apiKey, index, namespace string) (*PineconeStore, error) {
	if apiKey == "" {
		return nil, errors.New("pinecone: api key is required")
	}
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("pinecone: create client: %w", err)
	}
	desc, err := pc.DescribeIndex(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("pinecone: describe index %s: %w", index, err)
	}
	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: desc.Host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect to %s: %w", desc.Host, err)
	}
	return &PineconeStore{index: index, namespace: namespace, conn: conn}, nil
}

func (s *PineconeStore) Name() string { return "pinecone:" + s.index }

func (s *PineconeStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := checkTopK(topK); err != nil {
		return nil, err
	}
	resp, err := s.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}
	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := Match{ID: m.Vector.Id, Score: float64(m.Score), Metadata: map[string]any{}}
		if m.Vector.Metadata != nil {
			match.Metadata = m.Vector.Metadata.AsMap()
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (s *PineconeStore) Upsert(ctx context.Context, records []Record) (int, error) {
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, r := range records {
		meta, err := structpb.NewStruct(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("pinecone: metadata of %s: %w", r.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{Id: r.ID, Values: r.Values, Metadata: meta})
	}
	n, err := s.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("pinecone: upsert: %w", err)
	}
	return int(n), nil
}

func (s *PineconeStore) Ping(ctx context.Context) error {
	_, err := s.conn.DescribeIndexStats(ctx)
	return err
}

func (s *PineconeStore) Close() error {
	return s.conn.Close()
}
