package semantic

import (
	"context"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/docent-ai/docent/engine/domain"
)

// callTimeout caps any single Qdrant RPC.
const callTimeout = 15 * time.Second

// Store is the sole owner of all Qdrant operations. Points from every
// namespace share one collection and are isolated by a namespace payload
// filter on every read and delete.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	timeout     time.Duration
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		timeout:     callTimeout,
	}, nil
}

// opCtx attaches the store's RPC deadline; a tighter parent deadline wins.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores chunk embeddings under a namespace. Point identity is
// derived from (namespace, doc, sequence), so repeated indexing of the
// same document overwrites in place.
func (s *Store) Upsert(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(namespace, e.Chunk.DocID, e.Chunk.Sequence)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: e.Embedding},
				},
			},
			Payload: chunkPayload(namespace, e.Chunk),
		}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(entries), err)
	}
	return nil
}

// Query performs k-NN similarity search within a namespace. Hits scoring
// below threshold are cut off server-side.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int, threshold float32) ([]domain.Scored, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         namespaceFilter(namespace),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]domain.Scored, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = domain.Scored{
			Chunk: chunkFromPayload(r.GetPayload()),
			Score: r.GetScore(),
		}
	}
	return hits, nil
}

// DeleteDocument removes all points of one document within a namespace.
func (s *Store) DeleteDocument(ctx context.Context, namespace, docID string) error {
	return s.deleteFiltered(ctx, &pb.Filter{
		Must: []*pb.Condition{
			fieldMatch("namespace", namespace),
			fieldMatch("doc_id", docID),
		},
	}, fmt.Sprintf("doc %s", docID))
}

// DeleteFrom removes a document's points at or past fromSequence within a
// namespace. Re-indexing upserts in place and then calls this to trim
// sequences the shorter document no longer has.
func (s *Store) DeleteFrom(ctx context.Context, namespace, docID string, fromSequence int) error {
	return s.deleteFiltered(ctx, &pb.Filter{
		Must: []*pb.Condition{
			fieldMatch("namespace", namespace),
			fieldMatch("doc_id", docID),
			fieldAtLeast("sequence", float64(fromSequence)),
		},
	}, fmt.Sprintf("doc %s tail", docID))
}

// Reset removes every point in a namespace.
func (s *Store) Reset(ctx context.Context, namespace string) error {
	return s.deleteFiltered(ctx, namespaceFilter(namespace), "namespace")
}

func (s *Store) deleteFiltered(ctx context.Context, filter *pb.Filter, what string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %s: %w", what, err)
	}
	return nil
}

// Sample scrolls up to limit chunks from a namespace without a query
// vector. Chunks come back in stored order, which follows point identity
// rather than document order; callers wanting document order sort by
// (doc, sequence).
func (s *Store) Sample(ctx context.Context, namespace string, limit int) ([]domain.Chunk, error) {
	req := &pb.ScrollPoints{
		CollectionName: s.collection,
		Filter:         namespaceFilter(namespace),
		Limit:          ptr(uint32(limit)),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	resp, err := s.points.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: scroll: %w", err)
	}

	chunks := make([]domain.Chunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		chunks[i] = chunkFromPayload(r.GetPayload())
	}
	return chunks, nil
}

// Count reports the number of points stored under a namespace.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Filter:         namespaceFilter(namespace),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func namespaceFilter(namespace string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{fieldMatch("namespace", namespace)},
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func fieldAtLeast(key string, min float64) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Range: &pb.Range{Gte: &min},
			},
		},
	}
}

func ptr[T any](v T) *T { return &v }
