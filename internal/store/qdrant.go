package store

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig configures the remote vector index.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dimensions int
}

// QdrantIndex is a VectorIndex backed by a remote Qdrant collection.
// It implements FilteredVectorIndex: document attributes are stored as
// point payload, so metadata filters run inside the index instead of as
// a post-filter discard.
//
// The collection is assumed to be provisioned by the ingestion service.
// Chunk IDs must be UUIDs; Qdrant point IDs accept nothing else.
type QdrantIndex struct {
	mu     sync.RWMutex
	conn   *grpc.ClientConn
	points pb.PointsClient
	config QdrantConfig
	count  int
	closed bool
}

var _ FilteredVectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex connects to a Qdrant instance.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantIndex{
		conn:   conn,
		points: pb.NewPointsClient(conn),
		config: cfg,
	}, nil
}

// Add upserts records with their filterable payload.
func (q *QdrantIndex) Add(ctx context.Context, records []*VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("index is closed")
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		if len(r.Vector) != q.config.Dimensions {
			return ErrDimensionMismatch{Expected: q.config.Dimensions, Got: len(r.Vector)}
		}
		payload := map[string]*pb.Value{
			"document_id": stringValue(r.DocumentID),
			"type":        stringValue(string(r.Type)),
			"programs":    stringListValue(r.Programs),
			"tags":        stringListValue(r.Tags),
			"year":        {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Year)}},
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ChunkID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}}},
			Payload: payload,
		}
	}

	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.config.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	q.count += len(records)
	return nil
}

// Search returns up to k nearest neighbors, highest similarity first.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	return q.SearchFiltered(ctx, query, k, nil)
}

// SearchFiltered runs a nearest-neighbor search with the metadata filter
// translated to a Qdrant payload filter.
func (q *QdrantIndex) SearchFiltered(ctx context.Context, query []float32, k int, f *MetadataFilter) ([]*VectorResult, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != q.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: q.config.Dimensions, Got: len(query)}
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.config.Collection,
		Vector:         query,
		Limit:          uint64(k),
		Filter:         buildQdrantFilter(f),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]*VectorResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = &VectorResult{
			ID:    pt.Id.GetUuid(),
			Score: pt.Score,
		}
	}
	return results, nil
}

// Delete removes points by chunk ID.
func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("index is closed")
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.config.Collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	q.count -= len(ids)
	if q.count < 0 {
		q.count = 0
	}
	return nil
}

// Count returns the locally tracked point count.
func (q *QdrantIndex) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

// Close closes the gRPC connection. Idempotent.
func (q *QdrantIndex) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.conn.Close()
}

// buildQdrantFilter translates a MetadataFilter to a Qdrant payload filter.
// All clauses are AND'd (Must); set clauses use keyword any-of matching,
// which gives intersection semantics against array payload fields.
func buildQdrantFilter(f *MetadataFilter) *pb.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*pb.Condition
	if len(f.Types) > 0 {
		keywords := make([]string, len(f.Types))
		for i, t := range f.Types {
			keywords[i] = string(t)
		}
		must = append(must, keywordsCondition("type", keywords))
	}
	if len(f.Programs) > 0 {
		must = append(must, keywordsCondition("programs", f.Programs))
	}
	if len(f.Tags) > 0 {
		must = append(must, keywordsCondition("tags", f.Tags))
	}
	if f.YearFrom > 0 || f.YearTo > 0 {
		r := &pb.Range{}
		if f.YearFrom > 0 {
			gte := float64(f.YearFrom)
			r.Gte = &gte
		}
		if f.YearTo > 0 {
			lte := float64(f.YearTo)
			r.Lte = &lte
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{Key: "year", Range: r},
			},
		})
	}

	return &pb.Filter{Must: must}
}

func keywordsCondition(key string, keywords []string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keywords{
						Keywords: &pb.RepeatedStrings{Strings: keywords},
					},
				},
			},
		},
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func stringListValue(values []string) *pb.Value {
	list := make([]*pb.Value, len(values))
	for i, v := range values {
		list[i] = stringValue(v)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: list}}}
}
