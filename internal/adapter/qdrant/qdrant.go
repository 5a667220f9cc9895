// Package qdrant implements the vector index on a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"petmatch/internal/domain"
	"petmatch/internal/port"
)

// Index implements port.VectorIndex using Qdrant point ids as animal ids.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
	distance    pb.Distance
}

// New connects to Qdrant and makes sure the collection exists with the
// requested dimension.
func New(ctx context.Context, host string, port int, collection string, dimension int, metric port.Metric) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	idx := NewWithConn(conn, collection, dimension, metric)
	if err := idx.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

// NewWithConn wraps an existing connection without touching the collection.
func NewWithConn(conn *grpc.ClientConn, collection string, dimension int, metric port.Metric) *Index {
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimension:   dimension,
		distance:    distanceFor(metric),
	}
}

func distanceFor(metric port.Metric) pb.Distance {
	switch metric {
	case port.MetricCosine:
		return pb.Distance_Cosine
	case port.MetricDot:
		return pb.Distance_Dot
	default:
		return pb.Distance_Euclid
	}
}

func (r *Index) ensureCollection(ctx context.Context) error {
	info, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
	if status.Code(err) == codes.NotFound {
		return r.createCollection(ctx)
	}
	if err != nil {
		return fmt.Errorf("qdrant collection info: %w", err)
	}

	params := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params != nil && params.GetSize() != uint64(r.dimension) {
		return fmt.Errorf("%w: collection %s has %d, configured %d",
			domain.ErrDimensionMismatch, r.collection, params.GetSize(), r.dimension)
	}
	return nil
}

func (r *Index) createCollection(ctx context.Context) error {
	_, err := r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{
				Size:     uint64(r.dimension),
				Distance: r.distance,
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

// ErrNegativeID is returned for ids that have no unsigned point id.
var ErrNegativeID = errors.New("qdrant: negative point id")

func pointID(id int64) (*pb.PointId, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeID, id)
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(id)}}, nil
}

func (r *Index) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		if len(e.Vector) != r.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, r.dimension, len(e.Vector))
		}
		pid, err := pointID(e.ID)
		if err != nil {
			return err
		}
		points[i] = &pb.PointStruct{
			Id:      pid,
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (r *Index) Search(ctx context.Context, query []float32, k int, params port.SearchParams) ([]domain.Neighbor, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         query,
		Limit:          uint64(k),
	}
	if params.EF > 0 {
		ef := uint64(params.EF)
		req.Params = &pb.SearchParams{HnswEf: &ef}
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	neighbors := make([]domain.Neighbor, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		neighbors[i] = domain.Neighbor{
			ID:    int64(pt.GetId().GetNum()),
			Score: pt.GetScore(),
		}
	}
	return neighbors, nil
}

func (r *Index) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pid, err := pointID(id)
		if err != nil {
			return err
		}
		pointIDs[i] = pid
	}

	wait := true
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: pointIDs},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (r *Index) Clear(ctx context.Context) error {
	_, err := r.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: r.collection})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("qdrant drop collection: %w", err)
	}
	return r.createCollection(ctx)
}

func (r *Index) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (r *Index) Dimension() int {
	return r.dimension
}

func (r *Index) Close() error {
	return r.conn.Close()
}

var _ port.VectorIndex = (*Index)(nil)
