package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"google.golang.org/grpc"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// fieldID is the auto-generated int64 primary key of every collection.
const fieldID = "id"

// milvusAPI is the part of *milvusclient.Client the store uses.
type milvusAPI interface {
	Delete(ctx context.Context, option milvusclient.DeleteOption, callOptions ...grpc.CallOption) (milvusclient.DeleteResult, error)
	Insert(ctx context.Context, option milvusclient.InsertOption, callOptions ...grpc.CallOption) (milvusclient.InsertResult, error)
	Search(ctx context.Context, option milvusclient.SearchOption, callOptions ...grpc.CallOption) ([]milvusclient.ResultSet, error)
	Query(ctx context.Context, option milvusclient.QueryOption, callOptions ...grpc.CallOption) (milvusclient.ResultSet, error)
	ListIndexes(ctx context.Context, opt milvusclient.ListIndexOption, callOptions ...grpc.CallOption) ([]string, error)
	DescribeIndex(ctx context.Context, opt milvusclient.DescribeIndexOption, callOptions ...grpc.CallOption) (milvusclient.IndexDescription, error)
	HasCollection(ctx context.Context, option milvusclient.HasCollectionOption, callOptions ...grpc.CallOption) (bool, error)
	CreateCollection(ctx context.Context, option milvusclient.CreateCollectionOption, callOptions ...grpc.CallOption) error
	CreateIndex(ctx context.Context, option milvusclient.CreateIndexOption, callOptions ...grpc.CallOption) (*milvusclient.CreateIndexTask, error)
	LoadCollection(ctx context.Context, option milvusclient.LoadCollectionOption, callOptions ...grpc.CallOption) (milvusclient.LoadTask, error)
	Close(ctx context.Context) error
}

// MilvusStore is the Milvus implementation of core.VectorStore.
type MilvusStore struct {
	client milvusAPI
	field  string
	log    logger.Sink
}

// NewMilvusStore connects to Milvus at addr (host:port). field is the name
// of the float vector field written by ReplaceAll.
func NewMilvusStore(ctx context.Context, addr, field string, log logger.Sink) (*MilvusStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	log.Infof("Connecting to Milvus at %s", addr)

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: addr,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to Milvus: %v", core.ErrStore, err)
	}

	return newMilvusStore(c, field, log), nil
}

func newMilvusStore(client milvusAPI, field string, log logger.Sink) *MilvusStore {
	if log == nil {
		log = logger.Nop()
	}
	if field == "" {
		field = DefaultField
	}
	return &MilvusStore{client: client, field: field, log: log}
}

// ReplaceAll deletes every entity in the collection and inserts records.
func (s *MilvusStore) ReplaceAll(ctx context.Context, collection string, records []core.Record) (int, error) {
	delOpt := milvusclient.NewDeleteOption(collection).WithExpr(fieldID + " >= 0")
	if _, err := s.client.Delete(ctx, delOpt); err != nil {
		return 0, fmt.Errorf("%w: failed to clear collection %s: %v", core.ErrStore, collection, err)
	}

	keep := storable(records)
	if len(keep) == 0 {
		s.log.Warnf("No records to insert into %s", collection)
		return 0, nil
	}

	texts := make([]string, len(keep))
	vectors := make([][]float32, len(keep))
	for i, r := range keep {
		texts[i] = r.Text
		vectors[i] = r.Embedding
	}

	insOpt := milvusclient.NewColumnBasedInsertOption(collection).
		WithVarcharColumn(fieldText, texts).
		WithFloatVectorColumn(s.field, core.EmbeddingDim, vectors)
	res, err := s.client.Insert(ctx, insOpt)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert into %s: %v", core.ErrStore, collection, err)
	}

	s.log.Infof("Inserted %d records into %s", res.InsertCount, collection)
	return int(res.InsertCount), nil
}

// ApproximateSearch checks the index and runs an HNSW-backed search with
// ef set to the candidate pool size.
func (s *MilvusStore) ApproximateSearch(ctx context.Context, req core.SearchRequest) ([]core.Record, error) {
	if err := s.checkIndex(ctx, req); err != nil {
		return []core.Record{}, err
	}

	field := req.Field
	if field == "" {
		field = s.field
	}

	opt := milvusclient.NewSearchOption(req.Collection, req.Limit, []entity.Vector{entity.FloatVector(req.Vector)}).
		WithANNSField(field).
		WithOutputFields(fieldText, field).
		WithAnnParam(index.NewHNSWAnnParam(candidatePool(req))).
		WithConsistencyLevel(entity.ClStrong)

	sets, err := s.client.Search(ctx, opt)
	if err != nil {
		return []core.Record{}, fmt.Errorf("%w: search on %s failed: %v", core.ErrStore, req.Collection, err)
	}
	if len(sets) == 0 {
		return []core.Record{}, nil
	}
	return recordsFromResultSet(sets[0], field)
}

// checkIndex confirms req.Index exists on the collection and is a vector index.
func (s *MilvusStore) checkIndex(ctx context.Context, req core.SearchRequest) error {
	names, err := s.client.ListIndexes(ctx, milvusclient.NewListIndexOption(req.Collection))
	if err != nil {
		return fmt.Errorf("%w: listing indexes on %s: %v", core.ErrStore, req.Collection, err)
	}

	found := false
	for _, n := range names {
		if n == req.Index {
			found = true
			break
		}
	}
	if !found {
		return indexError(req, "")
	}

	desc, err := s.client.DescribeIndex(ctx, milvusclient.NewDescribeIndexOption(req.Collection, req.Index))
	if err != nil {
		return fmt.Errorf("%w: describing index %s: %v", core.ErrStore, req.Index, err)
	}

	kind := string(desc.IndexType())
	if !isMilvusVectorIndex(kind) {
		return indexError(req, kind)
	}
	return nil
}

// Count returns the number of entities in the collection.
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	opt := milvusclient.NewQueryOption(collection).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong)

	rs, err := s.client.Query(ctx, opt)
	if err != nil {
		return 0, fmt.Errorf("%w: count on %s failed: %v", core.ErrStore, collection, err)
	}

	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	return col.GetAsInt64(0)
}

// Close closes the connection to Milvus.
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}

// isMilvusVectorIndex reports whether an index type serves ANN search.
// Scalar kinds (INVERTED, STL_SORT, Trie, BITMAP) do not.
func isMilvusVectorIndex(kind string) bool {
	k := strings.ToUpper(kind)
	switch k {
	case "FLAT", "HNSW", "DISKANN", "SCANN", "AUTOINDEX":
		return true
	}
	return strings.HasPrefix(k, "IVF_") ||
		strings.HasPrefix(k, "GPU_") ||
		strings.HasPrefix(k, "BIN_")
}

// recordsFromResultSet reads text and vector columns row by row.
func recordsFromResultSet(rs milvusclient.ResultSet, field string) ([]core.Record, error) {
	textCol := rs.GetColumn(fieldText)
	if textCol == nil {
		return []core.Record{}, fmt.Errorf("%w: %s column missing from search result", core.ErrStore, fieldText)
	}
	vecCol := rs.GetColumn(field)

	records := make([]core.Record, 0, textCol.Len())
	for i := 0; i < textCol.Len(); i++ {
		text, err := textCol.GetAsString(i)
		if err != nil {
			continue
		}
		rec := core.Record{Text: text}
		if vecCol != nil && i < vecCol.Len() {
			if v, err := vecCol.Get(i); err == nil {
				rec.Embedding = asFloat32s(v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// asFloat32s converts the vector shapes returned by the store drivers.
func asFloat32s(v interface{}) []float32 {
	switch vv := v.(type) {
	case entity.FloatVector:
		return []float32(vv)
	case []float32:
		return vv
	case []float64:
		out := make([]float32, len(vv))
		for i, x := range vv {
			out[i] = float32(x)
		}
		return out
	case []interface{}:
		out := make([]float32, 0, len(vv))
		for _, x := range vv {
			switch n := x.(type) {
			case float64:
				out = append(out, float32(n))
			case float32:
				out = append(out, n)
			case int32:
				out = append(out, float32(n))
			case int64:
				out = append(out, float32(n))
			default:
				return nil
			}
		}
		return out
	}
	return nil
}
