package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/hunterwarburton/pantry/internal/core"
)

func TestIsMilvusVectorIndex(t *testing.T) {
	for _, k := range []string{"HNSW", "FLAT", "IVF_FLAT", "IVF_PQ", "DISKANN", "AUTOINDEX", "GPU_CAGRA", "BIN_FLAT", "hnsw"} {
		assert.True(t, isMilvusVectorIndex(k), k)
	}
	for _, k := range []string{"INVERTED", "STL_SORT", "Trie", "BITMAP", ""} {
		assert.False(t, isMilvusVectorIndex(k), k)
	}
}

func TestRecordsFromResultSet(t *testing.T) {
	rs := milvusclient.ResultSet{
		ResultCount: 2,
		Fields: milvusclient.DataSet{
			column.NewColumnVarChar(fieldText, []string{"first", "second"}),
			column.NewColumnFloatVector("embedding", 2, [][]float32{{1, 0}, {0, 1}}),
		},
	}

	records, err := recordsFromResultSet(rs, "embedding")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Text)
	assert.Equal(t, []float32{1, 0}, records[0].Embedding)
	assert.Equal(t, []float32{0, 1}, records[1].Embedding)
}

func TestRecordsFromResultSet_MissingText(t *testing.T) {
	_, err := recordsFromResultSet(milvusclient.ResultSet{}, "embedding")
	assert.Error(t, err)
}

func TestAsFloat32s(t *testing.T) {
	assert.Equal(t, []float32{1, 2}, asFloat32s(entity.FloatVector{1, 2}))
	assert.Equal(t, []float32{0.5}, asFloat32s([]float64{0.5}))
	assert.Equal(t, []float32{1, 2}, asFloat32s([]interface{}{1.0, int32(2)}))
	assert.Nil(t, asFloat32s([]interface{}{"x"}))
	assert.Nil(t, asFloat32s("nope"))
}

type fakeMilvus struct {
	milvusAPI

	indexes   []string
	desc      milvusclient.IndexDescription
	sets      []milvusclient.ResultSet
	inserted  int64
	deleteErr error

	deletes  int
	inserts  int
	searches int
}

func (f *fakeMilvus) Delete(context.Context, milvusclient.DeleteOption, ...grpc.CallOption) (milvusclient.DeleteResult, error) {
	f.deletes++
	return milvusclient.DeleteResult{}, f.deleteErr
}

func (f *fakeMilvus) Insert(context.Context, milvusclient.InsertOption, ...grpc.CallOption) (milvusclient.InsertResult, error) {
	f.inserts++
	return milvusclient.InsertResult{InsertCount: f.inserted}, nil
}

func (f *fakeMilvus) Search(context.Context, milvusclient.SearchOption, ...grpc.CallOption) ([]milvusclient.ResultSet, error) {
	f.searches++
	return f.sets, nil
}

func (f *fakeMilvus) ListIndexes(context.Context, milvusclient.ListIndexOption, ...grpc.CallOption) ([]string, error) {
	return f.indexes, nil
}

func (f *fakeMilvus) DescribeIndex(context.Context, milvusclient.DescribeIndexOption, ...grpc.CallOption) (milvusclient.IndexDescription, error) {
	return f.desc, nil
}

func searchRequest() core.SearchRequest {
	return core.SearchRequest{
		Collection:    "Vector",
		Index:         "cvector",
		Field:         "embedding",
		Vector:        []float32{1, 0},
		Limit:         3,
		NumCandidates: 60,
	}
}

func TestMilvusStore_ReplaceAll(t *testing.T) {
	fake := &fakeMilvus{inserted: 2}
	store := newMilvusStore(fake, "embedding", nil)

	n, err := store.ReplaceAll(context.Background(), "Vector", []core.Record{
		{Text: "first", Embedding: []float32{1, 0}},
		{Text: "  ", Embedding: []float32{1, 1}},
		{Text: "second", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, fake.deletes)
	assert.Equal(t, 1, fake.inserts)

	n, err = store.ReplaceAll(context.Background(), "Vector", []core.Record{{Text: "no vector"}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, fake.deletes)
	assert.Equal(t, 1, fake.inserts)
}

func TestMilvusStore_ReplaceAllDeleteFails(t *testing.T) {
	fake := &fakeMilvus{deleteErr: errors.New("collection not loaded")}
	store := newMilvusStore(fake, "embedding", nil)

	_, err := store.ReplaceAll(context.Background(), "Vector", []core.Record{{Text: "a", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, core.ErrStore)
	assert.Zero(t, fake.inserts)
}

func TestMilvusStore_Search(t *testing.T) {
	fake := &fakeMilvus{
		indexes: []string{"text_idx", "cvector"},
		desc:    milvusclient.IndexDescription{Index: index.NewHNSWIndex(entity.COSINE, 16, 200)},
		sets: []milvusclient.ResultSet{{
			ResultCount: 1,
			Fields: milvusclient.DataSet{
				column.NewColumnVarChar(fieldText, []string{"first"}),
				column.NewColumnFloatVector("embedding", 2, [][]float32{{1, 0}}),
			},
		}},
	}
	store := newMilvusStore(fake, "embedding", nil)

	records, err := store.ApproximateSearch(context.Background(), searchRequest())
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Text: "first", Embedding: []float32{1, 0}}}, records)
}

func TestMilvusStore_SearchMissingIndex(t *testing.T) {
	fake := &fakeMilvus{indexes: []string{"text_idx"}}
	store := newMilvusStore(fake, "embedding", nil)

	records, err := store.ApproximateSearch(context.Background(), searchRequest())
	assert.Empty(t, records)
	assert.NotNil(t, records)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	var ie *core.IndexError
	require.True(t, errors.As(err, &ie))
	assert.Empty(t, ie.Kind)
	assert.Zero(t, fake.searches)
}

func TestMilvusStore_SearchWrongIndexKind(t *testing.T) {
	fake := &fakeMilvus{
		indexes: []string{"cvector"},
		desc:    milvusclient.IndexDescription{Index: index.NewInvertedIndex()},
	}
	store := newMilvusStore(fake, "embedding", nil)

	records, err := store.ApproximateSearch(context.Background(), searchRequest())
	assert.Empty(t, records)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	var ie *core.IndexError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "INVERTED", ie.Kind)
	assert.Zero(t, fake.searches)
}
