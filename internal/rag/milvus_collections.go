package rag

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/hunterwarburton/pantry/internal/core"
)

const maxTextLength = "65535"

// EnsureCollection creates the collection with an HNSW/COSINE index named
// index over field, if it does not exist yet, and loads it into memory.
func (s *MilvusStore) EnsureCollection(ctx context.Context, collection, indexName, field string) error {
	if field == "" {
		field = s.field
	}

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: collection,
			Description:    "Document chunks and their embeddings",
			Fields: []*entity.Field{
				{
					Name:       fieldID,
					DataType:   entity.FieldTypeInt64,
					PrimaryKey: true,
					AutoID:     true,
				},
				{
					Name:     fieldText,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": maxTextLength,
					},
				},
				{
					Name:     field,
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", core.EmbeddingDim),
					},
				},
			},
		}

		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(collection, schema)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", collection, err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collection, field, idx).WithIndexName(indexName))
		if err != nil {
			return fmt.Errorf("failed to create index on vector field: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("index %s did not finish building: %w", indexName, err)
		}

		s.log.Infof("Created collection %s with index %s on %s", collection, indexName, field)
	}

	load, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to load collection %s into memory: %w", collection, err)
	}
	if err := load.Await(ctx); err != nil {
		return fmt.Errorf("failed to load collection %s into memory: %w", collection, err)
	}
	s.log.Debugf("Loaded collection %s", collection)
	return nil
}
