package rag

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// atlasVectorSearch is the search index type that serves $vectorSearch.
const atlasVectorSearch = "vectorSearch"

// MongoStore is the MongoDB Atlas implementation of core.VectorStore.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	field  string
	log    logger.Sink
}

// NewMongoStore connects to uri and uses database dbName.
func NewMongoStore(ctx context.Context, uri, dbName, field string, log logger.Sink) (*MongoStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if field == "" {
		field = DefaultField
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to MongoDB: %v", core.ErrStore, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: MongoDB ping failed: %v", core.ErrStore, err)
	}
	log.Infof("Connected to MongoDB database %s", dbName)

	return &MongoStore{client: client, db: client.Database(dbName), field: field, log: log}, nil
}

// ReplaceAll deletes every document in the collection and inserts records.
func (s *MongoStore) ReplaceAll(ctx context.Context, collection string, records []core.Record) (int, error) {
	coll := s.db.Collection(collection)

	del, err := coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to clear collection %s: %v", core.ErrStore, collection, err)
	}
	s.log.Debugf("Deleted %d documents from %s", del.DeletedCount, collection)

	keep := storable(records)
	if len(keep) == 0 {
		s.log.Warnf("No records to insert into %s", collection)
		return 0, nil
	}

	docs := make([]interface{}, len(keep))
	for i, r := range keep {
		docs[i] = bson.D{{Key: fieldText, Value: r.Text}, {Key: s.field, Value: r.Embedding}}
	}

	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert into %s: %v", core.ErrStore, collection, err)
	}
	s.log.Infof("Inserted %d documents into %s", len(res.InsertedIDs), collection)
	return len(res.InsertedIDs), nil
}

// ApproximateSearch runs a $vectorSearch aggregation after confirming the
// named Atlas search index is of type vectorSearch.
func (s *MongoStore) ApproximateSearch(ctx context.Context, req core.SearchRequest) ([]core.Record, error) {
	coll := s.db.Collection(req.Collection)
	if err := s.checkIndex(ctx, coll, req); err != nil {
		return []core.Record{}, err
	}

	field := req.Field
	if field == "" {
		field = s.field
	}

	cur, err := coll.Aggregate(ctx, vectorSearchPipeline(req, field))
	if err != nil {
		return []core.Record{}, fmt.Errorf("%w: $vectorSearch on %s failed: %v", core.ErrStore, req.Collection, err)
	}
	defer cur.Close(ctx)

	var records []core.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			s.log.Warnf("Skipping undecodable search result: %v", err)
			continue
		}
		records = append(records, recordFromDocument(doc, field))
	}
	if err := cur.Err(); err != nil {
		return []core.Record{}, fmt.Errorf("%w: reading search results: %v", core.ErrStore, err)
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}

func (s *MongoStore) checkIndex(ctx context.Context, coll *mongo.Collection, req core.SearchRequest) error {
	cur, err := coll.SearchIndexes().List(ctx, options.SearchIndexes().SetName(req.Index))
	if err != nil {
		return fmt.Errorf("%w: listing search indexes on %s: %v", core.ErrStore, req.Collection, err)
	}
	defer cur.Close(ctx)

	var indexes []bson.M
	if err := cur.All(ctx, &indexes); err != nil {
		return fmt.Errorf("%w: reading search indexes: %v", core.ErrStore, err)
	}
	return checkSearchIndexes(req, indexes)
}

// checkSearchIndexes inspects the listSearchIndexes output for req.Index.
func checkSearchIndexes(req core.SearchRequest, indexes []bson.M) error {
	for _, idx := range indexes {
		if name, _ := idx["name"].(string); name != req.Index {
			continue
		}
		kind, _ := idx["type"].(string)
		if kind != atlasVectorSearch {
			if kind == "" {
				kind = "search"
			}
			return indexError(req, kind)
		}
		return nil
	}
	return indexError(req, "")
}

func vectorSearchPipeline(req core.SearchRequest, field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: req.Index},
			{Key: "path", Value: field},
			{Key: "queryVector", Value: req.Vector},
			{Key: "numCandidates", Value: candidatePool(req)},
			{Key: "limit", Value: req.Limit},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: fieldText, Value: 1},
			{Key: field, Value: 1},
		}}},
	}
}

func recordFromDocument(doc bson.M, field string) core.Record {
	text, _ := doc[fieldText].(string)
	v := doc[field]
	if a, ok := v.(bson.A); ok {
		v = []interface{}(a)
	}
	return core.Record{Text: text, Embedding: asFloat32s(v)}
}

// Count returns the number of documents in the collection.
func (s *MongoStore) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%w: count on %s failed: %v", core.ErrStore, collection, err)
	}
	return n, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
