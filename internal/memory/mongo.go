package memory

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)


// mongoDocument stores the snapshot JSON as a string so the document keeps
// exactly the shape of the memory file
type mongoDocument struct {
	ID       string `bson:"_id"`
	Snapshot string `bson:"snapshot"`
}

// MongoPersister keeps the memory as one document in a collection
type MongoPersister struct {
	collection *mongo.Collection
	client     *mongo.Client
}

// NewMongoPersister wraps an existing collection
func NewMongoPersister(collection *mongo.Collection) *MongoPersister {
	return &MongoPersister{collection: collection}
}

// ConnectMongoPersister dials uri and opens database.collection
func ConnectMongoPersister(ctx context.Context, uri, database, collection string) (*MongoPersister, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	p := NewMongoPersister(client.Database(database).Collection(collection))
	p.client = client
	return p, nil
}

// Close disconnects a client opened by ConnectMongoPersister
func (m *MongoPersister) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func (m *MongoPersister) Name() string { return "mongo" }

func (m *MongoPersister) Load(ctx context.Context) (*Snapshot, error) {
	var doc mongoDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": snapshotID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find memory document: %w", err)
	}
	return decodeSnapshot([]byte(doc.Snapshot))
}

func (m *MongoPersister) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	doc := mongoDocument{ID: snapshotID, Snapshot: string(data)}
	_, err = m.collection.ReplaceOne(ctx, bson.M{"_id": snapshotID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace memory document: %w", err)
	}
	return nil
}
