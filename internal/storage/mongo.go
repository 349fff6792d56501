package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository keys records by owner id via _id, so per-owner
// uniqueness is enforced by the collection itself.
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoRepository(ctx context.Context, uri, dbName, collName string) (*MongoRepository, error) {
	if uri == "" {
		return nil, errors.New("storage: mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return &MongoRepository{client: cli, coll: cli.Database(dbName).Collection(collName)}, nil
}

func (m *MongoRepository) Get(ctx context.Context, ownerID string) (*VaultRecord, error) {
	var rec VaultRecord
	err := m.coll.FindOne(ctx, bson.M{"_id": ownerID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MongoRepository) Create(ctx context.Context, rec VaultRecord) error {
	_, err := m.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

// Update is a conditional FindOneAndUpdate filtered on both owner and
// expected revision, so two devices pushing at once cannot both win.
func (m *MongoRepository) Update(ctx context.Context, ownerID string, expected uint64, blob []byte, device string, now time.Time) (*VaultRecord, error) {
	var rec VaultRecord
	err := m.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": ownerID, "revision": expected},
		bson.M{
			"$set": bson.M{
				"blob":            blob,
				"updatedByDevice": device,
				"updatedAt":       now,
			},
			"$inc": bson.M{"revision": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The CAS missed: either no record, or the revision moved.
	cur, err := m.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return nil, &RevisionMismatchError{
		Revision:  cur.Revision,
		Device:    cur.UpdatedByDevice,
		UpdatedAt: cur.UpdatedAt,
	}
}

func (m *MongoRepository) Replace(ctx context.Context, rec VaultRecord) error {
	_, err := m.coll.ReplaceOne(
		ctx,
		bson.M{"_id": rec.OwnerID},
		rec,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoRepository) Delete(ctx context.Context, ownerID string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": ownerID})
	return err
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
