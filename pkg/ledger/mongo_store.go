package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/travigo/telemetria/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultMongoDocumentID = "historico"

type mongoLedgerDocument struct {
	ID                   string                `bson:"_id"`
	Events               []ctdf.TelemetryEvent `bson:"events"`
	ModificationDateTime time.Time             `bson:"modificationdatetime"`
}

// MongoStore keeps the whole ledger in one document which is replaced on every
// save.
type MongoStore struct {
	collection *mongo.Collection
	documentID string
}

func NewMongoStore(collection *mongo.Collection, documentID string) *MongoStore {
	if documentID == "" {
		documentID = DefaultMongoDocumentID
	}

	return &MongoStore{
		collection: collection,
		documentID: documentID,
	}
}

func (s *MongoStore) Load(ctx context.Context) ([]ctdf.TelemetryEvent, error) {
	var document mongoLedgerDocument

	err := s.collection.FindOne(ctx, bson.M{"_id": s.documentID}).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		events := []ctdf.TelemetryEvent{}
		return events, s.Save(ctx, events)
	} else if err != nil {
		return nil, err
	}

	if document.Events == nil {
		document.Events = []ctdf.TelemetryEvent{}
	}

	return document.Events, nil
}

func (s *MongoStore) Save(ctx context.Context, events []ctdf.TelemetryEvent) error {
	if events == nil {
		events = []ctdf.TelemetryEvent{}
	}

	document := mongoLedgerDocument{
		ID:                   s.documentID,
		Events:               events,
		ModificationDateTime: time.Now(),
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": s.documentID}, document, opts)

	return err
}
