package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/travigo/telemetria/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func storedDocument(t *testing.T, document mongoLedgerDocument) bson.D {
	t.Helper()

	raw, err := bson.Marshal(document)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}

	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}

	return d
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load existing document", func(mt *mtest.T) {
		first := parse(mt.T, `{"id_onibus":4,"id_rota":"T2","id_parada":7,"id_proxima_parada":"8A","distancia_km":0.5}`)
		first.RecordedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

		namespace := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace, mtest.FirstBatch, storedDocument(mt.T, mongoLedgerDocument{
			ID:     DefaultMongoDocumentID,
			Events: []ctdf.TelemetryEvent{first},
		})))

		events, err := NewMongoStore(mt.Coll, "").Load(context.Background())
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 1 {
			mt.Fatalf("expected 1 event, got %d", len(events))
		}

		loaded := events[0]
		if loaded.Vehicle.ID != 4 || loaded.Vehicle.Route.String() != "T2" {
			mt.Errorf("vehicle = %+v", loaded.Vehicle)
		}
		if !loaded.Location.CurrentStop.ID.IsNumeric() || loaded.Location.CurrentStop.ID.String() != "7" {
			mt.Errorf("current stop = %+v", loaded.Location.CurrentStop)
		}
		if loaded.Location.NextStop.ID.IsNumeric() || loaded.Location.NextStop.ID.String() != "8A" {
			mt.Errorf("next stop = %+v", loaded.Location.NextStop)
		}
	})

	mt.Run("missing document is created", func(mt *mtest.T) {
		namespace := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace, mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		events, err := NewMongoStore(mt.Coll, "").Load(context.Background())
		if err != nil {
			mt.Fatalf("unexpected error: %v", err)
		}
		if events == nil || len(events) != 0 {
			mt.Errorf("expected an empty, non nil history, got %#v", events)
		}
	})

	mt.Run("save failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized on telemetria",
		}))

		if err := NewMongoStore(mt.Coll, "").Save(context.Background(), nil); err == nil {
			mt.Error("expected an error from a rejected replace")
		}
	})
}
