package ctdf

import "time"

// TelemetryEvent is the canonical form of a vehicle report once it has been
// validated, normalised and committed to the history ledger.
//
// The JSON keys match the payloads the dashboards already consume.
type TelemetryEvent struct {
	Vehicle  TelemetryVehicle  `json:"veiculo" bson:"veiculo" groups:"basic,detailed"`
	Location TelemetryLocation `json:"localizacao" bson:"localizacao" groups:"basic,detailed"`
	Estimate TelemetryEstimate `json:"estimativas" bson:"estimativas" groups:"detailed"`

	IsNewEvent bool      `json:"novo_evento" bson:"novo_evento" groups:"basic,detailed"`
	RecordedAt time.Time `json:"timestamp" bson:"timestamp" groups:"basic,detailed"`
}

type TelemetryVehicle struct {
	ID    int64      `json:"id" bson:"id" groups:"basic,detailed"`
	Route Identifier `json:"rota" bson:"rota" groups:"basic,detailed"`
}

type TelemetryLocation struct {
	CurrentStop TelemetryStop `json:"parada_atual" bson:"parada_atual" groups:"basic,detailed"`
	NextStop    TelemetryStop `json:"proxima_parada" bson:"proxima_parada" groups:"basic,detailed"`
}

type TelemetryStop struct {
	ID   Identifier `json:"id" bson:"id" groups:"basic,detailed"`
	Name string     `json:"nome" bson:"nome" groups:"basic,detailed"`
}

type TelemetryEstimate struct {
	DistanceKm float64 `json:"distancia_km" bson:"distancia_km" groups:"detailed"`
	Minutes    float64 `json:"tempo_min" bson:"tempo_min" groups:"detailed"`
}

// SameStopPair reports whether both events describe the vehicle between the
// same current and next stop.
func (e TelemetryEvent) SameStopPair(other TelemetryEvent) bool {
	return e.Location.CurrentStop.ID == other.Location.CurrentStop.ID &&
		e.Location.NextStop.ID == other.Location.NextStop.ID
}
