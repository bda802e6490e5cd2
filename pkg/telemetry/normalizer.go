package telemetry

import (
	"fmt"
	"math"

	"github.com/travigo/telemetria/pkg/ctdf"
)

const DefaultStopNameFormat = "Stop %s"

// minutesPerKm is the fallback travel estimate used when the vehicle does not
// report one itself.
const minutesPerKm = 2

type Normalizer struct {
	// StopNameFormat is applied to the stop id when the report carries no
	// display name. It must contain a single %s verb.
	StopNameFormat string
}

// Parse runs a payload through decoding, validation and normalisation.
func (n Normalizer) Parse(payload []byte) (ctdf.TelemetryEvent, error) {
	report, err := Decode(payload)
	if err != nil {
		return ctdf.TelemetryEvent{}, err
	}

	if err := Validate(report); err != nil {
		return ctdf.TelemetryEvent{}, err
	}

	return n.Normalize(report)
}

// Normalize maps a validated report onto the canonical event shape. IsNewEvent
// and RecordedAt are left for the ledger to assign.
func (n Normalizer) Normalize(report RawReport) (ctdf.TelemetryEvent, error) {
	vehicle, err := vehicleID(report[FieldVehicleID])
	if err != nil {
		return ctdf.TelemetryEvent{}, err
	}
	route, err := identifier(FieldRouteID, report[FieldRouteID])
	if err != nil {
		return ctdf.TelemetryEvent{}, err
	}
	currentStop, err := identifier(FieldStopID, report[FieldStopID])
	if err != nil {
		return ctdf.TelemetryEvent{}, err
	}
	nextStop, err := identifier(FieldNextStopID, report[FieldNextStopID])
	if err != nil {
		return ctdf.TelemetryEvent{}, err
	}
	distance, err := nonNegative(FieldDistanceKm, report[FieldDistanceKm])
	if err != nil {
		return ctdf.TelemetryEvent{}, err
	}

	minutes := EstimateMinutes(distance)
	if report.present(FieldMinutes) {
		minutes, err = nonNegative(FieldMinutes, report[FieldMinutes])
		if err != nil {
			return ctdf.TelemetryEvent{}, err
		}
	} else if math.IsInf(minutes, 0) {
		return ctdf.TelemetryEvent{}, &ValidationError{Field: FieldDistanceKm, Reason: "too large to estimate minutes"}
	}

	return ctdf.TelemetryEvent{
		Vehicle: ctdf.TelemetryVehicle{
			ID:    vehicle,
			Route: route,
		},
		Location: ctdf.TelemetryLocation{
			CurrentStop: ctdf.TelemetryStop{
				ID:   currentStop,
				Name: n.stopName(report[FieldStopName], currentStop),
			},
			NextStop: ctdf.TelemetryStop{
				ID:   nextStop,
				Name: n.stopName(report[FieldNextStopName], nextStop),
			},
		},
		Estimate: ctdf.TelemetryEstimate{
			DistanceKm: distance,
			Minutes:    minutes,
		},
	}, nil
}

// EstimateMinutes is the fixed 2 minutes per kilometre heuristic, rounded up.
func EstimateMinutes(distanceKm float64) float64 {
	return math.Ceil(distanceKm * minutesPerKm)
}

func (n Normalizer) stopName(value any, id ctdf.Identifier) string {
	if name, ok := value.(string); ok && name != "" {
		return name
	}

	format := n.StopNameFormat
	if format == "" {
		format = DefaultStopNameFormat
	}

	return fmt.Sprintf(format, id.String())
}
