package ingest

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/travigo/telemetria/pkg/ctdf"
)

var ErrFiltered = errors.New("report rejected by ingest filter")

type filterEnvironment struct {
	VehicleID       int64   `expr:"vehicle_id"`
	Route           string  `expr:"route"`
	CurrentStop     string  `expr:"current_stop"`
	CurrentStopName string  `expr:"current_stop_name"`
	NextStop        string  `expr:"next_stop"`
	NextStopName    string  `expr:"next_stop_name"`
	DistanceKm      float64 `expr:"distance_km"`
	Minutes         float64 `expr:"minutes"`
}

// Filter is a boolean expression over a normalised report, for example
// `route == "L1" && distance_km < 50`.
type Filter struct {
	source  string
	program *vm.Program
}

func NewFilter(source string) (*Filter, error) {
	program, err := expr.Compile(source, expr.Env(filterEnvironment{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile ingest filter: %w", err)
	}

	return &Filter{
		source:  source,
		program: program,
	}, nil
}

func (f *Filter) String() string {
	return f.source
}

func (f *Filter) Match(event ctdf.TelemetryEvent) (bool, error) {
	output, err := expr.Run(f.program, filterEnvironment{
		VehicleID:       event.Vehicle.ID,
		Route:           event.Vehicle.Route.String(),
		CurrentStop:     event.Location.CurrentStop.ID.String(),
		CurrentStopName: event.Location.CurrentStop.Name,
		NextStop:        event.Location.NextStop.ID.String(),
		NextStopName:    event.Location.NextStop.Name,
		DistanceKm:      event.Estimate.DistanceKm,
		Minutes:         event.Estimate.Minutes,
	})
	if err != nil {
		return false, err
	}

	return output.(bool), nil
}
