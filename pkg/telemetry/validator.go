package telemetry

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/travigo/telemetria/pkg/ctdf"
)

var requiredFields = []string{
	FieldVehicleID,
	FieldRouteID,
	FieldStopID,
	FieldNextStopID,
	FieldDistanceKm,
}

// Validate checks a report before anything is derived from it. All required
// fields are checked for presence first, then for type, and the first failure
// is returned.
func Validate(report RawReport) error {
	for _, field := range requiredFields {
		if !report.present(field) {
			return &ValidationError{Field: field, Reason: "required field is missing"}
		}
	}

	if _, err := vehicleID(report[FieldVehicleID]); err != nil {
		return err
	}

	for _, field := range []string{FieldRouteID, FieldStopID, FieldNextStopID} {
		if _, err := identifier(field, report[field]); err != nil {
			return err
		}
	}

	distance, err := nonNegative(FieldDistanceKm, report[FieldDistanceKm])
	if err != nil {
		return err
	}

	if report.present(FieldMinutes) {
		if _, err := nonNegative(FieldMinutes, report[FieldMinutes]); err != nil {
			return err
		}
	} else if math.IsInf(EstimateMinutes(distance), 0) {
		return &ValidationError{Field: FieldDistanceKm, Reason: "too large to estimate minutes"}
	}

	return nil
}

func vehicleID(value any) (int64, error) {
	invalid := &ValidationError{Field: FieldVehicleID, Reason: "must be a positive integer"}

	if n, ok := value.(json.Number); ok {
		if id, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			if id <= 0 {
				return 0, invalid
			}
			return id, nil
		}
	}

	f, ok := number(value)
	if !ok || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, invalid
	}

	return int64(f), nil
}

func identifier(field string, value any) (ctdf.Identifier, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return ctdf.Identifier{}, &ValidationError{Field: field, Reason: "must not be empty"}
		}
		return ctdf.StringIdentifier(v), nil
	case json.Number:
		id, err := ctdf.NumericIdentifier(v.String())
		if err != nil {
			return ctdf.Identifier{}, &ValidationError{Field: field, Reason: "must be a string or number"}
		}
		return id, nil
	}

	if f, ok := number(value); ok {
		if id, err := ctdf.NumericIdentifier(strconv.FormatFloat(f, 'f', -1, 64)); err == nil {
			return id, nil
		}
	}

	return ctdf.Identifier{}, &ValidationError{Field: field, Reason: "must be a string or number"}
}

func nonNegative(field string, value any) (float64, error) {
	f, ok := number(value)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &ValidationError{Field: field, Reason: "must be a finite number"}
	}
	if f < 0 {
		return 0, &ValidationError{Field: field, Reason: "must not be negative"}
	}

	return f, nil
}
