package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"unicode/utf8"
)

// Report keys as published by the on-board units.
const (
	FieldVehicleID    = "id_onibus"
	FieldRouteID      = "id_rota"
	FieldStopID       = "id_parada"
	FieldNextStopID   = "id_proxima_parada"
	FieldDistanceKm   = "distancia_km"
	FieldMinutes      = "tempo_min"
	FieldStopName     = "nome_parada"
	FieldNextStopName = "nome_proxima_parada"
)

// RawReport is an untrusted report exactly as it was decoded off the wire.
// Numbers are kept as json.Number so integer ids are not silently rounded.
type RawReport map[string]any

// Decode parses a single report payload.
func Decode(payload []byte) (RawReport, error) {
	if !utf8.Valid(payload) {
		return nil, &DecodeError{Err: errors.New("payload is not valid UTF-8")}
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, &DecodeError{Err: errors.New("unexpected data after report object")}
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, &DecodeError{Err: errors.New("payload is not a JSON object")}
	}

	return RawReport(object), nil
}

func (r RawReport) present(field string) bool {
	value, ok := r[field]
	return ok && value != nil
}

// number accepts json.Number as produced by Decode, and plain Go numbers for
// reports assembled in code.
func number(value any) (float64, bool) {
	var f float64

	switch v := value.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}
