package telemetry

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		errField  string
		expectErr bool
	}{
		{
			name:    "complete report",
			payload: `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
		},
		{
			name:    "string stop ids",
			payload: `{"id_onibus":7,"id_rota":42,"id_parada":"P-10","id_proxima_parada":"P-11","distancia_km":0.4,"tempo_min":1}`,
		},
		{
			name:      "missing vehicle id",
			payload:   `{"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldVehicleID,
		},
		{
			name:      "null route",
			payload:   `{"id_onibus":1,"id_rota":null,"id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldRouteID,
		},
		{
			name:      "missing fields reported in order",
			payload:   `{"id_onibus":1,"id_rota":"A"}`,
			expectErr: true,
			errField:  FieldStopID,
		},
		{
			name:      "presence checked before vehicle type",
			payload:   `{"id_onibus":"1","id_rota":"A","id_parada":10,"id_proxima_parada":11}`,
			expectErr: true,
			errField:  FieldDistanceKm,
		},
		{
			name:      "vehicle id string",
			payload:   `{"id_onibus":"1","id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldVehicleID,
		},
		{
			name:      "vehicle id zero",
			payload:   `{"id_onibus":0,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldVehicleID,
		},
		{
			name:      "vehicle id negative",
			payload:   `{"id_onibus":-3,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldVehicleID,
		},
		{
			name:      "vehicle id fractional",
			payload:   `{"id_onibus":1.5,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldVehicleID,
		},
		{
			name:    "vehicle id integral float",
			payload: `{"id_onibus":3.0,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
		},
		{
			name:      "stop id object",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":{"id":10},"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldStopID,
		},
		{
			name:      "empty next stop id",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":"","distancia_km":2}`,
			expectErr: true,
			errField:  FieldNextStopID,
		},
		{
			name:      "distance string",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":"2"}`,
			expectErr: true,
			errField:  FieldDistanceKm,
		},
		{
			name:      "negative distance",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":-0.1}`,
			expectErr: true,
			errField:  FieldDistanceKm,
		},
		{
			name:      "vehicle id beyond int64",
			payload:   `{"id_onibus":9223372036854775808,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
			expectErr: true,
			errField:  FieldVehicleID,
		},
		{
			name:    "largest vehicle id",
			payload: `{"id_onibus":9223372036854775807,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":2}`,
		},
		{
			name:      "distance overflows the minutes estimate",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":1e308}`,
			expectErr: true,
			errField:  FieldDistanceKm,
		},
		{
			name:    "huge distance with explicit minutes",
			payload: `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":1e308,"tempo_min":5}`,
		},
		{
			name:      "distance out of float range",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":1e400}`,
			expectErr: true,
			errField:  FieldDistanceKm,
		},
		{
			name:      "negative minutes",
			payload:   `{"id_onibus":1,"id_rota":"A","id_parada":10,"id_proxima_parada":11,"distancia_km":1,"tempo_min":-1}`,
			expectErr: true,
			errField:  FieldMinutes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			err = Validate(report)
			if !tt.expectErr {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			var validationError *ValidationError
			if !errors.As(err, &validationError) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationError.Field != tt.errField {
				t.Errorf("expected field %s, got %s (%s)", tt.errField, validationError.Field, validationError.Reason)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		expectErr bool
	}{
		{name: "object", payload: []byte(`{"id_onibus":1}`)},
		{name: "array", payload: []byte(`[1,2]`), expectErr: true},
		{name: "truncated", payload: []byte(`{"id_onibus":`), expectErr: true},
		{name: "trailing data", payload: []byte(`{"a":1}{"b":2}`), expectErr: true},
		{name: "invalid utf8", payload: []byte{'{', '"', 0xff, '"', ':', '1', '}'}, expectErr: true},
		{name: "empty", payload: []byte{}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			if !tt.expectErr {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			var decodeError *DecodeError
			if !errors.As(err, &decodeError) {
				t.Errorf("expected DecodeError, got %v", err)
			}
		})
	}
}
