package ctdf

import (
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestIdentifierJSONKeepsKind(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		output   string
		numeric  bool
		asString string
	}{
		{name: "integer", input: `10`, output: `10`, numeric: true, asString: "10"},
		{name: "float with zero fraction", input: `10.0`, output: `10`, numeric: true, asString: "10"},
		{name: "exponent", input: `1e1`, output: `10`, numeric: true, asString: "10"},
		{name: "negative zero", input: `-0`, output: `0`, numeric: true, asString: "0"},
		{name: "negative zero float", input: `-0.0`, output: `0`, numeric: true, asString: "0"},
		{name: "string", input: `"A"`, output: `"A"`, numeric: false, asString: "A"},
		{name: "numeric looking string", input: `"10"`, output: `"10"`, numeric: false, asString: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var identifier Identifier
			if err := json.Unmarshal([]byte(tt.input), &identifier); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if identifier.IsNumeric() != tt.numeric {
				t.Errorf("IsNumeric() = %v, want %v", identifier.IsNumeric(), tt.numeric)
			}
			if identifier.String() != tt.asString {
				t.Errorf("String() = %q, want %q", identifier.String(), tt.asString)
			}

			out, err := json.Marshal(identifier)
			if err != nil {
				t.Fatalf("unexpected marshal error: %v", err)
			}
			if string(out) != tt.output {
				t.Errorf("Marshal() = %s, want %s", out, tt.output)
			}
		})
	}
}

func TestIdentifierRejectsNonScalar(t *testing.T) {
	for _, input := range []string{`true`, `{"id":1}`, `[1]`} {
		var identifier Identifier
		if err := json.Unmarshal([]byte(input), &identifier); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestIdentifierEqualityIsKindSensitive(t *testing.T) {
	numeric, err := NumericIdentifier("10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if numeric == StringIdentifier("10") {
		t.Error("numeric 10 must not equal string \"10\"")
	}

	again, _ := NumericIdentifier("10.00")
	if numeric != again {
		t.Error("equivalent numeric literals should be equal")
	}

	zero, _ := NumericIdentifier("0")
	negativeZero, _ := NumericIdentifier("-0")
	if zero != negativeZero {
		t.Errorf("0 and -0 should be the same stop, got %q and %q", zero, negativeZero)
	}
}

func TestIdentifierBSON(t *testing.T) {
	numeric, _ := NumericIdentifier("42")
	stop := TelemetryStop{ID: numeric, Name: "Terminal"}
	route := TelemetryVehicle{ID: 3, Route: StringIdentifier("A")}

	data, err := bson.Marshal(stop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decodedStop TelemetryStop
	if err := bson.Unmarshal(data, &decodedStop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodedStop != stop {
		t.Errorf("got %+v, want %+v", decodedStop, stop)
	}

	data, err = bson.Marshal(route)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decodedRoute TelemetryVehicle
	if err := bson.Unmarshal(data, &decodedRoute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodedRoute != route {
		t.Errorf("got %+v, want %+v", decodedRoute, route)
	}
}
