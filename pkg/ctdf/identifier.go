package ctdf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Identifier is a route or stop reference as sent by the vehicle. Devices send
// these either as JSON numbers or strings and the kind is kept so the value is
// re-emitted exactly as it arrived. Identifiers of different kinds never compare
// equal, so 10 and "10" are distinct stops.
type Identifier struct {
	value   string
	numeric bool
}

func StringIdentifier(value string) Identifier {
	return Identifier{value: value}
}

// NumericIdentifier parses a JSON number literal. The text is canonicalised so
// that 10, 10.0 and 1e1 all refer to the same stop.
func NumericIdentifier(literal string) (Identifier, error) {
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return Identifier{}, fmt.Errorf("invalid numeric identifier %q: %w", literal, err)
	}

	return numericIdentifier(f), nil
}

// numericIdentifier folds -0 into 0 so both refer to the same stop.
func numericIdentifier(f float64) Identifier {
	if f == 0 {
		f = 0
	}

	return Identifier{value: strconv.FormatFloat(f, 'f', -1, 64), numeric: true}
}

func (i Identifier) String() string {
	return i.value
}

func (i Identifier) IsNumeric() bool {
	return i.numeric
}

func (i Identifier) IsZero() bool {
	return i.value == "" && !i.numeric
}

func (i Identifier) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	if i.numeric {
		return []byte(i.value), nil
	}

	return json.Marshal(i.value)
}

func (i *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*i = Identifier{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*i = StringIdentifier(value)
		return nil
	default:
		var number json.Number
		if err := json.Unmarshal(data, &number); err != nil {
			return fmt.Errorf("identifier must be a string or number: %w", err)
		}
		parsed, err := NumericIdentifier(number.String())
		if err != nil {
			return err
		}
		*i = parsed
		return nil
	}
}

func (i Identifier) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if i.IsZero() {
		return bsontype.Null, nil, nil
	}
	if i.numeric {
		f, err := strconv.ParseFloat(i.value, 64)
		if err != nil {
			return 0, nil, err
		}
		return bson.MarshalValue(f)
	}

	return bson.MarshalValue(i.value)
}

func (i *Identifier) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Null, bsontype.Undefined:
		*i = Identifier{}
	case bsontype.String:
		*i = StringIdentifier(raw.StringValue())
	case bsontype.Double:
		*i = numericIdentifier(raw.Double())
	case bsontype.Int32:
		*i = Identifier{value: strconv.FormatInt(int64(raw.Int32()), 10), numeric: true}
	case bsontype.Int64:
		*i = Identifier{value: strconv.FormatInt(raw.Int64(), 10), numeric: true}
	default:
		return errors.New("unsupported bson type for identifier: " + t.String())
	}

	return nil
}
