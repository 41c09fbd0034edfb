package change

import (
	"strconv"
	"strings"
)

// Field names of encoded events.
const (
	FieldCounterID = "counter-id"
	FieldPayload   = "payload"
	FieldUserID    = "user-id"
	FieldValue     = "value"
)

const packedSeparator = ":"

// Codec variants for event payloads.
const (
	CodecFields Codec = iota
	CodecStrings
	CodecPacked
)

var codecNames = map[Codec]string{
	CodecFields:  "fields",
	CodecPacked:  "packed",
	CodecStrings: "strings",
}

// Codec determines how an Event is laid out as stream entry fields. Producers
// and consumers of a stream have to agree on the same Codec.
type Codec uint8

// CodecByName returns the Codec registered under name.
func CodecByName(name string) (Codec, error) {
	for c, n := range codecNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}

	return 0, wrapError(ErrInvalidCodec, "unknown codec '%s'", name)
}

func (c Codec) String() string {
	if n, ok := codecNames[c]; ok {
		return n
	}

	return "unknown"
}

// Encode returns the entry fields for e.
func (c Codec) Encode(e Event) map[string]interface{} {
	switch c {
	case CodecPacked:
		return map[string]interface{}{
			FieldPayload: strings.Join([]string{
				strconv.FormatInt(e.UserID, 10),
				strconv.FormatInt(e.CounterID, 10),
				strconv.FormatInt(e.Value, 10),
			}, packedSeparator),
		}
	case CodecStrings:
		return map[string]interface{}{
			FieldCounterID: strconv.FormatInt(e.CounterID, 10),
			FieldUserID:    strconv.FormatInt(e.UserID, 10),
			FieldValue:     strconv.FormatInt(e.Value, 10),
		}
	default:
		return map[string]interface{}{
			FieldCounterID: e.CounterID,
			FieldUserID:    e.UserID,
			FieldValue:     e.Value,
		}
	}
}

// Decode reads an Event from entry fields. Missing or unparseable fields are
// reported as ErrMalformedEvent.
func (c Codec) Decode(fields map[string]interface{}) (Event, error) {
	switch c {
	case CodecPacked:
		return decodePacked(fields)
	case CodecStrings:
		return decodeFields(fields, stringInt)
	default:
		return decodeFields(fields, numberInt)
	}
}

type intFunc func(field string, v interface{}) (int64, error)

func decodeFields(fields map[string]interface{}, parse intFunc) (Event, error) {
	var (
		e   = Event{}
		err error
	)

	for field, dst := range map[string]*int64{
		FieldCounterID: &e.CounterID,
		FieldUserID:    &e.UserID,
		FieldValue:     &e.Value,
	} {
		v, ok := fields[field]
		if !ok {
			return Event{}, wrapError(ErrMalformedEvent, "missing field '%s'", field)
		}

		*dst, err = parse(field, v)
		if err != nil {
			return Event{}, err
		}
	}

	return e, nil
}

func decodePacked(fields map[string]interface{}) (Event, error) {
	v, ok := fields[FieldPayload]
	if !ok {
		return Event{}, wrapError(ErrMalformedEvent, "missing field '%s'", FieldPayload)
	}

	s, ok := v.(string)
	if !ok {
		return Event{}, wrapError(ErrMalformedEvent, "field '%s' is %T", FieldPayload, v)
	}

	parts := strings.Split(s, packedSeparator)
	if len(parts) != 3 {
		return Event{}, wrapError(ErrMalformedEvent, "payload '%s' has %d parts", s, len(parts))
	}

	e := Event{}

	for i, dst := range []*int64{&e.UserID, &e.CounterID, &e.Value} {
		n, err := stringInt(FieldPayload, parts[i])
		if err != nil {
			return Event{}, err
		}

		*dst = n
	}

	return e, nil
}

// numberInt accepts native integers and, as every value read back from Redis
// is a string, their decimal form.
func numberInt(field string, v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case string:
		return stringInt(field, n)
	}

	return 0, wrapError(ErrMalformedEvent, "field '%s' is %T", field, v)
}

func stringInt(field string, v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, wrapError(ErrMalformedEvent, "field '%s' is %T", field, v)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, wrapError(ErrMalformedEvent, "field '%s': %s", field, err)
	}

	return n, nil
}
