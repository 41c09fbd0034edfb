package change

import (
	"math"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	events := []Event{
		{},
		{CounterID: 1, UserID: 7, Value: 1},
		{CounterID: 3, UserID: 12, Value: -5},
		{CounterID: math.MaxInt64, UserID: math.MaxInt64, Value: math.MinInt64},
	}

	for _, c := range []Codec{CodecFields, CodecPacked, CodecStrings} {
		for _, e := range events {
			have, err := c.Decode(c.Encode(e))
			if err != nil {
				t.Fatalf("%s %v: %s", c, e, err)
			}

			if want := e; have != want {
				t.Errorf("%s: have %v, want %v", c, have, want)
			}
		}
	}
}

// Values read back from Redis are strings regardless of how they were
// written.
func TestCodecFieldsFromStrings(t *testing.T) {
	e := Event{CounterID: 2, UserID: 9, Value: -1}

	have, err := CodecFields.Decode(CodecStrings.Encode(e))
	if err != nil {
		t.Fatal(err)
	}

	if want := e; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCodecPackedLayout(t *testing.T) {
	fields := CodecPacked.Encode(Event{CounterID: 3, UserID: 7, Value: 42})

	if have, want := fields[FieldPayload], "7:3:42"; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCodecDecodeMalformed(t *testing.T) {
	for c, fields := range map[Codec][]map[string]interface{}{
		CodecFields: {
			{FieldUserID: int64(1), FieldValue: int64(1)},
			{FieldUserID: int64(1), FieldCounterID: 1.5, FieldValue: int64(1)},
			{FieldUserID: "x", FieldCounterID: int64(1), FieldValue: int64(1)},
		},
		CodecPacked: {
			{},
			{FieldPayload: "1:2"},
			{FieldPayload: "1:2:a"},
			{FieldPayload: int64(3)},
		},
		CodecStrings: {
			{FieldUserID: "1", FieldCounterID: "2"},
			{FieldUserID: int64(1), FieldCounterID: "2", FieldValue: "3"},
		},
	} {
		for _, f := range fields {
			_, err := c.Decode(f)
			if have, want := IsMalformedEvent(err), true; have != want {
				t.Errorf("%s %v: have %v, want %v", c, f, have, want)
			}
		}
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{
		"fields":  CodecFields,
		"Packed":  CodecPacked,
		"STRINGS": CodecStrings,
	} {
		have, err := CodecByName(name)
		if err != nil {
			t.Fatal(err)
		}

		if have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}

	_, err := CodecByName("json")
	if have, want := IsInvalidCodec(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}
