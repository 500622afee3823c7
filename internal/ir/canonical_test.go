package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"bool true", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"nested keys sorted", IRObject{"z": IRObject{"b": IRInt(1), "a": IRInt(2)}, "a": IRInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"no html escaping", IRString("<a&b>"), `"<a&b>"`},
		{"control characters", IRString("a\nb\u0001"), `"a\nb\u0001"`},
		{"quote and backslash", IRString(`"\`), `"\"\\"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	result, err := MarshalCanonical(IRString("é"))
	require.NoError(t, err)
	assert.Equal(t, "\"é\"", string(result))
}

func TestMarshalCanonicalRejectsSentinels(t *testing.T) {
	_, err := MarshalCanonical(IRArray{IRString("a"), Max})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX")
}

func TestTimestampOrdering(t *testing.T) {
	early := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	late := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 500, time.UTC))

	assert.Equal(t, IRString("2024-01-02T03:04:05.000000000Z"), early)
	assert.Equal(t, -1, Compare(early, late))

	parsed, err := ParseTimestamp("2024-01-02T04:04:05+01:00")
	require.NoError(t, err)
	assert.Equal(t, early, parsed)
}

func TestRecordHashStable(t *testing.T) {
	a, err := RecordHash(IRObject{"x": IRInt(1), "y": IRString("b")})
	require.NoError(t, err)
	b, err := RecordHash(IRObject{"y": IRString("b"), "x": IRInt(1)})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
