package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"nil", Nil{}, "null"},
		{"nil interface", nil, "null"},
		{"bool", Bool(true), "true"},
		{"int", Int(-3), "-3"},
		{"integral float", Float(2), "2.0"},
		{"float", Float(0.1), "0.1"},
		{"string no html escaping", String("<a&b>"), `"<a&b>"`},
		{"ref", Ref(12), `{"$ref":12}`},
		{"array", Array{Int(1), String("x")}, `[1,"x"]`},
		{"dict sorted", Dict{"b": Int(2), "a": Int(1)}, `{"a":1,"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form
	decomposed := String("cafe\u0301")
	precomposed := String("caf\u00e9")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(math.Inf(1)))
	assert.Error(t, err)

	_, err = MarshalCanonical(Array{Float(math.NaN())})
	assert.ErrorContains(t, err, "array[0]")
}

func TestUnmarshalCanonical_PreservesNumberKinds(t *testing.T) {
	in := Dict{
		"count": Int(3),
		"scale": Float(2),
		"ratio": Float(0.25),
		"owner": Ref(7),
		"tags":  Array{String("a"), Nil{}, Bool(false)},
	}

	data, err := MarshalCanonical(in)
	require.NoError(t, err)

	out, err := UnmarshalCanonical(data)
	require.NoError(t, err)
	assert.True(t, Equal(in, out), "got %s", out)
}

func TestUnmarshalCanonical_Rejects(t *testing.T) {
	_, err := UnmarshalCanonical([]byte(`{"$ref":0}`))
	assert.Error(t, err)

	_, err = UnmarshalCanonical([]byte(`1 2`))
	assert.Error(t, err)

	_, err = UnmarshalCanonical([]byte(`{`))
	assert.Error(t, err)
}
