package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarRoundTrip(t *testing.T) {
	cases := []Scalar{
		StringScalar("hello"),
		IntScalar(42),
		FloatScalar(3.5),
		BoolScalar(true),
		NullScalar(),
	}

	for _, s := range cases {
		data, err := json.Marshal(s)
		assert.NoError(t, err)

		var got Scalar
		assert.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, s, got)
	}
}

func TestNormalizeEventKindFoldsUnknownToOther(t *testing.T) {
	assert.Equal(t, EventCPUSample, NormalizeEventKind("cpu_sample"))
	assert.Equal(t, EventOther, NormalizeEventKind("totally_unknown_kind"))
}

func TestSeverityClampsToZero(t *testing.T) {
	assert.Equal(t, 0.0, Severity(50, 50, 70, 80))
	assert.InDelta(t, 10.0, Severity(80, 80, 70, 80), 1e-9)
}

func TestClassifySpikeType(t *testing.T) {
	assert.Equal(t, SpikeTypeMixed, ClassifySpikeType(95, 90, 70, 80))
	assert.Equal(t, SpikeTypeCPU, ClassifySpikeType(95, 40, 70, 80))
	assert.Equal(t, SpikeTypeRAM, ClassifySpikeType(50, 90, 70, 80))
}
