package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "accelerometer": {"x": 0.12, "y": -0.98, "z": 0.05},
  "temperature": 23.4,
  "humidity": 41,
  "air_quality": {"CO2": 612, "TVOC": 35},
  "air_qualityalert": "low",
  "humidityalert": "",
  "motionalert": "fall, suspected",
  "timestamp": "2024-01-01T10:00:00.250Z"
}`

func TestParseReading_AllFields(t *testing.T) {
	r, err := ParseReading([]byte(samplePayload))
	require.NoError(t, err)

	assert.Equal(t, Vector3{X: 0.12, Y: -0.98, Z: 0.05}, r.Accelerometer)
	assert.Equal(t, 23.4, r.Temperature)
	assert.Equal(t, 41.0, r.Humidity)
	assert.Equal(t, AirQuality{CO2: 612, TVOC: 35}, r.AirQuality)
	assert.Equal(t, "low", r.Alerts.AirQuality)
	assert.Equal(t, "fall, suspected", r.Alerts.Motion)
	assert.Empty(t, r.Alerts.Temperature)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 250e6, time.UTC), r.Timestamp)
	assert.Equal(t, []float64{0.12, -0.98, 0.05, 23.4, 41, 612, 35}, r.Values())
}

func TestParseReading_MissingFieldsDefaultToZero(t *testing.T) {
	r, err := ParseReading([]byte(`{"temperature": 20}`))
	require.NoError(t, err)

	assert.Equal(t, Vector3{}, r.Accelerometer)
	assert.Equal(t, AirQuality{}, r.AirQuality)
	assert.True(t, r.Timestamp.IsZero())
}

func TestParseReading_EpochMillisTimestamp(t *testing.T) {
	r, err := ParseReading([]byte(`{"timestamp": 1704103200000}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), r.Timestamp)
}

func TestParseReading_UnknownTimestampKeepsRaw(t *testing.T) {
	r, err := ParseReading([]byte(`{"timestamp": "yesterday"}`))
	require.NoError(t, err)
	assert.True(t, r.Timestamp.IsZero())
	assert.Equal(t, "yesterday", r.RawTimestamp)
}

func TestParseReading_RejectsNonObject(t *testing.T) {
	_, err := ParseReading([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestSnapshot_MarshalJSONKeepsSourceOrderAndNulls(t *testing.T) {
	snap := NewSnapshot(3, time.Now(), []string{"nordic", "mbient"})
	snap.Payloads["mbient"] = &Payload{Source: "mbient", Raw: json.RawMessage(`{"temperature":21}`)}

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Equal(t, `{"nordic":null,"mbient":{"temperature":21}}`, string(b))

	assert.True(t, snap.Partial())
	assert.False(t, snap.Empty())

	_, ok := snap.Get("nordic")
	assert.False(t, ok)
}

func TestSnapshot_Empty(t *testing.T) {
	snap := NewSnapshot(1, time.Now(), []string{"nordic", "mbient"})
	snap.Payloads["nordic"] = nil

	assert.True(t, snap.Empty())
	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Equal(t, `{"nordic":null,"mbient":null}`, string(b))
}
