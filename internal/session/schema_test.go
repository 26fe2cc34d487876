package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-physio/internal/models"
)

func mustReading(t *testing.T) models.Reading {
	t.Helper()
	r, err := models.ParseReading([]byte(`{
		"accelerometer": {"x": 0.12, "y": -0.5, "z": 9.81},
		"temperature": 23.5,
		"humidity": 41,
		"air_quality": {"CO2": 612, "TVOC": 35},
		"temperaturealert": "normal",
		"humidityalert": "",
		"air_qualityalert": "say \"hi\"",
		"motionalert": "high, sudden"
	}`))
	require.NoError(t, err)
	return r
}

func TestHeader(t *testing.T) {
	assert.Equal(t,
		"Timestamp,Accel_X,Accel_Y,Accel_Z,Temperature,Humidity,CO2,TVOC,Temperature_Alert,Humidity_Alert,Air_Quality_Alert,Motion_Alert\n",
		HeaderLine(KindBasic))
	assert.Equal(t,
		"Timestamp,Patient_ID,Patient_Name,Exercise_Type,Accel_X,Accel_Y,Accel_Z,Temperature,Humidity,CO2,TVOC,Temperature_Alert,Humidity_Alert,Air_Quality_Alert,Motion_Alert\n",
		HeaderLine(KindExercise))
}

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		id       string
		patient  string
		exercise string
		ok       bool
	}{
		{"exercise_squat_20240101_001", "exercise_squat", "001", true},
		{"P01_20240101_lunge", "P01", "lunge", true},
		{"session_1700000000000", "", "", false},
		{"single", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			patient, exercise, ok := ParseSessionID(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.patient, patient)
			assert.Equal(t, tt.exercise, exercise)
		})
	}
}

func TestRow_BasicLine(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("X", 3600))
	row := newRow(Info{SessionID: "s1", Kind: KindBasic}, mustReading(t), at)

	assert.Len(t, row.Fields(), len(Header(KindBasic)))
	assert.Equal(t,
		`2024-01-02T02:04:05.006Z,0.12,-0.5,9.81,23.5,41,612,35,"normal","","say ""hi""","high, sudden"`+"\n",
		row.Line())
}

func TestRow_ExerciseIdentifiers(t *testing.T) {
	r := mustReading(t)
	at := time.Unix(0, 0)

	t.Run("derived from id", func(t *testing.T) {
		row := newRow(Info{SessionID: "exercise_squat_20240101_001", Kind: KindExercise}, r, at)
		assert.Equal(t, "exercise_squat", row.PatientID)
		assert.Equal(t, Unknown, row.PatientName)
		assert.Equal(t, "001", row.ExerciseType)
		assert.Len(t, row.Fields(), len(Header(KindExercise)))
	})

	t.Run("explicit metadata wins", func(t *testing.T) {
		row := newRow(Info{
			SessionID: "exercise_squat_20240101_001",
			Kind:      KindExercise,
			Metadata:  Metadata{PatientID: "P 7", PatientName: "Doe, Jane", ExerciseType: "squat"},
		}, r, at)
		assert.Equal(t, "P 7", row.PatientID)
		assert.Equal(t, "squat", row.ExerciseType)
		assert.True(t, strings.HasPrefix(row.Line(), `1970-01-01T00:00:00.000Z,P 7,"Doe, Jane",squat,`))
	})

	t.Run("short id falls back to unknown", func(t *testing.T) {
		row := newRow(Info{SessionID: "exercise_1", Kind: KindExercise}, r, at)
		assert.Equal(t, Unknown, row.PatientID)
		assert.Equal(t, Unknown, row.ExerciseType)
	})
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("exercise_squat_20240101_001"))
	assert.True(t, ValidID("a.b-c"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../etc/passwd"))
	assert.False(t, ValidID(".hidden"))
	assert.False(t, ValidID("a/b"))
	assert.False(t, ValidID("has space"))
}
