package session

import (
	"strconv"
	"strings"
	"time"

	"wisefido-physio/internal/models"
)

// Unknown 无法确定患者或动作时写入的占位值
const Unknown = "Unknown"

// TimestampLayout 行时间戳格式（UTC，毫秒）
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var telemetryColumns = []string{
	"Accel_X", "Accel_Y", "Accel_Z",
	"Temperature", "Humidity", "CO2", "TVOC",
	"Temperature_Alert", "Humidity_Alert", "Air_Quality_Alert", "Motion_Alert",
}

var exerciseColumns = []string{"Patient_ID", "Patient_Name", "Exercise_Type"}

// Header 返回对应格式的表头列
func Header(kind Kind) []string {
	cols := []string{"Timestamp"}
	if kind == KindExercise {
		cols = append(cols, exerciseColumns...)
	}
	return append(cols, telemetryColumns...)
}

// HeaderLine 表头行（含换行）
func HeaderLine(kind Kind) string {
	return strings.Join(Header(kind), ",") + "\n"
}

// ParseSessionID 按命名约定从 ID 中拆出患者和动作：
// 除最后两段外的所有段为患者标识，最后一段为动作类型；少于三段时 ok=false。
//
// 仅在会话没有显式 Metadata 时作为兜底使用，ID 中多余的下划线会被并入患者标识。
func ParseSessionID(id string) (patient, exercise string, ok bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return "", "", false
	}
	return strings.Join(parts[:len(parts)-2], "_"), parts[len(parts)-1], true
}

// Row 一行日志
type Row struct {
	Kind         Kind
	Timestamp    time.Time
	PatientID    string
	PatientName  string
	ExerciseType string
	Reading      models.Reading
}

// newRow 显式 Metadata 优先，缺失字段再按 ID 约定推导
func newRow(info Info, r models.Reading, at time.Time) Row {
	row := Row{Kind: info.Kind, Timestamp: at.UTC(), Reading: r}
	if info.Kind != KindExercise {
		return row
	}

	patient, exercise, ok := ParseSessionID(info.SessionID)
	if !ok {
		patient, exercise = "", ""
	}
	row.PatientID = firstNonEmpty(info.Metadata.PatientID, patient, Unknown)
	row.PatientName = firstNonEmpty(info.Metadata.PatientName, Unknown)
	row.ExerciseType = firstNonEmpty(info.Metadata.ExerciseType, exercise, Unknown)
	return row
}

// Fields 未转义的字段值，列数与 Header(Kind) 一致
func (r Row) Fields() []string {
	fields := []string{r.Timestamp.Format(TimestampLayout)}
	if r.Kind == KindExercise {
		fields = append(fields, r.PatientID, r.PatientName, r.ExerciseType)
	}
	rd := r.Reading
	for _, v := range rd.Values() {
		fields = append(fields, formatFloat(v))
	}
	return append(fields,
		rd.Alerts.Temperature, rd.Alerts.Humidity, rd.Alerts.AirQuality, rd.Alerts.Motion,
	)
}

// Line 序列化为一行 CSV（含换行）；告警字段总是加引号，其他文本按需加引号
func (r Row) Line() string {
	fields := r.Fields()
	alertStart := len(fields) - 4

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		switch {
		case i >= alertStart:
			b.WriteString(quote(f))
		case strings.ContainsAny(f, ",\"\r\n"):
			b.WriteString(quote(f))
		default:
			b.WriteString(f)
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
