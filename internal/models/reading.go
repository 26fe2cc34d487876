package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Vector3 加速度计三轴数据（单位 g）
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AirQuality 空气质量
type AirQuality struct {
	CO2  float64 `json:"CO2"`
	TVOC float64 `json:"TVOC"`
}

// Alerts 告警等级（字符串，空表示无告警）
type Alerts struct {
	Temperature string `json:"temperature,omitempty"`
	Humidity    string `json:"humidity,omitempty"`
	AirQuality  string `json:"air_quality,omitempty"`
	Motion      string `json:"motion,omitempty"`
}

// Reading 一次归一化后的传感器读数，只能通过 ParseReading 构造
type Reading struct {
	Accelerometer Vector3    `json:"accelerometer"`
	Temperature   float64    `json:"temperature"`
	Humidity      float64    `json:"humidity"`
	AirQuality    AirQuality `json:"air_quality"`
	Alerts        Alerts     `json:"alerts"`
	Timestamp     time.Time  `json:"timestamp"`
	RawTimestamp  string     `json:"-"`
}

// Values 按图表通道顺序返回数值：x, y, z, temperature, humidity, CO2, TVOC
func (r Reading) Values() []float64 {
	return []float64{
		r.Accelerometer.X, r.Accelerometer.Y, r.Accelerometer.Z,
		r.Temperature, r.Humidity,
		r.AirQuality.CO2, r.AirQuality.TVOC,
	}
}

// wireReading 上游 JSON 字段（缺失的数值按 0 处理）
type wireReading struct {
	Accelerometer    *Vector3        `json:"accelerometer"`
	Temperature      float64         `json:"temperature"`
	Humidity         float64         `json:"humidity"`
	AirQuality       *AirQuality     `json:"air_quality"`
	TemperatureAlert string          `json:"temperaturealert"`
	AirQualityAlert  string          `json:"air_qualityalert"`
	HumidityAlert    string          `json:"humidityalert"`
	MotionAlert      string          `json:"motionalert"`
	Timestamp        json.RawMessage `json:"timestamp"`
}

// ParseReading 从单层 JSON 对象解析 Reading
func ParseReading(raw []byte) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(raw, &w); err != nil {
		return Reading{}, fmt.Errorf("decode reading: %w", err)
	}

	r := Reading{
		Temperature: w.Temperature,
		Humidity:    w.Humidity,
		Alerts: Alerts{
			Temperature: w.TemperatureAlert,
			Humidity:    w.HumidityAlert,
			AirQuality:  w.AirQualityAlert,
			Motion:      w.MotionAlert,
		},
	}
	if w.Accelerometer != nil {
		r.Accelerometer = *w.Accelerometer
	}
	if w.AirQuality != nil {
		r.AirQuality = *w.AirQuality
	}
	r.Timestamp, r.RawTimestamp = parseTimestamp(w.Timestamp)
	return r, nil
}

// parseTimestamp 支持 RFC3339 字符串或毫秒时间戳；无法识别时返回零值并保留原文
func parseTimestamp(raw json.RawMessage) (time.Time, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), s
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), s
		}
		return time.Time{}, s
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return time.UnixMilli(int64(n)).UTC(), string(raw)
	}
	return time.Time{}, string(raw)
}
