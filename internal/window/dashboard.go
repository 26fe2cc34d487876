package window

import (
	"time"

	"wisefido-physio/internal/models"
)

// DefaultHistory 加速度折线图默认保留的点数
const DefaultHistory = 100

// GaugeState 仪表盘序列化视图
type GaugeState struct {
	Title string  `json:"title"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Value float64 `json:"value"`
	Split Split   `json:"split"`
}

// DashboardState 推送给前端的图表状态
type DashboardState struct {
	Source    string                `json:"source"`
	Seq       uint64                `json:"seq"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Available bool                  `json:"available"`
	Accel     map[string][]float64  `json:"accel"`
	Gauges    map[string]GaugeState `json:"gauges"`
}

// Dashboard 单个订阅者的图表数据模型：加速度三轴折线 + 温度/湿度/CO2/TVOC 仪表
// 非并发安全，由持有它的连接独占使用
type Dashboard struct {
	source    string
	accel     *Rolling
	gauges    map[string]*Gauge
	order     []string
	seq       uint64
	updatedAt time.Time
	available bool
}

// NewDashboard 量程与现有前端保持一致
func NewDashboard(source string, history int) (*Dashboard, error) {
	if history <= 0 {
		history = DefaultHistory
	}
	accel, err := NewRolling([]string{"X", "Y", "Z"}, history)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		source: source,
		accel:  accel,
		gauges: make(map[string]*Gauge, 4),
	}
	specs := []struct {
		key, title string
		min, max   float64
	}{
		{"temperature", "Temp °C", -10, 50},
		{"humidity", "Hum %", 0, 100},
		{"co2", "CO₂ ppm", 400, 2000},
		{"tvoc", "TVOC ppb", 0, 600},
	}
	for _, s := range specs {
		g, err := NewGauge(s.title, s.min, s.max)
		if err != nil {
			return nil, err
		}
		d.gauges[s.key] = g
		d.order = append(d.order, s.key)
	}
	return d, nil
}

// Apply 用快照中 source 的读数更新图表；该数据源本周期缺失时保持原值并返回 false
func (d *Dashboard) Apply(snap models.Snapshot) bool {
	d.seq = snap.Seq
	p, ok := snap.Get(d.source)
	d.available = ok
	if !ok {
		return false
	}

	r := p.Reading
	mustUpdate(d.accel, []float64{r.Accelerometer.X, r.Accelerometer.Y, r.Accelerometer.Z})
	d.gauges["temperature"].Update(r.Temperature)
	d.gauges["humidity"].Update(r.Humidity)
	d.gauges["co2"].Update(r.AirQuality.CO2)
	d.gauges["tvoc"].Update(r.AirQuality.TVOC)
	d.updatedAt = snap.At
	return true
}

// mustUpdate 通道数由调用方写死，数量不一致是编程错误
func mustUpdate(r *Rolling, values []float64) {
	if err := r.Update(values); err != nil {
		panic(err)
	}
}

// State 当前图表状态快照
func (d *Dashboard) State() DashboardState {
	st := DashboardState{
		Source:    d.source,
		Seq:       d.seq,
		UpdatedAt: d.updatedAt,
		Available: d.available,
		Accel:     d.accel.Points(),
		Gauges:    make(map[string]GaugeState, len(d.gauges)),
	}
	for _, key := range d.order {
		g := d.gauges[key]
		min, max := g.Range()
		st.Gauges[key] = GaugeState{
			Title: g.Title(),
			Min:   min,
			Max:   max,
			Value: g.Value(),
			Split: g.Split(),
		}
	}
	return st
}
