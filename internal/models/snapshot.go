package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Payload 单个数据源的一次成功拉取
// Raw 为去掉双重编码后的 JSON 对象，原样推送给前端
type Payload struct {
	Source  string          `json:"source"`
	Raw     json.RawMessage `json:"raw"`
	Reading Reading         `json:"reading"`
}

// Snapshot 一个轮询周期内所有数据源的合并结果，失败的数据源为 nil
type Snapshot struct {
	Seq      uint64
	At       time.Time
	Sources  []string
	Payloads map[string]*Payload
}

// NewSnapshot 创建空快照，sources 决定 JSON 输出的键
func NewSnapshot(seq uint64, at time.Time, sources []string) Snapshot {
	return Snapshot{
		Seq:      seq,
		At:       at,
		Sources:  append([]string(nil), sources...),
		Payloads: make(map[string]*Payload, len(sources)),
	}
}

// Get 返回数据源的读数，缺失时 ok=false
func (s Snapshot) Get(source string) (*Payload, bool) {
	p, ok := s.Payloads[source]
	return p, ok && p != nil
}

// Partial 是否存在缺失的数据源
func (s Snapshot) Partial() bool {
	for _, src := range s.Sources {
		if _, ok := s.Get(src); !ok {
			return true
		}
	}
	return false
}

// Empty 所有数据源都缺失
func (s Snapshot) Empty() bool {
	for _, src := range s.Sources {
		if _, ok := s.Get(src); ok {
			return false
		}
	}
	return true
}

// MarshalJSON 输出 { "<source>": RawPayload|null, ... }，键顺序与 Sources 一致
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, src := range s.Sources {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(src)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if p, ok := s.Get(src); ok && len(p.Raw) > 0 {
			buf.Write(p.Raw)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
