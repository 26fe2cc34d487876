package provider

import "fmt"

// NetworkError 传输层失败（DNS、超时、拒绝连接、ctx 取消）
type NetworkError struct {
	Source string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Source, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError 上游返回非 2xx
type HTTPStatusError struct {
	Source string
	Code   int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Source, e.Code)
}

// MalformedPayloadError 响应体不是 JSON 对象（或双重编码后的 JSON 对象）
type MalformedPayloadError struct {
	Source string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %v", e.Source, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }
