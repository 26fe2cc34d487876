package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-physio/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var errNotObject = errors.New("payload is not a JSON object")

// Client 单个上游传感器的 HTTP 客户端，每次调用只做一次请求，不重试
// 重试由轮询器的下一个周期完成
type Client struct {
	name       string
	url        string
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建传感器客户端
func NewClient(name, url string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		name:       name,
		url:        url,
		httpClient: httpClient,
		logger:     logger.With(zap.String("source", name)),
	}
}

// Name 数据源名称（nordic / mbient）
func (c *Client) Name() string { return c.name }

// URL 上游地址
func (c *Client) URL() string { return c.url }

// Fetch 拉取当前读数
func (c *Client) Fetch(ctx context.Context) (*models.Payload, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		return nil, &NetworkError{Source: c.name, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &HTTPStatusError{Source: c.name, Code: resp.StatusCode()}
	}

	raw, err := DecodePayload(resp.Body())
	if err != nil {
		return nil, &MalformedPayloadError{Source: c.name, Err: err}
	}

	reading, err := models.ParseReading(raw)
	if err != nil {
		return nil, &MalformedPayloadError{Source: c.name, Err: err}
	}

	c.logger.Debug("Fetched sensor reading",
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("latency", resp.Time()),
	)

	return &models.Payload{Source: c.name, Raw: raw, Reading: reading}, nil
}

// DecodePayload 返回紧凑的 JSON 对象字节
//
// 上游偶尔把整个对象再编码成一个 JSON 字符串返回（"{\"temperature\":...}"），
// 这里只解开一层；解开后仍不是对象则视为格式错误。
func DecodePayload(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("decode string payload: %w", err)
		}
		body = bytes.TrimSpace([]byte(inner))
	}

	if len(body) == 0 || body[0] != '{' {
		return nil, errNotObject
	}

	var out bytes.Buffer
	if err := json.Compact(&out, body); err != nil {
		return nil, fmt.Errorf("decode object payload: %w", err)
	}
	return json.RawMessage(out.Bytes()), nil
}
