// Package request 提供基于模板的 HTTP 请求构建与发送功能
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LingHeChen/stencil/logger"
	"github.com/LingHeChen/stencil/template"
	"github.com/LingHeChen/stencil/variable"
)

// ---------------------------------------------------------
// 请求描述
// ---------------------------------------------------------

// Spec 描述一个尚未解析模板的请求
type Spec struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Query   map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    interface{}       `yaml:"body,omitempty" json:"body,omitempty"`
}

var methods = []string{"get", "post", "put", "delete", "patch", "head", "options"}

// LoadSpec 从 YAML 文件读取请求描述
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var mapData map[string]interface{}
	if err := yaml.Unmarshal(data, &mapData); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}
	return SpecFromMap(mapData)
}

// SpecFromMap 从 map 构建请求描述
// 支持两种写法：method + url，或者以方法名为键的简写（get: "https://..."）
func SpecFromMap(mapData map[string]interface{}) (*Spec, error) {
	method, rawURL, err := extractMethodAndURL(mapData)
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		Method: method,
		URL:    rawURL,
		Body:   mapData["body"],
	}
	if spec.Query, err = stringMap(mapData, "query"); err != nil {
		return nil, err
	}
	if spec.Headers, err = stringMap(mapData, "headers"); err != nil {
		return nil, err
	}
	return spec, nil
}

// extractMethodAndURL 从 mapData 中提取 HTTP 方法和 URL
func extractMethodAndURL(mapData map[string]interface{}) (string, string, error) {
	if m, ok := mapData["method"].(string); ok {
		u, ok := mapData["url"].(string)
		if !ok {
			return "", "", fmt.Errorf("missing url")
		}
		return strings.ToUpper(m), u, nil
	}

	for _, m := range methods {
		if v, ok := mapData[m]; ok {
			u, ok := v.(string)
			if !ok {
				return "", "", fmt.Errorf("%s: url must be a string, got %T", m, v)
			}
			return strings.ToUpper(m), u, nil
		}
	}
	return "", "", fmt.Errorf("missing HTTP method (get/post/put/delete/patch/head/options)")
}

// stringMap 读取 headers / query 这类键值对，值统一转为字符串
func stringMap(mapData map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := mapData[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be a map, got %T", key, raw)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = template.Stringify(v)
	}
	return out, nil
}

// ---------------------------------------------------------
// 模板解析
// ---------------------------------------------------------

// Prepared 是模板解析完成、可以直接发送的请求
type Prepared struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

const (
	urlField    = "url"
	queryPrefix = "query:"
	headPrefix  = "header:"
)

// Build 解析请求中的所有模板
// 变量只展开一次；URL、query 和 header 并发解析，body 逐个叶子解析并保留原生类型
func Build(ctx context.Context, engine *template.Engine, spec *Spec, vars []variable.Variable, local map[string]interface{}) (*Prepared, error) {
	scope, err := engine.NewScope(ctx, vars, local)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve variables: %w", err)
	}

	// 1. 收集需要解析的字段
	fields := map[string]string{urlField: spec.URL}
	for k, v := range spec.Query {
		fields[queryPrefix+k] = v
	}
	for k, v := range spec.Headers {
		fields[headPrefix+k] = v
	}

	// 2. 并发解析
	resolved := engine.CompileAllWith(ctx, fields, scope)

	// 3. 拼装 URL
	u, err := url.Parse(template.Stringify(resolved[urlField]))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if len(spec.Query) > 0 {
		q := u.Query()
		for _, k := range sortedKeys(spec.Query) {
			q.Set(k, template.Stringify(resolved[queryPrefix+k]))
		}
		u.RawQuery = q.Encode()
	}

	prepared := &Prepared{
		Method: strings.ToUpper(spec.Method),
		URL:    u.String(),
	}
	if len(spec.Headers) > 0 {
		prepared.Headers = make(map[string]string, len(spec.Headers))
		for k := range spec.Headers {
			prepared.Headers[k] = template.Stringify(resolved[headPrefix+k])
		}
	}

	// 4. 解析 body
	if spec.Body != nil {
		prepared.Body = engine.CompileValue(ctx, spec.Body, scope)
	}

	logger.Debug("Request built", "method", prepared.Method, "url", prepared.URL)
	return prepared, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------
// HTTP 客户端
// ---------------------------------------------------------

// Response 表示 HTTP 响应
type Response struct {
	StatusCode int               // HTTP 状态码
	Status     string            // HTTP 状态文本
	Headers    map[string]string // 响应头
	Body       []byte            // 响应体
	Duration   time.Duration     // 请求耗时
}

// String 返回响应体的字符串形式
func (r *Response) String() string {
	return string(r.Body)
}

// JSON 将响应体解析为通用值
func (r *Response) JSON() (interface{}, error) {
	var result interface{}
	err := json.Unmarshal(r.Body, &result)
	return result, err
}

// Client HTTP 客户端
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Option 客户端配置选项
type Option func(*Client)

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient 替换底层 http.Client（测试时使用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		hc.Timeout = c.timeout
		c.httpClient = hc
	}
}

// New 创建一个新的 HTTP 客户端
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    30 * time.Second,
	}
	c.httpClient.Timeout = c.timeout

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do 发送已解析的请求
func (c *Client) Do(ctx context.Context, p *Prepared) (*Response, error) {
	start := time.Now()

	// 1. 准备请求体
	bodyReader, isJSON, err := prepareBody(p.Body)
	if err != nil {
		return nil, err
	}

	// 2. 创建请求
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 3. 添加请求头
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if isJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	// 4. 执行请求
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 5. 读取响应
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// 6. 构建响应对象
	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    headers,
		Body:       respBody,
		Duration:   time.Since(start),
	}, nil
}

// prepareBody 准备请求体，结构化数据编码为 JSON
func prepareBody(body interface{}) (io.Reader, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case string:
		return strings.NewReader(b), false, nil
	case []byte:
		return bytes.NewReader(b), false, nil
	default:
		jsonBytes, err := json.Marshal(b)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal body: %w", err)
		}
		return bytes.NewReader(jsonBytes), true, nil
	}
}

// ---------------------------------------------------------
// 便捷函数（使用默认客户端）
// ---------------------------------------------------------

var defaultClient = New()

// Do 使用默认客户端发送请求
func Do(ctx context.Context, p *Prepared) (*Response, error) {
	return defaultClient.Do(ctx, p)
}
