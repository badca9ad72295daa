package cas

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable 未能取得校验结论的错误都包装此错误
var ErrUnavailable = errors.New("CAS 服务不可用")

// maxResponseBytes 校验响应最多读取的字节数
const maxResponseBytes = 1 << 20

// Response service ticket 校验结果
type Response struct {
	Success bool

	// User 服务端断言的用户标识（学号）
	User       string
	Attributes map[string][]string

	FailureCode    string
	FailureMessage string
}

// Attribute 返回指定属性的第一个值
func (r *Response) Attribute(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	vals := r.Attributes[name]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Client 单个 CAS 服务端的客户端
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient 创建 CAS 客户端，baseURL 为服务端根地址
// httpClient 为 nil 时使用 10 秒超时的默认客户端
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("CAS 地址无效: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CAS 地址 %q 必须为绝对地址", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// LoginURL 浏览器登录跳转地址
func (c *Client) LoginURL(serviceURL string) string {
	return c.endpoint("/login", url.Values{"service": {serviceURL}})
}

// ValidateServiceTicket 服务端到服务端校验 ticket
func (c *Client) ValidateServiceTicket(ctx context.Context, ticket, serviceURL string) (*Response, error) {
	target := c.endpoint("/serviceValidate", url.Values{
		"service": {serviceURL},
		"ticket":  {ticket},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 响应状态码 %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", ErrUnavailable, err)
	}

	return parseServiceResponse(body)
}

type xmlServiceResponse struct {
	XMLName xml.Name    `xml:"serviceResponse"`
	Success *xmlSuccess `xml:"authenticationSuccess"`
	Failure *xmlFailure `xml:"authenticationFailure"`
}

type xmlSuccess struct {
	User       string         `xml:"user"`
	Attributes *xmlAttributes `xml:"attributes"`
}

type xmlAttributes struct {
	Items []xmlAttribute `xml:",any"`
}

type xmlAttribute struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlFailure struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

func parseServiceResponse(body []byte) (*Response, error) {
	var sr xmlServiceResponse
	if err := xml.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: 响应格式错误: %v", ErrUnavailable, err)
	}

	switch {
	case sr.Success != nil:
		user := strings.TrimSpace(sr.Success.User)
		if user == "" {
			return &Response{Success: false, FailureCode: "INVALID_RESPONSE"}, nil
		}
		r := &Response{
			Success:    true,
			User:       user,
			Attributes: make(map[string][]string),
		}
		if sr.Success.Attributes != nil {
			for _, a := range sr.Success.Attributes.Items {
				name := a.XMLName.Local
				r.Attributes[name] = append(r.Attributes[name], strings.TrimSpace(a.Value))
			}
		}
		return r, nil
	case sr.Failure != nil:
		return &Response{
			Success:        false,
			FailureCode:    sr.Failure.Code,
			FailureMessage: strings.TrimSpace(sr.Failure.Message),
		}, nil
	default:
		return nil, fmt.Errorf("%w: 响应既非成功也非失败", ErrUnavailable)
	}
}
