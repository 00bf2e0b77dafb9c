package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options - 엔진 클라이언트 설정
type Options struct {
	Address    string // host:port
	UseTLS     bool
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// Client - ComfyUI 호환 엔진 클라이언트 (HTTP + websocket)
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient - 클라이언트 생성. Address 는 "host:port" 또는 http(s):// URL.
func NewClient(opts Options) *Client {
	addr := strings.TrimSuffix(opts.Address, "/")
	httpScheme, wsScheme := "http", "ws"
	if opts.UseTLS {
		httpScheme, wsScheme = "https", "wss"
	}
	switch {
	case strings.HasPrefix(addr, "https://"):
		addr, httpScheme, wsScheme = strings.TrimPrefix(addr, "https://"), "https", "wss"
	case strings.HasPrefix(addr, "http://"):
		addr, httpScheme, wsScheme = strings.TrimPrefix(addr, "http://"), "http", "ws"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// 생성 자체는 websocket 으로 기다리므로 HTTP 왕복에만 타임아웃
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		baseURL:    httpScheme + "://" + addr,
		wsURL:      wsScheme + "://" + addr + "/ws",
		httpClient: httpClient,
		dialer:     dialer,
	}
}

// Connect - 연결마다 새 client id 로 웹소켓 연결
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	clientID := uuid.NewString()
	wsURL := c.wsURL + "?clientId=" + url.QueryEscape(clientID)

	log.Info().Msgf("🔌 [Engine] Connecting to %s", wsURL)
	ws, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", ErrConnection, c.wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, c.wsURL, err)
	}

	return &Conn{client: c, ws: ws, clientID: clientID}, nil
}

// postJSON - JSON POST 후 응답 본문 반환
func (c *Client) postJSON(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, pathAndQuery string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return 0, nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// truncate - 로그용 문자열 자르기
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
