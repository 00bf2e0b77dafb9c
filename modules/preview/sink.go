package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventPreview - 릴레이로 보내는 이벤트 이름
const EventPreview = "preview"

// Message - 릴레이 요청 본문 {socketId, event, data}
type Message struct {
	SocketID string `json:"socketId"`
	Event    string `json:"event"`
	Data     any    `json:"data"`
}

// ImageData - preview 이벤트 data
type ImageData struct {
	Image string `json:"image"`
}

// Publisher - 같은 프로세스 안의 릴레이 허브
type Publisher interface {
	Publish(ctx context.Context, socketID, event string, data any) error
}

// Options - 프리뷰 렌더링/전송 설정
type Options struct {
	MaxSize int
	Encoder Encoder
	Timeout time.Duration
}

// Sink - best-effort 프리뷰 전송. Push 는 결과를 기다리지 않는다.
type Sink struct {
	deliver func(ctx context.Context, msg Message) error
	opts    Options
	wg      sync.WaitGroup
}

func newSink(deliver func(context.Context, Message) error, opts Options) *Sink {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 256
	}
	if opts.Encoder == nil {
		opts.Encoder = JPEGEncoder{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Sink{deliver: deliver, opts: opts}
}

// NewHTTPSink - 외부 릴레이 엔드포인트로 POST
func NewHTTPSink(relayURL string, client *http.Client, opts Options) *Sink {
	if client == nil {
		client = &http.Client{}
	}
	return newSink(func(ctx context.Context, msg Message) error {
		body, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, relayURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("relay http %d", resp.StatusCode)
		}
		return nil
	}, opts)
}

// NewPublisherSink - 프로세스 내 릴레이 허브로 직접 전달
func NewPublisherSink(p Publisher, opts Options) *Sink {
	return newSink(func(ctx context.Context, msg Message) error {
		return p.Publish(ctx, msg.SocketID, msg.Event, msg.Data)
	}, opts)
}

// Push - 백그라운드로 렌더링+전송. 실패는 로그만 남긴다.
func (s *Sink) Push(socketID string, img []byte) {
	if socketID == "" || len(img) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
		if err := s.Send(ctx, socketID, img); err != nil {
			log.Warn().Msgf("⚠️  [Preview] Failed to push preview to %s: %v", socketID, err)
		}
	}()
}

// Send - 동기 전송
func (s *Sink) Send(ctx context.Context, socketID string, img []byte) error {
	dataURL, err := Render(img, s.opts.MaxSize, s.opts.Encoder)
	if err != nil {
		return err
	}
	return s.deliver(ctx, Message{
		SocketID: socketID,
		Event:    EventPreview,
		Data:     ImageData{Image: dataURL},
	})
}

// Wait - 진행 중인 Push 가 모두 끝날 때까지 대기 (종료 시, 테스트)
func (s *Sink) Wait() {
	s.wg.Wait()
}
