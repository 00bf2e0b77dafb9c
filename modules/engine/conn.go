package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn - 오케스트레이터 호출 하나가 소유하는 엔진 세션
type Conn struct {
	client   *Client
	ws       *websocket.Conn
	clientID string

	closeOnce sync.Once
	closeErr  error
}

// ClientID - 이 연결의 client id
func (c *Conn) ClientID() string { return c.clientID }

// Submit - job description 제출, prompt_id 반환
func (c *Conn) Submit(ctx context.Context, doc any) (string, error) {
	status, body, err := c.client.postJSON(ctx, "/prompt", promptRequest{Prompt: doc, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	if status != http.StatusOK {
		log.Error().Msgf("❌ [Engine] Submit rejected: status=%d body=%s", status, truncate(string(body), 500))
		return "", fmt.Errorf("%w: status %d", ErrSubmit, status)
	}

	var resp promptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrSubmit, err)
	}
	if resp.PromptID == "" {
		return "", fmt.Errorf("%w: empty prompt_id", ErrSubmit)
	}

	log.Info().Msgf("📨 [Engine] Job queued: prompt_id=%s (queue #%d)", resp.PromptID, resp.Number)
	return resp.PromptID, nil
}

// Listen - promptID 의 완료 메시지가 올 때까지 블록. 프로그레스/프리뷰는 fn 으로 전달.
func (c *Conn) Listen(promptID string, fn func(Event)) error {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrConnection, err)
		}

		if msgType == websocket.BinaryMessage {
			if frame, ok := DecodePreviewFrame(data); ok && fn != nil {
				fn(Event{Kind: EventPreview, Preview: frame})
			}
			continue
		}

		done, err := c.handleText(promptID, data, fn)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (c *Conn) handleText(promptID string, data []byte, fn func(Event)) (bool, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Msgf("⚠️  [Engine] Ignoring malformed message: %v", err)
		return false, nil
	}

	switch msg.Type {
	case "progress":
		var p progressData
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return false, nil
		}
		if p.PromptID != "" && p.PromptID != promptID {
			return false, nil
		}
		progress := Progress{Value: p.Value, Max: p.Max, Node: p.Node}
		log.Info().Msgf("⏳ [Engine] Progress: %d%% in node %s", progress.Percent(), p.Node)
		if fn != nil {
			fn(Event{Kind: EventProgress, Progress: progress})
		}

	case "executing":
		var e executingData
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return false, nil
		}
		if (e.Node == nil || *e.Node == "") && e.PromptID == promptID {
			log.Info().Msgf("✅ [Engine] Execution complete: %s", promptID)
			if fn != nil {
				fn(Event{Kind: EventCompletion})
			}
			return true, nil
		}

	case "execution_error":
		var e executionErrorData
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return false, nil
		}
		if e.PromptID == promptID {
			log.Error().Msgf("❌ [Engine] Execution error in node %s (%s): %s: %s",
				e.NodeID, e.NodeType, e.ExceptionType, e.ExceptionMessage)
			return false, fmt.Errorf("%w: node %s: %s", ErrExecution, e.NodeID, e.ExceptionType)
		}
	}
	return false, nil
}

// Close - 연결 종료 (여러 번 호출해도 안전)
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.closeErr = c.ws.Close()
		log.Debug().Msgf("🔌 [Engine] Connection %s closed", c.clientID)
	})
	return c.closeErr
}
