package generateimage

import (
	"context"

	"canvas-image-relay/modules/common/model"
	"canvas-image-relay/modules/engine"
	"canvas-image-relay/modules/workflow"
)

// Engine - 오케스트레이터가 쓰는 엔진 기능
type Engine interface {
	Connect(ctx context.Context) (EngineConn, error)
	Upload(ctx context.Context, data []byte, filename string) (engine.UploadResult, error)
	FetchOutputs(ctx context.Context, promptID string) (engine.OutputImages, error)
}

// EngineConn - 호출 하나가 소유하는 연결
type EngineConn interface {
	Submit(ctx context.Context, doc any) (string, error)
	Listen(promptID string, fn func(engine.Event)) error
	Close() error
}

// Templates - job 템플릿 공급
type Templates interface {
	Load(name string) (*workflow.Template, error)
}

// PreviewSink - 블록하지 않는 프리뷰 전송
type PreviewSink interface {
	Push(socketID string, img []byte)
}

// Archiver - 최종 이미지 보관 (비동기)
type Archiver interface {
	Save(gen model.Generation, img []byte)
}

// PromptEnhancer - 프롬프트 보강. 실패하면 원본 반환.
type PromptEnhancer interface {
	Enhance(ctx context.Context, prompt string) string
}

type clientEngine struct {
	*engine.Client
}

// NewEngine - *engine.Client 를 Engine 으로
func NewEngine(c *engine.Client) Engine {
	return clientEngine{Client: c}
}

func (e clientEngine) Connect(ctx context.Context) (EngineConn, error) {
	conn, err := e.Client.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
