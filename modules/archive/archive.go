package archive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"canvas-image-relay/modules/common/model"
)

// Uploader - Storage 업로드
type Uploader interface {
	UploadImage(ctx context.Context, imageData []byte, kind string) (model.Asset, error)
}

// Recorder - 레코드 기록
type Recorder interface {
	InsertGeneration(ctx context.Context, gen model.Generation) (int64, error)
}

// Archiver - 최종 이미지를 비동기로 보관 (best-effort)
type Archiver struct {
	uploader Uploader
	recorder Recorder
	timeout  time.Duration
	wg       sync.WaitGroup
}

// New - recorder 는 nil 가능 (Storage 만 사용)
func New(uploader Uploader, recorder Recorder) *Archiver {
	return &Archiver{uploader: uploader, recorder: recorder, timeout: 2 * time.Minute}
}

// Save - 백그라운드로 업로드 + 기록. 응답 경로는 기다리지 않는다.
func (a *Archiver) Save(gen model.Generation, image []byte) {
	if a == nil || a.uploader == nil || len(image) == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		asset, err := a.uploader.UploadImage(ctx, image, gen.Kind)
		if err != nil {
			log.Warn().Msgf("⚠️  [Archive] Upload failed (%s, seed %d): %v", gen.Kind, gen.Seed, err)
			return
		}
		if a.recorder == nil {
			return
		}

		gen.FilePath = asset.Path
		gen.FileSize = asset.Size
		gen.ContentType = asset.ContentType
		if gen.CreatedAt.IsZero() {
			gen.CreatedAt = time.Now().UTC()
		}
		if _, err := a.recorder.InsertGeneration(ctx, gen); err != nil {
			log.Warn().Msgf("⚠️  [Archive] Record failed for %s: %v", asset.Path, err)
		}
	}()
}

// Wait - 진행 중인 아카이브 작업 대기 (종료 시, 테스트)
func (a *Archiver) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
