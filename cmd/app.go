package cmd

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"canvas-image-relay/modules/archive"
	"canvas-image-relay/modules/common/config"
	"canvas-image-relay/modules/common/database"
	"canvas-image-relay/modules/common/gemini"
	"canvas-image-relay/modules/common/redis"
	"canvas-image-relay/modules/common/storage"
	"canvas-image-relay/modules/common/webpcodec"
	"canvas-image-relay/modules/engine"
	generateimage "canvas-image-relay/modules/generate-image"
	"canvas-image-relay/modules/preview"
	"canvas-image-relay/modules/relay"
	"canvas-image-relay/modules/workflow"
)

// app - 서버/CLI 공통 구성요소
type app struct {
	service  *generateimage.Service
	hub      *relay.Hub
	sink     *preview.Sink
	archiver *archive.Archiver
	rdb      *goredis.Client
}

// buildApp - 설정으로 구성요소 연결. 템플릿 오류는 시작 시 실패.
func buildApp(cfg *config.Config) (*app, error) {
	lib, err := workflow.LoadLibrary(cfg.WorkflowManifest)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow templates: %w", err)
	}
	for _, name := range []string{workflow.Txt2Img, workflow.Img2Img, workflow.Inpaint} {
		if !lib.Has(name) {
			return nil, fmt.Errorf("workflow manifest %s has no %q template", cfg.WorkflowManifest, name)
		}
	}
	if err := lib.Require(workflow.Img2Img, workflow.RoleImage); err != nil {
		return nil, err
	}
	if err := lib.Require(workflow.Inpaint, workflow.RoleImage, workflow.RoleMask); err != nil {
		return nil, err
	}
	log.Info().Msgf("📄 Workflow templates loaded from %s", cfg.WorkflowManifest)

	a := &app{}
	a.rdb = redis.Connect(cfg)
	a.hub = relay.NewHub(relay.Options{Redis: a.rdb, Channel: cfg.RelayChannel})

	previewOpts := preview.Options{MaxSize: cfg.PreviewMaxSize, Encoder: previewEncoder(cfg)}
	if cfg.RelayURL != "" {
		a.sink = preview.NewHTTPSink(cfg.RelayURL, nil, previewOpts)
	} else {
		a.sink = preview.NewPublisherSink(a.hub, previewOpts)
	}

	opts := generateimage.Options{
		Engine: generateimage.NewEngine(engine.NewClient(engine.Options{
			Address: cfg.EngineAddress,
			UseTLS:  cfg.EngineUseTLS,
		})),
		Templates:           lib,
		Sink:                a.sink,
		LivePreviewInterval: cfg.LivePreviewInterval,
	}

	if cfg.ArchiveEnabled() {
		var recorder archive.Recorder
		if db, err := database.NewClient(cfg); err != nil {
			log.Warn().Msgf("⚠️  Archive rows disabled: %v", err)
		} else {
			recorder = db
		}
		a.archiver = archive.New(storage.NewClient(cfg, webpcodec.Convert), recorder)
		opts.Archiver = a.archiver
	}
	if enhancer := gemini.NewEnhancer(cfg.GeminiAPIKeys, cfg.GeminiModel); enhancer != nil {
		opts.Enhancer = enhancer
	}

	a.service = generateimage.NewService(opts)
	return a, nil
}

func previewEncoder(cfg *config.Config) preview.Encoder {
	switch cfg.PreviewFormat {
	case "jpeg":
		return preview.JPEGEncoder{Quality: int(cfg.PreviewQuality)}
	case "png":
		return preview.PNGEncoder{}
	default:
		return webpcodec.Encoder{Quality: cfg.PreviewQuality}
	}
}

// shutdown - 진행 중인 백그라운드 작업 정리
func (a *app) shutdown() {
	a.sink.Wait()
	a.archiver.Wait()
	a.hub.Close()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
