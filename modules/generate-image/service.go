package generateimage

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"canvas-image-relay/modules/common/model"
	"canvas-image-relay/modules/common/utils"
	"canvas-image-relay/modules/engine"
	"canvas-image-relay/modules/mask"
	"canvas-image-relay/modules/workflow"
)

const maxSeed = 1_000_000_000

type Service struct {
	engine       Engine
	templates    Templates
	sink         PreviewSink
	archiver     Archiver
	enhancer     PromptEnhancer
	seed         func() int64
	liveInterval time.Duration
}

// Options - Sink, Archiver, Enhancer 는 nil 가능
type Options struct {
	Engine              Engine
	Templates           Templates
	Sink                PreviewSink
	Archiver            Archiver
	Enhancer            PromptEnhancer
	Seed                func() int64
	LivePreviewInterval time.Duration // 0 이면 라이브 프리뷰 전달 안 함
}

func NewService(opts Options) *Service {
	seed := opts.Seed
	if seed == nil {
		seed = randomSeed
	}
	return &Service{
		engine:       opts.Engine,
		templates:    opts.Templates,
		sink:         opts.Sink,
		archiver:     opts.Archiver,
		enhancer:     opts.Enhancer,
		seed:         seed,
		liveInterval: opts.LivePreviewInterval,
	}
}

// randomSeed - [1, 1e9]
func randomSeed() int64 {
	return rand.Int63n(maxSeed) + 1
}

// Denoise - R 회 리파인 중 i 번째 패스의 denoise
func Denoise(i, r int) float64 {
	if r == 1 {
		return 0.5
	}
	d := 0.8 - 0.7*float64(i)/float64(r-1)
	if d < 0.1 {
		d = 0.1
	}
	return d
}

// Generate - txt2img 1 step 초안 후 steps-1 회 img2img 리파인
func (s *Service) Generate(ctx context.Context, p GenerateParams) (*Result, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if p.Width <= 0 || p.Height <= 0 {
		p.Width, p.Height = defaultWidth, defaultHeight
	}
	p.Steps = max(p.Steps, 1)
	prompt := s.enhance(ctx, p.Prompt, p.Enhance)

	tpl, err := s.templates.Load(workflow.Txt2Img)
	if err != nil {
		return nil, err
	}
	conn, err := s.engine.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	seed := s.seed()
	log.Info().Msgf("🎨 [Generate] Pass 0 (txt2img): %dx%d, seed=%d, total steps=%d", p.Width, p.Height, seed, p.Steps)
	if err := applyAll(
		func() error { return tpl.SetPrompt(prompt) },
		func() error { return tpl.SetNegativePrompt(p.NegativePrompt) },
		func() error { return tpl.SetSteps(1) },
		func() error { return tpl.SetSize(p.Width, p.Height) },
		func() error { return tpl.SetSeed(seed) },
	); err != nil {
		return nil, err
	}

	images, err := s.runPass(ctx, conn, tpl, p.SocketID)
	if err != nil {
		return nil, err
	}
	if images.Empty() {
		return nil, ErrNoImage
	}
	res := &Result{Images: images, Seed: seed, Passes: 1}
	s.emitPreview(p.SocketID, res.Images)

	if err := s.refineLoop(ctx, conn, res, prompt, p.NegativePrompt, p.Steps-1, p.SocketID); err != nil {
		log.Warn().Msgf("⚠️  [Generate] Refinement stopped early after %d passes: %v", res.Passes, err)
	}

	s.archive(model.KindGenerate, prompt, p.Steps, p.Width, p.Height, p.SocketID, res)
	log.Info().Msgf("✅ [Generate] Done: %d passes, seed=%d", res.Passes, res.Seed)
	return res, nil
}

// Refine - 입력 이미지에서 바로 steps 회 img2img 리파인
func (s *Service) Refine(ctx context.Context, p RefineParams) (*Result, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if len(p.Image) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}
	w, h, _, err := utils.DecodeConfig(p.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: source image: %v", ErrDecode, err)
	}
	prompt := s.enhance(ctx, p.Prompt, p.Enhance)
	steps := max(p.Steps, 1)

	conn, err := s.engine.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	log.Info().Msgf("🎨 [Refine] %d passes on %dx%d input", steps, w, h)
	res := &Result{Images: engine.Single("input", p.Image)}
	loopErr := s.refineLoop(ctx, conn, res, prompt, p.NegativePrompt, steps, p.SocketID)
	if res.Passes == 0 {
		if loopErr != nil {
			return nil, loopErr
		}
		return nil, ErrNoImage
	}
	if loopErr != nil {
		log.Warn().Msgf("⚠️  [Refine] Stopped early after %d passes: %v", res.Passes, loopErr)
	}

	s.archive(model.KindRefine, prompt, steps, w, h, p.SocketID, res)
	log.Info().Msgf("✅ [Refine] Done: %d passes, seed=%d", res.Passes, res.Seed)
	return res, nil
}

// Inpaint - 이미지+마스크 업로드 후 inpaint 단일 패스
func (s *Service) Inpaint(ctx context.Context, p InpaintParams) (*Result, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if len(p.Image) == 0 || len(p.Mask) == 0 {
		return nil, fmt.Errorf("%w: image and mask are required", ErrValidation)
	}
	w, h, _, err := utils.DecodeConfig(p.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: source image: %v", ErrDecode, err)
	}
	normalized := mask.Normalize(p.Mask, w, h)
	prompt := s.enhance(ctx, p.Prompt, p.Enhance)

	tpl, err := s.templates.Load(workflow.Inpaint)
	if err != nil {
		return nil, err
	}
	imageRef, maskRef, err := s.uploadPair(ctx, p.Image, normalized)
	if err != nil {
		return nil, err
	}

	conn, err := s.engine.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	seed := s.seed()
	steps := max(p.Steps, 1)
	log.Info().Msgf("🎨 [Inpaint] %dx%d, steps=%d, seed=%d", w, h, steps, seed)
	if err := applyAll(
		func() error { return tpl.SetPrompt(prompt) },
		func() error { return tpl.SetNegativePrompt(p.NegativePrompt) },
		func() error { return tpl.SetImageInput(imageRef) },
		func() error { return tpl.SetMaskInput(maskRef) },
		func() error { return tpl.SetSeed(seed) },
		func() error { return tpl.SetSteps(steps) },
	); err != nil {
		return nil, err
	}

	images, err := s.runPass(ctx, conn, tpl, p.SocketID)
	if err != nil {
		return nil, err
	}
	if images.Empty() {
		return nil, ErrNoImage
	}
	res := &Result{Images: images, Seed: seed, Passes: 1}
	s.emitPreview(p.SocketID, res.Images)

	s.archive(model.KindInpaint, prompt, steps, w, h, p.SocketID, res)
	log.Info().Msgf("✅ [Inpaint] Done: seed=%d", seed)
	return res, nil
}

// refineLoop - r 회 img2img. 실패하면 멈추고 res 는 마지막 성공 결과 유지.
func (s *Service) refineLoop(ctx context.Context, conn EngineConn, res *Result, prompt, negative string, r int, socketID string) error {
	for i := 0; i < r; i++ {
		current, ok := res.Images.First()
		if !ok {
			return ErrNoImage
		}

		name := fmt.Sprintf("refine_%s_%d.png", uuid.NewString()[:8], i)
		uploaded, err := s.engine.Upload(ctx, current, name)
		if err != nil {
			return err
		}

		tpl, err := s.templates.Load(workflow.Img2Img)
		if err != nil {
			return err
		}
		seed := s.seed()
		denoise := Denoise(i, r)
		if err := applyAll(
			func() error { return tpl.SetPrompt(prompt) },
			func() error { return tpl.SetNegativePrompt(negative) },
			func() error { return tpl.SetImageInput(inputRef(uploaded)) },
			func() error { return tpl.SetSteps(1) },
			func() error { return tpl.SetSeed(seed) },
			func() error { return tpl.SetDenoise(denoise) },
		); err != nil {
			return err
		}

		log.Info().Msgf("🔁 [Refine] Pass %d/%d: denoise=%.3f, seed=%d", i+1, r, denoise, seed)
		images, err := s.runPass(ctx, conn, tpl, socketID)
		if err != nil {
			return err
		}
		if images.Empty() {
			return ErrNoImage
		}

		res.Images, res.Seed = images, seed
		res.Passes++
		s.emitPreview(socketID, res.Images)
	}
	return nil
}

// runPass - 제출, 완료까지 대기, 출력 수집
func (s *Service) runPass(ctx context.Context, conn EngineConn, tpl *workflow.Template, socketID string) (engine.OutputImages, error) {
	promptID, err := conn.Submit(ctx, tpl.Document())
	if err != nil {
		return engine.OutputImages{}, err
	}
	log.Debug().Msgf("📤 [Engine] Submitted %s: prompt_id=%s", tpl.Name(), promptID)
	if err := conn.Listen(promptID, s.liveForwarder(socketID)); err != nil {
		return engine.OutputImages{}, err
	}
	return s.engine.FetchOutputs(ctx, promptID)
}

// liveForwarder - 엔진 라이브 프리뷰를 sink 로 (rate 제한)
func (s *Service) liveForwarder(socketID string) func(engine.Event) {
	if socketID == "" || s.sink == nil || s.liveInterval <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(s.liveInterval), 1)
	return func(ev engine.Event) {
		if ev.Kind == engine.EventPreview && limiter.Allow() {
			s.sink.Push(socketID, ev.Preview.Image)
		}
	}
}

func (s *Service) emitPreview(socketID string, images engine.OutputImages) {
	if socketID == "" || s.sink == nil {
		return
	}
	if img, ok := images.First(); ok {
		s.sink.Push(socketID, img)
	}
}

// uploadPair - 이미지와 마스크 동시 업로드
func (s *Service) uploadPair(ctx context.Context, image, maskData []byte) (string, string, error) {
	id := uuid.NewString()[:8]
	var imageRef, maskRef string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		up, err := s.engine.Upload(gctx, image, fmt.Sprintf("inpaint_%s_image.png", id))
		if err != nil {
			return err
		}
		imageRef = inputRef(up)
		return nil
	})
	g.Go(func() error {
		up, err := s.engine.Upload(gctx, maskData, fmt.Sprintf("inpaint_%s_mask.png", id))
		if err != nil {
			return err
		}
		maskRef = inputRef(up)
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return imageRef, maskRef, nil
}

func (s *Service) enhance(ctx context.Context, prompt string, enabled bool) string {
	if !enabled || s.enhancer == nil {
		return prompt
	}
	return s.enhancer.Enhance(ctx, prompt)
}

func (s *Service) archive(kind, prompt string, steps, width, height int, socketID string, res *Result) {
	if s.archiver == nil {
		return
	}
	img, ok := res.Images.First()
	if !ok {
		return
	}
	gen := model.Generation{
		Kind:   kind,
		Prompt: prompt,
		Seed:   res.Seed,
		Steps:  steps,
		Width:  width,
		Height: height,
	}
	if socketID != "" {
		gen.SocketID = &socketID
	}
	s.archiver.Save(gen, img)
}

// inputRef - LoadImage 입력값 (subfolder/name)
func inputRef(up engine.UploadResult) string {
	if up.Subfolder != "" {
		return up.Subfolder + "/" + up.Name
	}
	return up.Name
}

func applyAll(setters ...func() error) error {
	for _, set := range setters {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}
