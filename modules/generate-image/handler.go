package generateimage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"canvas-image-relay/modules/common/response"
	"canvas-image-relay/modules/common/utils"
)

const (
	maxJSONBody      = 64 << 20
	maxMultipartBody = 64 << 20
	multipartMemory  = 32 << 20
)

type GenerateImageHandler struct {
	service    *Service
	httpClient *http.Client
}

func NewGenerateImageHandler(service *Service) *GenerateImageHandler {
	return &GenerateImageHandler{
		service:    service,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// RegisterRoutes - 이미지 생성 라우트 등록
func (h *GenerateImageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/generate-image", h.recoverer(h.GenerateImage)).Methods("POST", "OPTIONS")
	r.HandleFunc("/inpaint-image", h.recoverer(h.InpaintImage)).Methods("POST", "OPTIONS")
	r.HandleFunc("/refine-image", h.recoverer(h.RefineImage)).Methods("POST", "OPTIONS")
}

// GenerateImage - POST /generate-image
func (h *GenerateImageHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req GenerateImageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	params, err := req.params()
	if err != nil {
		h.fail(w, "generate", err)
		return
	}

	log.Info().Msgf("📥 [Generate] Request: %q (steps=%d, %dx%d, socket=%q)",
		params.Prompt, params.Steps, params.Width, params.Height, params.SocketID)
	res, err := h.service.Generate(r.Context(), params)
	if err != nil {
		h.fail(w, "generate", err)
		return
	}
	writeImage(w, "generated", res)
}

// InpaintImage - POST /inpaint-image (JSON 또는 multipart)
func (h *GenerateImageHandler) InpaintImage(w http.ResponseWriter, r *http.Request) {
	in, err := h.readEditInput(w, r, true)
	if err != nil {
		h.fail(w, "inpaint", err)
		return
	}

	log.Info().Msgf("📥 [Inpaint] Request: %q (steps=%d, image=%d bytes, mask=%d bytes)",
		in.prompt, in.steps, len(in.image), len(in.mask))
	res, err := h.service.Inpaint(r.Context(), InpaintParams{
		Prompt:         in.prompt,
		NegativePrompt: in.negative,
		Steps:          in.steps,
		Image:          in.image,
		Mask:           in.mask,
		SocketID:       in.socketID,
		Enhance:        in.enhance,
	})
	if err != nil {
		h.fail(w, "inpaint", err)
		return
	}
	writeImage(w, "inpainted", res)
}

// RefineImage - POST /refine-image (JSON 또는 multipart)
func (h *GenerateImageHandler) RefineImage(w http.ResponseWriter, r *http.Request) {
	in, err := h.readEditInput(w, r, false)
	if err != nil {
		h.fail(w, "refine", err)
		return
	}

	log.Info().Msgf("📥 [Refine] Request: %q (steps=%d, image=%d bytes)", in.prompt, in.steps, len(in.image))
	res, err := h.service.Refine(r.Context(), RefineParams{
		Prompt:         in.prompt,
		NegativePrompt: in.negative,
		Steps:          in.steps,
		Image:          in.image,
		SocketID:       in.socketID,
		Enhance:        in.enhance,
	})
	if err != nil {
		h.fail(w, "refine", err)
		return
	}
	writeImage(w, "refined", res)
}

// editInput - inpaint/refine 공통 입력
type editInput struct {
	prompt   string
	negative string
	steps    int
	image    []byte
	mask     []byte
	socketID string
	enhance  bool
}

// readEditInput - 필수 필드 검증까지 끝낸 입력. 엔진 호출 전 단계.
func (h *GenerateImageHandler) readEditInput(w http.ResponseWriter, r *http.Request, needMask bool) (*editInput, error) {
	var (
		in       editInput
		imageSrc string
		maskSrc  string
		err      error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, fmt.Errorf("%w: invalid multipart form", ErrValidation)
		}
		defer r.MultipartForm.RemoveAll()

		in.prompt = r.FormValue("prompt")
		in.negative = r.FormValue("negative_prompt")
		in.socketID = r.FormValue("socketId")
		in.enhance, _ = strconv.ParseBool(r.FormValue("enhance_prompt"))
		if in.steps, err = parseSteps(r.FormValue("steps")); err != nil {
			return nil, err
		}
		if in.image, err = formFile(r.MultipartForm, "image"); err != nil {
			return nil, err
		}
		if needMask {
			if in.mask, err = formFile(r.MultipartForm, "mask"); err != nil {
				return nil, err
			}
		}
		imageSrc, maskSrc = r.FormValue("image"), r.FormValue("mask")
	} else {
		var req ImageEditRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON body", ErrValidation)
		}
		in.prompt, in.negative, in.socketID, in.enhance = req.Prompt, req.NegativePrompt, req.SocketID, req.EnhancePrompt
		in.steps = defaultSteps
		if req.Steps != nil {
			in.steps = *req.Steps
		}
		imageSrc, maskSrc = req.Image, req.Mask
	}

	if strings.TrimSpace(in.prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if in.steps < 0 || in.steps > maxSteps {
		return nil, fmt.Errorf("%w: steps must be between 0 and %d", ErrValidation, maxSteps)
	}
	if len(in.image) == 0 && strings.TrimSpace(imageSrc) == "" {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}
	if needMask && len(in.mask) == 0 && strings.TrimSpace(maskSrc) == "" {
		return nil, fmt.Errorf("%w: mask is required", ErrValidation)
	}

	if len(in.image) == 0 {
		if in.image, err = h.loadInput(r.Context(), imageSrc); err != nil {
			return nil, err
		}
	}
	if needMask && len(in.mask) == 0 {
		if in.mask, err = h.loadInput(r.Context(), maskSrc); err != nil {
			return nil, err
		}
	}
	return &in, nil
}

func (h *GenerateImageHandler) loadInput(ctx context.Context, src string) ([]byte, error) {
	data, err := utils.LoadImageInput(ctx, h.httpClient, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// params - 기본값 적용 + 검증
func (req GenerateImageRequest) params() (GenerateParams, error) {
	p := GenerateParams{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          defaultSteps,
		Width:          defaultWidth,
		Height:         defaultHeight,
		SocketID:       req.SocketID,
		Enhance:        req.EnhancePrompt,
	}
	if req.Steps != nil {
		p.Steps = *req.Steps
	}
	if req.Width != nil {
		p.Width = *req.Width
	}
	if req.Height != nil {
		p.Height = *req.Height
	}

	if strings.TrimSpace(p.Prompt) == "" {
		return p, fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if p.Steps < 0 || p.Steps > maxSteps {
		return p, fmt.Errorf("%w: steps must be between 0 and %d", ErrValidation, maxSteps)
	}
	if p.Width < minDimension || p.Width > maxDimension || p.Height < minDimension || p.Height > maxDimension {
		return p, fmt.Errorf("%w: width and height must be between %d and %d", ErrValidation, minDimension, maxDimension)
	}
	return p, nil
}

func parseSteps(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return defaultSteps, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: steps must be an integer", ErrValidation)
	}
	return n, nil
}

// formFile - 파일 파트가 없으면 nil, nil
func formFile(form *multipart.Form, field string) ([]byte, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, field, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeImage - 첫 이미지를 바이너리로 응답
func writeImage(w http.ResponseWriter, prefix string, res *Result) {
	img, ok := res.Images.First()
	if !ok {
		response.WriteError(w, http.StatusInternalServerError, msgGenerateFailed)
		return
	}

	contentType := http.DetectContentType(img)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s-%d.png\"", prefix, res.Seed))
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *GenerateImageHandler) fail(w http.ResponseWriter, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Msgf("❌ [%s] Failed: %v", op, err)
	} else {
		log.Warn().Msgf("⚠️  [%s] Rejected: %v", op, err)
	}
	response.WriteError(w, status, msg)
}

// recoverer - 핸들러 panic 을 500 으로
func (h *GenerateImageHandler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Msgf("💥 Panic in %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				response.WriteError(w, http.StatusInternalServerError, msgGenerateFailed)
			}
		}()
		next(w, r)
	}
}
