package generateimage

import "canvas-image-relay/modules/engine"

const (
	defaultSteps  = 25
	defaultWidth  = 512
	defaultHeight = 512
	maxSteps      = 150
	minDimension  = 64
	maxDimension  = 4096
)

// GenerateImageRequest - POST /generate-image
type GenerateImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Steps          *int   `json:"steps,omitempty"`
	Width          *int   `json:"width,omitempty"`
	Height         *int   `json:"height,omitempty"`
	SocketID       string `json:"socketId,omitempty"`
	EnhancePrompt  bool   `json:"enhance_prompt,omitempty"`
}

// ImageEditRequest - POST /inpaint-image, /refine-image (JSON)
// image/mask: data URL, base64, http(s) URL
type ImageEditRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Steps          *int   `json:"steps,omitempty"`
	Image          string `json:"image"`
	Mask           string `json:"mask,omitempty"`
	SocketID       string `json:"socketId,omitempty"`
	EnhancePrompt  bool   `json:"enhance_prompt,omitempty"`
}

// GenerateParams - txt2img + 리파인 루프
type GenerateParams struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Width          int
	Height         int
	SocketID       string
	Enhance        bool
}

// InpaintParams - 단일 inpaint 패스
type InpaintParams struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Image          []byte
	Mask           []byte
	SocketID       string
	Enhance        bool
}

// RefineParams - 입력 이미지에서 시작하는 리파인 루프
type RefineParams struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Image          []byte
	SocketID       string
	Enhance        bool
}

// Result - 최종 이미지 세트와 그 패스의 seed
type Result struct {
	Images engine.OutputImages
	Seed   int64
	Passes int
}
