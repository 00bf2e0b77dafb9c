package generateimage

import (
	"errors"
	"net/http"

	"canvas-image-relay/modules/common/utils"
)

var (
	ErrValidation = errors.New("invalid request")
	ErrDecode     = errors.New("invalid image data")
	ErrNoImage    = errors.New("no image generated")
)

const msgGenerateFailed = "Failed to generate images"

// statusFor - 에러 종류 -> HTTP 상태/응답 메시지. 5xx 는 고정 문구만.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrDecode), errors.Is(err, utils.ErrInvalidImageData):
		return http.StatusBadRequest, "Invalid image data"
	default:
		return http.StatusInternalServerError, msgGenerateFailed
	}
}
