package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"canvas-image-relay/modules/common/utils"
)

// Encoder - 프리뷰 프레임 재인코딩
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	MimeType() string
}

// JPEGEncoder - image/jpeg
type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = 75
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (JPEGEncoder) MimeType() string { return "image/jpeg" }

// PNGEncoder - image/png
type PNGEncoder struct{}

func (PNGEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (PNGEncoder) MimeType() string { return "image/png" }

// Render - 디코딩, maxSize 박스로 축소, 재인코딩 후 data URL 반환
func Render(raw []byte, maxSize int, enc Encoder) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode preview: %w", err)
	}
	small := utils.FitWithin(img, maxSize, maxSize)
	data, err := enc.Encode(small)
	if err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return utils.DataURL(enc.MimeType(), data), nil
}
