package webpcodec

import (
	"bytes"
	"fmt"
	"image"

	_ "github.com/kolesa-team/go-webp/decoder" // WebP 디코더 등록
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rs/zerolog/log"
)

// Encoder - libwebp lossy 인코더 (preview.Encoder 구현)
type Encoder struct {
	Quality float32
}

func (e Encoder) Encode(img image.Image) ([]byte, error) {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = 75
	}
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, q)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return buf.Bytes(), nil
}

func (Encoder) MimeType() string { return "image/webp" }

// Convert - PNG/JPEG 바이너리를 WebP로 변환 (아카이브 업로드용)
func Convert(data []byte, quality float32) ([]byte, error) {
	log.Debug().Msgf("🔄 Converting image to WebP (quality: %.1f)", quality)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	out, err := Encoder{Quality: quality}.Encode(img)
	if err != nil {
		return nil, err
	}

	log.Debug().Msgf("✅ Image converted to WebP: %d bytes → %d bytes", len(data), len(out))
	return out, nil
}
