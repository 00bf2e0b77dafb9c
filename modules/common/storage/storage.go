package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"canvas-image-relay/modules/common/config"
	"canvas-image-relay/modules/common/model"
)

// ConvertFunc - 업로드 전 변환 (WebP)
type ConvertFunc func(data []byte, quality float32) ([]byte, error)

type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
	convert    ConvertFunc
}

// NewClient - Storage 클라이언트 생성
func NewClient(cfg *config.Config, convert ConvertFunc) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.SupabaseURL, "/"),
		serviceKey: cfg.SupabaseServiceKey,
		bucket:     cfg.SupabaseBucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		convert:    convert,
	}
}

// UploadImage - Supabase Storage에 이미지 업로드 (WebP 변환 포함)
func (c *Client) UploadImage(ctx context.Context, imageData []byte, kind string) (model.Asset, error) {
	data := imageData
	contentType := "image/png"
	ext := "png"
	if c.convert != nil {
		webpData, err := c.convert(imageData, 90.0)
		if err != nil {
			return model.Asset{}, fmt.Errorf("failed to convert image to WebP: %w", err)
		}
		data, contentType, ext = webpData, "image/webp", "webp"
	}

	now := time.Now().UTC()
	filePath := fmt.Sprintf("%s/%s/%s_%d_%s.%s",
		kind, now.Format("2006-01-02"), kind, now.UnixMilli(), uuid.NewString()[:8], ext)

	log.Debug().Msgf("📤 [Storage] Uploading image to storage: %s", filePath)

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return model.Asset{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Asset{}, fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return model.Asset{}, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	log.Info().Msgf("✅ [Storage] Image uploaded successfully: %s (%d bytes)", filePath, len(data))
	return model.Asset{Path: filePath, Size: int64(len(data)), ContentType: contentType}, nil
}
