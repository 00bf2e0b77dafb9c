package model

import "time"

// Generation kinds
const (
	KindGenerate = "generate"
	KindInpaint  = "inpaint"
	KindRefine   = "refine"
)

// Generation - generations 테이블 구조 (아카이브)
type Generation struct {
	ID          int64     `json:"id,omitempty"`
	Kind        string    `json:"kind"`         // generate / inpaint / refine
	Prompt      string    `json:"prompt"`
	Seed        int64     `json:"seed"`
	Steps       int       `json:"steps"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	SocketID    *string   `json:"socket_id"`    // 프리뷰 세션 (없으면 null)
	FilePath    string    `json:"file_path"`    // Storage 경로
	FileSize    int64     `json:"file_size"`    // WebP 바이트
	ContentType string    `json:"content_type"` // image/webp
	CreatedAt   time.Time `json:"created_at"`
}

// Asset - Storage 업로드 결과
type Asset struct {
	Path        string
	Size        int64
	ContentType string
}
