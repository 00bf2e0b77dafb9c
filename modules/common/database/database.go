package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/supabase-community/supabase-go"

	"canvas-image-relay/modules/common/config"
	"canvas-image-relay/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
	table    string
}

// NewClient - Database 클라이언트 생성
func NewClient(cfg *config.Config) (*Client, error) {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &Client{
		supabase: supabaseClient,
		table:    cfg.SupabaseTable,
	}, nil
}

// InsertGeneration - generations 테이블에 레코드 생성.
// postgrest Execute 는 context 를 받지 않으므로 호출 전에만 취소 여부 확인.
func (c *Client) InsertGeneration(ctx context.Context, gen model.Generation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("insert generation record: %w", err)
	}
	log.Debug().Msgf("💾 [Database] Creating %s record for: %s", c.table, gen.FilePath)

	insertData := map[string]interface{}{
		"kind":         gen.Kind,
		"prompt":       gen.Prompt,
		"seed":         gen.Seed,
		"steps":        gen.Steps,
		"width":        gen.Width,
		"height":       gen.Height,
		"socket_id":    gen.SocketID,
		"file_path":    gen.FilePath,
		"file_size":    gen.FileSize,
		"content_type": gen.ContentType,
	}

	data, _, err := c.supabase.From(c.table).
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation record: %w", err)
	}

	var rows []model.Generation
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse generation response: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("no generation record returned")
	}

	log.Info().Msgf("✅ [Database] Generation record created: ID=%d", rows[0].ID)
	return rows[0].ID, nil
}
