package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

// Upload - 입력 이미지(원본, 마스크)를 엔진 asset 저장소에 업로드
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrAsset, err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrAsset, err)
	}
	_ = mw.WriteField("overwrite", "true")
	_ = mw.WriteField("type", "input")
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrAsset, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrAsset, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Info().Msgf("📤 [Engine] Uploading %s (%d bytes)", filename, len(data))
	status, body, err := c.do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: upload %s: %v", ErrAsset, filename, err)
	}
	if status != http.StatusOK {
		return UploadResult{}, fmt.Errorf("%w: upload %s: status %d", ErrAsset, filename, status)
	}

	var res UploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return UploadResult{}, fmt.Errorf("%w: parse upload response: %v", ErrAsset, err)
	}
	if res.Name == "" {
		res.Name = filename
	}
	return res, nil
}

// View - filename/subfolder/type 로 이미지 다운로드
func (c *Client) View(ctx context.Context, filename, subfolder, kind string) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", filename)
	q.Set("subfolder", subfolder)
	q.Set("type", kind)

	log.Info().Msgf("📥 [Engine] Downloading image: %s", filename)
	status, body, err := c.get(ctx, "/view?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: view %s: %v", ErrAsset, filename, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: view %s: status %d", ErrAsset, filename, status)
	}
	return body, nil
}

// History - prompt_id 의 실행 기록
func (c *Client) History(ctx context.Context, promptID string) (*HistoryEntry, error) {
	status, body, err := c.get(ctx, "/history/"+url.PathEscape(promptID))
	if err != nil {
		return nil, fmt.Errorf("%w: history %s: %v", ErrAsset, promptID, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: history %s: status %d", ErrAsset, promptID, status)
	}
	return parseHistory(body, promptID)
}

// FetchOutputs - history 를 조회하고 모든 출력 이미지를 나열 순서대로 다운로드
func (c *Client) FetchOutputs(ctx context.Context, promptID string) (OutputImages, error) {
	entry, err := c.History(ctx, promptID)
	if err != nil {
		return OutputImages{}, err
	}

	var out OutputImages
	for _, node := range entry.OutputOrder {
		for _, ref := range entry.Outputs[node].Images {
			data, err := c.View(ctx, ref.Filename, ref.Subfolder, ref.Type)
			if err != nil {
				return OutputImages{}, err
			}
			out.Add(node, data)
		}
	}
	return out, nil
}

// parseHistory - {"<id>": {"outputs": {...}}} 에서 outputs 를 키 순서대로 파싱
func parseHistory(body []byte, promptID string) (*HistoryEntry, error) {
	var all map[string]struct {
		Outputs json.RawMessage `json:"outputs"`
	}
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("%w: parse history: %v", ErrAsset, err)
	}
	item, ok := all[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: history has no entry for %s", ErrAsset, promptID)
	}

	entry := &HistoryEntry{Outputs: map[string]NodeOutput{}}
	if len(item.Outputs) == 0 {
		return entry, nil
	}

	keys, err := objectKeys(item.Outputs)
	if err != nil {
		return nil, fmt.Errorf("%w: parse history outputs: %v", ErrAsset, err)
	}
	if err := json.Unmarshal(item.Outputs, &entry.Outputs); err != nil {
		return nil, fmt.Errorf("%w: parse history outputs: %v", ErrAsset, err)
	}
	for _, k := range keys {
		if len(entry.Outputs[k].Images) > 0 {
			entry.OutputOrder = append(entry.OutputOrder, k)
		}
	}
	return entry, nil
}

// objectKeys - JSON 객체의 최상위 키를 등장 순서대로
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("outputs is not an object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
