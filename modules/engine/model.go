package engine

import (
	"encoding/json"
	"errors"
)

var (
	// ErrConnection - 웹소켓 연결/수신 실패
	ErrConnection = errors.New("engine connection failed")
	// ErrSubmit - job 제출 실패
	ErrSubmit = errors.New("engine submit failed")
	// ErrExecution - 엔진이 job 실행 에러를 보고함
	ErrExecution = errors.New("engine execution failed")
	// ErrAsset - 업로드/다운로드/히스토리 실패
	ErrAsset = errors.New("engine asset transfer failed")
)

// EventKind - Listen 콜백 이벤트 종류
type EventKind int

const (
	EventProgress EventKind = iota
	EventCompletion
	EventPreview
)

// Progress - 진행률 (로그용, 제어 효과 없음)
type Progress struct {
	Value int    `json:"value"`
	Max   int    `json:"max"`
	Node  string `json:"node"`
}

// Percent - 0..100
func (p Progress) Percent() int {
	if p.Max <= 0 {
		return 0
	}
	return p.Value * 100 / p.Max
}

// Event - Listen 이 전달하는 이벤트
type Event struct {
	Kind     EventKind
	Progress Progress
	Preview  PreviewFrame
}

// wsMessage - 텍스트 프레임 {type, data}
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type progressData struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	Node     string `json:"node"`
	PromptID string `json:"prompt_id"`
}

type executingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type executionErrorData struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	NodeType         string `json:"node_type"`
	ExceptionType    string `json:"exception_type"`
	ExceptionMessage string `json:"exception_message"`
}

// promptRequest - POST /prompt
type promptRequest struct {
	Prompt   any    `json:"prompt"`
	ClientID string `json:"client_id"`
}

// promptResponse - POST /prompt 응답
type promptResponse struct {
	PromptID   string          `json:"prompt_id"`
	Number     int             `json:"number"`
	NodeErrors json.RawMessage `json:"node_errors,omitempty"`
}

// ImageRef - history outputs 의 이미지 참조
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput - history outputs[node]
type NodeOutput struct {
	Images []ImageRef `json:"images"`
}

// HistoryEntry - GET /history/<id> 의 항목. OutputOrder 는 JSON 에 나온 순서.
type HistoryEntry struct {
	Outputs     map[string]NodeOutput
	OutputOrder []string
}

// UploadResult - POST /upload/image 응답
type UploadResult struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// OutputImages - 출력 노드 ID -> 이미지 바이트 목록
type OutputImages struct {
	Order  []string
	Images map[string][][]byte
}

// First - history 순서상 첫 이미지
func (o OutputImages) First() ([]byte, bool) {
	for _, node := range o.Order {
		for _, img := range o.Images[node] {
			if len(img) > 0 {
				return img, true
			}
		}
	}
	return nil, false
}

// Empty - 이미지가 하나도 없는지
func (o OutputImages) Empty() bool {
	_, ok := o.First()
	return !ok
}

// Add - 노드에 이미지 추가 (순서 유지)
func (o *OutputImages) Add(node string, img []byte) {
	if o.Images == nil {
		o.Images = make(map[string][][]byte)
	}
	if _, seen := o.Images[node]; !seen {
		o.Order = append(o.Order, node)
	}
	o.Images[node] = append(o.Images[node], img)
}

// Single - 이미지 하나짜리 OutputImages
func Single(node string, img []byte) OutputImages {
	var o OutputImages
	o.Add(node, img)
	return o
}
