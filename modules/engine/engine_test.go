package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

type fakeEngine struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu       sync.Mutex
	ws       *websocket.Conn
	ready    chan struct{}
	clientID string
	prompts  []promptRequest
	uploads  []string

	// script 는 /prompt 이후 웹소켓으로 보낼 메시지 목록
	script func(ws *websocket.Conn, promptID string)
}

func newFakeEngine(t *testing.T) (*fakeEngine, *httptest.Server) {
	f := &fakeEngine{t: t, ready: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		f.mu.Lock()
		f.ws = ws
		f.clientID = r.URL.Query().Get("clientId")
		f.mu.Unlock()
		close(f.ready)
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		var req promptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.prompts = append(f.prompts, req)
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{"prompt_id": "p1", "number": 3})

		<-f.ready
		if f.script != nil {
			go f.script(f.ws, "p1")
		}
	})
	mux.HandleFunc("/history/p1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"p1":{"outputs":{
			"9":{"images":[{"filename":"a.png","subfolder":"","type":"output"},{"filename":"b.png","subfolder":"s","type":"output"}]},
			"3":{"text":["ignored"]},
			"12":{"images":[{"filename":"c.png","subfolder":"","type":"temp"}]}
		}}}`)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_, _ = io.WriteString(w, q.Get("subfolder")+"/"+q.Get("filename")+":"+q.Get("type"))
	})
	mux.HandleFunc("/upload/image", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		f.mu.Unlock()
		if r.FormValue("overwrite") != "true" {
			t.Errorf("overwrite flag missing")
		}
		_ = json.NewEncoder(w).Encode(UploadResult{Name: header.Filename, Type: "input"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func textMsg(t *testing.T, ws *websocket.Conn, v any) {
	data, _ := json.Marshal(v)
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Errorf("write: %v", err)
	}
}

func TestSubmitAndListenUntilCompletion(t *testing.T) {
	f, srv := newFakeEngine(t)
	f.script = func(ws *websocket.Conn, id string) {
		textMsg(t, ws, map[string]any{"type": "status", "data": map[string]any{}})
		textMsg(t, ws, map[string]any{"type": "progress", "data": map[string]any{"value": 1, "max": 4, "node": "3", "prompt_id": id}})
		_ = ws.WriteMessage(websocket.BinaryMessage, append([]byte{0, 0, 0, 1, 0, 0, 0, 2}, []byte("jpegdata")...))
		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		// 다른 job 의 완료는 무시
		textMsg(t, ws, map[string]any{"type": "executing", "data": map[string]any{"node": nil, "prompt_id": "other"}})
		textMsg(t, ws, map[string]any{"type": "executing", "data": map[string]any{"node": "9", "prompt_id": id}})
		textMsg(t, ws, map[string]any{"type": "executing", "data": map[string]any{"node": nil, "prompt_id": id}})
	}

	client := NewClient(Options{Address: srv.URL})
	conn, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	id, err := conn.Submit(context.Background(), map[string]any{"1": map[string]any{"class_type": "X"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "p1" {
		t.Fatalf("prompt id = %s", id)
	}

	var progress, previews, completions int
	var preview []byte
	err = conn.Listen(id, func(ev Event) {
		switch ev.Kind {
		case EventProgress:
			progress++
			if ev.Progress.Percent() != 25 {
				t.Errorf("percent = %d", ev.Progress.Percent())
			}
		case EventPreview:
			previews++
			preview = ev.Preview.Image
		case EventCompletion:
			completions++
		}
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if progress != 1 || previews != 1 || completions != 1 {
		t.Fatalf("events progress=%d previews=%d completions=%d", progress, previews, completions)
	}
	if string(preview) != "jpegdata" {
		t.Fatalf("preview = %q", preview)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) != 1 || f.prompts[0].ClientID != conn.ClientID() || f.clientID != conn.ClientID() {
		t.Fatalf("client id not propagated: %+v ws=%s conn=%s", f.prompts, f.clientID, conn.ClientID())
	}
}

func TestListenReturnsExecutionError(t *testing.T) {
	f, srv := newFakeEngine(t)
	f.script = func(ws *websocket.Conn, id string) {
		textMsg(t, ws, map[string]any{"type": "execution_error", "data": map[string]any{
			"prompt_id": id, "node_id": "3", "exception_type": "torch.OutOfMemoryError", "exception_message": "boom",
		}})
	}

	client := NewClient(Options{Address: srv.URL})
	conn, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	id, err := conn.Submit(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := conn.Listen(id, nil); !errors.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(Options{Address: srv.URL})
	if _, err := client.Connect(context.Background()); !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestSubmitRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/ws", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err == nil {
			defer ws.Close()
			_, _, _ = ws.ReadMessage()
		}
	}))
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"prompt_outputs_failed_validation"}}`)
	})
	rejecting := httptest.NewServer(mux)
	defer rejecting.Close()

	client := NewClient(Options{Address: rejecting.URL})
	conn, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Submit(context.Background(), map[string]any{}); !errors.Is(err, ErrSubmit) {
		t.Fatalf("expected ErrSubmit, got %v", err)
	}
}

func TestFetchOutputsKeepsHistoryOrder(t *testing.T) {
	_, srv := newFakeEngine(t)
	client := NewClient(Options{Address: srv.URL})

	out, err := client.FetchOutputs(context.Background(), "p1")
	if err != nil {
		t.Fatalf("FetchOutputs: %v", err)
	}
	if len(out.Order) != 2 || out.Order[0] != "9" || out.Order[1] != "12" {
		t.Fatalf("order = %v", out.Order)
	}
	if got := out.Images["9"]; len(got) != 2 || string(got[0]) != "/a.png:output" || string(got[1]) != "s/b.png:output" {
		t.Fatalf("node 9 images = %q", got)
	}
	first, ok := out.First()
	if !ok || string(first) != "/a.png:output" {
		t.Fatalf("first = %q", first)
	}
}

func TestUpload(t *testing.T) {
	f, srv := newFakeEngine(t)
	client := NewClient(Options{Address: srv.URL})

	res, err := client.Upload(context.Background(), []byte("png"), "refine_1.png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Name != "refine_1.png" {
		t.Fatalf("name = %s", res.Name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads) != 1 {
		t.Fatalf("uploads = %v", f.uploads)
	}
}

func TestDecodePreviewFrame(t *testing.T) {
	msg := append([]byte{0, 0, 0, 1, 0, 0, 0, 1}, 0xff, 0xd8)
	frame, ok := DecodePreviewFrame(msg)
	if !ok || !bytes.Equal(frame.Image, []byte{0xff, 0xd8}) {
		t.Fatalf("frame = %+v ok=%v", frame, ok)
	}
	msg[8] = 0
	if frame.Image[0] != 0xff {
		t.Fatalf("frame aliases input buffer")
	}
	if _, ok := DecodePreviewFrame(make([]byte, 8)); ok {
		t.Fatalf("header-only frame should be dropped")
	}
}

func TestNewClientSchemes(t *testing.T) {
	c := NewClient(Options{Address: "gpu:8188", UseTLS: true})
	if c.baseURL != "https://gpu:8188" || c.wsURL != "wss://gpu:8188/ws" {
		t.Fatalf("tls urls = %s %s", c.baseURL, c.wsURL)
	}
	c = NewClient(Options{Address: "http://gpu:8188/"})
	if c.baseURL != "http://gpu:8188" || c.wsURL != "ws://gpu:8188/ws" {
		t.Fatalf("plain urls = %s %s", c.baseURL, c.wsURL)
	}
}
