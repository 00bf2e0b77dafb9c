package relay

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"canvas-image-relay/modules/common/response"
)

// EventConnected - 접속 직후 socketId 를 알려주는 이벤트
const EventConnected = "connected"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 캔버스 프론트엔드는 다른 origin 에서 접속
		return true
	},
}

// relayRequest - POST /relay 본문
type relayRequest struct {
	SocketID string          `json:"socketId"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes - 릴레이 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")
	r.HandleFunc("/relay", h.HandleRelay).Methods("POST", "OPTIONS")
	r.HandleFunc("/relay/sessions/{socketId}", h.HandleSessionInfo).Methods("GET")
	r.HandleFunc("/relay/stats", h.HandleStats).Methods("GET")
}

// HandleWebSocket - GET /ws?socketId=
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	socketID := r.URL.Query().Get("socketId")
	if socketID == "" {
		socketID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Msgf("[Relay] WebSocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn)
	s := h.hub.join(socketID, c)
	log.Info().Msgf("🔍 [Relay] New WebSocket connection - socketId: %s (clients: %d)", socketID, s.count())

	hello, _ := json.Marshal(Envelope{Event: EventConnected, Data: mustJSON(map[string]string{"socketId": socketID})})
	c.enqueue(hello)

	go c.writePump()
	go c.readPump(h.hub, s)
}

// HandleRelay - POST /relay {socketId, event, data}
func (h *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req relayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20)).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.SocketID == "" || req.Event == "" {
		response.WriteError(w, http.StatusBadRequest, "socketId and event are required")
		return
	}

	var data any = req.Data
	if len(req.Data) == 0 {
		data = nil
	}
	if err := h.hub.Publish(r.Context(), req.SocketID, req.Event, data); err != nil {
		log.Error().Msgf("❌ [Relay] Publish failed: %v", err)
		response.WriteError(w, http.StatusInternalServerError, "Relay failed")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleSessionInfo - 세션 정보 조회
func (h *Handler) HandleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := h.hub.Session(mux.Vars(r)["socketId"])
	if !ok {
		response.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, info)
}

// HandleStats - 허브 메트릭
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.hub.Stats())
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
