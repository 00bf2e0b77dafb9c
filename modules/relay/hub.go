package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Envelope - 소켓으로 나가는 프레임 {event, data}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// busMessage - Redis 채널 메시지
type busMessage struct {
	SocketID string          `json:"socketId"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data,omitempty"`
	Origin   string          `json:"origin"`
}

// Options - 허브 설정
type Options struct {
	SessionTTL      time.Duration // 비활성 세션 만료
	CleanupInterval time.Duration
	Redis           *redis.Client // nil이면 로컬 전달만
	Channel         string
}

// Stats - 허브 메트릭
type Stats struct {
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	CurrentClients   int       `json:"currentClients"`
	StartTime        time.Time `json:"startTime"`
	Uptime           string    `json:"uptime"`
}

// Hub - socketId 별 웹소켓 세션 관리 + 이벤트 전달
type Hub struct {
	sessions   *cache.Cache
	mu         sync.Mutex
	rdb        *redis.Client
	channel    string
	instanceID string
	subscribed atomic.Bool

	statsMu          sync.Mutex
	totalSessions    int
	totalConnections int
	startTime        time.Time
}

// NewHub - 허브 생성
func NewHub(opts Options) *Hub {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	if opts.Channel == "" {
		opts.Channel = "relay:events"
	}

	h := &Hub{
		sessions:   cache.New(opts.SessionTTL, opts.CleanupInterval),
		rdb:        opts.Redis,
		channel:    opts.Channel,
		instanceID: uuid.NewString(),
		startTime:  time.Now(),
	}
	h.sessions.OnEvicted(func(id string, v interface{}) {
		s := v.(*Session)
		if n := s.closeAll(); n > 0 {
			log.Info().Msgf("🧼 [Relay] Session %s expired, closed %d clients", id, n)
		}
	})
	return h
}

// join - 세션을 가져오거나 만들고 클라이언트 등록
func (h *Hub) join(socketID string, c *Client) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	var s *Session
	if v, ok := h.sessions.Get(socketID); ok {
		s = v.(*Session)
	} else {
		// 만료됐지만 아직 janitor 가 치우지 않은 세션은 OnEvicted 로 닫고 교체
		h.sessions.DeleteExpired()
		s = newSession(socketID)
		h.statsMu.Lock()
		h.totalSessions++
		h.statsMu.Unlock()
		log.Debug().Msgf("✅ [Relay] Created new session: %s", socketID)
	}
	s.add(c)
	h.sessions.SetDefault(socketID, s)

	h.statsMu.Lock()
	h.totalConnections++
	h.statsMu.Unlock()
	return s
}

// leave - 클라이언트 제거. 비면 세션 삭제.
func (h *Hub) leave(s *Session, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.remove(c) == 0 {
		if v, ok := h.sessions.Get(s.id); ok && v.(*Session) == s {
			h.sessions.Delete(s.id)
			log.Debug().Msgf("🗑️  [Relay] Session %s is now empty, removed", s.id)
		}
	}
}

// touch - 활동 시간 갱신
func (h *Hub) touch(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s.markActive()
	if v, ok := h.sessions.Get(s.id); ok && v.(*Session) == s {
		h.sessions.SetDefault(s.id, s)
	}
}

// Publish - socketId 세션으로 이벤트 전달. Redis가 있으면 채널로 팬아웃.
// 이 인스턴스가 구독 중이 아니면 로컬 세션에는 직접 전달.
func (h *Hub) Publish(ctx context.Context, socketID, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal relay data: %w", err)
	}

	if h.rdb != nil {
		subscribed := h.subscribed.Load()
		payload, _ := json.Marshal(busMessage{SocketID: socketID, Event: event, Data: raw, Origin: h.instanceID})
		err := h.rdb.Publish(ctx, h.channel, payload).Err()
		switch {
		case err != nil:
			log.Warn().Msgf("⚠️  [Relay] Redis publish failed, delivering locally: %v", err)
		case subscribed:
			return nil
		default:
			log.Debug().Msgf("🔍 [Relay] Not subscribed to %s, delivering locally", h.channel)
		}
	}

	h.deliver(socketID, Envelope{Event: event, Data: raw})
	return nil
}

// deliver - 로컬 세션의 모든 클라이언트에게 전송. 세션이 없으면 무시.
func (h *Hub) deliver(socketID string, env Envelope) int {
	v, ok := h.sessions.Get(socketID)
	if !ok {
		log.Debug().Msgf("🔍 [Relay] No local session for %s (event: %s)", socketID, env.Event)
		return 0
	}
	msg, err := json.Marshal(env)
	if err != nil {
		return 0
	}
	s := v.(*Session)
	h.touch(s)
	return s.broadcast(msg)
}

// Run - Redis 채널 구독 루프. Redis가 없으면 ctx 종료까지 대기.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", h.channel, err)
	}
	h.subscribed.Store(true)
	defer h.subscribed.Store(false)
	log.Info().Msgf("📡 [Relay] Subscribed to Redis channel: %s", h.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var bm busMessage
			if err := json.Unmarshal([]byte(m.Payload), &bm); err != nil {
				log.Warn().Msgf("⚠️  [Relay] Dropping malformed bus message: %v", err)
				continue
			}
			if n := h.deliver(bm.SocketID, Envelope{Event: bm.Event, Data: bm.Data}); n > 0 {
				log.Debug().Msgf("📨 [Relay] %s → %s (%d clients, origin %s)", bm.Event, bm.SocketID, n, bm.Origin)
			}
		}
	}
}

// Subscribed - Redis 채널 구독 중인지
func (h *Hub) Subscribed() bool { return h.subscribed.Load() }

// Session - 세션 정보 조회용 스냅샷
func (h *Hub) Session(socketID string) (SessionInfo, bool) {
	v, ok := h.sessions.Get(socketID)
	if !ok {
		return SessionInfo{}, false
	}
	return v.(*Session).info(), true
}

// Stats - 서버 메트릭
func (h *Hub) Stats() Stats {
	clients := 0
	items := h.sessions.Items()
	for _, it := range items {
		clients += it.Object.(*Session).count()
	}

	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return Stats{
		TotalSessions:    h.totalSessions,
		ActiveSessions:   len(items),
		TotalConnections: h.totalConnections,
		CurrentClients:   clients,
		StartTime:        h.startTime,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
	}
}

// Close - 모든 세션 종료
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.sessions.Items() {
		h.sessions.Delete(id)
	}
}
