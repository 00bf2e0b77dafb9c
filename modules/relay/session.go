package relay

import (
	"sync"
	"time"
)

// Session - 같은 socketId 로 붙은 클라이언트 묶음
type Session struct {
	id           string
	clients      map[*Client]struct{}
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// SessionInfo - 세션 조회 응답
type SessionInfo struct {
	SocketID     string    `json:"socketId"`
	ClientCount  int       `json:"clientCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Age          string    `json:"age"`
	Inactive     string    `json:"inactive"`
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		clients:      make(map[*Client]struct{}),
		createdAt:    now,
		lastActivity: now,
	}
}

func (s *Session) add(c *Client) {
	s.mutex.Lock()
	s.clients[c] = struct{}{}
	s.lastActivity = time.Now()
	s.mutex.Unlock()
}

// remove - 남은 클라이언트 수 반환
func (s *Session) remove(c *Client) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.clients, c)
	return len(s.clients)
}

func (s *Session) count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

func (s *Session) markActive() {
	s.mutex.Lock()
	s.lastActivity = time.Now()
	s.mutex.Unlock()
}

// broadcast - 전송한 클라이언트 수 반환
func (s *Session) broadcast(msg []byte) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sent := 0
	for c := range s.clients {
		if c.enqueue(msg) {
			sent++
		}
	}
	return sent
}

// closeAll - 만료/종료 시 모든 클라이언트 연결 끊기
func (s *Session) closeAll() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := len(s.clients)
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*Client]struct{})
	return n
}

func (s *Session) info() SessionInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return SessionInfo{
		SocketID:     s.id,
		ClientCount:  len(s.clients),
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		Age:          time.Since(s.createdAt).Round(time.Second).String(),
		Inactive:     time.Since(s.lastActivity).Round(time.Second).String(),
	}
}
