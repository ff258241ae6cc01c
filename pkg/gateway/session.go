package gateway

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/gorilla/websocket"
)

// idleAfter marks sessions with no recent traffic as idle in ClientInfo.
const idleAfter = 5 * time.Minute

// session is one WebSocket connection.
type session struct {
	id          string
	conn        *websocket.Conn
	remoteAddr  string
	connectedAt time.Time
	lastSeen    atomic.Int64 // unix nanoseconds
	authed      atomic.Bool
	limiter     *ClientRateLimiter

	// handshake state; only the read loop touches it
	challenge string
	failures  int

	writeMu sync.Mutex
}

func newSession(id string, conn *websocket.Conn, remoteAddr string, limiter *ClientRateLimiter) *session {
	now := time.Now()
	s := &session{
		id:          id,
		conn:        conn,
		remoteAddr:  remoteAddr,
		connectedAt: now,
		limiter:     limiter,
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// writeJSON serializes writes; a gorilla connection allows one writer.
func (s *session) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

func (s *session) info(now time.Time) ClientInfo {
	last := time.Unix(0, s.lastSeen.Load())
	return ClientInfo{
		ID:            s.id,
		Transport:     TransportWebSocket,
		Authenticated: s.authed.Load(),
		ConnectedAt:   s.connectedAt,
		LastActivity:  last,
		IPAddress:     s.remoteAddr,
		Idle:          now.Sub(last) > idleAfter,
	}
}

// sessionSet tracks live sessions and mirrors the count into the
// connected-clients gauge.
type sessionSet struct {
	mu   sync.Mutex
	byID map[string]*session
}

func newSessionSet() *sessionSet {
	return &sessionSet{byID: make(map[string]*session)}
}

func (set *sessionSet) add(s *session) {
	set.mu.Lock()
	set.byID[s.id] = s
	n := len(set.byID)
	set.mu.Unlock()
	observability.SetActiveConnections(TransportWebSocket, n)
}

func (set *sessionSet) remove(id string) {
	set.mu.Lock()
	delete(set.byID, id)
	n := len(set.byID)
	set.mu.Unlock()
	observability.SetActiveConnections(TransportWebSocket, n)
}

func (set *sessionSet) list() []*session {
	set.mu.Lock()
	defer set.mu.Unlock()
	out := make([]*session, 0, len(set.byID))
	for _, s := range set.byID {
		out = append(out, s)
	}
	return out
}

// infos returns one ClientInfo per session, oldest connection first.
func (set *sessionSet) infos() []ClientInfo {
	now := time.Now()
	sessions := set.list()
	out := make([]ClientInfo, len(sessions))
	for i, s := range sessions {
		out[i] = s.info(now)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}
