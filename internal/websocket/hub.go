package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ikkim/storefront/pkg/logger"
)

const (
	// Rate limiting: 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10

	// 클라이언트 → 서버 메시지 타입
	MessageSearch = "search"
)

// ClientMessage 클라이언트로부터 받은 메시지
type ClientMessage struct {
	Type  string `json:"type"` // search
	Query string `json:"query"`
}

// Message 서버 → 클라이언트 메시지
type Message struct {
	Type string      `json:"type"` // cart, search_results, session_expired
	Data interface{} `json:"data,omitempty"`
}

// SearchHandler 방문자 세션의 검색 입력 처리기
type SearchHandler func(sessionID, query string)

// Client WebSocket 클라이언트
type Client struct {
	Hub           *Hub
	Conn          *Conn
	SessionID     string
	Send          chan []byte
	MessageCount  int       // 최근 1초간 받은 메시지 수
	LastResetTime time.Time // 마지막 카운터 리셋 시간
	RateMu        sync.Mutex
}

// NewClient 방문자 세션에 묶인 클라이언트 생성
func NewClient(hub *Hub, conn *Conn, sessionID string) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}
}

// Deliver 이 연결 하나에만 메시지를 넣는다. 버퍼가 차 있으면 false
func (c *Client) Deliver(kind string, payload interface{}) bool {
	data, err := json.Marshal(Message{Type: kind, Data: payload})
	if err != nil {
		logger.Error("Failed to marshal message", err, map[string]interface{}{
			"type": kind,
		})
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub WebSocket 연결 관리자
type Hub struct {
	// 등록된 클라이언트들 (SessionID -> []*Client - 멀티 탭 지원)
	clients map[string][]*Client

	// 클라이언트 등록
	register chan *Client

	// 클라이언트 등록 해제
	unregister chan *Client

	// 세션별 메시지 전송
	outbound chan *OutboundMessage

	onSearch SearchHandler

	mu sync.RWMutex
}

// OutboundMessage 특정 세션으로 보낼 메시지
type OutboundMessage struct {
	SessionID string
	Message   []byte
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		outbound:   make(chan *OutboundMessage, 1024),
	}
}

// OnSearch 검색 메시지 처리기 등록 (Run 이전에 호출)
func (h *Hub) OnSearch(fn SearchHandler) {
	h.onSearch = fn
}

// Run Hub 실행. ctx가 끝나면 모든 클라이언트를 정리하고 종료
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for sid, list := range h.clients {
				for _, c := range list {
					close(c.Send)
				}
				delete(h.clients, sid)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			// 멀티 탭 지원: 클라이언트 리스트에 추가
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			total := len(h.clients[client.SessionID])
			h.mu.Unlock()
			logger.Debug("WebSocket client registered", map[string]interface{}{
				"session_id":  shortID(client.SessionID),
				"connections": total,
			})

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.outbound:
			h.mu.RLock()
			for _, client := range h.clients[msg.SessionID] {
				select {
				case client.Send <- msg.Message:
					// 전송 성공
				default:
					// Send 채널이 막혀있음 - 비동기로 정리
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"session_id": shortID(msg.SessionID),
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientList, ok := h.clients[client.SessionID]
	if !ok {
		return
	}

	// 해당 클라이언트만 리스트에서 제거
	newList := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		newList = append(newList, c)
	}
	if !found {
		return
	}

	if len(newList) == 0 {
		delete(h.clients, client.SessionID)
	} else {
		h.clients[client.SessionID] = newList
	}
	close(client.Send)

	logger.Debug("WebSocket client unregistered", map[string]interface{}{
		"session_id":  shortID(client.SessionID),
		"connections": len(newList),
	})
}

// Push 방문자 세션의 모든 연결에 메시지 전송. 연결이 없으면 버린다.
func (h *Hub) Push(sessionID, kind string, payload interface{}) {
	if !h.IsSessionOnline(sessionID) {
		return
	}

	data, err := json.Marshal(Message{Type: kind, Data: payload})
	if err != nil {
		logger.Error("Failed to marshal message", err, map[string]interface{}{
			"type": kind,
		})
		return
	}

	select {
	case h.outbound <- &OutboundMessage{SessionID: sessionID, Message: data}:
	default:
		// 메시지 손실을 허용 (다음 스냅샷이 덮어씀)
		logger.Warn("Outbound channel full, message dropped", map[string]interface{}{
			"session_id": shortID(sessionID),
			"type":       kind,
		})
	}
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsSessionOnline 세션의 연결 여부 확인
func (h *Hub) IsSessionOnline(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	// Rate limiting 체크
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		// 1초가 지났으면 카운터 리셋
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"session_id": shortID(client.SessionID),
			"count":      count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"session_id": shortID(client.SessionID),
			"error":      err.Error(),
		})
		return
	}

	switch msg.Type {
	case MessageSearch:
		if h.onSearch != nil {
			h.onSearch(client.SessionID, msg.Query)
		}
	default:
		logger.Debug("Ignoring unknown client message", map[string]interface{}{
			"type": msg.Type,
		})
	}
}

func shortID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
