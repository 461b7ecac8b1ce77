package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/storefront"
	ws "github.com/ikkim/storefront/internal/websocket"
)

// RealtimeController upgrades visitors to the live push channel.
type RealtimeController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewRealtimeController(hub *ws.Hub, allowedOrigins []string) *RealtimeController {
	return &RealtimeController{
		hub:      hub,
		upgrader: ws.NewUpgrader(allowedOrigins),
	}
}

// WebSocketHandler WebSocket 연결 처리
// GET /ws
// 세션 쿠키로 방문자를 식별하므로 토큰을 받지 않음
func (ctrl *RealtimeController) WebSocketHandler(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sess, ok := visitor(c)
	if !ok {
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, sess.ID)

	// 연결 직후 현재 장바구니를 한 번 보내준다
	if sess.Auth.IsAuthenticated() {
		client.Deliver(storefront.MessageCart, sess.Cart.Snapshot())
	}
	ctrl.hub.Register(client)

	// goroutine으로 읽기/쓰기 시작
	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"authenticated": sess.Auth.IsAuthenticated(),
	})
}
