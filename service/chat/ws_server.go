package chat

import (
	"net"
	"net/http"
	"time"

	"CMProject/logger"
	"CMProject/tools/errs"
	"CMProject/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ErrHandshakeFrame 握手第一帧不是 auth、或认证后身份仍为空
var ErrHandshakeFrame = errs.ErrTokenInvalid.WithDetail("first frame must be a valid auth frame")

var upgraded = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

const (
	readLimit = 1 << 20 // 1MB
	pongWait  = 60 * time.Second
	pingEvery = 30 * time.Second
	authWait  = 10 * time.Second
)

// HandleWS ===== WebSocket 处理 =====
// 握手（第一帧必须是 auth，fail closed）→ 注册在线表 → 读循环分发。
// 读循环只读不写；所有写都走 Client 的写协程。
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgraded.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	cl := NewClient("c-"+ids.GenerateString(), "", ws, s.conf.SendQueueSize)
	defer cl.Close()

	ws.SetReadLimit(readLimit)

	// ---- 认证阶段：写协程未启动，错误回执同步写 ----
	if err := s.handshake(ws, cl); err != nil {
		_ = writeText(ws, BuildErrorFrame(err).Encode(), 2*time.Second)
		logger.Infof("[HandleWS] handshake rejected conn=%s err=%v", cl.ConnID, err)
		return
	}

	// 认证通过后才放行出站队列（auth ack 已在队列里）
	go cl.WriteLoop()
	defer func() { s.UnregisterClient(cl.UserID, cl) }()

	// 心跳：pong 续期读死线并刷新在线表 TTL
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.mgr.Heartbeat(cl.UserID, cl)
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-t.C:
				// WriteControl 可与写协程并发
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			}
		}
	}()

	// ---- 读循环：只读，不写；出错即退出（写协程收尾） ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed user=%s conn=%s err=%v", cl.UserID, cl.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout user=%s conn=%s err=%v", cl.UserID, cl.ConnID, rerr)
			} else {
				logger.Infof("[WS] read err user=%s conn=%s err=%v", cl.UserID, cl.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		// 业务帧也算存活
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.mgr.Heartbeat(cl.UserID, cl)

		msg, perr := ParseFrameJSON(data)
		if perr != nil {
			// 只打印简短样本
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] ParseFrameJSON err conn=%s err=%v sample=%q len=%d",
				cl.ConnID, perr, sample, len(data))
			continue
		}

		h := s.disp.GetHandler(msg.Type)
		if h == nil {
			continue
		}
		if herr := h.Handle(&Context{S: s}, msg, cl); herr != nil {
			// Unauthorized/NotFound 只回给触发方；落库失败同理
			logger.Infof("[WS] handler type=%s user=%s err=%v", msg.Type, cl.UserID, herr)
			cl.Enqueue(BuildErrorFrame(herr).Encode())
		}
	}
}

// handshake 读第一帧并分发给 auth handler；成功后 cl.UserID 已被置位且连接已注册
func (s *Server) handshake(ws *websocket.Conn, cl *Client) error {
	_ = ws.SetReadDeadline(time.Now().Add(authWait))

	_, data, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	f, err := ParseFrameJSON(data)
	if err != nil {
		return err
	}
	if f.Type != EventAuth {
		return ErrHandshakeFrame
	}
	h := s.disp.GetHandler(EventAuth)
	if h == nil {
		return ErrHandshakeFrame
	}
	if err := h.Handle(&Context{S: s}, f, cl); err != nil {
		return err
	}
	if cl.UserID == "" {
		return ErrHandshakeFrame
	}
	return nil
}
