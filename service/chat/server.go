package chat

import (
	"time"

	"CMProject/logger"
	"CMProject/service/storage"
	"CMProject/tools/safe"
)

type ServerConf struct {
	GatewayID     string
	SendQueueSize int
	PresenceTTL   time.Duration // redis presence 镜像的 TTL
}

func (c *ServerConf) norm() {
	if c.GatewayID == "" {
		c.GatewayID = "gateway_1"
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 5 * time.Minute
	}
}

// Server 聚合网关态：在线表、分发表、投递引擎。
// 所有连接生命周期事件（注册/注销/过期）都从这里走，
// 以保证 presence 镜像与广播不散落在各处。
type Server struct {
	conf   ServerConf
	mgr    *ConnManager
	disp   *Dispatcher
	engine *Engine
}

func NewServer(conf ServerConf, mgr *ConnManager, engine *Engine) *Server {
	conf.norm()
	s := &Server{
		conf:   conf,
		mgr:    mgr,
		disp:   NewDispatcher(),
		engine: engine,
	}
	return s
}

func (s *Server) Conf() ServerConf      { return s.conf }
func (s *Server) Disp() *Dispatcher     { return s.disp }
func (s *Server) ConnMgr() *ConnManager { return s.mgr }
func (s *Server) Engine() *Engine       { return s.engine }

// RegisterClient 登记已认证连接；新握手即权威。
// 旧句柄不在这里关闭——它的读循环收尾时 Unregister 会因句柄不匹配而落空。
func (s *Server) RegisterClient(user string, c *Client) {
	prev := s.mgr.Register(user, c)
	if prev != nil {
		logger.Infof("[Server] user=%s re-handshake, prior conn=%s superseded by conn=%s",
			user, prev.ConnID, c.ConnID)
	}

	// presence 镜像：锁外、尽力而为
	gw, ttl := s.conf.GatewayID, s.conf.PresenceTTL
	safe.SafeGo(func() {
		if err := storage.PresenceOnline(user, gw, ttl); err != nil {
			logger.Debugf("[Server] presence mirror online user=%s err=%v", user, err)
		}
	})

	s.broadcastPresence(EventPresenceOnline, user)
}

// UnregisterClient 句柄匹配才生效；迟到的断连不会挤掉新连接
func (s *Server) UnregisterClient(user string, c *Client) {
	if user == "" || !s.mgr.Unregister(user, c) {
		return
	}
	s.afterOffline(user)
}

// OnEvict 给 ManagerConf 用：sweeper 清掉过期连接后的收尾
func (s *Server) OnEvict(user string, _ *Client) {
	logger.Infof("[Server] conn expired user=%s", user)
	s.afterOffline(user)
}

func (s *Server) afterOffline(user string) {
	safe.SafeGo(func() {
		if err := storage.PresenceOffline(user); err != nil {
			logger.Debugf("[Server] presence mirror offline user=%s err=%v", user, err)
		}
	})
	s.broadcastPresence(EventPresenceOffline, user)
}

// broadcastPresence 向除 user 外的所有在线身份广播上下线事件（尽力而为）
func (s *Server) broadcastPresence(event, user string) {
	payload := BuildPresenceEvent(event, user).Encode()
	if payload == nil {
		return
	}
	for _, u := range s.mgr.Snapshot() {
		if u == user {
			continue
		}
		if cl, ok := s.mgr.Lookup(u); ok {
			cl.Enqueue(payload)
		}
	}
}
