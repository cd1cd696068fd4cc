package chat

import (
	"sync"
	"time"
)

// ===== 配置 =====

type ManagerConf struct {
	AuthTTL    time.Duration    // 已授权连接的 TTL（到期由 sweeper 清理）
	SweepEvery time.Duration    // 清理周期
	Clock      func() time.Time // 可注入时钟（单测用）；nil => time.Now

	// OnEvict 在 sweeper 清掉过期连接后回调（锁外执行），
	// 由上层负责下线广播与 presence 镜像。
	OnEvict func(user string, c *Client)
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Hour
	}
}

// ===== 数据结构 =====

type connEntry struct {
	client   *Client
	expireAt time.Time
}

// ConnManager 是在线表：user -> 唯一一条活动连接。
// 它是投递链路上唯一的共享可变结构；读写均为纯内存操作，绝不做 I/O。
type ConnManager struct {
	mu     sync.RWMutex
	byUser map[string]*connEntry

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
	gwId     string // 节点ID
}

// ===== 构造/关闭 =====

func NewConnManager(gwId string) *ConnManager {
	return NewConnManagerWithConf(ManagerConf{}, gwId)
}

func NewConnManagerWithConf(conf ManagerConf, gwId string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byUser: make(map[string]*connEntry),
		conf:   conf,
		gwId:   gwId,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) GwId() string {
	return m.gwId
}

// SetOnEvict 在构造后挂接清理回调；sweeper 与调用方之间由 mu 同步。
// 上层（Server）往往在 manager 之后才建成，所以回调要能后置。
func (m *ConnManager) SetOnEvict(fn func(user string, c *Client)) {
	m.mu.Lock()
	m.conf.OnEvict = fn
	m.mu.Unlock()
}

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byUser {
		e.client.Close()
	}
	m.byUser = map[string]*connEntry{}
}

// ===== 注册/查找/注销 =====

// Register 登记 user 的活动连接；新握手即权威（last wins），
// 旧条目被替换但不主动关闭，由其自己的读循环退出收尾。
// 返回被替换的旧连接（可能为 nil），供上层记录。
func (m *ConnManager) Register(user string, c *Client) *Client {
	if user == "" || c == nil {
		return nil
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev *Client
	if old, ok := m.byUser[user]; ok {
		prev = old.client
	}
	m.byUser[user] = &connEntry{client: c, expireAt: now.Add(m.conf.AuthTTL)}
	return prev
}

// Lookup O(1)，绝不阻塞
func (m *ConnManager) Lookup(user string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byUser[user]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Unregister 仅当当前登记的就是调用方手里这条连接时才移除，
// 防止迟到的断连把更新的连接挤下线。返回是否真的移除。
func (m *ConnManager) Unregister(user string, c *Client) bool {
	if user == "" || c == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byUser[user]
	if !ok || e.client != c {
		return false
	}
	delete(m.byUser, user)
	return true
}

// Snapshot 返回当前全部可达身份，用于 presence 广播
func (m *ConnManager) Snapshot() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byUser))
	for user := range m.byUser {
		out = append(out, user)
	}
	return out
}

// ===== 心跳 / TTL / 清理 =====

// Heartbeat 刷新 user 这条连接的到期时间；句柄不匹配视为过期连接的迟到心跳，忽略
func (m *ConnManager) Heartbeat(user string, c *Client) {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byUser[user]
	if !ok || e.client != c {
		return
	}
	e.expireAt = now.Add(m.conf.AuthTTL)
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) {
	type evicted struct {
		user string
		c    *Client
	}
	var expired []evicted

	m.mu.Lock()
	for user, e := range m.byUser {
		if now.After(e.expireAt) {
			// 收集后统一处理，避免持锁期间关闭 socket
			expired = append(expired, evicted{user: user, c: e.client})
			delete(m.byUser, user)
		}
	}
	onEvict := m.conf.OnEvict
	m.mu.Unlock()

	for _, x := range expired {
		x.c.Close()
		if onEvict != nil {
			onEvict(x.user, x.c)
		}
	}
}
