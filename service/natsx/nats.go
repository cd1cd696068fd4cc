package natsx

import (
	"fmt"
	"sync"
	"time"

	"CMProject/logger"

	"github.com/nats-io/nats.go"
)

type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

var (
	mu   sync.Mutex
	conn *nats.Conn
)

// Init 建立 NATS 连接（邮件任务队列走这里）
func Init(c Config) error {
	mu.Lock()
	defer mu.Unlock()
	if conn != nil {
		return nil
	}
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	nc, err := nats.Connect(c.URL,
		nats.Name(c.Name),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnf("[nats] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return err
	}
	conn = nc
	return nil
}

// Publish 发布消息；未初始化时报错，由调用方决定降级
func Publish(subject string, data []byte) error {
	mu.Lock()
	nc := conn
	mu.Unlock()
	if nc == nil {
		return fmt.Errorf("nats not initialized")
	}
	return nc.Publish(subject, data)
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if conn != nil {
		conn.Close()
		conn = nil
	}
}
