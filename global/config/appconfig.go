package config

import "time"

type AppConfig struct {
	GatewayID     string // 节点的Id
	Port          int    // http 启动端口
	SendQueueSize int    // 每连接发送队列长度
	PresenceTTL   time.Duration

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	NatsURL      string
	EmailEnabled bool
}
