package config

import (
	"context"
	"os"
	"time"

	"CMProject/logger"
	"CMProject/service/kafka"
	mgoSrv "CMProject/service/mgo"
	"CMProject/service/natsx"
	redis "CMProject/service/storage/redis"
	ids "CMProject/tools/ids"
)

var Global = AppConfig{
	GatewayID:     "gateway_1", // 节点ID
	Port:          8080,
	SendQueueSize: 256,
	PresenceTTL:   5 * time.Minute,

	MongoURI: "mongodb://localhost:27017",
	MongoDB:  "agentChat",

	RedisAddr: "127.0.0.1:6379",
	RedisDB:   0,

	KafkaBrokers: []string{"127.0.0.1:9092"},
	NatsURL:      "nats://127.0.0.1:4222",
	EmailEnabled: false,
}

func ConfigAll() {
	ConfigIds()
	ConfigRedis()
	ConfigMgo()
	ConfigKafka()
	ConfigNats()
}

func ConfigIds() {
	logger.Infof("配置id生成")
	ids.SetNodeID(100)
}

func GetJwtSecret() []byte {
	if s := os.Getenv("IM_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=")
}

func ConfigRedis() {
	err := redis.InitRedis(redis.Config{
		Addr:     Global.RedisAddr,
		Password: Global.RedisPassword,
		DB:       Global.RedisDB,
	})
	if err != nil {
		logger.Warnf("redis 未就绪，presence 镜像降级: %v", err)
	}
}

func ConfigMgo() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := mgoSrv.Init(ctx, mgoSrv.Config{
		URI:      Global.MongoURI,
		Database: Global.MongoDB,
	})
	if err != nil {
		logger.Errorf("mongo 连接失败: %v", err)
	}
}

// ConfigKafka 启动异步生产者；通知旁路失败只降级不阻断
func ConfigKafka() {
	err := kafka.InitAsyncProducer(kafka.Config{
		Brokers:             Global.KafkaBrokers,
		ProducerRetries:     3,
		ProducerCompression: "snappy",
	})
	if err != nil {
		logger.Warnf("kafka 未就绪，通知旁路降级: %v", err)
	}
}

func ConfigNats() {
	err := natsx.Init(natsx.Config{
		URL:  Global.NatsURL,
		Name: "im-" + Global.GatewayID,
	})
	if err != nil {
		logger.Warnf("nats 未就绪，邮件任务降级: %v", err)
	}
}
