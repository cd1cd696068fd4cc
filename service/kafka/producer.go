package kafka

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"CMProject/logger"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers             []string
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
}

var (
	mu          sync.Mutex
	kafkaClient sarama.Client
	asyncProd   sarama.AsyncProducer
)

func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()

	// Producer
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // Key 控制分区（同一收件人进同一分区）
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// InitAsyncProducer 初始化异步生产者；错误只消费、只记日志（通知旁路是 fire-and-forget）
func InitAsyncProducer(c Config) error {
	mu.Lock()
	defer mu.Unlock()
	if asyncProd != nil {
		return nil
	}

	cli, err := sarama.NewClient(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return err
	}
	p, err := sarama.NewAsyncProducerFromClient(cli)
	if err != nil {
		_ = cli.Close()
		return err
	}
	kafkaClient = cli
	asyncProd = p

	go func() {
		for perr := range p.Errors() {
			logger.Errorf("[kafka] async produce failed topic=%s err=%v", perr.Msg.Topic, perr.Err)
		}
	}()
	return nil
}

// PublishAsync 投递到 topic；未初始化时报错，由调用方按旁路失败处理
func PublishAsync(topic, key string, value []byte) error {
	mu.Lock()
	p := asyncProd
	mu.Unlock()
	if p == nil {
		return fmt.Errorf("kafka producer not initialized")
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	p.Input() <- msg
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if asyncProd != nil {
		asyncProd.AsyncClose()
		asyncProd = nil
	}
	if kafkaClient != nil {
		_ = kafkaClient.Close()
		kafkaClient = nil
	}
}
