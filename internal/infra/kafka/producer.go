package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
)

// Producer delivers role events either fire-and-forget through a Sarama
// AsyncProducer or acknowledged through a SyncProducer, depending on
// KafkaSettings.Async.
type Producer struct {
	async   sarama.AsyncProducer
	sync    sarama.SyncProducer
	logger  *zap.Logger
	cfg     config.KafkaSettings
	errChan chan error
	done    chan struct{}
}

func newSaramaConfig(async bool) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.ClientID = "rbac-service"

	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Errors = true

	if async {
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
		saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
		saramaConfig.Producer.Flush.Messages = 100
		saramaConfig.Producer.Return.Successes = false
	} else {
		// SyncProducer requires successes to be returned.
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Producer.Return.Successes = true
	}

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	return saramaConfig
}

// NewProducer connects to the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	p := &Producer{
		logger:  logger,
		cfg:     cfg,
		errChan: make(chan error, 256),
		done:    make(chan struct{}),
	}

	if cfg.Async {
		producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(true))
		if err != nil {
			return nil, fmt.Errorf("create async kafka producer: %w", err)
		}
		p.async = producer
		go p.handleErrors()
	} else {
		producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(false))
		if err != nil {
			return nil, fmt.Errorf("create sync kafka producer: %w", err)
		}
		p.sync = producer
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("async", cfg.Async),
	)

	return p, nil
}

func (p *Producer) handleErrors() {
	for {
		select {
		case err, ok := <-p.async.Errors():
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			p.logger.Error("kafka producer error",
				zap.Error(err.Err),
				zap.String("topic", err.Msg.Topic),
			)
			select {
			case p.errChan <- err.Err:
			default:
				p.logger.Warn("kafka error channel full, dropping error")
			}
		case <-p.done:
			return
		}
	}
}

// Send hands msg to the broker. In async mode it returns once the message is
// queued; in sync mode it waits for the acknowledgement.
func (p *Producer) Send(ctx context.Context, msg *sarama.ProducerMessage) error {
	if p.sync != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		partition, offset, err := p.sync.SendMessage(msg)
		if err != nil {
			return fmt.Errorf("send %s: %w", msg.Topic, err)
		}
		p.logger.Debug("kafka message delivered",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset),
		)
		return nil
	}

	select {
	case p.async.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Errors exposes asynchronous delivery failures.
func (p *Producer) Errors() <-chan error {
	return p.errChan
}

// Close flushes pending messages and releases the broker connections.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	close(p.done)

	var err error
	if p.async != nil {
		err = p.async.Close()
	}
	if p.sync != nil {
		err = p.sync.Close()
	}
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName prefixes eventType with the configured topic prefix unless it is
// already present.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return prefix + eventType
}
