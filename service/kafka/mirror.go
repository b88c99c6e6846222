package kafka

import (
	"github.com/Shopify/sarama"
	pkgerrors "github.com/pkg/errors"

	"PMessenger/logger"
)

// Mirror copies every dispatched event onto a kafka topic for out-of-band
// consumers (offline push, analytics). The producer is async and failures
// are logged, never propagated; the bus remains the delivery path.
type Mirror struct {
	producer sarama.AsyncProducer
	topic    string
}

func NewMirror(brokers []string, topic string) (*Mirror, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "kafka producer")
	}
	m := &Mirror{producer: producer, topic: topic}
	go m.drainErrors()
	return m, nil
}

func (m *Mirror) drainErrors() {
	for err := range m.producer.Errors() {
		logger.Warnf("[kafka] mirror produce: %v", err)
	}
}

// Send implements the dispatcher's Mirror contract. The event name keys
// the partition so one event type stays ordered.
func (m *Mirror) Send(name string, payload []byte) {
	select {
	case m.producer.Input() <- &sarama.ProducerMessage{
		Topic: m.topic,
		Key:   sarama.StringEncoder(name),
		Value: sarama.ByteEncoder(payload),
	}:
	default:
		logger.Warnf("[kafka] mirror queue full, dropped %s", name)
	}
}

func (m *Mirror) Close() error {
	return m.producer.Close()
}
