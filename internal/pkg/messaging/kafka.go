package messaging

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

var (
	ErrKafkaTopicRequired   = errors.New("messaging: kafka topic is required")
	ErrKafkaHandlerRequired = errors.New("messaging: kafka handler is required")
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	ErrKafkaGroupRequired   = errors.New("messaging: kafka consumer group is required")
)

const kafkaMaxBytes = 10e6

// KafkaConfig configures the Kafka driver. Each queue is a topic.
type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer

	// WriterConfig and ReaderConfig are templates; topic, group, brokers
	// and dialer are filled in per queue.
	WriterConfig *kafka.WriterConfig
	ReaderConfig *kafka.ReaderConfig

	// Partitions and ReplicationFactor apply to topics created by
	// DeclareQueue. Both default to 1.
	Partitions        int
	ReplicationFactor int
}

type Kafka struct {
	cfg KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers []*kafka.Reader
	closed  bool
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}
	cfg.Brokers = slices.Clone(cfg.Brokers)
	cfg.Partitions = max(cfg.Partitions, 1)
	cfg.ReplicationFactor = max(cfg.ReplicationFactor, 1)
	return &Kafka{cfg: cfg, writers: map[string]*kafka.Writer{}}, nil
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	readers, writers := k.readers, k.writers
	k.readers, k.writers = nil, nil
	k.mu.Unlock()

	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Publish writes synchronously; a nil error means the broker acknowledged
// the message under the writer's RequiredAcks.
func (k *Kafka) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if topic == "" {
		return PublishResult{}, ErrKafkaTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}
	w, err := k.writer(topic)
	if err != nil {
		return PublishResult{}, err
	}

	km := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for _, h := range msg.Headers {
		if h.Key != "" {
			km.Headers = append(km.Headers, kafka.Header{Key: h.Key, Value: h.Value})
		}
	}

	if err := w.WriteMessages(ctx, km); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return PublishResult{Queue: topic, Timestamp: km.Time}, nil
}

// Consume reads topic as the consumer group named by WithGroup. One fetch
// loop feeds the workers; the first fetch or commit failure stops them all.
// Offsets are committed in order per partition, see kafkaCommitter.
func (k *Kafka) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	co := newConsumeOptions(opts...)
	switch {
	case topic == "":
		return ErrKafkaTopicRequired
	case handler == nil:
		return ErrKafkaHandlerRequired
	case co.group == "":
		return ErrKafkaGroupRequired
	}

	reader, err := k.reader(topic, co.group)
	if err != nil {
		return err
	}
	defer k.release(reader)

	d := newDispatcher("kafka", topic, handler, co, k)
	offsets := newKafkaCommitter(reader)
	fetched := make(chan kafka.Message)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(fetched)
		for {
			m, err := reader.FetchMessage(gctx)
			if err != nil {
				return err
			}
			offsets.track(m)
			select {
			case fetched <- m:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	for range co.workers() {
		g.Go(func() error {
			for m := range fetched {
				if err := d.dispatch(gctx, newKafkaMessage(m, offsets.commit, k.requeue)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cmp.Or(ctx.Err(), err)
	}
	return fmt.Errorf("messaging: kafka consume %s: %w", topic, err)
}

// DeclareQueue creates the queue's topic and its dead-letter topic through
// the cluster controller. Existing topics are left as they are.
func (k *Kafka) DeclareQueue(ctx context.Context, topic string) error {
	if topic == "" {
		return ErrKafkaTopicRequired
	}
	if k.isClosed() {
		return io.ErrClosedPipe
	}

	dialer := k.cfg.Dialer
	if dialer == nil {
		dialer = kafka.DefaultDialer
	}

	conn, err := dialer.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("messaging: kafka dial: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("messaging: kafka controller: %w", err)
	}
	ctrl, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("messaging: kafka dial controller: %w", err)
	}
	defer ctrl.Close()

	for _, name := range []string{topic, topic + deadLetterSuffix} {
		err = ctrl.CreateTopics(kafka.TopicConfig{
			Topic:             name,
			NumPartitions:     k.cfg.Partitions,
			ReplicationFactor: k.cfg.ReplicationFactor,
		})
		if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
			return fmt.Errorf("messaging: kafka create topic %s: %w", name, err)
		}
	}
	return nil
}

func (k *Kafka) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	var wc kafka.WriterConfig
	if k.cfg.WriterConfig != nil {
		wc = *k.cfg.WriterConfig
	}
	wc.Topic = topic
	if len(wc.Brokers) == 0 {
		wc.Brokers = k.cfg.Brokers
	}
	if wc.Dialer == nil {
		wc.Dialer = k.cfg.Dialer
	}
	if wc.Balancer == nil {
		// Same key, same partition: submissions for one email stay ordered.
		wc.Balancer = &kafka.Hash{}
	}

	w := kafka.NewWriter(wc)
	k.writers[topic] = w
	return w, nil
}

func (k *Kafka) reader(topic, group string) (*kafka.Reader, error) {
	var rc kafka.ReaderConfig
	if k.cfg.ReaderConfig != nil {
		rc = *k.cfg.ReaderConfig
	}
	rc.Topic = topic
	rc.GroupID = group
	if len(rc.Brokers) == 0 {
		rc.Brokers = k.cfg.Brokers
	}
	if rc.Dialer == nil {
		rc.Dialer = k.cfg.Dialer
	}
	if rc.MaxBytes == 0 {
		rc.MaxBytes = kafkaMaxBytes
	}

	r := kafka.NewReader(rc)

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, errors.Join(io.ErrClosedPipe, r.Close())
	}
	k.readers = append(k.readers, r)
	return r, nil
}

func (k *Kafka) release(r *kafka.Reader) {
	k.mu.Lock()
	i := slices.Index(k.readers, r)
	if i >= 0 {
		k.readers = slices.Delete(k.readers, i, i+1)
	}
	k.mu.Unlock()

	// Close already closed it when the reader is no longer tracked.
	if i >= 0 {
		_ = r.Close()
	}
}

// requeue appends a copy of m to its topic with the attempt header bumped.
func (k *Kafka) requeue(ctx context.Context, m kafka.Message) error {
	headers := make([]Header, 0, len(m.Headers))
	for _, h := range m.Headers {
		headers = append(headers, Header{Key: h.Key, Value: h.Value})
	}
	_, err := k.Publish(ctx, m.Topic, OutgoingMessage{
		Body:    m.Value,
		Key:     m.Key,
		Headers: withAttempt(headers, attemptFromHeaders(headers)+1),
	})
	return err
}
