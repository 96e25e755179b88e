package local

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/veesix-networks/netbind/pkg/events"
	"github.com/veesix-networks/netbind/pkg/logger"
)

const defaultBufferSize = 1024

type publishRequest struct {
	topic string
	event events.Event
}

type subscription struct {
	id      uint64
	handler events.Handler
}

type sub struct {
	bus   *Bus
	topic string
	id    uint64
}

func (s *sub) Unsubscribe() {
	s.bus.removeSub(s.topic, s.id)
}

type globalSub struct {
	bus *Bus
	id  uint64
}

func (s *globalSub) Unsubscribe() {
	s.bus.removeGlobalSub(s.id)
}

type Option func(*Bus)

func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithDebug logs every event as it is dispatched.
func WithDebug(debug bool) Option {
	return func(b *Bus) {
		b.debug = debug
	}
}

// Bus delivers events asynchronously, in publish order, from a single
// dispatch goroutine. Handlers must not block.
type Bus struct {
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	subs       map[string]map[uint64]*subscription
	globalSubs map[uint64]*subscription
	mu         sync.RWMutex
	nextID     atomic.Uint64
	publishCh  chan publishRequest
	bufferSize int
	debug      bool
	logger     *slog.Logger
	published  atomic.Uint64
	dropped    atomic.Uint64
}

func NewBus(opts ...Option) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bus{
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		subs:       make(map[string]map[uint64]*subscription),
		globalSubs: make(map[uint64]*subscription),
		bufferSize: defaultBufferSize,
		logger:     logger.Get(logger.Events),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.publishCh = make(chan publishRequest, b.bufferSize)

	go b.publishLoop()

	return b
}

func (b *Bus) Publish(topic string, event events.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Type == "" {
		event.Type = topic
	}

	select {
	case <-b.ctx.Done():
		b.dropped.Add(1)
		return
	default:
	}

	select {
	case b.publishCh <- publishRequest{topic: topic, event: event}:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("Publish channel full, dropping event", "topic", topic)
	}
}

func (b *Bus) publishLoop() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			return
		case req := <-b.publishCh:
			b.dispatch(req)
		}
	}
}

func (b *Bus) dispatch(req publishRequest) {
	b.mu.RLock()
	topicSubs := b.subs[req.topic]
	handlers := make([]events.Handler, 0, len(topicSubs)+len(b.globalSubs))
	for _, s := range topicSubs {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.globalSubs {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	if b.debug {
		b.logger.Info("Event", "topic", req.topic, "source", req.event.Source, "data", req.event.Data)
	}

	for _, h := range handlers {
		b.invoke(req.topic, h, req.event)
	}
}

func (b *Bus) invoke(topic string, h events.Handler, ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(ev)
}

func (b *Bus) Subscribe(topic string, handler events.Handler) events.Subscription {
	id := b.nextID.Add(1)

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*subscription)
	}
	b.subs[topic][id] = &subscription{id: id, handler: handler}
	handlerCount := len(b.subs[topic])
	b.mu.Unlock()

	b.logger.Debug("Subscribed to topic", "topic", topic, "handler_count", handlerCount)

	return &sub{bus: b, topic: topic, id: id}
}

func (b *Bus) SubscribeAll(handler events.Handler) events.Subscription {
	id := b.nextID.Add(1)

	b.mu.Lock()
	b.globalSubs[id] = &subscription{id: id, handler: handler}
	b.mu.Unlock()

	return &globalSub{bus: b, id: id}
}

func (b *Bus) removeSub(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if topicSubs, ok := b.subs[topic]; ok {
		delete(topicSubs, id)
		if len(topicSubs) == 0 {
			delete(b.subs, topic)
		}
	}
}

func (b *Bus) removeGlobalSub(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.globalSubs, id)
}

func (b *Bus) Stats() events.Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]events.TopicStats, 0, len(b.subs))
	for topic, subs := range b.subs {
		topics = append(topics, events.TopicStats{
			Topic:       topic,
			Subscribers: len(subs),
		})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Topic < topics[j].Topic })

	return events.Stats{
		Topics:       topics,
		PublishChLen: len(b.publishCh),
		PublishChCap: cap(b.publishCh),
		Published:    b.published.Load(),
		Dropped:      b.dropped.Load(),
	}
}

func (b *Bus) Close() error {
	b.cancel()
	<-b.done
	return nil
}
