package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"sudooom.trapdoors/internal/proto"
	"sudooom.trapdoors/internal/router"
)

// SubscriberConfig 订阅配置
type SubscriberConfig struct {
	BufferSize int // 消息缓冲区大小
}

// CommandSubscriber 命令订阅器
//
// 所有会话订阅广播 Subject，只有权威会话订阅权威 Subject。
// 只有一个 worker 消费队列，权威命令按到达顺序串行执行。
type CommandSubscriber struct {
	nc               *nats.Conn
	handler          router.Receiver
	authoritySubject string
	everyoneSubject  string
	config           SubscriberConfig
	logger           *slog.Logger

	mu           sync.Mutex
	everyoneSub  *nats.Subscription
	authoritySub *nats.Subscription
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewCommandSubscriber 创建命令订阅器
func NewCommandSubscriber(nc *nats.Conn, world string, handler router.Receiver, config SubscriberConfig) *CommandSubscriber {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}

	return &CommandSubscriber{
		nc:               nc,
		handler:          handler,
		authoritySubject: BuildAuthoritySubject(world),
		everyoneSubject:  BuildEveryoneSubject(world),
		config:           config,
		logger:           slog.Default(),
	}
}

// Start 订阅广播 Subject 并启动 worker
func (s *CommandSubscriber) Start(ctx context.Context) error {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.wg.Add(1)
	go s.worker(workerCtx)

	sub, err := s.nc.Subscribe(s.everyoneSubject, s.enqueue)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.everyoneSub = sub
	s.mu.Unlock()

	s.logger.Info("NATS subscriber started",
		"subject", s.everyoneSubject,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

// SubscribeAuthority 开始接收权威命令（获得租约后调用）
func (s *CommandSubscriber) SubscribeAuthority() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authoritySub != nil {
		return nil
	}

	sub, err := s.nc.QueueSubscribe(s.authoritySubject, QueueGroupAuthority, s.enqueue)
	if err != nil {
		return err
	}
	s.authoritySub = sub
	s.logger.Info("Subscribed to authority commands", "subject", s.authoritySubject)
	return nil
}

// UnsubscribeAuthority 停止接收权威命令（失去租约后调用）
func (s *CommandSubscriber) UnsubscribeAuthority() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authoritySub == nil {
		return nil
	}
	err := s.authoritySub.Unsubscribe()
	s.authoritySub = nil
	s.logger.Info("Unsubscribed from authority commands", "subject", s.authoritySubject)
	return err
}

func (s *CommandSubscriber) enqueue(msg *nats.Msg) {
	select {
	case s.msgChan <- msg:
	default:
		s.logger.Warn("Message buffer full, dropping command", "subject", msg.Subject, "bufferSize", s.config.BufferSize)
	}
}

// worker 工作协程
func (s *CommandSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}
			s.handleMessage(ctx, msg)
		}
	}
}

// handleMessage 解码并交给接收端
func (s *CommandSubscriber) handleMessage(ctx context.Context, msg *nats.Msg) {
	var env proto.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.logger.Error("Failed to unmarshal command", "subject", msg.Subject, "error", err)
		return
	}

	if err := s.handler.Receive(ctx, &env); err != nil {
		if errors.Is(err, router.ErrDuplicateCommand) {
			return
		}
		s.logger.Debug("Command not executed",
			"subject", msg.Subject,
			"command", env.Command.Name(),
			"error", err)
	}
}

// Stop 停止订阅
func (s *CommandSubscriber) Stop() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if err := s.UnsubscribeAuthority(); err != nil {
		s.logger.Error("Failed to unsubscribe authority", "error", err)
	}

	s.mu.Lock()
	if s.everyoneSub != nil {
		if err := s.everyoneSub.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
		s.everyoneSub = nil
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("NATS subscriber stopped")
	return nil
}

// GetBufferUsage 获取缓冲区使用情况
func (s *CommandSubscriber) GetBufferUsage() (current int, capacity int) {
	if s.msgChan == nil {
		return 0, 0
	}
	return len(s.msgChan), cap(s.msgChan)
}
