package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.trapdoors/internal/proto"
)

// CommandPublisher 命令发布器，实现 router.Channel
//
// 使用 core NATS：没有订阅者时消息直接丢弃。
type CommandPublisher struct {
	nc               *nats.Conn
	authoritySubject string
	everyoneSubject  string
	logger           *slog.Logger
}

// NewCommandPublisher 创建命令发布器
func NewCommandPublisher(nc *nats.Conn, world string) *CommandPublisher {
	return &CommandPublisher{
		nc:               nc,
		authoritySubject: BuildAuthoritySubject(world),
		everyoneSubject:  BuildEveryoneSubject(world),
		logger:           slog.Default(),
	}
}

// ToAuthority 发布到权威 Subject
func (p *CommandPublisher) ToAuthority(_ context.Context, env *proto.Envelope) error {
	return p.publish(p.authoritySubject, env)
}

// ToEveryone 发布到广播 Subject
func (p *CommandPublisher) ToEveryone(_ context.Context, env *proto.Envelope) error {
	return p.publish(p.everyoneSubject, env)
}

func (p *CommandPublisher) publish(subject string, env *proto.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("Failed to marshal command", "error", err)
		return err
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish command", "subject", subject, "command", env.Command.Name(), "error", err)
		return err
	}

	p.logger.Debug("Published command", "subject", subject, "command", env.Command.Name())
	return nil
}
