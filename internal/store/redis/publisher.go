package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/scheduler"
)

var _ scheduler.Sink = (*Publisher)(nil)

// Publisher stores every successful render in Redis and notifies a
// channel when the rendered text changes.
type Publisher struct {
	client  redis.Cmdable
	channel string
	logger  logger.Logger
}

// NewPublisher creates a publisher notifying channel.
func NewPublisher(client redis.Cmdable, channel string, log logger.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  log,
	}
}

func (p *Publisher) Name() string { return "redis" }

// Emit saves the render and its document, then publishes the rendered
// text when its digest differs from the previously stored one.
func (p *Publisher) Emit(ctx context.Context, out scheduler.Output) error {
	doc, err := json.Marshal(out.Document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if _, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, KeyLastRender, out.Rendered, 0)
		pipe.Set(ctx, KeyLastDocument, doc, 0)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to save render: %w", err)
	}

	sum := Digest(out.Rendered)
	prev, err := p.client.SetArgs(ctx, KeyLastDigest, sum, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to swap render digest: %w", err)
	}
	if prev == sum {
		p.logger.Debug("render unchanged, not publishing",
			logger.Uint64("pass", out.Pass))
		return nil
	}

	receivers, err := p.client.Publish(ctx, p.channel, out.Rendered).Result()
	if err != nil {
		return fmt.Errorf("failed to publish render: %w", err)
	}

	p.logger.Info("published changed render",
		logger.String("channel", p.channel),
		logger.Int("receivers", int(receivers)),
		logger.Uint64("pass", out.Pass))
	return nil
}

// Digest returns the hex SHA-256 of rendered.
func Digest(rendered []byte) string {
	sum := sha256.Sum256(rendered)
	return hex.EncodeToString(sum[:])
}
