package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-assessment-engine/internal/domain"
)

// DefaultGradeChannel is the pub/sub channel the notification collaborator
// subscribes to.
const DefaultGradeChannel = "grades.posted"

// GradePublisher pushes grade-posted events onto a Redis pub/sub channel.
type GradePublisher struct {
	client  *redis.Client
	channel string
}

func NewGradePublisher(client *redis.Client, channel string) *GradePublisher {
	if channel == "" {
		channel = DefaultGradeChannel
	}
	return &GradePublisher{client: client, channel: channel}
}

func (p *GradePublisher) PublishGradePosted(ctx context.Context, event domain.GradePosted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal grade event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish grade event: %w", err)
	}
	return nil
}
