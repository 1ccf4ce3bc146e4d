package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/tendril/pkg/domain"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "tendril:"

// Sink implements ports.ArtifactSink using Redis.
//
// Per session it keeps the JSON report under "<prefix>report:<session>" and the generated
// texts in the hash "<prefix>texts:<session>" (hint name to text), and indexes sessions in the
// sorted set "<prefix>index". Every publish also announces a summary on "<prefix>passes".
type Sink struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Sink.
type Option func(*Sink)

// WithTTL sets the expiration of published artifacts.
func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// New creates a new Redis sink with options.
func New(address, password string, db int, opts ...Option) *Sink {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis sink from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Sink {
	sink := &Sink{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink
}

func (s *Sink) reportKey(session string) string { return s.prefix + "report:" + session }
func (s *Sink) textsKey(session string) string  { return s.prefix + "texts:" + session }
func (s *Sink) indexKey() string                { return s.prefix + "index" }

// Channel is the pub/sub channel pass summaries are published on.
func (s *Sink) Channel() string { return s.prefix + "passes" }

// Summary is the message published on Channel after every pass.
type Summary struct {
	Session string           `json:"session"`
	PassID  string           `json:"pass_id"`
	Stats   domain.PassStats `json:"stats"`
}

// Publish replaces the artifacts of report.Session atomically.
func (s *Sink) Publish(ctx context.Context, report *domain.PassReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	summary, err := json.Marshal(Summary{Session: report.Session, PassID: report.PassID, Stats: report.Stats})
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.reportKey(report.Session), data, s.ttl)
	pipe.Del(ctx, s.textsKey(report.Session))
	if len(report.Texts) > 0 {
		fields := make(map[string]any, len(report.Texts))
		for _, t := range report.Texts {
			fields[t.HintName] = t.Text
		}
		pipe.HSet(ctx, s.textsKey(report.Session), fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.textsKey(report.Session), s.ttl)
		}
	}

	// Score = Now + TTL, so List can prune expired sessions lazily.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: report.Session})
	pipe.Publish(ctx, s.Channel(), summary)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Latest retrieves the last report of a session.
func (s *Sink) Latest(ctx context.Context, session string) (*domain.PassReport, error) {
	val, err := s.client.Get(ctx, s.reportKey(session)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var report domain.PassReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// Text retrieves a single generated text without decoding the whole report.
func (s *Sink) Text(ctx context.Context, session, hint string) (string, error) {
	val, err := s.client.HGet(ctx, s.textsKey(session), hint).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", fmt.Errorf("text %q of session %q: %w", hint, session, domain.ErrSessionNotFound)
		}
		return "", fmt.Errorf("failed to get text from redis: %w", err)
	}
	return val, nil
}

// Delete removes everything stored for the session.
func (s *Sink) Delete(ctx context.Context, session string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.reportKey(session), s.textsKey(session))
	pipe.ZRem(ctx, s.indexKey(), session)
	_, err := pipe.Exec(ctx)
	return err
}

// Sessions returns the sessions with a live report, pruning expired ones from the index.
func (s *Sink) Sessions(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Subscribe streams pass summaries until ctx is done.
func (s *Sink) Subscribe(ctx context.Context) (<-chan Summary, error) {
	sub := s.client.Subscribe(ctx, s.Channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Summary)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var sum Summary
				if err := json.Unmarshal([]byte(msg.Payload), &sum); err != nil {
					continue
				}
				select {
				case out <- sum:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis client.
func (s *Sink) Close() error {
	return s.client.Close()
}
