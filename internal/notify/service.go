package notify

import (
	"context"
	"encoding/json"
	"time"

	"stocksave/internal/logger"
	"stocksave/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "notifications"
	failedQueueKey = "notifications:failed"
	maxTries       = 3
)

// Sink is the fire-and-forget contract the ledger packages depend on.
// Implementations must never let an enqueue failure propagate into the
// caller's transaction.
type Sink interface {
	Enqueue(ctx context.Context, userID int, kind, title, message string, referenceID *int, referenceType string)
	EnqueueBroadcast(ctx context.Context, kind, title, message string, referenceID *int, referenceType string)
}

type Service struct {
	redis *redis.Client
	repo  *Repository
}

func New(redisAddr string, repo *Repository) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{Addr: redisAddr}),
		repo:  repo,
	}
}

// NewWithClient is used by tests to inject a mock redis client.
func NewWithClient(client *redis.Client, repo *Repository) *Service {
	return &Service{redis: client, repo: repo}
}

func (s *Service) push(ctx context.Context, job Job) {
	data, err := json.Marshal(job)
	if err != nil {
		metrics.RecordNotification(job.Kind, "error")
		logger.Errorf("Failed to marshal notification job: %v", err)
		return
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		metrics.RecordNotification(job.Kind, "error")
		logger.Errorf("Failed to queue notification for user %d: %v", job.UserID, err)
		return
	}

	metrics.RecordNotification(job.Kind, "queued")
}

func (s *Service) Enqueue(ctx context.Context, userID int, kind, title, message string, referenceID *int, referenceType string) {
	s.push(ctx, Job{
		UserID:        userID,
		Kind:          kind,
		Title:         title,
		Message:       message,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Created:       time.Now(),
	})
}

func (s *Service) EnqueueBroadcast(ctx context.Context, kind, title, message string, referenceID *int, referenceType string) {
	s.push(ctx, Job{
		Kind:          kind,
		Title:         title,
		Message:       message,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Broadcast:     true,
		Created:       time.Now(),
	})
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	job.Tries++
	if err := s.deliver(ctx, job); err != nil {
		logger.Errorf("Failed to store notification for user %d: %v", job.UserID, err)

		if job.Tries < maxTries {
			time.Sleep(2 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
		} else {
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordNotification(job.Kind, "delivered")
}

func (s *Service) deliver(ctx context.Context, job Job) error {
	if job.Broadcast {
		return s.repo.InsertForAllActiveCustomers(ctx, job)
	}
	return s.repo.Insert(ctx, job)
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("Notification moved to failed queue: user %d", job.UserID)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}
