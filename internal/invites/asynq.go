package invites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
)

const queueName = "invites"

// Queue enqueues invitations on Redis through asynq.
type Queue struct {
	client *asynq.Client
}

var _ Inviter = (*Queue)(nil)

// NewQueue connects a client to redisURL.
func NewQueue(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// Invite enqueues inv for the worker.
func (q *Queue) Invite(ctx context.Context, inv Invitation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("asynq: encode invitation: %w", err)
	}
	task := asynq.NewTask(TaskInvite, payload)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(queueName), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("asynq: enqueue invitation: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Server runs the invitation worker against the asynq queues.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer builds a server. queues is a weight list such as
// "invites=3,default=1"; empty means the invites queue only.
func NewServer(redisURL string, concurrency int, queues string, w *Worker, logger *slog.Logger) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	weights := map[string]int{queueName: 1}
	if parsed := parseQueueWeights(queues); len(parsed) > 0 {
		weights = parsed
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      weights,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.With("error", err).Error("asynq task failed", "type", task.Type())
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskInvite, HandleTask(w))
	return &Server{server: srv, mux: mux}, nil
}

// HandleTask adapts w to an asynq handler.
func HandleTask(w *Worker) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var inv Invitation
		if err := json.Unmarshal(t.Payload(), &inv); err != nil {
			return fmt.Errorf("decode invitation: %v: %w", err, asynq.SkipRetry)
		}
		return w.Deliver(ctx, inv)
	}
}

// Run starts the server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// parseQueueWeights parses strings like "invites=3,default=1".
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}
