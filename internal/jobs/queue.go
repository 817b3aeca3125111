// Package jobs runs background housekeeping on an asynq queue backed by
// redis. The only periodic task today is invite retention: deleting
// invitation records that have been resolved or expired for longer than the
// configured window. Link expiry itself is enforced at redemption time; the
// purge only removes records that are already dead.
package jobs

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

const TaskPurgeInvites = "invites:purge"

type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
}

func NewQueue(redisAddr string) *Queue {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	scheduler := asynq.NewScheduler(redisOpt, nil)
	mux := asynq.NewServeMux()
	return &Queue{client: client, server: server, mux: mux, scheduler: scheduler}
}

func (q *Queue) RegisterHandler(taskType string, handler asynq.Handler) {
	q.mux.Handle(taskType, handler)
}

// Schedule registers a periodic task with a cron-style or @every spec.
func (q *Queue) Schedule(spec, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if _, err := q.scheduler.Register(spec, asynq.NewTask(taskType, data)); err != nil {
		return fmt.Errorf("schedule %s: %w", taskType, err)
	}
	return nil
}

func (q *Queue) Start() error {
	log.Println("[jobs] queue worker starting...")
	if err := q.server.Start(q.mux); err != nil {
		return err
	}
	return q.scheduler.Start()
}

func (q *Queue) Stop() {
	q.scheduler.Shutdown()
	q.server.Shutdown()
	q.client.Close()
}
