package jobs

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mattgrd/watchcrew/internal/lists"
)

// PurgeHandler deletes invitations whose terminal state (or expiry) is older
// than the retention window.
type PurgeHandler struct {
	svc       *lists.Service
	olderThan time.Duration
}

func NewPurgeHandler(svc *lists.Service, olderThan time.Duration) *PurgeHandler {
	return &PurgeHandler{svc: svc, olderThan: olderThan}
}

func (h *PurgeHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := h.svc.PurgeDeadInvites(ctx, h.olderThan)
	if err != nil {
		log.Printf("[jobs] invite purge failed: %v", err)
		return err
	}
	if n > 0 {
		log.Printf("[jobs] purged %d dead invitations", n)
	}
	return nil
}
