package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattgrd/watchcrew/internal/identity"
	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/memstore"
)

func TestQueueSchedule(t *testing.T) {
	q := NewQueue("127.0.0.1:6379")
	svc := lists.NewService(memstore.New(), identity.Static{}, nil)
	q.RegisterHandler(TaskPurgeInvites, NewPurgeHandler(svc, 0))

	// Registration validates the spec without touching redis.
	require.NoError(t, q.Schedule("@every 24h", TaskPurgeInvites, nil))
	assert.Error(t, q.Schedule("not-a-spec", TaskPurgeInvites, nil))
}
