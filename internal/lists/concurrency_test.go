package lists_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/models"
)

// Concurrent joiners racing for the roster's last seat: exactly one wins, the
// rest see a capacity result, and the roster never exceeds the cap.

func TestConcurrentAcceptLastSeat(t *testing.T) {
	svc, _ := newService(t, lists.WithRetryAttempts(20))
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	// One seat left, four pending invites.
	contenders := []uuid.UUID{carol, dave, erin, uuid.New()}
	invites := make(map[uuid.UUID]uuid.UUID, len(contenders))
	for _, u := range contenders {
		inv, err := svc.InviteUser(ctx, alice, list.ID, u)
		require.NoError(t, err)
		invites[u] = inv.ID
	}

	var wg sync.WaitGroup
	results := make(map[uuid.UUID]error, len(contenders))
	var mu sync.Mutex
	for _, u := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.AcceptInvite(ctx, u, invites[u])
			mu.Lock()
			results[u] = err
			mu.Unlock()
		}()
	}
	wg.Wait()

	wins, capacity := 0, 0
	for u, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, lists.ErrCapacityExceeded):
			capacity++
		default:
			t.Fatalf("contender %s: unexpected error %v", u, err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one contender gets the seat")
	assert.Equal(t, len(contenders)-1, capacity)

	members, err := svc.GetMembers(ctx, alice, list.ID)
	require.NoError(t, err)
	assert.Len(t, members, models.MaxMembers)
}

func TestConcurrentRedeemLastSeat(t *testing.T) {
	svc, _ := newService(t, lists.WithRetryAttempts(20))
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	link, err := svc.CreateInviteLink(ctx, alice, list.ID)
	require.NoError(t, err)

	contenders := []uuid.UUID{carol, dave, erin, uuid.New()}
	var wg sync.WaitGroup
	outcomes := make([]error, len(contenders))
	for i, u := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, outcomes[i] = svc.RedeemInviteLink(ctx, u, *link.Code)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range outcomes {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, lists.ErrCapacityExceeded)
	}
	assert.Equal(t, 1, wins)

	members, err := svc.GetMembers(ctx, alice, list.ID)
	require.NoError(t, err)
	assert.Len(t, members, models.MaxMembers)
}

func TestConcurrentTransferAndLeave(t *testing.T) {
	// Transfer and leave racing on the same roster must serialize: whatever
	// the interleaving, the list ends with exactly one owner.
	svc, _ := newService(t, lists.WithRetryAttempts(20))
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)
	addCollaborator(t, svc, alice, list.ID, carol)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// May fail with NOT_A_MEMBER if bob already left; that is a valid
		// serialization.
		_ = svc.TransferOwnership(ctx, alice, list.ID, bob)
	}()
	go func() {
		defer wg.Done()
		// May fail with CANNOT_REMOVE_OWNER if the transfer landed first.
		_ = svc.LeaveList(ctx, bob, list.ID)
	}()
	wg.Wait()

	members, err := svc.GetMembers(ctx, alice, list.ID)
	require.NoError(t, err)

	owners := 0
	var ownerID uuid.UUID
	for _, m := range members {
		if m.Role == models.RoleOwner {
			owners++
			ownerID = m.UserID
		}
	}
	require.Equal(t, 1, owners, "exactly one owner, always")

	got, err := svc.GetList(ctx, ownerID, list.ID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, got.OwnerID, "list record and roster agree on the owner")
}
