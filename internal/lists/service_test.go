package lists_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattgrd/watchcrew/internal/identity"
	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/memstore"
	"github.com/mattgrd/watchcrew/internal/models"
)

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carol = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	dave  = uuid.MustParse("00000000-0000-0000-0000-00000000000d")
	erin  = uuid.MustParse("00000000-0000-0000-0000-00000000000e")
)

func testDirectory() identity.Static {
	return identity.Static{
		alice.String(): {UserID: alice.String(), Username: "alice", DisplayName: "Alice A"},
		bob.String():   {UserID: bob.String(), Username: "bob", DisplayName: "Bob B"},
		carol.String(): {UserID: carol.String(), Username: "carol", DisplayName: "Carol C"},
		dave.String():  {UserID: dave.String(), Username: "dave", DisplayName: "Dave D"},
		erin.String():  {UserID: erin.String(), Username: "erin", DisplayName: "Erin E"},
	}
}

func newService(t *testing.T, opts ...lists.Option) (*lists.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return lists.NewService(store, testDirectory(), nil, opts...), store
}

// addCollaborator runs the full direct-invite flow to get user onto the list.
func addCollaborator(t *testing.T, svc *lists.Service, inviterID, listID, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	inv, err := svc.InviteUser(ctx, inviterID, listID, userID)
	require.NoError(t, err)
	require.NoError(t, svc.AcceptInvite(ctx, userID, inv.ID))
}

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	events []models.Event
}

func (r *eventRecorder) Publish(ev models.Event) { r.events = append(r.events, ev) }

func (r *eventRecorder) types() []models.EventType {
	out := make([]models.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestCreateList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Horror Night", false)
	require.NoError(t, err)
	assert.Equal(t, alice, list.OwnerID)
	assert.Equal(t, "Horror Night", list.Name)
	assert.False(t, list.IsPublic)
	assert.False(t, list.IsDefault)

	members, err := svc.GetMembers(ctx, alice, list.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, models.RoleOwner, members[0].Role)
	assert.Equal(t, alice, members[0].UserID)
	assert.Equal(t, "alice", members[0].Username)
}

func TestCreateListRequiresName(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.CreateList(context.Background(), alice, "", false)
	require.Error(t, err)
}

func TestEnsureDefaultList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.EnsureDefaultList(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, lists.DefaultListName, first.Name)
	assert.True(t, first.IsDefault)

	second, err := svc.EnsureDefaultList(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second call must return the same list")

	// Other users get their own default.
	other, err := svc.EnsureDefaultList(ctx, bob)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetListVisibility(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	private, err := svc.CreateList(ctx, alice, "Private", false)
	require.NoError(t, err)
	public, err := svc.CreateList(ctx, alice, "Public", true)
	require.NoError(t, err)

	_, err = svc.GetList(ctx, bob, private.ID)
	assert.ErrorIs(t, err, lists.ErrNotAMember)

	got, err := svc.GetList(ctx, bob, public.ID)
	require.NoError(t, err)
	assert.Equal(t, public.ID, got.ID)

	_, err = svc.GetList(ctx, alice, uuid.New())
	assert.ErrorIs(t, err, lists.ErrListNotFound)
}

func TestUpdateList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Old Name", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	name := "New Name"
	pub := true
	updated, err := svc.UpdateList(ctx, bob, list.ID, models.ListUpdate{Name: &name, IsPublic: &pub})
	require.NoError(t, err, "collaborators may edit list fields")
	assert.Equal(t, "New Name", updated.Name)
	assert.True(t, updated.IsPublic)

	_, err = svc.UpdateList(ctx, carol, list.ID, models.ListUpdate{Name: &name})
	assert.ErrorIs(t, err, lists.ErrNotAMember)

	empty := ""
	_, err = svc.UpdateList(ctx, alice, list.ID, models.ListUpdate{Name: &empty})
	require.Error(t, err)
}

func TestDeleteList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Doomed", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	err = svc.DeleteList(ctx, bob, list.ID)
	assert.ErrorIs(t, err, lists.ErrNotOwner, "collaborators cannot delete")

	require.NoError(t, svc.DeleteList(ctx, alice, list.ID))
	_, err = svc.GetList(ctx, alice, list.ID)
	assert.ErrorIs(t, err, lists.ErrListNotFound)
}

func TestDeleteDefaultListProtected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	def, err := svc.EnsureDefaultList(ctx, alice)
	require.NoError(t, err)

	err = svc.DeleteList(ctx, alice, def.ID)
	assert.ErrorIs(t, err, lists.ErrCannotDeleteDefault)
}

func TestListsForUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	owned, err := svc.CreateList(ctx, alice, "Mine", false)
	require.NoError(t, err)
	shared, err := svc.CreateList(ctx, bob, "Bob's", false)
	require.NoError(t, err)
	addCollaborator(t, svc, bob, shared.ID, alice)
	_, err = svc.CreateList(ctx, carol, "Unrelated", false)
	require.NoError(t, err)

	mine, err := svc.ListsForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	ids := []uuid.UUID{mine[0].ID, mine[1].ID}
	assert.Contains(t, ids, owned.ID)
	assert.Contains(t, ids, shared.ID)
}

func TestMembersOrderedOwnerFirst(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)
	addCollaborator(t, svc, alice, list.ID, carol)

	members, err := svc.GetMembers(ctx, bob, list.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, alice, members[0].UserID)
	assert.Equal(t, models.RoleOwner, members[0].Role)
	assert.Equal(t, bob, members[1].UserID)
	assert.Equal(t, carol, members[2].UserID)
}

func TestRemoveCollaborator(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)
	addCollaborator(t, svc, alice, list.ID, carol)

	err = svc.RemoveCollaborator(ctx, bob, list.ID, carol)
	assert.ErrorIs(t, err, lists.ErrNotOwner, "only the owner removes others")

	err = svc.RemoveCollaborator(ctx, alice, list.ID, alice)
	assert.ErrorIs(t, err, lists.ErrCannotRemoveOwner)

	err = svc.RemoveCollaborator(ctx, alice, list.ID, dave)
	assert.ErrorIs(t, err, lists.ErrNotAMember)

	require.NoError(t, svc.RemoveCollaborator(ctx, alice, list.ID, bob))
	members, err := svc.GetMembers(ctx, alice, list.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestLeaveList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	err = svc.LeaveList(ctx, alice, list.ID)
	assert.ErrorIs(t, err, lists.ErrCannotRemoveOwner, "the owner cannot leave")

	err = svc.LeaveList(ctx, carol, list.ID)
	assert.ErrorIs(t, err, lists.ErrNotAMember)

	require.NoError(t, svc.LeaveList(ctx, bob, list.ID))
	members, err := svc.GetMembers(ctx, alice, list.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	// Seat freed: bob can be invited back.
	addCollaborator(t, svc, alice, list.ID, bob)
}

func TestTransferOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)

	err = svc.TransferOwnership(ctx, bob, list.ID, alice)
	assert.ErrorIs(t, err, lists.ErrNotOwner)

	err = svc.TransferOwnership(ctx, alice, list.ID, carol)
	assert.ErrorIs(t, err, lists.ErrNotAMember, "target must already be a collaborator")

	require.NoError(t, svc.TransferOwnership(ctx, alice, list.ID, bob))

	got, err := svc.GetList(ctx, bob, list.ID)
	require.NoError(t, err)
	assert.Equal(t, bob, got.OwnerID)

	members, err := svc.GetMembers(ctx, bob, list.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	owners := 0
	for _, m := range members {
		if m.Role == models.RoleOwner {
			owners++
			assert.Equal(t, bob, m.UserID)
		}
	}
	assert.Equal(t, 1, owners, "exactly one owner after transfer")

	// Former owner is now a plain collaborator and may leave.
	require.NoError(t, svc.LeaveList(ctx, alice, list.ID))
}

func TestMembershipEvents(t *testing.T) {
	store := memstore.New()
	rec := &eventRecorder{}
	svc := lists.NewService(store, testDirectory(), rec)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Movie Club", false)
	require.NoError(t, err)
	addCollaborator(t, svc, alice, list.ID, bob)
	require.NoError(t, svc.TransferOwnership(ctx, alice, list.ID, bob))
	require.NoError(t, svc.LeaveList(ctx, alice, list.ID))

	assert.Equal(t, []models.EventType{
		models.EventMemberJoined,
		models.EventOwnerChanged,
		models.EventMemberLeft,
	}, rec.types())
}

func TestStorageConflictRetries(t *testing.T) {
	svc, store := newService(t, lists.WithRetryAttempts(6))
	ctx := context.Background()

	list, err := svc.CreateList(ctx, alice, "Busy List", false)
	require.NoError(t, err)

	// A committed write between snapshot and commit forces one conflict; the
	// retry must absorb it.
	interfered := false
	err = store.UpdateRoster(ctx, list.ID, func(tx lists.RosterTx) error {
		if !interfered {
			interfered = true
			inner := store.UpdateRoster(ctx, list.ID, func(lists.RosterTx) error { return nil })
			require.NoError(t, inner)
		}
		return nil
	})
	assert.ErrorIs(t, err, lists.ErrStorageConflict, "raw store surfaces the conflict")

	// Through the service the same interference is retried away: the invite
	// flow still lands bob on the roster.
	addCollaborator(t, svc, alice, list.ID, bob)
}
