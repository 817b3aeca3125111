// Package lists implements the collaborative list membership and invitation
// engine: who may read or write a shared list, how people join and leave it,
// and how ownership changes hands.
//
// Every roster mutation runs through Store.UpdateRoster, a per-list
// compare-and-commit transaction, so membership changes on one list are
// linearizable with respect to each other. Lost races surface as
// ErrStorageConflict and are retried a bounded number of times.
package lists

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/identity"
	"github.com/mattgrd/watchcrew/internal/models"
)

// DefaultListName is the name of the undeletable list created for every user
// on first touch.
const DefaultListName = "Watchlist"

// Store is the persistence contract the engine runs on. Implementations must
// provide the atomicity described on each method; the engine supplies the
// invariant checks.
type Store interface {
	// CreateList persists the list and its owner membership atomically.
	CreateList(ctx context.Context, list *models.List, owner *models.Membership) error
	GetList(ctx context.Context, id uuid.UUID) (*models.List, error)
	UpdateListFields(ctx context.Context, id uuid.UUID, upd models.ListUpdate) (*models.List, error)
	// DeleteList removes the list and cascades memberships, invitations,
	// items and notes in the same logical operation.
	DeleteList(ctx context.Context, id uuid.UUID) error
	ListsByMember(ctx context.Context, userID uuid.UUID) ([]*models.List, error)
	DefaultList(ctx context.Context, ownerID uuid.UUID) (*models.List, error)

	// Members returns the roster ordered owner first, then collaborators by
	// join time.
	Members(ctx context.Context, listID uuid.UUID) ([]models.Membership, error)

	// CreateInvite persists a pending invitation. For direct invites it must
	// reject a second pending invite to the same (list, invitee) with
	// ErrDuplicatePendingInvite.
	CreateInvite(ctx context.Context, inv *models.Invitation) error
	GetInvite(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	GetInviteByCode(ctx context.Context, code string) (*models.Invitation, error)
	PendingInvites(ctx context.Context, listID uuid.UUID) ([]*models.Invitation, error)
	PendingInvitesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Invitation, error)
	// ResolveInvite transitions a pending invite to a terminal state. It must
	// fail with ErrInviteAlreadyResolved when the invite is not pending.
	ResolveInvite(ctx context.Context, id uuid.UUID, to models.InviteState, at time.Time) error
	// PurgeDeadInvites deletes invitations resolved or expired before the
	// cutoff. It never resolves anything itself.
	PurgeDeadInvites(ctx context.Context, before time.Time) (int64, error)

	// UpdateRoster runs fn against a transactional view of one list's roster
	// and commits all recorded mutations together with a version compare on
	// the list record. A lost race returns ErrStorageConflict with nothing
	// applied. A missing list returns ErrListNotFound.
	UpdateRoster(ctx context.Context, listID uuid.UUID, fn func(tx RosterTx) error) error

	UpsertItem(ctx context.Context, item *models.ListItem) error
	SetItemNote(ctx context.Context, listID uuid.UUID, tmdbID int64, userID uuid.UUID, note string) error
	Items(ctx context.Context, listID uuid.UUID) ([]*models.ListItem, error)
	DeleteItem(ctx context.Context, listID uuid.UUID, tmdbID int64) error
}

// RosterTx is the transactional view handed to an UpdateRoster callback.
// Mutations are recorded and applied atomically at commit; a callback error
// aborts the whole transaction.
type RosterTx interface {
	List() *models.List
	Members() []models.Membership
	AddMember(m models.Membership)
	RemoveMember(userID uuid.UUID)
	SetRole(userID uuid.UUID, role models.MemberRole)
	// SetOwner updates the list record's owner id (ownership transfer).
	SetOwner(userID uuid.UUID)
	// Invite reads an invitation inside the transaction.
	Invite(id uuid.UUID) (*models.Invitation, error)
	// ResolveInvite records a pending→to transition for the invite. The
	// commit enforces that the invite is still pending; when it is not, the
	// whole transaction aborts and UpdateRoster returns
	// ErrInviteAlreadyResolved.
	ResolveInvite(id uuid.UUID, to models.InviteState)
}

// Events receives list-scoped change notifications. Publish must not block.
type Events interface {
	Publish(ev models.Event)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Publish(models.Event) {}

// ──────────────────── Service ────────────────────

// Service is the engine's public surface. Every method takes the
// already-authenticated caller id explicitly; there is no ambient session
// state.
type Service struct {
	store         Store
	dir           identity.Directory
	events        Events
	now           func() time.Time
	linkTTL       time.Duration
	retryAttempts uint
}

// Option adjusts service behavior.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLinkTTL overrides the link-invite redemption window.
func WithLinkTTL(d time.Duration) Option {
	return func(s *Service) { s.linkTTL = d }
}

// WithRetryAttempts overrides the StorageConflict retry budget.
func WithRetryAttempts(n uint) Option {
	return func(s *Service) { s.retryAttempts = n }
}

func NewService(store Store, dir identity.Directory, events Events, opts ...Option) *Service {
	s := &Service{
		store:         store,
		dir:           dir,
		events:        events,
		now:           time.Now,
		linkTTL:       7 * 24 * time.Hour,
		retryAttempts: 4,
	}
	if s.events == nil {
		s.events = NopEvents{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// updateRoster wraps the store's compare-and-commit with a bounded retry.
// Only ErrStorageConflict is retried; every other outcome surfaces at once.
func (s *Service) updateRoster(ctx context.Context, listID uuid.UUID, fn func(tx RosterTx) error) error {
	return retry.Do(
		func() error { return s.store.UpdateRoster(ctx, listID, fn) },
		retry.Context(ctx),
		retry.Attempts(s.retryAttempts),
		retry.Delay(10*time.Millisecond),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrStorageConflict) }),
		retry.LastErrorOnly(true),
	)
}

// profile resolves display data for denormalization. A directory outage never
// fails a membership operation; display fields are then left empty.
func (s *Service) profile(ctx context.Context, userID uuid.UUID) identity.Profile {
	p, err := s.dir.ResolveProfile(ctx, userID.String())
	if err != nil {
		log.Printf("[lists] profile lookup for %s failed: %v", userID, err)
		return identity.Profile{}
	}
	return p
}

func findMember(members []models.Membership, userID uuid.UUID) *models.Membership {
	for i := range members {
		if members[i].UserID == userID {
			return &members[i]
		}
	}
	return nil
}

// requireMember loads the roster and verifies userID is on it.
func (s *Service) requireMember(ctx context.Context, listID, userID uuid.UUID) ([]models.Membership, error) {
	members, err := s.store.Members(ctx, listID)
	if err != nil {
		return nil, err
	}
	if findMember(members, userID) == nil {
		return nil, ErrNotAMember
	}
	return members, nil
}

// ──────────────────── List lifecycle ────────────────────

// CreateList creates a list and its owner membership atomically.
func (s *Service) CreateList(ctx context.Context, ownerID uuid.UUID, name string, isPublic bool) (*models.List, error) {
	return s.createList(ctx, ownerID, name, isPublic, false)
}

// EnsureDefaultList returns the caller's default list, creating it on first
// touch. The default list can never be deleted.
func (s *Service) EnsureDefaultList(ctx context.Context, ownerID uuid.UUID) (*models.List, error) {
	list, err := s.store.DefaultList(ctx, ownerID)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, ErrListNotFound) {
		return nil, err
	}
	return s.createList(ctx, ownerID, DefaultListName, false, true)
}

func (s *Service) createList(ctx context.Context, ownerID uuid.UUID, name string, isPublic, isDefault bool) (*models.List, error) {
	if name == "" {
		return nil, fmt.Errorf("list name is required")
	}
	now := s.now().UTC()
	list := &models.List{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		IsPublic:  isPublic,
		IsDefault: isDefault,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p := s.profile(ctx, ownerID)
	owner := &models.Membership{
		ListID:          list.ID,
		UserID:          ownerID,
		Role:            models.RoleOwner,
		JoinedAt:        now,
		Username:        p.Username,
		DisplayName:     p.DisplayName,
		PhotoURL:        p.PhotoURL,
		ProfileCachedAt: now,
	}
	if err := s.store.CreateList(ctx, list, owner); err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	return list, nil
}

// GetList returns a list the caller may see: any public list, or a private
// list the caller is a member of.
func (s *Service) GetList(ctx context.Context, callerID, listID uuid.UUID) (*models.List, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.IsPublic {
		return list, nil
	}
	if _, err := s.requireMember(ctx, listID, callerID); err != nil {
		return nil, err
	}
	return list, nil
}

// ListsForUser returns every list the user belongs to, as owner or
// collaborator.
func (s *Service) ListsForUser(ctx context.Context, userID uuid.UUID) ([]*models.List, error) {
	return s.store.ListsByMember(ctx, userID)
}

// UpdateList applies owner/collaborator field updates (rename, visibility,
// cover). These are not membership changes and need no roster transaction.
func (s *Service) UpdateList(ctx context.Context, callerID, listID uuid.UUID, upd models.ListUpdate) (*models.List, error) {
	if _, err := s.requireMember(ctx, listID, callerID); err != nil {
		return nil, err
	}
	if upd.Name != nil && *upd.Name == "" {
		return nil, fmt.Errorf("list name is required")
	}
	return s.store.UpdateListFields(ctx, listID, upd)
}

// DeleteList removes a list and everything attached to it. Owner-only; the
// default list is protected regardless of caller.
func (s *Service) DeleteList(ctx context.Context, callerID, listID uuid.UUID) error {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return err
	}
	if list.OwnerID != callerID {
		return ErrNotOwner
	}
	if list.IsDefault {
		return ErrCannotDeleteDefault
	}
	if err := s.store.DeleteList(ctx, listID); err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	s.events.Publish(models.Event{Type: models.EventListDeleted, ListID: listID, UserID: callerID, At: s.now().UTC()})
	return nil
}

// ──────────────────── Membership ────────────────────

// GetMembers returns the roster, owner first then collaborators by join time.
// Private lists are visible to members only.
func (s *Service) GetMembers(ctx context.Context, callerID, listID uuid.UUID) ([]models.Membership, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members(ctx, listID)
	if err != nil {
		return nil, err
	}
	if !list.IsPublic && findMember(members, callerID) == nil {
		return nil, ErrNotAMember
	}
	return members, nil
}

// RemoveCollaborator removes a collaborator from the roster. Owner-only; the
// owner entry itself can only go away via transfer or list deletion.
func (s *Service) RemoveCollaborator(ctx context.Context, callerID, listID, userID uuid.UUID) error {
	err := s.updateRoster(ctx, listID, func(tx RosterTx) error {
		if tx.List().OwnerID != callerID {
			return ErrNotOwner
		}
		if userID == tx.List().OwnerID {
			return ErrCannotRemoveOwner
		}
		if findMember(tx.Members(), userID) == nil {
			return ErrNotAMember
		}
		tx.RemoveMember(userID)
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(models.Event{Type: models.EventMemberLeft, ListID: listID, UserID: userID, At: s.now().UTC()})
	return nil
}

// LeaveList removes the caller's own collaborator entry. The owner cannot
// leave; they must transfer ownership or delete the list.
func (s *Service) LeaveList(ctx context.Context, callerID, listID uuid.UUID) error {
	err := s.updateRoster(ctx, listID, func(tx RosterTx) error {
		if tx.List().OwnerID == callerID {
			return ErrCannotRemoveOwner
		}
		if findMember(tx.Members(), callerID) == nil {
			return ErrNotAMember
		}
		tx.RemoveMember(callerID)
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(models.Event{Type: models.EventMemberLeft, ListID: listID, UserID: callerID, At: s.now().UTC()})
	return nil
}

// TransferOwnership atomically swaps roles: the current owner becomes a
// collaborator and newOwnerID, who must already be a collaborator, becomes
// the owner. Exactly one owner exists at every point in between.
func (s *Service) TransferOwnership(ctx context.Context, callerID, listID, newOwnerID uuid.UUID) error {
	if callerID == newOwnerID {
		return ErrNotAMember
	}
	err := s.updateRoster(ctx, listID, func(tx RosterTx) error {
		if tx.List().OwnerID != callerID {
			return ErrNotOwner
		}
		target := findMember(tx.Members(), newOwnerID)
		if target == nil || target.Role != models.RoleCollaborator {
			return ErrNotAMember
		}
		tx.SetRole(callerID, models.RoleCollaborator)
		tx.SetRole(newOwnerID, models.RoleOwner)
		tx.SetOwner(newOwnerID)
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(models.Event{Type: models.EventOwnerChanged, ListID: listID, UserID: newOwnerID, At: s.now().UTC()})
	return nil
}
