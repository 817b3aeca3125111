package lists

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/models"
)

// newInviteCode returns a cryptographically unpredictable link-invite code.
func newInviteCode() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// InviteUser creates a pending direct invite. Any current member may invite
// while the roster has room; a second pending invite to the same person is
// rejected, not silently duplicated.
func (s *Service) InviteUser(ctx context.Context, inviterID, listID, inviteeID uuid.UUID) (*models.Invitation, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members(ctx, listID)
	if err != nil {
		return nil, err
	}
	if findMember(members, inviterID) == nil {
		return nil, ErrNotAMember
	}
	if findMember(members, inviteeID) != nil {
		return nil, ErrAlreadyMember
	}
	if len(members) >= models.MaxMembers {
		return nil, ErrCapacityExceeded
	}

	now := s.now().UTC()
	inv := &models.Invitation{
		ID:          uuid.New(),
		ListID:      listID,
		ListOwnerID: list.OwnerID,
		InviterID:   inviterID,
		Kind:        models.InviteKindDirect,
		State:       models.InviteStatePending,
		InviteeID:   &inviteeID,
		CreatedAt:   now,
		InviterName: s.profile(ctx, inviterID).DisplayName,
		InviteeName: s.profile(ctx, inviteeID).DisplayName,
		ListName:    list.Name,
	}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateInviteLink creates a redeemable code-based invite. Capacity is
// pre-checked here and checked again at every redemption, since the roster
// can change in between. Multiple live links per list are allowed.
func (s *Service) CreateInviteLink(ctx context.Context, inviterID, listID uuid.UUID) (*models.Invitation, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members(ctx, listID)
	if err != nil {
		return nil, err
	}
	if findMember(members, inviterID) == nil {
		return nil, ErrNotAMember
	}
	if len(members) >= models.MaxMembers {
		return nil, ErrCapacityExceeded
	}

	code, err := newInviteCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	expires := now.Add(s.linkTTL)
	inv := &models.Invitation{
		ID:          uuid.New(),
		ListID:      listID,
		ListOwnerID: list.OwnerID,
		InviterID:   inviterID,
		Kind:        models.InviteKindLink,
		State:       models.InviteStatePending,
		Code:        &code,
		ExpiresAt:   &expires,
		CreatedAt:   now,
		InviterName: s.profile(ctx, inviterID).DisplayName,
		ListName:    list.Name,
	}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// AcceptInvite consumes a direct invite: the invite transitions to accepted
// and the membership row is created in the same transaction as the capacity
// check. A half-applied state is never observable.
func (s *Service) AcceptInvite(ctx context.Context, accepterID, inviteID uuid.UUID) error {
	inv, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if inv.Kind != models.InviteKindDirect {
		return ErrInviteNotFound
	}
	if inv.InviteeID == nil || *inv.InviteeID != accepterID {
		return ErrNotInvitee
	}
	if inv.State != models.InviteStatePending {
		return ErrInviteAlreadyResolved
	}

	p := s.profile(ctx, accepterID)
	err = s.updateRoster(ctx, inv.ListID, func(tx RosterTx) error {
		members := tx.Members()
		if findMember(members, accepterID) != nil {
			return ErrAlreadyMember
		}
		if len(members) >= models.MaxMembers {
			return ErrCapacityExceeded
		}
		now := s.now().UTC()
		tx.ResolveInvite(inv.ID, models.InviteStateAccepted)
		tx.AddMember(models.Membership{
			ListID:          inv.ListID,
			UserID:          accepterID,
			Role:            models.RoleCollaborator,
			JoinedAt:        now,
			Username:        p.Username,
			DisplayName:     p.DisplayName,
			PhotoURL:        p.PhotoURL,
			ProfileCachedAt: now,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.events.Publish(models.Event{Type: models.EventMemberJoined, ListID: inv.ListID, UserID: accepterID, At: s.now().UTC()})
	return nil
}

// DeclineInvite transitions a pending direct invite to declined. Invitee-only,
// no membership effect.
func (s *Service) DeclineInvite(ctx context.Context, callerID, inviteID uuid.UUID) error {
	inv, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if inv.Kind != models.InviteKindDirect {
		return ErrInviteNotFound
	}
	if inv.InviteeID == nil || *inv.InviteeID != callerID {
		return ErrNotInvitee
	}
	return s.store.ResolveInvite(ctx, inviteID, models.InviteStateDeclined, s.now().UTC())
}

// RevokeInvite cancels a pending direct invite or invalidates a live link
// invite. Any current member of the target list may revoke.
func (s *Service) RevokeInvite(ctx context.Context, callerID, inviteID uuid.UUID) error {
	inv, err := s.store.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if _, err := s.requireMember(ctx, inv.ListID, callerID); err != nil {
		return err
	}
	return s.store.ResolveInvite(ctx, inviteID, models.InviteStateRevoked, s.now().UTC())
}

// RedeemInviteLink joins the caller via a link code. Expiry and revocation are
// checked here, at redemption time; nothing sweeps link invites proactively.
// The invite stays pending on success — links are reusable until the roster
// fills or the code expires.
func (s *Service) RedeemInviteLink(ctx context.Context, redeemerID uuid.UUID, code string) (*models.List, error) {
	inv, err := s.store.GetInviteByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if inv.Kind != models.InviteKindLink || inv.State != models.InviteStatePending || inv.Expired(now) {
		return nil, ErrInviteNotFound
	}

	p := s.profile(ctx, redeemerID)
	err = s.updateRoster(ctx, inv.ListID, func(tx RosterTx) error {
		// Re-read inside the transaction: a concurrent revoke must win.
		cur, err := tx.Invite(inv.ID)
		if err != nil {
			return err
		}
		if cur.State != models.InviteStatePending || cur.Expired(s.now().UTC()) {
			return ErrInviteNotFound
		}
		members := tx.Members()
		if findMember(members, redeemerID) != nil {
			return ErrAlreadyMember
		}
		if len(members) >= models.MaxMembers {
			return ErrCapacityExceeded
		}
		joined := s.now().UTC()
		tx.AddMember(models.Membership{
			ListID:          inv.ListID,
			UserID:          redeemerID,
			Role:            models.RoleCollaborator,
			JoinedAt:        joined,
			Username:        p.Username,
			DisplayName:     p.DisplayName,
			PhotoURL:        p.PhotoURL,
			ProfileCachedAt: joined,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(models.Event{Type: models.EventMemberJoined, ListID: inv.ListID, UserID: redeemerID, At: now})

	return s.store.GetList(ctx, inv.ListID)
}

// ListPendingInvites returns a list's pending invites, visible to members
// only.
func (s *Service) ListPendingInvites(ctx context.Context, callerID, listID uuid.UUID) ([]*models.Invitation, error) {
	if _, err := s.requireMember(ctx, listID, callerID); err != nil {
		return nil, err
	}
	return s.store.PendingInvites(ctx, listID)
}

// IncomingInvites returns the caller's own pending direct invites.
func (s *Service) IncomingInvites(ctx context.Context, userID uuid.UUID) ([]*models.Invitation, error) {
	return s.store.PendingInvitesForUser(ctx, userID)
}

// PurgeDeadInvites deletes invitations that have been resolved, or expired,
// for longer than olderThan. Used by the retention job.
func (s *Service) PurgeDeadInvites(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.store.PurgeDeadInvites(ctx, s.now().UTC().Add(-olderThan))
}
