// Package memstore is an in-memory implementation of the lists.Store
// contract, used by tests and the local dev mode. It honors the same
// optimistic-concurrency protocol as the postgres store: UpdateRoster
// callbacks run against a snapshot and commit with a version compare, so
// racing writers genuinely observe ErrStorageConflict.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/lists"
	"github.com/mattgrd/watchcrew/internal/models"
)

type Store struct {
	mu      sync.RWMutex
	lists   map[uuid.UUID]*models.List
	members map[uuid.UUID][]models.Membership
	invites map[uuid.UUID]*models.Invitation
	byCode  map[string]uuid.UUID
	items   map[uuid.UUID]map[int64]*models.ListItem
}

var _ lists.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		lists:   make(map[uuid.UUID]*models.List),
		members: make(map[uuid.UUID][]models.Membership),
		invites: make(map[uuid.UUID]*models.Invitation),
		byCode:  make(map[string]uuid.UUID),
		items:   make(map[uuid.UUID]map[int64]*models.ListItem),
	}
}

// ──────────────────── Lists ────────────────────

func (s *Store) CreateList(_ context.Context, list *models.List, owner *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *list
	s.lists[list.ID] = &cp
	s.members[list.ID] = []models.Membership{*owner}
	s.items[list.ID] = make(map[int64]*models.ListItem)
	return nil
}

func (s *Store) GetList(_ context.Context, id uuid.UUID) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[id]
	if !ok {
		return nil, lists.ErrListNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) UpdateListFields(_ context.Context, id uuid.UUID, upd models.ListUpdate) (*models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return nil, lists.ErrListNotFound
	}
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	if upd.IsPublic != nil {
		l.IsPublic = *upd.IsPublic
	}
	if upd.CoverImageURL != nil {
		l.CoverImageURL = upd.CoverImageURL
	}
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	return &cp, nil
}

func (s *Store) DeleteList(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[id]; !ok {
		return lists.ErrListNotFound
	}
	delete(s.lists, id)
	delete(s.members, id)
	delete(s.items, id)
	for invID, inv := range s.invites {
		if inv.ListID == id {
			if inv.Code != nil {
				delete(s.byCode, *inv.Code)
			}
			delete(s.invites, invID)
		}
	}
	return nil
}

func (s *Store) ListsByMember(_ context.Context, userID uuid.UUID) ([]*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.List
	for listID, roster := range s.members {
		for _, m := range roster {
			if m.UserID == userID {
				cp := *s.lists[listID]
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DefaultList(_ context.Context, ownerID uuid.UUID) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lists {
		if l.OwnerID == ownerID && l.IsDefault {
			cp := *l
			return &cp, nil
		}
	}
	return nil, lists.ErrListNotFound
}

// ──────────────────── Membership ────────────────────

func sortRoster(roster []models.Membership) {
	sort.Slice(roster, func(i, j int) bool {
		if (roster[i].Role == models.RoleOwner) != (roster[j].Role == models.RoleOwner) {
			return roster[i].Role == models.RoleOwner
		}
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
}

func (s *Store) Members(_ context.Context, listID uuid.UUID) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.lists[listID]; !ok {
		return nil, lists.ErrListNotFound
	}
	roster := append([]models.Membership(nil), s.members[listID]...)
	sortRoster(roster)
	return roster, nil
}

// ──────────────────── Roster transaction ────────────────────

type rosterOp struct {
	addMember     *models.Membership
	removeMember  *uuid.UUID
	setRoleUser   *uuid.UUID
	setRole       models.MemberRole
	setOwner      *uuid.UUID
	resolveInvite *uuid.UUID
	resolveTo     models.InviteState
}

type rosterTx struct {
	store   *Store
	list    models.List
	roster  []models.Membership
	version int64
	ops     []rosterOp
}

func (tx *rosterTx) List() *models.List           { return &tx.list }
func (tx *rosterTx) Members() []models.Membership { return tx.roster }

func (tx *rosterTx) AddMember(m models.Membership) {
	tx.ops = append(tx.ops, rosterOp{addMember: &m})
}

func (tx *rosterTx) RemoveMember(userID uuid.UUID) {
	tx.ops = append(tx.ops, rosterOp{removeMember: &userID})
}

func (tx *rosterTx) SetRole(userID uuid.UUID, role models.MemberRole) {
	tx.ops = append(tx.ops, rosterOp{setRoleUser: &userID, setRole: role})
}

func (tx *rosterTx) SetOwner(userID uuid.UUID) {
	tx.ops = append(tx.ops, rosterOp{setOwner: &userID})
}

func (tx *rosterTx) Invite(id uuid.UUID) (*models.Invitation, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	inv, ok := tx.store.invites[id]
	if !ok {
		return nil, lists.ErrInviteNotFound
	}
	cp := *inv
	return &cp, nil
}

func (tx *rosterTx) ResolveInvite(id uuid.UUID, to models.InviteState) {
	tx.ops = append(tx.ops, rosterOp{resolveInvite: &id, resolveTo: to})
}

func (s *Store) UpdateRoster(_ context.Context, listID uuid.UUID, fn func(tx lists.RosterTx) error) error {
	s.mu.RLock()
	l, ok := s.lists[listID]
	if !ok {
		s.mu.RUnlock()
		return lists.ErrListNotFound
	}
	tx := &rosterTx{
		store:   s,
		list:    *l,
		roster:  append([]models.Membership(nil), s.members[listID]...),
		version: l.Version,
	}
	sortRoster(tx.roster)
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lists[listID]
	if !ok {
		return lists.ErrListNotFound
	}
	if cur.Version != tx.version {
		return lists.ErrStorageConflict
	}

	// Validate conditional ops before applying anything.
	for _, op := range tx.ops {
		if op.resolveInvite == nil {
			continue
		}
		inv, ok := s.invites[*op.resolveInvite]
		if !ok {
			return lists.ErrInviteNotFound
		}
		if inv.State != models.InviteStatePending {
			return lists.ErrInviteAlreadyResolved
		}
	}

	now := time.Now().UTC()
	for _, op := range tx.ops {
		switch {
		case op.addMember != nil:
			s.members[listID] = append(s.members[listID], *op.addMember)
		case op.removeMember != nil:
			roster := s.members[listID]
			for i := range roster {
				if roster[i].UserID == *op.removeMember {
					s.members[listID] = append(roster[:i], roster[i+1:]...)
					break
				}
			}
		case op.setRoleUser != nil:
			roster := s.members[listID]
			for i := range roster {
				if roster[i].UserID == *op.setRoleUser {
					roster[i].Role = op.setRole
					break
				}
			}
		case op.setOwner != nil:
			cur.OwnerID = *op.setOwner
		case op.resolveInvite != nil:
			inv := s.invites[*op.resolveInvite]
			inv.State = op.resolveTo
			at := now
			inv.ResolvedAt = &at
		}
	}

	cur.Version++
	cur.UpdatedAt = now
	return nil
}

// ──────────────────── Invitations ────────────────────

func (s *Store) CreateInvite(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.Kind == models.InviteKindDirect {
		for _, existing := range s.invites {
			if existing.Kind == models.InviteKindDirect &&
				existing.State == models.InviteStatePending &&
				existing.ListID == inv.ListID &&
				existing.InviteeID != nil && inv.InviteeID != nil &&
				*existing.InviteeID == *inv.InviteeID {
				return lists.ErrDuplicatePendingInvite
			}
		}
	}
	cp := *inv
	s.invites[inv.ID] = &cp
	if inv.Code != nil {
		s.byCode[*inv.Code] = inv.ID
	}
	return nil
}

func (s *Store) GetInvite(_ context.Context, id uuid.UUID) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invites[id]
	if !ok {
		return nil, lists.ErrInviteNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *Store) GetInviteByCode(_ context.Context, code string) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, lists.ErrInviteNotFound
	}
	cp := *s.invites[id]
	return &cp, nil
}

func (s *Store) PendingInvites(_ context.Context, listID uuid.UUID) ([]*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invitation
	for _, inv := range s.invites {
		if inv.ListID == listID && inv.State == models.InviteStatePending {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PendingInvitesForUser(_ context.Context, userID uuid.UUID) ([]*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invitation
	for _, inv := range s.invites {
		if inv.Kind == models.InviteKindDirect &&
			inv.State == models.InviteStatePending &&
			inv.InviteeID != nil && *inv.InviteeID == userID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ResolveInvite(_ context.Context, id uuid.UUID, to models.InviteState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return lists.ErrInviteNotFound
	}
	if inv.State != models.InviteStatePending {
		return lists.ErrInviteAlreadyResolved
	}
	inv.State = to
	inv.ResolvedAt = &at
	return nil
}

func (s *Store) PurgeDeadInvites(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, inv := range s.invites {
		dead := (inv.State != models.InviteStatePending && inv.ResolvedAt != nil && inv.ResolvedAt.Before(before)) ||
			(inv.Kind == models.InviteKindLink && inv.ExpiresAt != nil && inv.ExpiresAt.Before(before))
		if dead {
			if inv.Code != nil {
				delete(s.byCode, *inv.Code)
			}
			delete(s.invites, id)
			n++
		}
	}
	return n, nil
}

// ──────────────────── Items ────────────────────

func (s *Store) UpsertItem(_ context.Context, item *models.ListItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byList, ok := s.items[item.ListID]
	if !ok {
		return lists.ErrListNotFound
	}
	if existing, ok := byList[item.TMDBID]; ok {
		// Idempotent: refresh display fields, keep first-add provenance.
		existing.MediaType = item.MediaType
		existing.Title = item.Title
		existing.Year = item.Year
		existing.PosterURL = item.PosterURL
		return nil
	}
	cp := *item
	cp.Notes = make(map[uuid.UUID]string)
	byList[item.TMDBID] = &cp
	return nil
}

func (s *Store) SetItemNote(_ context.Context, listID uuid.UUID, tmdbID int64, userID uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byList, ok := s.items[listID]
	if !ok {
		return lists.ErrListNotFound
	}
	item, ok := byList[tmdbID]
	if !ok {
		return lists.ErrListNotFound
	}
	if note == "" {
		delete(item.Notes, userID)
		return nil
	}
	item.Notes[userID] = note
	return nil
}

func (s *Store) Items(_ context.Context, listID uuid.UUID) ([]*models.ListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byList, ok := s.items[listID]
	if !ok {
		return nil, lists.ErrListNotFound
	}
	out := make([]*models.ListItem, 0, len(byList))
	for _, item := range byList {
		cp := *item
		cp.Notes = make(map[uuid.UUID]string, len(item.Notes))
		for k, v := range item.Notes {
			cp.Notes[k] = v
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (s *Store) DeleteItem(_ context.Context, listID uuid.UUID, tmdbID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byList, ok := s.items[listID]
	if !ok {
		return lists.ErrListNotFound
	}
	delete(byList, tmdbID)
	return nil
}
