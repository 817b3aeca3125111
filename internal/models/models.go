package models

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────── Enums ────────────────────

type MemberRole string

const (
	RoleOwner        MemberRole = "owner"
	RoleCollaborator MemberRole = "collaborator"
)

type InviteKind string

const (
	InviteKindDirect InviteKind = "direct"
	InviteKindLink   InviteKind = "link"
)

type InviteState string

const (
	InviteStatePending  InviteState = "pending"
	InviteStateAccepted InviteState = "accepted"
	InviteStateDeclined InviteState = "declined"
	InviteStateRevoked  InviteState = "revoked"
)

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

// MaxMembers is the hard cap on simultaneous members per list
// (one owner plus at most two collaborators).
const MaxMembers = 3

// ──────────────────── List ────────────────────

// List is a named, ownable collection of movies and shows. OwnerID changes
// only through ownership transfer. Version backs the compare-and-commit
// protocol for roster mutations; every committed roster change bumps it.
type List struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OwnerID       uuid.UUID `json:"owner_id" db:"owner_id"`
	Name          string    `json:"name" db:"name"`
	IsPublic      bool      `json:"is_public" db:"is_public"`
	IsDefault     bool      `json:"is_default" db:"is_default"`
	CoverImageURL *string   `json:"cover_image_url,omitempty" db:"cover_image_url"`
	Version       int64     `json:"-" db:"version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ListUpdate carries the owner/collaborator-editable list fields. Nil means
// leave unchanged.
type ListUpdate struct {
	Name          *string `json:"name,omitempty"`
	IsPublic      *bool   `json:"is_public,omitempty"`
	CoverImageURL *string `json:"cover_image_url,omitempty"`
}

// ──────────────────── Membership ────────────────────

// Membership is one row of a list's roster, keyed by (ListID, UserID).
//
// Username, DisplayName and PhotoURL are a write-time cache of the Identity
// Directory profile, stamped with ProfileCachedAt. They may be stale up to the
// row's age and are never consulted for authorization.
type Membership struct {
	ListID          uuid.UUID  `json:"list_id" db:"list_id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	Role            MemberRole `json:"role" db:"role"`
	JoinedAt        time.Time  `json:"joined_at" db:"joined_at"`
	Username        string     `json:"username,omitempty" db:"username"`
	DisplayName     string     `json:"display_name,omitempty" db:"display_name"`
	PhotoURL        string     `json:"photo_url,omitempty" db:"photo_url"`
	ProfileCachedAt time.Time  `json:"-" db:"profile_cached_at"`
}

// ──────────────────── Invitation ────────────────────

// Invitation is a pending entry ticket into a list's roster. Two kinds share
// the record: direct invites target a specific InviteeID; link invites carry a
// redemption Code and ExpiresAt instead. Link invites stay pending while live
// (redemption does not resolve them — they are reusable until capacity or
// expiry) and only revocation or the retention purge ends them.
type Invitation struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	ListID      uuid.UUID   `json:"list_id" db:"list_id"`
	ListOwnerID uuid.UUID   `json:"list_owner_id" db:"list_owner_id"`
	InviterID   uuid.UUID   `json:"inviter_id" db:"inviter_id"`
	Kind        InviteKind  `json:"kind" db:"kind"`
	State       InviteState `json:"state" db:"state"`
	InviteeID   *uuid.UUID  `json:"invitee_id,omitempty" db:"invitee_id"`
	Code        *string     `json:"code,omitempty" db:"code"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`

	// Write-time profile cache for the inviter (and invitee, when direct).
	InviterName string `json:"inviter_name,omitempty" db:"inviter_name"`
	InviteeName string `json:"invitee_name,omitempty" db:"invitee_name"`
	ListName    string `json:"list_name,omitempty" db:"list_name"`
}

// Expired reports whether a link invite's redemption window has passed.
// Direct invites never expire.
func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// ──────────────────── List items ────────────────────

// Movie is the opaque catalog payload attached when adding to a list. TMDBID
// is the idempotency key; the display fields come from the media catalog and
// are not interpreted here.
type Movie struct {
	TMDBID    int64     `json:"tmdb_id"`
	MediaType MediaType `json:"media_type"`
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`
	PosterURL string    `json:"poster_url,omitempty"`
}

// ListItem is a movie-in-list record, keyed by (ListID, TMDBID).
type ListItem struct {
	ListID    uuid.UUID `json:"list_id" db:"list_id"`
	TMDBID    int64     `json:"tmdb_id" db:"tmdb_id"`
	MediaType MediaType `json:"media_type" db:"media_type"`
	Title     string    `json:"title" db:"title"`
	Year      int       `json:"year,omitempty" db:"year"`
	PosterURL string    `json:"poster_url,omitempty" db:"poster_url"`
	AddedBy   uuid.UUID `json:"added_by" db:"added_by"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`

	// Notes maps member user id → that member's note on this item. Writes
	// are keyed by the writer's own id, so no merge conflicts are possible;
	// all members read all entries.
	Notes map[uuid.UUID]string `json:"notes,omitempty" db:"-"`
}

// ──────────────────── Fan-out batch ────────────────────

// ListSelection is one target of an add-movie fan-out.
type ListSelection struct {
	ListID uuid.UUID `json:"list_id"`
	Note   string    `json:"note,omitempty"`
}

// ListError is a per-list failure inside a batch result.
type ListError struct {
	ListID uuid.UUID `json:"list_id"`
	Code   string    `json:"code"`
}

// BatchResult reports the independent per-list outcomes of a fan-out add.
// Partial success is expected and surfaced, never hidden.
type BatchResult struct {
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	Errors       []ListError `json:"errors,omitempty"`
}

// ──────────────────── Events ────────────────────

type EventType string

const (
	EventMemberJoined EventType = "member.joined"
	EventMemberLeft   EventType = "member.left"
	EventOwnerChanged EventType = "owner.changed"
	EventItemAdded    EventType = "item.added"
	EventListDeleted  EventType = "list.deleted"
)

// Event is a list-scoped change notification fanned out to subscribed
// websocket clients.
type Event struct {
	Type   EventType `json:"type"`
	ListID uuid.UUID `json:"list_id"`
	UserID uuid.UUID `json:"user_id,omitempty"`
	TMDBID int64     `json:"tmdb_id,omitempty"`
	At     time.Time `json:"at"`
}
