package lists

import "errors"

// Error is an expected, user-facing outcome of a list operation. Code is the
// stable machine identifier the API layer maps to a status and the UI maps to
// human copy; these are results, not faults.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrNotAMember             = &Error{Code: "NOT_A_MEMBER", Message: "not a member of this list"}
	ErrAlreadyMember          = &Error{Code: "ALREADY_MEMBER", Message: "user is already a member of this list"}
	ErrCapacityExceeded       = &Error{Code: "CAPACITY_EXCEEDED", Message: "list already has the maximum number of members"}
	ErrDuplicatePendingInvite = &Error{Code: "DUPLICATE_PENDING_INVITE", Message: "a pending invite for this user already exists"}
	ErrInviteNotFound         = &Error{Code: "INVITE_NOT_FOUND", Message: "invite not found"}
	ErrInviteAlreadyResolved  = &Error{Code: "INVITE_ALREADY_RESOLVED", Message: "invite has already been resolved"}
	ErrNotInvitee             = &Error{Code: "NOT_INVITEE", Message: "invite is addressed to a different user"}
	ErrCannotRemoveOwner      = &Error{Code: "CANNOT_REMOVE_OWNER", Message: "the owner cannot be removed from their list"}
	ErrCannotDeleteDefault    = &Error{Code: "CANNOT_DELETE_DEFAULT_LIST", Message: "the default list cannot be deleted"}
	ErrListNotFound           = &Error{Code: "LIST_NOT_FOUND", Message: "list not found"}
	ErrNotOwner               = &Error{Code: "NOT_OWNER", Message: "only the list owner may do this"}
	ErrStorageConflict        = &Error{Code: "STORAGE_CONFLICT", Message: "concurrent update on this list, retry exhausted"}
)

// ErrorCode extracts the stable code from err, or "" when err is not one of
// the taxonomy values above.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
