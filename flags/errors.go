package flags

import (
	"errors"
)

// Validation errors short-circuit before any write; write-path errors after
// id allocation mean the flag may be partially applied and a retry is safe.
var (
	// ErrInvalidData indicates an unknown target type or malformed input.
	ErrInvalidData = errors.New("invalid data")

	// ErrInvalidTarget indicates the flagged target does not exist.
	ErrInvalidTarget = errors.New("invalid flag target")

	// ErrTargetGone indicates the target existed but has been removed.
	ErrTargetGone = errors.New("flag target has been removed")

	// ErrAlreadyFlagged indicates the reporter already flagged this target.
	ErrAlreadyFlagged = errors.New("target already flagged by reporter")

	// ErrNotFound indicates a mutation referenced a flag id with no record.
	// Reads return empty results instead.
	ErrNotFound = errors.New("no such flag")

	// ErrNotEnoughReputation indicates the reporter is below the flagging
	// threshold and has no edit rights on the target.
	ErrNotEnoughReputation = errors.New("not enough reputation to flag")

	// ErrUserBanned indicates the reporter is banned.
	ErrUserBanned = errors.New("user is banned")

	// ErrSerialization indicates a history or note payload could not be
	// encoded.
	ErrSerialization = errors.New("could not serialize entry")
)
