package graph

import (
	"errors"
	"fmt"
)

// Error represents a failure of a graph engine operation.
//
// Every operation fails with one of a closed set of codes, grouped into
// four classes:
//   - Validation: rejected before any write; safe to retry after
//     correcting input
//   - NotFound: caller error or stale reference
//   - Conflict: the precondition was consumed by a prior successful
//     operation (distinct from NotFound so a client can say "already
//     undone" rather than "nothing found")
//   - Consistency: an internal invariant broke mid-transaction; always
//     rolled back, never partially applied
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when applicable.
	RecordID int64

	// LinkID identifies the affected link, when applicable.
	LinkID int64

	// Predicate identifies the affected predicate slug, when applicable.
	Predicate string
}

// Code categorizes engine errors.
type Code string

const (
	// CodeSelfLinkRejected indicates a link whose canonical form would
	// connect a record to itself.
	CodeSelfLinkRejected Code = "SELF_LINK_REJECTED"

	// CodeIdenticalMergeTargets indicates a merge of a record into itself.
	CodeIdenticalMergeTargets Code = "IDENTICAL_MERGE_TARGETS"

	// CodeNonReversiblePredicate indicates a non-canonical predicate
	// with no canonical inverse.
	CodeNonReversiblePredicate Code = "NON_REVERSIBLE_PREDICATE"

	// CodeRecordNotFound indicates a referenced record doesn't exist.
	CodeRecordNotFound Code = "RECORD_NOT_FOUND"

	// CodeLinkNotFound indicates an update-by-id referenced a missing link.
	CodeLinkNotFound Code = "LINK_NOT_FOUND"

	// CodePredicateNotFound indicates an unknown predicate slug.
	CodePredicateNotFound Code = "PREDICATE_NOT_FOUND"

	// CodeTargetMissing indicates an undo whose target record was itself
	// later deleted or merged away.
	CodeTargetMissing Code = "TARGET_MISSING"

	// CodeAlreadyUndone indicates a merge snapshot that was already
	// applied once; a merge cannot be undone twice.
	CodeAlreadyUndone Code = "ALREADY_UNDONE"

	// CodeMergeInconsistent indicates state changed underneath a merge
	// mid-transaction. The transaction is rolled back; the incident is
	// logged as a correctness incident.
	CodeMergeInconsistent Code = "MERGE_INCONSISTENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Predicate != "":
		return fmt.Sprintf("%s: %s (predicate=%s)", e.Code, e.Message, e.Predicate)
	case e.LinkID != 0:
		return fmt.Sprintf("%s: %s (link=%d)", e.Code, e.Message, e.LinkID)
	case e.RecordID != 0:
		return fmt.Sprintf("%s: %s (record=%d)", e.Code, e.Message, e.RecordID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// HasCode returns true if the error carries the given engine code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code Code) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// IsValidation returns true for errors rejected before any write.
func IsValidation(err error) bool {
	return HasCode(err, CodeSelfLinkRejected) ||
		HasCode(err, CodeIdenticalMergeTargets) ||
		HasCode(err, CodeNonReversiblePredicate)
}

// IsNotFound returns true for stale or unknown references.
func IsNotFound(err error) bool {
	return HasCode(err, CodeRecordNotFound) ||
		HasCode(err, CodeLinkNotFound) ||
		HasCode(err, CodePredicateNotFound) ||
		HasCode(err, CodeTargetMissing)
}

// IsConflict returns true when a precondition was consumed by a prior
// successful operation.
func IsConflict(err error) bool {
	return HasCode(err, CodeAlreadyUndone)
}

// IsConsistency returns true for mid-transaction invariant violations.
func IsConsistency(err error) bool {
	return HasCode(err, CodeMergeInconsistent)
}

func newSelfLinkError(recordID int64) *Error {
	return &Error{
		Code:     CodeSelfLinkRejected,
		Message:  "link would connect a record to itself",
		RecordID: recordID,
	}
}

func newIdenticalTargetsError(id int64) *Error {
	return &Error{
		Code:     CodeIdenticalMergeTargets,
		Message:  "merge source and target are the same record",
		RecordID: id,
	}
}

func newRecordNotFoundError(id int64) *Error {
	return &Error{
		Code:     CodeRecordNotFound,
		Message:  "record does not exist",
		RecordID: id,
	}
}

func newLinkNotFoundError(id int64) *Error {
	return &Error{
		Code:    CodeLinkNotFound,
		Message: "link does not exist",
		LinkID:  id,
	}
}

func newPredicateNotFoundError(slug string) *Error {
	return &Error{
		Code:      CodePredicateNotFound,
		Message:   "predicate is not in the catalog",
		Predicate: slug,
	}
}

func newNonReversibleError(slug string) *Error {
	return &Error{
		Code:      CodeNonReversiblePredicate,
		Message:   "non-canonical predicate has no canonical inverse",
		Predicate: slug,
	}
}

func newTargetMissingError(id int64) *Error {
	return &Error{
		Code:     CodeTargetMissing,
		Message:  "merge target no longer exists",
		RecordID: id,
	}
}

func newAlreadyUndoneError(id int64) *Error {
	return &Error{
		Code:     CodeAlreadyUndone,
		Message:  "merge was already undone",
		RecordID: id,
	}
}

func newMergeInconsistentError(id int64, detail string) *Error {
	return &Error{
		Code:     CodeMergeInconsistent,
		Message:  detail,
		RecordID: id,
	}
}
