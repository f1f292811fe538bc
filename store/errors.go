// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import "fmt"

// Code classifies the kind of failure a Store operation reports, mirroring
// the flat storage.ErrCode taxonomy: one enum plus predicate helpers, rather
// than a nested sum type per failure family.
type Code int

const (
	_ Code = iota

	// InvalidName: a non-empty name violates the validity rules in IsValidName.
	InvalidName
	// EntryNotFound: a required entry is absent.
	EntryNotFound
	// SettingNotFound: a required setting row is absent.
	SettingNotFound
	// NameAlreadyExists: Create collided with an existing entry.
	NameAlreadyExists
	// HasChildEntry: a non-recursive delete was blocked by a child.
	HasChildEntry
	// WrongValueType: Get* was called against an entry of a different type.
	WrongValueType
	// InvalidTransaction: a writer was requested while a reader is active.
	InvalidTransaction

	// InvalidConfiguration: version metadata is partially present.
	InvalidConfiguration
	// InvalidDelimiterSetting: the persisted delimiter setting is malformed.
	InvalidDelimiterSetting
	// VersionNotSupported: the store's major version exceeds this build's.
	VersionNotSupported

	// DatabaseError: the backing store reported a failure.
	DatabaseError
	// InvalidQuery specializes DatabaseError for read statements.
	InvalidQuery
	// InvalidInsert specializes DatabaseError for write statements.
	InvalidInsert
	// InvalidDelimiter: SetNewDelimiter's safety check failed.
	InvalidDelimiter

	// InconsistentData: CheckDataConsistency found a violation.
	InconsistentData
	// RootEntryMissing specializes InconsistentData: no id=0 row.
	RootEntryMissing
	// MultipleRootEntries specializes InconsistentData: >1 id=0 row. The
	// entries.id primary key makes this unreachable through this package's
	// own writes; it is kept in the taxonomy for a store opened against a
	// file that was corrupted by something other than this code.
	MultipleRootEntries
	// InvalidRootEntry specializes InconsistentData: id=0 row is malformed.
	InvalidRootEntry
	// InvalidEntryNameFound specializes InconsistentData: a name contains the delimiter.
	InvalidEntryNameFound
	// EntryIdNotUnique specializes InconsistentData: a duplicate id was found.
	EntryIdNotUnique
	// AbandonedEntry specializes InconsistentData: an id is unreachable from root.
	AbandonedEntry
	// InvalidEntryLinking specializes InconsistentData: an id was reached more than once.
	InvalidEntryLinking
	// UnknownEntryType specializes InconsistentData: a row's type tag is unrecognized.
	UnknownEntryType
)

var codeNames = map[Code]string{
	InvalidName:             "InvalidName",
	EntryNotFound:           "EntryNotFound",
	SettingNotFound:         "SettingNotFound",
	NameAlreadyExists:       "NameAlreadyExists",
	HasChildEntry:           "HasChildEntry",
	WrongValueType:          "WrongValueType",
	InvalidTransaction:      "InvalidTransaction",
	InvalidConfiguration:    "InvalidConfiguration",
	InvalidDelimiterSetting: "InvalidDelimiterSetting",
	VersionNotSupported:     "VersionNotSupported",
	DatabaseError:           "DatabaseError",
	InvalidQuery:            "InvalidQuery",
	InvalidInsert:           "InvalidInsert",
	InvalidDelimiter:        "InvalidDelimiter",
	InconsistentData:        "InconsistentData",
	RootEntryMissing:        "RootEntryMissing",
	MultipleRootEntries:     "MultipleRootEntries",
	InvalidRootEntry:        "InvalidRootEntry",
	InvalidEntryNameFound:   "InvalidEntryNameFound",
	EntryIdNotUnique:        "EntryIdNotUnique",
	AbandonedEntry:          "AbandonedEntry",
	InvalidEntryLinking:     "InvalidEntryLinking",
	UnknownEntryType:        "UnknownEntryType",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the error type every exported Store operation returns on
// failure: a machine-readable Code, a human-readable Message, and an
// optional wrapped Cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("store: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is lets errors.Is(err, &store.Error{Code: store.EntryNotFound}) style
// matching work on a bare Code-only sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the Code of err if it is (or wraps) a *Error, and false
// otherwise.
func CodeOf(err error) (Code, bool) {
	var se *Error
	if ok := asError(err, &se); ok {
		return se.Code, true
	}
	return 0, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if se, ok := err.(*Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func hasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsInvalidName reports whether err is an InvalidName error.
func IsInvalidName(err error) bool { return hasCode(err, InvalidName) }

// IsEntryNotFound reports whether err is an EntryNotFound error.
func IsEntryNotFound(err error) bool { return hasCode(err, EntryNotFound) }

// IsSettingNotFound reports whether err is a SettingNotFound error.
func IsSettingNotFound(err error) bool { return hasCode(err, SettingNotFound) }

// IsNameAlreadyExists reports whether err is a NameAlreadyExists error.
func IsNameAlreadyExists(err error) bool { return hasCode(err, NameAlreadyExists) }

// IsHasChildEntry reports whether err is a HasChildEntry error.
func IsHasChildEntry(err error) bool { return hasCode(err, HasChildEntry) }

// IsWrongValueType reports whether err is a WrongValueType error.
func IsWrongValueType(err error) bool { return hasCode(err, WrongValueType) }

// IsInvalidTransaction reports whether err is an InvalidTransaction error.
func IsInvalidTransaction(err error) bool { return hasCode(err, InvalidTransaction) }

// IsVersionNotSupported reports whether err is a VersionNotSupported error.
func IsVersionNotSupported(err error) bool { return hasCode(err, VersionNotSupported) }

// IsInvalidConfiguration reports whether err is an InvalidConfiguration error.
func IsInvalidConfiguration(err error) bool { return hasCode(err, InvalidConfiguration) }

// IsDatabaseError reports whether err is a DatabaseError (or a
// specialization of one).
func IsDatabaseError(err error) bool {
	c, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch c {
	case DatabaseError, InvalidQuery, InvalidInsert, InvalidDelimiter:
		return true
	default:
		return false
	}
}

// IsInconsistentData reports whether err is an InconsistentData error (or
// any of its specializations).
func IsInconsistentData(err error) bool {
	c, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch c {
	case InconsistentData, RootEntryMissing, MultipleRootEntries, InvalidRootEntry,
		InvalidEntryNameFound, EntryIdNotUnique, AbandonedEntry, InvalidEntryLinking, UnknownEntryType:
		return true
	default:
		return false
	}
}
