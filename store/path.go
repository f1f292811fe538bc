// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import "strings"

// DefaultDelimiter is used when opening a brand-new store that does not yet
// have a NameDelimiter setting and the caller did not request a different one.
const DefaultDelimiter = '.'

// IsValidName reports whether name is non-empty, does not start or end with
// delim, and contains no two adjacent occurrences of delim. It performs no
// Unicode normalization or case folding: validation is character-exact.
func IsValidName(name string, delim byte) bool {
	if name == "" {
		return false
	}
	if name[0] == delim || name[len(name)-1] == delim {
		return false
	}
	for i := 0; i < len(name)-1; i++ {
		if name[i] == delim && name[i+1] == delim {
			return false
		}
	}
	return true
}

// ParseName splits a valid name into its ordered, non-empty local segments.
// The caller must have already validated name with IsValidName; ParseName
// does not re-validate.
func ParseName(name string, delim byte) []string {
	return strings.Split(name, string(delim))
}

// PathToName joins segments back into a single dotted name using delim.
func PathToName(segments []string, delim byte) string {
	return strings.Join(segments, string(delim))
}
