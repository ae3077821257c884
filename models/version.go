// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// EditVersion identifies one version of an article. It is the first 16 bytes
// of the SHA-256 of the edit diff, stored as a UUID.
type EditVersion struct {
	uuid.UUID
}

// NewEditVersion derives the version for a diff
func NewEditVersion(diff string) EditVersion {
	sum := sha256.Sum256([]byte(diff))
	var id uuid.UUID
	copy(id[:], sum[:16])
	return EditVersion{UUID: id}
}

// DefaultEditVersion is the version of an article without edits
func DefaultEditVersion() EditVersion {
	return NewEditVersion("")
}

// ParseEditVersion parses the UUID text form
func ParseEditVersion(s string) (EditVersion, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EditVersion{}, fmt.Errorf("invalid edit version %q: %w", s, err)
	}
	return EditVersion{UUID: id}, nil
}

// Hash returns the version as 32 lowercase hex characters
func (v EditVersion) Hash() string {
	return hex.EncodeToString(v.UUID[:])
}

// Value stores the version in its UUID text form, which both postgres UUID
// and sqlite TEXT columns accept.
func (v EditVersion) Value() (driver.Value, error) {
	return v.UUID.String(), nil
}

// Scan accepts string and []byte column values
func (v *EditVersion) Scan(src interface{}) error {
	return v.UUID.Scan(src)
}
