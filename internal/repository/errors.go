// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver error strings. For example, ErrPartnerImmutable
// signals that a caller tried to rewrite the couple link through the
// generic profile-update path, which is forbidden at the storage
// boundary regardless of who the caller is.
package repository

import "errors"

// ErrNameExists is returned when an insert collides with an existing
// user name. Handlers should translate this into a generic duplicate
// response without naming the colliding field.
var ErrNameExists = errors.New("name already exists")

// ErrEmailExists is returned when an insert collides with an existing
// email address.
var ErrEmailExists = errors.New("email already exists")

// ErrPartnerImmutable is returned when an update attempts to touch
// partner_id. Partner links are established once by provisioning and
// can never be changed afterwards, so this is rejected before any SQL
// is executed.
var ErrPartnerImmutable = errors.New("partner link is immutable")

// ErrUnknownField is returned when the generic update path receives a
// column outside its allowlist.
var ErrUnknownField = errors.New("unknown update field")

// ErrPartnerConflict is returned when provisioning tries to link a
// user that is already linked to a different partner.
var ErrPartnerConflict = errors.New("user already linked to another partner")
