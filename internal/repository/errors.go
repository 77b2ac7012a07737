// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// services and handlers to distinguish between failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. It replaces
// sql.ErrNoRows at the repository boundary so callers never depend on the
// driver package.
var ErrNotFound = errors.New("not found")
