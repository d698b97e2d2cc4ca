package repository

import "errors"

// ErrNotFound is returned when a requested record does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// ErrAdminExists is returned when a second user would receive the admin role.
var ErrAdminExists = errors.New("admin already exists")
