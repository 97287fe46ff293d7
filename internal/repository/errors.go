package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrDomainTaken indicates the domain unique index rejected an insert
	// or update because a live booking already holds the domain.
	ErrDomainTaken = errors.New("repository: domain already in use")
	// ErrPortTaken indicates the port unique index rejected an insert or
	// update because a live booking already holds the port.
	ErrPortTaken = errors.New("repository: port already in use")
	// ErrDuplicate indicates a primary key or unique constraint conflict
	// not covered by the identity indexes.
	ErrDuplicate = errors.New("repository: duplicate entity")
)
