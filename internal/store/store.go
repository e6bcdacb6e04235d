// Package store defines the persistence contracts for vacancies, companies
// and scan runs. Implementations live under internal/storage; this package
// must not import database drivers or concrete clients.
package store

import "errors"

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate signals that an insert hit a uniqueness constraint. Callers
// racing on company creation retry their lookup when they see it.
var ErrDuplicate = errors.New("record already exists")
