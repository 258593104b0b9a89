// Package store defines interfaces for persistence dependencies (jobs, pages,
// scores, issues, competitors). Implementations live in internal/storage; this
// package must not import database drivers or concrete clients.
package store
