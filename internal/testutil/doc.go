// Package testutil provides shared fixtures for archive tests: deterministic
// item metadata and access to an optional PostgreSQL test database.
package testutil
