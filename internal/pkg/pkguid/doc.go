// Package pkguid generates identifiers. Dataset ids are snowflake numbers
// (time ordered, unique across restarts of a node); correlation and event ids
// are UUIDv7 strings. Callers depend on the StringID and NumberID interfaces
// so tests can substitute deterministic generators.
package pkguid
