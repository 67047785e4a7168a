// Package pkgroutine runs background work with bounded concurrency. Panics are
// recovered and logged; errors are collected until the next Wait.
package pkgroutine
