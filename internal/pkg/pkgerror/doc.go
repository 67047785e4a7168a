// Package pkgerror defines the application error type and its sentinels.
//
// An Error carries a user-facing message, a type, a stable code and optional
// details (for example the missing columns of an upload). The code decides the
// HTTP status at the edge; the wrapped cause stays available to errors.Is and
// errors.As.
package pkgerror
