package pkguid

// StringID generates unique string identifiers, such as correlation and event ids.
type StringID interface {
	Generate() string
}

// NumberID generates unique, roughly time-ordered int64 identifiers, such as
// dataset ids.
type NumberID interface {
	Generate() int64
}
