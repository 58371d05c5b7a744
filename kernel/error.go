package kernel

// Error describes a kernel error. All kernel errors are defined as global
// variables that are pointers to the Error structure. This requirement stems
// from the fact that the Go allocator is not available to us until the heap
// subsystem is up, so we cannot use errors.New on any path that can run
// before that point.
type Error struct {
	// Module is the name of the sub-system where the error originated.
	Module string

	// Message describes the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
