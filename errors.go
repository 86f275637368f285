package galloc

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory wraps an OS refusal of a break extension or a new mapping.
// It is surfaced as an ordinary error rather than a process abort, since a
// Go caller already has a channel for "I could not get the memory" and does
// not need the process terminated on its behalf.
var ErrOutOfMemory = errors.New("galloc: out of memory")

// ErrFreedPointer is returned by Realloc/UnsafeRealloc when asked to resize
// a pointer that has already been freed, so a caller can tell "nothing to
// do" apart from "you handed me a stale pointer" instead of both silently
// resolving to a nil result.
var ErrFreedPointer = errors.New("galloc: realloc of a freed pointer")

// ErrOverflow is returned by Calloc/UnsafeCalloc when nmemb*size overflows.
var ErrOverflow = errors.New("galloc: calloc size overflow")

func wrapOSErr(op string, err error) error {
	return fmt.Errorf("galloc: %s: %w", op, errors.Join(ErrOutOfMemory, err))
}
