package lpf2

import (
	"errors"
	"fmt"
)

var (
	// ErrSysMessage indicates a payload access on a SYS message.
	ErrSysMessage = errors.New("sys message has no payload")
	// ErrDataType indicates an unknown item data type.
	ErrDataType = errors.New("unknown data type")
)

// OutOfRangeError is returned when an access crosses the payload boundary.
type OutOfRangeError struct {
	Offset int
	Size   int
	Len    int
}

// Error implements error.
func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("payload access [%d:%d] out of range %d", e.Offset, e.Offset+e.Size, e.Len)
}
