package yolostream

import "errors"

var (
	// ErrInvalidInput is returned when a frame has zero area, a tensor has a
	// malformed shape, or a size parameter is out of range
	ErrInvalidInput = errors.New("invalid input")

	// ErrClassIndexOutOfRange is returned when a detection's class ID has no
	// entry in the ClassTable.  The frame it belongs to is passed through
	// unannotated
	ErrClassIndexOutOfRange = errors.New("class index out of range")
)
