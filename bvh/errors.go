package bvh

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the hierarchy packages matches one
// of these via errors.Is.
var (
	ErrInvalidInput     = errors.New("bvh: invalid input")
	ErrInvalidOperation = errors.New("bvh: invalid operation")
	ErrCapacity         = errors.New("bvh: capacity exceeded")
)

var (
	ErrEmptyStore        = fmt.Errorf("%w: primitive store is empty", ErrInvalidInput)
	ErrNotTriangulated   = fmt.Errorf("%w: vertex count is not a multiple of 3", ErrInvalidInput)
	ErrStoreSizeMismatch = fmt.Errorf("%w: primitive store size does not match the tree", ErrInvalidInput)
	ErrInvalidLeafSize   = fmt.Errorf("%w: leaf size must be at least 1", ErrInvalidInput)
	ErrInvalidOptions    = fmt.Errorf("%w: invalid build options", ErrInvalidInput)

	ErrNotBuilt      = fmt.Errorf("%w: tree has not been built", ErrInvalidOperation)
	ErrNotRefittable = fmt.Errorf("%w: tree does not support refitting", ErrInvalidOperation)

	ErrLeafTooLarge         = fmt.Errorf("%w: leaf holds too many primitives for the target layout", ErrCapacity)
	ErrQuantizationOverflow = fmt.Errorf("%w: node extent cannot be quantized", ErrCapacity)
)
