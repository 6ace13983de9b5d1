package databundle

import "fmt"

// Tensor is a shaped numeric array carried as the main data of an audio or
// framed entry. Audio payloads use float32 samples, framed payloads use raw
// bytes; exactly one of the two backing slices is set.
//
// A tensor wraps the caller's slice without copying. Mutating the backing
// slice after the tensor has been bound to a bundle is undefined and must be
// avoided by the caller.
type Tensor struct {
	shape  []int
	floats []float32
	bytes  []byte
}

// NewFloatTensor wraps float32 samples with the given shape. The product of
// the shape dimensions must equal len(data).
func NewFloatTensor(shape []int, data []float32) (*Tensor, error) {
	if n := numElems(shape); n != len(data) {
		return nil, fmt.Errorf("%w: shape %v wants %d elements, have %d", ErrInvalidTensor, shape, n, len(data))
	}
	return &Tensor{shape: append([]int(nil), shape...), floats: data}, nil
}

// NewByteTensor wraps raw bytes with the given shape. The product of the
// shape dimensions must equal len(data).
func NewByteTensor(shape []int, data []byte) (*Tensor, error) {
	if n := numElems(shape); n != len(data) {
		return nil, fmt.Errorf("%w: shape %v wants %d elements, have %d", ErrInvalidTensor, shape, n, len(data))
	}
	return &Tensor{shape: append([]int(nil), shape...), bytes: data}, nil
}

// Shape returns the tensor's dimensions. The returned slice must not be mutated.
func (t *Tensor) Shape() []int { return t.shape }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// NumElems returns the total element count.
func (t *Tensor) NumElems() int { return numElems(t.shape) }

// Floats returns the float32 payload, or nil for byte-backed tensors.
func (t *Tensor) Floats() []float32 { return t.floats }

// Bytes returns the byte payload, or nil for float-backed tensors.
func (t *Tensor) Bytes() []byte { return t.bytes }

// Squeeze returns a tensor sharing the same payload with all singleton
// dimensions removed. A scalar-like tensor keeps a single dimension.
func (t *Tensor) Squeeze() *Tensor {
	shape := make([]int, 0, len(t.shape))
	for _, d := range t.shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	if len(shape) == 0 {
		shape = append(shape, numElems(t.shape))
	}
	return &Tensor{shape: shape, floats: t.floats, bytes: t.bytes}
}

// ExpandDim returns a tensor sharing the same payload with a dimension of
// size one inserted at the given axis.
func (t *Tensor) ExpandDim(axis int) *Tensor {
	if axis < 0 {
		axis = 0
	}
	if axis > len(t.shape) {
		axis = len(t.shape)
	}
	shape := make([]int, 0, len(t.shape)+1)
	shape = append(shape, t.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[axis:]...)
	return &Tensor{shape: shape, floats: t.floats, bytes: t.bytes}
}

func numElems(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0
		}
		n *= d
	}
	return n
}
