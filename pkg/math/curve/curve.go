package curve

import (
	"encoding"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPoint is returned for encodings that are malformed or describe a degenerate element.
	ErrInvalidPoint = errors.New("curve: invalid point")
	// ErrInvalidScalar is returned for malformed scalar encodings.
	ErrInvalidScalar = errors.New("curve: invalid scalar")
	// ErrUnknownGroup is returned by FromName.
	ErrUnknownGroup = errors.New("curve: unknown group")
)

// Curve is a group in which the ceremony multiplies points by scalars.
type Curve interface {
	NewPoint() Point
	NewBasePoint() Point
	NewScalar() Scalar
	Name() string
	ScalarBytes() int
	PointBytes() int
	// ScalarFromHash maps uniformly random bytes to a valid secret scalar.
	ScalarFromHash(h []byte) Scalar
}

// Scalar is a secret multiplier.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Equal(Scalar) bool
	IsZero() bool
	// Act returns s * p, and fails with ErrInvalidPoint if the result is degenerate.
	Act(Point) (Point, error)
	ActOnBase() Point
}

// Point is a group element. Encodings are fixed width and equality is byte-exact.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Equal(Point) bool
	IsIdentity() bool
}

// FromName returns the group registered under name.
func FromName(name string) (Curve, error) {
	switch name {
	case X25519{}.Name():
		return X25519{}, nil
	case Secp256k1{}.Name():
		return Secp256k1{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
}

// FromHash converts a hash value to a Scalar of group.
func FromHash(group Curve, h []byte) Scalar {
	return group.ScalarFromHash(h)
}

// DecodePoint parses data as a point of group.
func DecodePoint(group Curve, data []byte) (Point, error) {
	p := group.NewPoint()
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}

// Multiply decodes data as a point of the scalar's group and returns the encoding of s * point.
func Multiply(s Scalar, data []byte) ([]byte, error) {
	p, err := DecodePoint(s.Curve(), data)
	if err != nil {
		return nil, err
	}
	out, err := s.Act(p)
	if err != nil {
		return nil, err
	}
	return out.MarshalBinary()
}
