package curve

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519 is the Montgomery form of Curve25519, acting on u-coordinates as in RFC 7748.
//
// Scalars are clamped, so every product lands in the prime order subgroup
// and small order inputs yield the all-zero output, which is rejected.
type X25519 struct{}

func (X25519) Name() string { return "x25519" }

func (X25519) ScalarBytes() int { return curve25519.ScalarSize }

func (X25519) PointBytes() int { return curve25519.PointSize }

func (X25519) NewPoint() Point { return new(x25519Point) }

func (X25519) NewBasePoint() Point {
	p := new(x25519Point)
	copy(p.u[:], curve25519.Basepoint)
	return p
}

func (X25519) NewScalar() Scalar { return new(x25519Scalar) }

// ScalarFromHash clamps the first 32 bytes of h.
func (X25519) ScalarFromHash(h []byte) Scalar {
	s := new(x25519Scalar)
	copy(s.k[:], h)
	s.clamp()
	return s
}

type x25519Scalar struct {
	k [curve25519.ScalarSize]byte
}

func x25519CastScalar(generic Scalar) *x25519Scalar {
	out, ok := generic.(*x25519Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to x25519Scalar: %v", generic))
	}
	return out
}

func (s *x25519Scalar) clamp() {
	s.k[0] &= 248
	s.k[31] &= 127
	s.k[31] |= 64
}

func (*x25519Scalar) Curve() Curve { return X25519{} }

func (s *x25519Scalar) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(s.k))
	copy(out, s.k[:])
	return out, nil
}

func (s *x25519Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != curve25519.ScalarSize {
		return fmt.Errorf("%w: x25519 scalar length %d", ErrInvalidScalar, len(data))
	}
	copy(s.k[:], data)
	s.clamp()
	return nil
}

func (s *x25519Scalar) Equal(that Scalar) bool {
	other := x25519CastScalar(that)
	return subtle.ConstantTimeCompare(s.k[:], other.k[:]) == 1
}

func (s *x25519Scalar) IsZero() bool {
	var zero [curve25519.ScalarSize]byte
	return subtle.ConstantTimeCompare(s.k[:], zero[:]) == 1
}

func (s *x25519Scalar) Act(that Point) (Point, error) {
	p, ok := that.(*x25519Point)
	if !ok {
		return nil, fmt.Errorf("%w: not an x25519 point", ErrInvalidPoint)
	}
	u, err := curve25519.X25519(s.k[:], p.u[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	out := new(x25519Point)
	copy(out.u[:], u)
	return out, nil
}

func (s *x25519Scalar) ActOnBase() Point {
	u, err := curve25519.X25519(s.k[:], curve25519.Basepoint)
	if err != nil {
		panic(fmt.Sprintf("x25519: base point multiplication failed: %v", err))
	}
	out := new(x25519Point)
	copy(out.u[:], u)
	return out
}

type x25519Point struct {
	u [curve25519.PointSize]byte
}

// smallOrderProbe is any scalar; clamped, it is a multiple of the cofactor
// and sends every point of small order to zero.
var smallOrderProbe = func() []byte {
	k := make([]byte, curve25519.ScalarSize)
	k[0] = 1
	return k
}()

func (*x25519Point) Curve() Curve { return X25519{} }

func (p *x25519Point) MarshalBinary() ([]byte, error) {
	if p.IsIdentity() {
		return nil, fmt.Errorf("%w: x25519 point of small order", ErrInvalidPoint)
	}
	out := make([]byte, len(p.u))
	copy(out, p.u[:])
	return out, nil
}

// UnmarshalBinary rejects wrong lengths, non-canonical encodings (top bit set, or u >= p),
// and points of small order, including all-zero.
func (p *x25519Point) UnmarshalBinary(data []byte) error {
	if len(data) != curve25519.PointSize {
		return fmt.Errorf("%w: x25519 point length %d", ErrInvalidPoint, len(data))
	}
	if data[curve25519.PointSize-1]&0x80 != 0 {
		return fmt.Errorf("%w: x25519 point has top bit set", ErrInvalidPoint)
	}
	if !x25519Reduced(data) {
		return fmt.Errorf("%w: x25519 point not reduced modulo p", ErrInvalidPoint)
	}
	if _, err := curve25519.X25519(smallOrderProbe, data); err != nil {
		return fmt.Errorf("%w: x25519 point of small order", ErrInvalidPoint)
	}
	copy(p.u[:], data)
	return nil
}

func (p *x25519Point) Equal(that Point) bool {
	other, ok := that.(*x25519Point)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(p.u[:], other.u[:]) == 1
}

// IsIdentity reports whether p is of small order, which is what the identity
// looks like on the u-line.
func (p *x25519Point) IsIdentity() bool {
	_, err := curve25519.X25519(smallOrderProbe, p.u[:])
	return err != nil
}

// x25519Reduced reports whether the little-endian u, top bit clear, is below p = 2^255 - 19.
// The only values in [p, 2^255) are 0x7fff...ffed to 0x7fff...ffff.
func x25519Reduced(u []byte) bool {
	if u[31] != 0x7f {
		return true
	}
	for _, b := range u[1:31] {
		if b != 0xff {
			return true
		}
	}
	return u[0] < 0xed
}
