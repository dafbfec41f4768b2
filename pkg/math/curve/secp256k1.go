package curve

import (
	"encoding/hex"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var secp256k1Order = func() *saferith.Modulus {
	b, err := hex.DecodeString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141")
	if err != nil {
		panic(err)
	}
	return saferith.ModulusFromBytes(b)
}()

// Secp256k1 is the prime order curve used by Bitcoin and Ethereum.
// Points are encoded compressed, in 33 bytes.
type Secp256k1 struct{}

func (Secp256k1) Name() string { return "secp256k1" }

func (Secp256k1) ScalarBytes() int { return 32 }

func (Secp256k1) PointBytes() int { return secp256k1.PubKeyBytesLenCompressed }

func (Secp256k1) NewPoint() Point { return new(secp256k1Point) }

func (Secp256k1) NewBasePoint() Point {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	out := new(secp256k1Point)
	secp256k1.ScalarBaseMultNonConst(&one, &out.value)
	return out
}

func (Secp256k1) NewScalar() Scalar { return new(secp256k1Scalar) }

// Order returns the order of the group.
func (Secp256k1) Order() *saferith.Modulus { return secp256k1Order }

// ScalarFromHash converts a hash value to a Scalar.
//
// There is some disagreement about how this should be done.
// [NSA] suggests that this is done in the obvious
// manner, but [SECG] truncates the hash to the bit-length of the curve order
// first. We follow [SECG] because that's what OpenSSL does. Additionally,
// OpenSSL right shifts excess bits from the number if the hash is too large
// and we mirror that too.
//
// A zero result is replaced by one, so the scalar is always invertible.
func (g Secp256k1) ScalarFromHash(h []byte) Scalar {
	order := g.Order()
	orderBits := order.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(h) > orderBytes {
		h = h[:orderBytes]
	}
	s := new(saferith.Nat).SetBytes(h)
	excess := len(h)*8 - orderBits
	if excess > 0 {
		s.Rsh(s, uint(excess), -1)
	}
	s.Mod(s, order)
	out := new(secp256k1Scalar)
	out.value.SetByteSlice(s.FillBytes(make([]byte, orderBytes)))
	if out.value.IsZero() {
		out.value.SetInt(1)
	}
	return out
}

type secp256k1Scalar struct {
	value secp256k1.ModNScalar
}

func secp256k1CastScalar(generic Scalar) *secp256k1Scalar {
	out, ok := generic.(*secp256k1Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Scalar: %v", generic))
	}
	return out
}

func (*secp256k1Scalar) Curve() Curve { return Secp256k1{} }

func (s *secp256k1Scalar) MarshalBinary() ([]byte, error) {
	data := s.value.Bytes()
	return data[:], nil
}

func (s *secp256k1Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("%w: secp256k1 scalar length %d", ErrInvalidScalar, len(data))
	}
	var exactData [32]byte
	copy(exactData[:], data)
	if s.value.SetBytes(&exactData) != 0 {
		return fmt.Errorf("%w: secp256k1 scalar overflows the order", ErrInvalidScalar)
	}
	return nil
}

func (s *secp256k1Scalar) Equal(that Scalar) bool {
	other := secp256k1CastScalar(that)
	return s.value.Equals(&other.value)
}

func (s *secp256k1Scalar) IsZero() bool {
	return s.value.IsZero()
}

func (s *secp256k1Scalar) Act(that Point) (Point, error) {
	p, ok := that.(*secp256k1Point)
	if !ok {
		return nil, fmt.Errorf("%w: not a secp256k1 point", ErrInvalidPoint)
	}
	out := new(secp256k1Point)
	secp256k1.ScalarMultNonConst(&s.value, &p.value, &out.value)
	if out.IsIdentity() {
		return nil, fmt.Errorf("%w: product is the identity", ErrInvalidPoint)
	}
	out.value.ToAffine()
	return out, nil
}

func (s *secp256k1Scalar) ActOnBase() Point {
	out := new(secp256k1Point)
	secp256k1.ScalarBaseMultNonConst(&s.value, &out.value)
	out.value.ToAffine()
	return out
}

type secp256k1Point struct {
	value secp256k1.JacobianPoint
}

func (*secp256k1Point) Curve() Curve { return Secp256k1{} }

func (p *secp256k1Point) MarshalBinary() ([]byte, error) {
	if p.IsIdentity() {
		return nil, fmt.Errorf("%w: the identity has no compressed encoding", ErrInvalidPoint)
	}
	affine := p.value
	affine.ToAffine()
	return secp256k1.NewPublicKey(&affine.X, &affine.Y).SerializeCompressed(), nil
}

func (p *secp256k1Point) UnmarshalBinary(data []byte) error {
	if len(data) != secp256k1.PubKeyBytesLenCompressed {
		return fmt.Errorf("%w: secp256k1 point length %d", ErrInvalidPoint, len(data))
	}
	key, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	key.AsJacobian(&p.value)
	return nil
}

func (p *secp256k1Point) Equal(that Point) bool {
	other, ok := that.(*secp256k1Point)
	if !ok {
		return false
	}
	if p.IsIdentity() || other.IsIdentity() {
		return p.IsIdentity() && other.IsIdentity()
	}
	a, b := p.value, other.value
	a.ToAffine()
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

func (p *secp256k1Point) IsIdentity() bool {
	return (p.value.X.IsZero() && p.value.Y.IsZero()) || p.value.Z.IsZero()
}
