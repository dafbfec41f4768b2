package round

import (
	"encoding/binary"
	"io"
	"strconv"
)

// Number is the index of the current round of a ceremony.
// 0 is the round in which every participant publishes its public point,
// rounds 1 to N-2 are relay rounds.
type Number uint16

// WriteTo implements io.WriterTo interface.
func (i Number) WriteTo(w io.Writer) (int64, error) {
	err := binary.Write(w, binary.BigEndian, uint16(i))
	if err != nil {
		return 0, err
	}
	return 2, nil
}

// Domain implements hash.WriterToWithDomain.
func (Number) Domain() string {
	return "Round Number"
}

func (i Number) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

// Last returns the number of the final round of a ring of n participants.
func Last(n int) Number {
	if n < 2 {
		return 0
	}
	return Number(n - 2)
}
