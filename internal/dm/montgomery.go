package dm

import "math/big"

// field2255_19 is the field modulus 2^255 - 19 that both Edwards25519 and
// Curve25519 operate over.
var field2255_19 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))

// montgomeryUFromEdwardsY computes the Montgomery u-coordinate from an
// Edwards25519 y-coordinate via the standard birational map
// u = (1 + y) / (1 - y) mod p, letting a stdlib Ed25519 public key (which is
// just the encoded y-coordinate with a sign bit) be reused for an X25519
// Diffie-Hellman exchange.
func montgomeryUFromEdwardsY(edY [32]byte, u *[32]byte) error {
	// The sign bit (top bit of the last byte) encodes the x-coordinate's
	// parity and plays no part in the Montgomery u-coordinate.
	y := make([]byte, 32)
	copy(y, edY[:])
	y[31] &= 0x7f
	reverse(y)

	yInt := new(big.Int).SetBytes(y)
	yInt.Mod(yInt, field2255_19)

	one := big.NewInt(1)
	num := new(big.Int).Add(one, yInt)
	num.Mod(num, field2255_19)

	den := new(big.Int).Sub(one, yInt)
	den.Mod(den, field2255_19)
	denInv := new(big.Int).ModInverse(den, field2255_19)
	if denInv == nil {
		return errInvalidPoint
	}

	uInt := new(big.Int).Mul(num, denInv)
	uInt.Mod(uInt, field2255_19)

	uBytes := uInt.FillBytes(make([]byte, 32))
	reverse(uBytes)
	copy(u[:], uBytes)
	return nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

var errInvalidPoint = errPoint("dm: edwards point has no corresponding montgomery u-coordinate")

type errPoint string

func (e errPoint) Error() string { return string(e) }
