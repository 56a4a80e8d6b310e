package types

import (
	"errors"
	"fmt"
	"strings"
)

// BIP-173 character set.
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32Gen = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

// Bech32 decoding errors.
var (
	ErrBech32Checksum = errors.New("bech32: invalid checksum")
	ErrBech32Format   = errors.New("bech32: malformed string")
)

// Bech32Encode encodes a human-readable part and data bytes into a bech32 string.
func Bech32Encode(hrp string, data []byte) (string, error) {
	if hrp == "" {
		return "", fmt.Errorf("%w: empty HRP", ErrBech32Format)
	}
	for _, c := range hrp {
		if c < 33 || c > 126 {
			return "", fmt.Errorf("%w: invalid HRP character %q", ErrBech32Format, c)
		}
	}

	values, err := regroup(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	values = append(values, bech32Checksum(hrp, values)...)

	var sb strings.Builder
	sb.Grow(len(hrp) + 1 + len(values))
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, v := range values {
		sb.WriteByte(bech32Charset[v])
	}
	return sb.String(), nil
}

// Bech32Decode splits a bech32 string into its human-readable part and data bytes.
func Bech32Decode(s string) (string, []byte, error) {
	lower := strings.ToLower(s)
	if lower != s && strings.ToUpper(s) != s {
		return "", nil, fmt.Errorf("%w: mixed case", ErrBech32Format)
	}

	sep := strings.LastIndexByte(lower, '1')
	if sep < 1 || sep+7 > len(lower) {
		return "", nil, fmt.Errorf("%w: bad separator position", ErrBech32Format)
	}
	hrp, payload := lower[:sep], lower[sep+1:]

	values := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		idx := strings.IndexByte(bech32Charset, payload[i])
		if idx < 0 {
			return "", nil, fmt.Errorf("%w: invalid character %q", ErrBech32Format, payload[i])
		}
		values[i] = byte(idx)
	}

	if bech32Polymod(append(hrpExpand(hrp), values...)) != 1 {
		return "", nil, ErrBech32Checksum
	}

	data, err := regroup(values[:len(values)-6], 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, data, nil
}

func bech32Polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i, g := range bech32Gen {
			if (top>>uint(i))&1 == 1 {
				chk ^= g
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func bech32Checksum(hrp string, values []byte) []byte {
	v := append(hrpExpand(hrp), values...)
	v = append(v, 0, 0, 0, 0, 0, 0)
	mod := bech32Polymod(v) ^ 1
	out := make([]byte, 6)
	for i := range out {
		out[i] = byte(mod>>uint(5*(5-i))) & 31
	}
	return out
}

// regroup converts a byte stream between bit-group sizes.
func regroup(data []byte, from, to uint, pad bool) ([]byte, error) {
	var (
		acc  uint32
		bits uint
		out  []byte
	)
	maxv := uint32(1)<<to - 1
	for _, b := range data {
		if uint32(b)>>from != 0 {
			return nil, fmt.Errorf("%w: value %d out of range", ErrBech32Format, b)
		}
		acc = acc<<from | uint32(b)
		bits += from
		for bits >= to {
			bits -= to
			out = append(out, byte(acc>>bits&maxv))
		}
	}
	switch {
	case pad && bits > 0:
		out = append(out, byte(acc<<(to-bits)&maxv))
	case !pad && (bits >= from || acc<<(to-bits)&maxv != 0):
		return nil, fmt.Errorf("%w: non-zero padding", ErrBech32Format)
	}
	return out, nil
}
