// Package wallet normalises the wallet addresses players connect with.
package wallet

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidAddress = errors.New("wallet: address must be 0x followed by 40 hex characters")
	ErrBadChecksum    = errors.New("wallet: address checksum mismatch")
)

// Normalize validates addr and returns its EIP-55 checksummed form. All-lower
// and all-upper inputs are accepted as-is; mixed case must carry a valid
// checksum.
func Normalize(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if len(addr) != 42 || !(strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X")) {
		return "", ErrInvalidAddress
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", ErrInvalidAddress
	}

	sum := Checksum(body)
	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body != lower && body != upper && "0x"+body != sum {
		return "", ErrBadChecksum
	}
	return sum, nil
}

// Checksum applies EIP-55 mixed-case encoding to a 40 character hex body.
func Checksum(body string) string {
	body = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(body, "0x"), "0X"))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(body)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 32
		}
	}
	return "0x" + string(out)
}

// Short renders an address the way the UI does: 0x1234...abcd.
func Short(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
