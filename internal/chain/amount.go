package chain

import (
	"errors"
	"math/big"
	"strings"
)

// Stakes travel as decimal MON strings in the protocol and as wei on the
// wire to the gateway.
const decimals = 18

var ErrBadAmount = errors.New("invalid stake amount")

var weiPerMON = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)

// ParseAmount converts a decimal MON string such as "0.5" to wei.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return nil, ErrBadAmount
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > decimals {
		return nil, ErrBadAmount
	}

	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return nil, ErrBadAmount
	}

	w.Mul(w, weiPerMON)
	if frac != "" {
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok || f.Sign() < 0 {
			return nil, ErrBadAmount
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-len(frac))), nil)
		w.Add(w, f.Mul(f, scale))
	}
	return w, nil
}

// PositiveAmount reports whether s parses to a stake strictly above zero.
func PositiveAmount(s string) bool {
	wei, err := ParseAmount(s)
	return err == nil && wei.Sign() > 0
}

// FormatAmount renders wei back to a decimal MON string with trailing
// zeros trimmed.
func FormatAmount(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}
	q, r := new(big.Int).QuoRem(wei, weiPerMON, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := strings.TrimRight(
		strings.Repeat("0", decimals-len(r.String()))+r.String(), "0")
	return q.String() + "." + frac
}
