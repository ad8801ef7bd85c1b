// Package amount does exact arithmetic on token amounts held in base units,
// mirroring the truncation bridges apply on chain.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// WireDecimals is the precision token bridge transfers carry on the wire.
const WireDecimals = 8

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrScientificNotation = errors.New("scientific notation is not supported")
	ErrTooManyDecimals    = errors.New("too many decimal places")
	ErrPrecisionLoss      = errors.New("scaling down would lose precision")
	ErrDecimalsMismatch   = errors.New("amounts have different decimals")
	ErrNegativeDifference = errors.New("difference is negative")
	ErrNegativeDecimals   = errors.New("decimals must not be negative")
)

var (
	baseUnits = regexp.MustCompile(`^[0-9]+$`)
	human     = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)
)

// Amount is a non-negative integer number of base units and the number of
// decimals of the token it denominates.
type Amount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

// New validates a base-unit amount.
func New(units string, decimals int) (Amount, error) {
	if !baseUnits.MatchString(units) || decimals < 0 {
		return Amount{}, fmt.Errorf("%w: %q with %d decimals", ErrInvalidAmount, units, decimals)
	}
	v, _ := new(big.Int).SetString(units, 10)
	return FromBaseUnits(v, decimals), nil
}

// FromBaseUnits wraps a non-negative base-unit integer.
func FromBaseUnits(units *big.Int, decimals int) Amount {
	return Amount{Amount: units.String(), Decimals: decimals}
}

// Parse converts a human-readable value such as "1.5" into base units.
// Fractional digits beyond decimals are accepted only when they are zero.
func Parse(value string, decimals int) (Amount, error) {
	value = strings.TrimSpace(value)
	if strings.ContainsAny(value, "eE") {
		return Amount{}, fmt.Errorf("%w: %q", ErrScientificNotation, value)
	}
	if decimals < 0 || value == "" || value == "." || !human.MatchString(value) {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if strings.HasPrefix(value, ".") {
		value = "0" + value
	}
	value = strings.TrimSuffix(value, ".")
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, value, err)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q has more than %d", ErrTooManyDecimals, value, decimals)
	}
	return FromBaseUnits(shifted.BigInt(), decimals), nil
}

// Validate reports whether a is well formed. Amounts built by New, Parse or
// FromBaseUnits always are; ones decoded from JSON may not be.
func (a Amount) Validate() error {
	_, err := a.checked()
	return err
}

// Units returns the base-unit integer. It is zero for an amount that does
// not Validate.
func (a Amount) Units() *big.Int {
	v, err := a.checked()
	if err != nil {
		return new(big.Int)
	}
	return v
}

func (a Amount) IsZero() bool {
	return a.Units().Sign() == 0
}

// Cmp compares two amounts by value, regardless of decimals.
func (a Amount) Cmp(b Amount) int {
	return a.decimal().Cmp(b.decimal())
}

// Truncate zeroes the digits beyond maxDecimals. Decimals are unchanged and
// a negative maxDecimals truncates to whole tokens.
func Truncate(a Amount, maxDecimals int) Amount {
	maxDecimals = max(maxDecimals, 0)
	if maxDecimals >= a.Decimals {
		return a
	}
	p := pow10(a.Decimals - maxDecimals)
	v := a.Units()
	v.Quo(v, p)
	v.Mul(v, p)
	return FromBaseUnits(v, a.Decimals)
}

// Dedust truncates a to the precision carried on the wire.
func Dedust(a Amount) Amount {
	return Truncate(a, WireDecimals)
}

// Scale re-expresses a with toDecimals. Scaling down fails unless the
// dropped digits are zero; truncate first to discard them explicitly.
func Scale(a Amount, toDecimals int) (Amount, error) {
	v, err := a.checked()
	if err != nil {
		return Amount{}, err
	}
	switch {
	case toDecimals < 0:
		return Amount{}, fmt.Errorf("%w: %d", ErrNegativeDecimals, toDecimals)
	case toDecimals == a.Decimals:
		return a, nil
	case toDecimals > a.Decimals:
		v.Mul(v, pow10(toDecimals-a.Decimals))
		return FromBaseUnits(v, toDecimals), nil
	}
	p := pow10(a.Decimals - toDecimals)
	q, r := new(big.Int).QuoRem(v, p, new(big.Int))
	if r.Sign() != 0 {
		return Amount{}, fmt.Errorf("%w: %s from %d to %d decimals", ErrPrecisionLoss, a.Amount, a.Decimals, toDecimals)
	}
	return FromBaseUnits(q, toDecimals), nil
}

// Sub returns a - b. Both must share decimals and the result must not be negative.
func Sub(a, b Amount) (Amount, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return Amount{}, err
	}
	v := new(big.Int).Sub(x, y)
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrNegativeDifference, a.Amount, b.Amount)
	}
	return FromBaseUnits(v, a.Decimals), nil
}

// Add returns a + b. Both must share decimals.
func Add(a, b Amount) (Amount, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return Amount{}, err
	}
	return FromBaseUnits(x.Add(x, y), a.Decimals), nil
}

func operands(a, b Amount) (*big.Int, *big.Int, error) {
	if a.Decimals != b.Decimals {
		return nil, nil, fmt.Errorf("%w: %d and %d", ErrDecimalsMismatch, a.Decimals, b.Decimals)
	}
	x, err := a.checked()
	if err != nil {
		return nil, nil, err
	}
	y, err := b.checked()
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Display renders a as a human-readable decimal with trailing zeros trimmed.
func Display(a Amount) string {
	return a.decimal().String()
}

// DisplayFixed renders a with exactly precision fractional digits, dropping
// (not rounding) any beyond it.
func DisplayFixed(a Amount, precision int) string {
	return a.decimal().Truncate(int32(precision)).StringFixed(int32(precision))
}

func (a Amount) String() string {
	return Display(a)
}

func (a Amount) decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.Units(), -int32(a.Decimals))
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func (a Amount) checked() (*big.Int, error) {
	if a.Decimals < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeDecimals, a.Decimals)
	}
	if !baseUnits.MatchString(a.Amount) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, a.Amount)
	}
	v, _ := new(big.Int).SetString(a.Amount, 10)
	return v, nil
}
