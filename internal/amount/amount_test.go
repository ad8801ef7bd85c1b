package amount

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	a, err := Parse("1", 8)
	require.NoError(t, err)
	require.Equal(t, Amount{Amount: "100000000", Decimals: 8}, a)

	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{".5", 1, "5"},
		{"2.", 2, "200"},
		{"1.2300", 2, "123"},
		{"0", 18, "0"},
		{"123456789.123456789", 9, "123456789123456789"},
	}
	for _, c := range cases {
		got, err := Parse(c.in, c.decimals)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got.Amount, c.in)
		require.Equal(t, c.decimals, got.Decimals, c.in)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("1e6", 6)
	require.ErrorIs(t, err, ErrScientificNotation)

	_, err = Parse("1.0000001", 6)
	require.ErrorIs(t, err, ErrTooManyDecimals)

	for _, in := range []string{"", ".", "-1", "1,5", "abc", "1.2.3"} {
		_, err = Parse(in, 6)
		require.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestNew(t *testing.T) {
	a, err := New("42", 3)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), a.Units())

	_, err = New("-1", 3)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = New("1.5", 3)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTruncate(t *testing.T) {
	got := Truncate(Amount{Amount: "123456789", Decimals: 9}, 8)
	require.Equal(t, Amount{Amount: "123456780", Decimals: 9}, got)

	same := Amount{Amount: "123", Decimals: 2}
	require.Equal(t, same, Truncate(same, 8))
}

func TestTruncateNegativeDecimals(t *testing.T) {
	a := Amount{Amount: "123456789", Decimals: 4}
	require.Equal(t, Truncate(a, 0), Truncate(a, -3))
	require.Equal(t, "123450000", Truncate(a, -3).Amount)
}

func TestTruncateComposes(t *testing.T) {
	a := Amount{Amount: "987654321987654321", Decimals: 18}
	for d1 := 0; d1 <= 18; d1 += 3 {
		for d2 := 0; d2 <= 18; d2 += 4 {
			require.Equal(t, Truncate(a, min(d1, d2)), Truncate(Truncate(a, d1), d2), "d1=%d d2=%d", d1, d2)
		}
	}
}

func TestScale(t *testing.T) {
	up, err := Scale(Amount{Amount: "15", Decimals: 1}, 6)
	require.NoError(t, err)
	require.Equal(t, Amount{Amount: "1500000", Decimals: 6}, up)

	down, err := Scale(up, 2)
	require.NoError(t, err)
	require.Equal(t, Amount{Amount: "150", Decimals: 2}, down)

	_, err = Scale(Amount{Amount: "123456789", Decimals: 9}, 8)
	require.ErrorIs(t, err, ErrPrecisionLoss)
}

func TestScaleRejects(t *testing.T) {
	_, err := Scale(Amount{Amount: "15", Decimals: 1}, -1)
	require.ErrorIs(t, err, ErrNegativeDecimals)

	_, err = Scale(Amount{Amount: "1.5", Decimals: 1}, 6)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Scale(Amount{Amount: "15", Decimals: -2}, 6)
	require.ErrorIs(t, err, ErrNegativeDecimals)
}

func TestDedustRoundTrip(t *testing.T) {
	a := Amount{Amount: "1234567891234567891", Decimals: 18}
	d := Dedust(a)
	require.Equal(t, "1234567891200000000", d.Amount)

	wire, err := Scale(d, WireDecimals)
	require.NoError(t, err)
	back, err := Scale(wire, 18)
	require.NoError(t, err)
	require.Equal(t, d, back)
}

func TestDisplay(t *testing.T) {
	require.Equal(t, "1", Display(Amount{Amount: "100000000", Decimals: 8}))
	require.Equal(t, "0.00000001", Display(Amount{Amount: "1", Decimals: 8}))
	require.Equal(t, "1.50", DisplayFixed(Amount{Amount: "1500000", Decimals: 6}, 2))
	require.Equal(t, "1.23", DisplayFixed(Amount{Amount: "1239", Decimals: 3}, 2))
	require.Equal(t, "0.001000", DisplayFixed(Amount{Amount: "1", Decimals: 3}, 6))
}

func TestParseDisplayRoundTrip(t *testing.T) {
	for _, a := range []Amount{
		{Amount: "0", Decimals: 0},
		{Amount: "1", Decimals: 18},
		{Amount: "100000000", Decimals: 8},
		{Amount: "123456789012345678901234567890", Decimals: 12},
	} {
		for _, p := range []int{a.Decimals, a.Decimals + 3} {
			got, err := Parse(DisplayFixed(a, p), a.Decimals)
			require.NoError(t, err)
			require.Equal(t, a, got)
		}
		got, err := Parse(Display(a), a.Decimals)
		require.NoError(t, err)
		require.Equal(t, a, got)
	}
}

func TestSubAdd(t *testing.T) {
	a := Amount{Amount: "100", Decimals: 2}
	b := Amount{Amount: "30", Decimals: 2}

	d, err := Sub(a, b)
	require.NoError(t, err)
	require.Equal(t, "70", d.Amount)

	_, err = Sub(b, a)
	require.ErrorIs(t, err, ErrNegativeDifference)

	_, err = Sub(a, Amount{Amount: "1", Decimals: 3})
	require.ErrorIs(t, err, ErrDecimalsMismatch)

	s, err := Add(a, b)
	require.NoError(t, err)
	require.Equal(t, "130", s.Amount)
}

func TestMalformedAmounts(t *testing.T) {
	good := Amount{Amount: "100", Decimals: 2}
	for _, bad := range []Amount{
		{Amount: "", Decimals: 2},
		{Amount: "abc", Decimals: 2},
		{Amount: "-5", Decimals: 2},
		{Amount: "1e3", Decimals: 2},
	} {
		require.ErrorIs(t, bad.Validate(), ErrInvalidAmount, bad.Amount)
		_, err := Add(good, bad)
		require.ErrorIs(t, err, ErrInvalidAmount, bad.Amount)
		_, err = Sub(bad, good)
		require.ErrorIs(t, err, ErrInvalidAmount, bad.Amount)
		require.Zero(t, bad.Units().Sign())
	}
	require.NoError(t, good.Validate())
	require.ErrorIs(t, Amount{Amount: "1", Decimals: -1}.Validate(), ErrNegativeDecimals)
}

func TestCmp(t *testing.T) {
	require.Equal(t, 0, Amount{Amount: "1", Decimals: 0}.Cmp(Amount{Amount: "100", Decimals: 2}))
	require.Equal(t, -1, Amount{Amount: "99", Decimals: 2}.Cmp(Amount{Amount: "1", Decimals: 0}))
	require.True(t, Amount{Amount: "0", Decimals: 5}.IsZero())
}
