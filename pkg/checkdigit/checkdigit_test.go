package checkdigit

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		scheme   Scheme
		base     string
		expected string
	}{
		{"Luhn textbook", Mod10, "7992739871", "3"},
		{"Luhn single digit", Mod10, "0", "0"},
		{"Luhn NPI prefix", Mod10, "80840123456789", "3"},
		{"Mod11 zero remainder", Mod11, "0", "0"},
		{"Mod11 ordinary", Mod11, "12345", "5"},
		{"Mod11 renders ten as X", Mod11, "6", "X"},
		{"ISO 7064 ordinary", ISO7064, "0", "2"},
		{"ISO 7064 multi digit", ISO7064, "123", "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.scheme, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, Validate(tt.scheme, tt.base, got))
		})
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := Compute(Mod10, "12A4")
	assert.True(t, errors.Is(err, ErrNotNumeric))

	_, err = Compute(Mod11, "")
	assert.True(t, errors.Is(err, ErrNotNumeric))

	_, err = Compute(Scheme("NPI"), "123")
	assert.Error(t, err)

	assert.False(t, Validate(Mod10, "7992739871", "4"))
}

// Independent re-implementations used to cross-check generated digits.

func referenceLuhnValid(full string) bool {
	sum := 0
	for i := 0; i < len(full); i++ {
		d := int(full[len(full)-1-i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func referenceMod11(base string) string {
	weights := []int{2, 3, 4, 5, 6, 7}
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[len(base)-1-i]-'0') * weights[i%len(weights)]
	}
	r := (11 - sum%11) % 11
	if r == 10 {
		return "X"
	}
	return strconv.Itoa(r)
}

func referenceISO7064(base string) string {
	check := 10
	for i := 0; i < len(base); i++ {
		s := (check + int(base[i]-'0')) % 10
		if s == 0 {
			s = 10
		}
		check = (s * 2) % 11
	}
	return strconv.Itoa((11 - check) % 10)
}

func TestGeneratedDigitsRecompute(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 500; i++ {
		base := RandomBase(rng, 4+rng.IntN(8))

		m10, err := Compute(Mod10, base)
		require.NoError(t, err)
		assert.True(t, referenceLuhnValid(base+m10), "luhn %s%s", base, m10)

		m11, err := Compute(Mod11, base)
		require.NoError(t, err)
		assert.Equal(t, referenceMod11(base), m11, "mod11 %s", base)

		iso, err := Compute(ISO7064, base)
		require.NoError(t, err)
		assert.Equal(t, referenceISO7064(base), iso, "iso7064 %s", base)
	}
}

func TestRandomSchemeAndBase(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[Scheme]int{}
	for i := 0; i < 300; i++ {
		s := Random(rng)
		assert.True(t, s.IsValid())
		seen[s]++
	}
	assert.Len(t, seen, 3, "every scheme should be drawn")

	base := RandomBase(rng, 9)
	assert.Len(t, base, 9)
	assert.NotEqual(t, byte('0'), base[0])
	assert.Len(t, RandomBase(rng, 0), 1)
}
