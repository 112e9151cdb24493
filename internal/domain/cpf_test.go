package domain_test

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docsign/internal/domain"
)

func TestValidateCPF(t *testing.T) {
	tests := []struct {
		name string
		cpf  string
		want bool
	}{
		{"valid digits", "52998224725", true},
		{"valid punctuated", "529.982.247-25", true},
		{"wrong first check digit", "52998224735", false},
		{"wrong second check digit", "52998224726", false},
		{"all same digits", "11111111111", false},
		{"too short", "5299822472", false},
		{"too long", "529982247250", false},
		{"empty", "", false},
		{"letters only", "abc.def.ghi-jk", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ValidateCPF(tt.cpf))
		})
	}
}

func TestValidateCPF_RepeatedDigits(t *testing.T) {
	for d := 0; d <= 9; d++ {
		cpf := strings.Repeat(strconv.Itoa(d), 11)
		assert.False(t, domain.ValidateCPF(cpf), cpf)
	}
	assert.False(t, domain.ValidateCPF("000.000.000-00"))
}

// referenceCPFValid checks a CPF with the "multiply by ten, mod eleven"
// formulation of the check digits.
func referenceCPFValid(cpf string) bool {
	if len(cpf) != 11 || strings.Count(cpf, cpf[:1]) == 11 {
		return false
	}
	dv := func(n int) int {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(cpf[i]-'0') * (n + 1 - i)
		}
		return sum * 10 % 11 % 10
	}
	return int(cpf[9]-'0') == dv(9) && int(cpf[10]-'0') == dv(10)
}

func TestValidateCPF_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(20260519))
	digits := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte(byte('0' + rng.Intn(10)))
		}
		return b.String()
	}

	for i := 0; i < 5000; i++ {
		cpf := digits(11)
		assert.Equal(t, referenceCPFValid(cpf), domain.ValidateCPF(cpf), cpf)
	}

	// Random strings are almost never valid, so valid ones are built too.
	for i := 0; i < 2000; i++ {
		base := digits(9)
		var valid string
		for c := 0; c <= 99 && valid == ""; c++ {
			candidate := base + strconv.Itoa(c/10) + strconv.Itoa(c%10)
			if referenceCPFValid(candidate) {
				valid = candidate
			}
		}
		if valid == "" {
			continue // a repeated-digit base
		}
		assert.True(t, domain.ValidateCPF(valid), valid)
		last := (int(valid[10]-'0') + 1) % 10
		assert.False(t, domain.ValidateCPF(valid[:10]+strconv.Itoa(last)), valid)
	}
}

func TestNormalizeCPF(t *testing.T) {
	assert.Equal(t, "52998224725", domain.NormalizeCPF(" 529.982.247-25 "))
	assert.Equal(t, "", domain.NormalizeCPF("---"))
}

func TestMaskCPF(t *testing.T) {
	assert.Equal(t, "529.***.***-25", domain.MaskCPF("529.982.247-25"))
	assert.Equal(t, "529.***.***-25", domain.MaskCPF("52998224725"))
	assert.Equal(t, "***.***.***-**", domain.MaskCPF("123"))
}
