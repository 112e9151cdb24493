package domain

import "strings"

// NormalizeCPF strips every non-digit character from s.
func NormalizeCPF(s string) string {
	var b strings.Builder
	b.Grow(11)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF reports whether s is a checksum-valid CPF. Punctuation is ignored.
func ValidateCPF(s string) bool {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return false
	}

	allSame := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	var d [11]int
	for i := 0; i < 11; i++ {
		d[i] = int(cpf[i] - '0')
	}

	return d[9] == cpfCheckDigit(d[:9], 10) && d[10] == cpfCheckDigit(d[:10], 11)
}

func cpfCheckDigit(digits []int, weight int) int {
	sum := 0
	for i, v := range digits {
		sum += v * (weight - i)
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// MaskCPF renders a CPF for display as 529.***.***-25. Anything that is not an
// 11-digit CPF is fully masked.
func MaskCPF(s string) string {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return "***.***.***-**"
	}
	return cpf[:3] + ".***.***-" + cpf[9:]
}
