package signing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"docsign/internal/domain"
)

// argon2id parameters for CPF hashing. A CPF has roughly 10^9 possible values,
// so a plain digest would be trivially reversible.
const (
	cpfHashTime    = 1
	cpfHashMemory  = 19 * 1024
	cpfHashThreads = 1
	cpfHashKeyLen  = 32
	cpfSaltLen     = 16
)

// HashCPF returns a salted argon2id hash of the normalized CPF together with
// the salt, both hex encoded.
func HashCPF(cpf string, pepper []byte) (hash, salt string, err error) {
	s := make([]byte, cpfSaltLen)
	if _, err := rand.Read(s); err != nil {
		return "", "", fmt.Errorf("generating CPF salt: %w", err)
	}
	return hex.EncodeToString(deriveCPF(domain.NormalizeCPF(cpf), s, pepper)), hex.EncodeToString(s), nil
}

// MatchCPF reports whether cpf is the CPF recorded in an evidence pack.
func MatchCPF(pack *domain.EvidencePack, cpf string, pepper []byte) bool {
	if pack == nil || pack.CPFHash == "" || pack.CPFSalt == "" {
		return false
	}
	salt, err := hex.DecodeString(pack.CPFSalt)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(pack.CPFHash)
	if err != nil {
		return false
	}
	got := deriveCPF(domain.NormalizeCPF(cpf), salt, pepper)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func deriveCPF(cpf string, salt, pepper []byte) []byte {
	input := make([]byte, 0, len(cpf)+len(pepper))
	input = append(input, cpf...)
	input = append(input, pepper...)
	defer clear(input)
	return argon2.IDKey(input, salt, cpfHashTime, cpfHashMemory, cpfHashThreads, cpfHashKeyLen)
}

// environmentHash fingerprints the signer and request environment of an
// electronic signature.
func environmentHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
