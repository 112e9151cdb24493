package service

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"docsign/internal/domain"
)

const minSignerNameRunes = 5

// SignerInput is the signer metadata supplied with a signing request.
type SignerInput struct {
	Name  string `json:"name"`
	CPF   string `json:"cpf"`
	Email string `json:"email"`
	Party string `json:"party"`
}

var cpfRule = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if s == "" || domain.ValidateCPF(s) {
		return nil
	}
	return errors.New("checksum mismatch")
})

func (in *SignerInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Party = strings.TrimSpace(in.Party)
	if in.CPF != "" {
		in.CPF = domain.NormalizeCPF(in.CPF)
	}
}

// validate checks the signer. requireIdentity demands a name and CPF, which
// electronic signatures need and certificate signatures take from the certificate.
func (in *SignerInput) validate(requireIdentity bool) error {
	in.normalize()

	nameRules := []validation.Rule{validation.RuneLength(minSignerNameRunes, 200)}
	cpfRules := []validation.Rule{cpfRule}
	if requireIdentity {
		nameRules = append([]validation.Rule{validation.Required}, nameRules...)
		cpfRules = append([]validation.Rule{validation.Required}, cpfRules...)
	}

	err := validation.ValidateStruct(in,
		validation.Field(&in.CPF, cpfRules...),
		validation.Field(&in.Name, nameRules...),
		validation.Field(&in.Email, is.EmailFormat),
		validation.Field(&in.Party, validation.RuneLength(0, 100)),
	)
	return signerError(err)
}

// signerError maps ozzo field errors onto domain sentinels, CPF first.
func signerError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	switch {
	case errs["cpf"] != nil:
		return domain.ErrInvalidCPF
	case errs["name"] != nil:
		return domain.ErrInvalidName
	case errs["email"] != nil:
		return domain.ErrInvalidEmail
	default:
		return domain.ErrInvalidInput
	}
}
