package main

import (
	"github.com/spf13/cobra"

	"docsign/internal/domain"
)

type cpfResult struct {
	Valid  bool   `json:"valid" yaml:"valid"`
	Masked string `json:"masked,omitempty" yaml:"masked,omitempty"`
}

var cpfCmd = &cobra.Command{
	Use:   "cpf <number>",
	Short: "Check a CPF's check digits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := cpfResult{Valid: domain.ValidateCPF(args[0])}
		if res.Valid {
			res.Masked = domain.MaskCPF(args[0])
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}
