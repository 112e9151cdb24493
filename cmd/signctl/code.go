package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docsign/internal/service"
)

type codeResult struct {
	Code       string `json:"code" yaml:"code"`
	WellFormed bool   `json:"well_formed" yaml:"well_formed"`
}

var codeCmd = &cobra.Command{
	Use:   "code [code]",
	Short: "Check a protocol code's format, or generate a sample code",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			code, err := service.GenerateProtocolCode(time.Now())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), codeResult{Code: code, WellFormed: true})
		}
		code := strings.ToUpper(strings.TrimSpace(args[0]))
		return printResult(cmd.OutOrStdout(), codeResult{
			Code:       code,
			WellFormed: service.ProtocolCodePattern.MatchString(code),
		})
	},
}
