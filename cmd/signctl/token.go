package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docsign/internal/config"
	"docsign/internal/domain"
	"docsign/internal/service"
)

var tokenOpts struct {
	subject   string
	name      string
	email     string
	actorType string
	ttl       time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token signed with the configured JWT secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		input := service.TokenInput{
			Subject:   tokenOpts.subject,
			Name:      tokenOpts.name,
			Email:     tokenOpts.email,
			ActorType: domain.ActorType(tokenOpts.actorType),
			TTL:       tokenOpts.ttl,
		}
		issued, err := service.NewAuthService(cfg.JWT).IssueToken(input)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), issued)
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenOpts.subject, "subject", "", "actor id (required)")
	f.StringVar(&tokenOpts.name, "name", "", "display name")
	f.StringVar(&tokenOpts.email, "email", "", "e-mail address")
	f.StringVar(&tokenOpts.actorType, "type", string(domain.ActorUser), "actor type: user|signer|system")
	f.DurationVar(&tokenOpts.ttl, "ttl", 0, "token lifetime, e.g. 2h (defaults to jwt.access_expiry)")
	_ = tokenCmd.MarkFlagRequired("subject")
}
