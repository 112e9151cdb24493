package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docsign/internal/certificate"
	"docsign/internal/signing"
)

var verifyOpts struct {
	issuersFile    string
	trustRootsFile string
}

// errInvalidArtifact makes the process exit non-zero for a tampered file.
var errInvalidArtifact = errors.New("artifact failed verification")

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify the signatures embedded in a signed artifact",
	Long: `Verify checks every signature block appended to a signed PDF without
contacting the service. Registration of the artifact's hash is not checked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		issuers, err := certificate.LoadIssuers(verifyOpts.issuersFile)
		if err != nil {
			return err
		}
		roots, err := certificate.LoadTrustRoots(verifyOpts.trustRootsFile)
		if err != nil {
			return err
		}

		engine := signing.NewEngine(certificate.NewExtractor(), certificate.NewValidator(issuers, roots), signing.Options{})
		v, err := engine.Verify(artifact)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := printResult(cmd.OutOrStdout(), v); err != nil {
			return err
		}
		if !v.Valid {
			return errInvalidArtifact
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOpts.issuersFile, "issuers", "", "YAML file of recognized issuer name fragments")
	verifyCmd.Flags().StringVar(&verifyOpts.trustRootsFile, "trust-roots", "", "PEM bundle of trusted root certificates")
}
