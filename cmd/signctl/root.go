package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type globalFlags struct {
	Output string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "signctl",
	Short:         "Operator tool for the document signing service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch flags.Output {
		case "json", "yaml":
			return nil
		default:
			return fmt.Errorf("unsupported output format %q", flags.Output)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", "json", "output format: json|yaml")
	rootCmd.AddCommand(verifyCmd, cpfCmd, codeCmd, tokenCmd)
}

func printResult(w io.Writer, v interface{}) error {
	if flags.Output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
