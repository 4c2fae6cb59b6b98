package main

import (
	"fmt"

	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/spf13/cobra"
)

// hashCmd prints a salt and digest for seeding accounts by hand.
var hashCmd = &cobra.Command{
	Use:   "hash <password>",
	Short: "Print a fresh salt and argon2id digest for a password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hasher := services.NewPasswordHasher(security.DefaultSecurityConfig())
		digest, salt, err := hasher.NewCredential(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "salt:   %s\n", salt)
		fmt.Fprintf(out, "digest: %s\n", digest)
		return nil
	},
}
