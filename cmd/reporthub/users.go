package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Create or update accounts from a CSV file",
	Long: `Upsert accounts by email from a CSV file with the header
  name,email,role,can_create_directives,is_active[,password]

Every row is validated first; if any row is invalid nothing is written and
the offending lines are listed.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersImport,
}

func init() {
	usersCmd.AddCommand(usersImportCmd)
}

func runUsersImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	_, logger, pool, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	secCfg := security.DefaultSecurityConfig()
	users := services.NewUserService(
		repository.NewUserRepository(pool),
		services.NewPasswordHasher(secCfg),
		security.NewValidationService(secCfg),
		logger.Zerolog("users"),
	)

	result, err := users.ImportCSV(cmd.Context(), f)
	var ierr *services.ImportError
	if errors.As(err, &ierr) {
		out := cmd.ErrOrStderr()
		for _, row := range ierr.Rows {
			fmt.Fprintf(out, "line %d: %s: %s\n", row.Line, row.Field, row.Message)
		}
		return fmt.Errorf("%d invalid rows, nothing imported", len(ierr.Rows))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d accounts (%d new, %d updated)\n",
		result.Inserted+result.Updated, result.Inserted, result.Updated)
	return nil
}
