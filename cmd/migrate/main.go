// migrate applies the embedded SQL migrations: go run ./cmd/migrate up
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ghl-extractor-backend/internal/database"
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("up")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run("down")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, dirty, err := database.Version(viper.GetString("DB_CONNECTION_STRING"))
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	},
}

func run(direction string) error {
	if err := database.Migrate(viper.GetString("DB_CONNECTION_STRING"), direction); err != nil {
		return err
	}
	fmt.Printf("migrations %s: done\n", direction)
	return nil
}

func main() {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	rootCmd.PersistentFlags().String("dsn", "", "Postgres connection string (defaults to DB_CONNECTION_STRING)")
	_ = viper.BindPFlag("DB_CONNECTION_STRING", rootCmd.PersistentFlags().Lookup("dsn"))

	rootCmd.AddCommand(upCmd, downCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
