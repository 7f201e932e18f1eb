package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "mollywood-bot",
		Short: "Telegram bot that hands out movie files by code",
		Long: `mollywood-bot lets admins publish movie files under a short code
through an upload wizard, and delivers those files to channel members
who send the code.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "Path to the YAML config file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newCatalogCmd(&configPath))
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the keep-alive server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configPath)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	SetupLogger(os.Stderr, cfg.Log)
	return Serve(cmd.Context(), cfg)
}

func newCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or edit the published catalog offline",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every published code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			SetupLogger(os.Stderr, Log{Level: "warn"})
			catalog, _, err := OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return PrintCatalog(cmd, catalog)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "delete <code>",
		Short:   "Delete a published code",
		Args:    cobra.ExactArgs(1),
		Example: "  mollywood-bot catalog delete kgf2",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			SetupLogger(os.Stderr, Log{Level: "warn"})
			catalog, _, err := OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			code := NormalizeCode(args[0])
			deleted, err := catalog.Delete(cmd.Context(), code)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: %s", ErrNotFound, code)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", code)
			return nil
		},
	})
	return cmd
}

func PrintCatalog(cmd *cobra.Command, catalog Store[Entry]) error {
	codes, err := catalog.Keys(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tMODE\tFILES\tLANGUAGES\tCREATED")
	for _, code := range codes {
		entry, ok, err := catalog.Get(cmd.Context(), code)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", code, entry.Mode, entry.FileCount(), len(entry.Sections),
			entry.CreatedAt.Format(time.DateTime))
	}
	return w.Flush()
}
