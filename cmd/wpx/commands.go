package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"wpx-extend/internal/metadata"
	"wpx-extend/internal/metrics"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Run the registration pipeline once and print the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		report, runErr := a.pipeline.Run(cmd.Context())
		if report != nil {
			for _, o := range report.Outcomes {
				line := fmt.Sprintf("%-8s %-12s %s", o.Status, o.Kind, o.Name)
				if o.Error != "" {
					line += ": " + o.Error
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%d registered, %d skipped, %d failed\n",
				report.Count(metrics.StatusRegistered), report.Count(metrics.StatusSkipped), report.Count(metrics.StatusFailed))
		}
		if registrationsJSON {
			all := map[metadata.Kind][]*metadata.RegistrationArgs{}
			for _, kind := range metadata.RegistrableKinds {
				all[kind] = a.registry.All(kind)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(all); err != nil {
				return err
			}
		}
		return runErr
	},
}

var registrationsJSON bool

var seedCmd = &cobra.Command{
	Use:   "seed <path>",
	Short: "Import a YAML seed file or directory into the configuration store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.importer.ImportFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("imported %d groups, %d fields, %d entities\n", res.Groups, res.Fields, res.Entities)
		return nil
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Invalidate every recorded cache entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.cache.Flush(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("flushed %d keys\n", n)
		return nil
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Create system tables and reset the admin options",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.hooks.Activate(cmd.Context())
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Clear cached configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.hooks.Deactivate(cmd.Context())
	},
}

var uninstallYes bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Delete all configuration, options and cached data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !uninstallYes {
			return fmt.Errorf("uninstall deletes all configuration; pass --yes to confirm")
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.hooks.Uninstall(cmd.Context())
	},
}

func init() {
	registerCmd.Flags().BoolVar(&registrationsJSON, "json", false, "print the registered argument sets as JSON")
	uninstallCmd.Flags().BoolVar(&uninstallYes, "yes", false, "confirm deletion")

	rootCmd.AddCommand(registerCmd, seedCmd, flushCmd, activateCmd, deactivateCmd, uninstallCmd)
}
