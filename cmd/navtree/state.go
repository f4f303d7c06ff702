package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jupierce/coverage-navtree/pkg/store"
)

var (
	stateDB string

	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Read and write persisted sidebar state",
		Long: `Read and write the opaque key/value UI state kept next to a compiled
tree (expanded folders, sidebar width, theme). Storage failures are logged and
never fail the command.`,
	}

	stateGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Print a state value",
		Args:  cobra.ExactArgs(1),
		RunE:  runStateGet,
	}

	stateSetCmd = &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Store a state value",
		Example: `  navtree state set gcovr-expanded-folders '["src","src/detail"]'`,
		Args:    cobra.ExactArgs(2),
		RunE:    runStateSet,
	}

	stateListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all state values",
		RunE:  runStateList,
	}
)

func init() {
	stateCmd.PersistentFlags().StringVar(&stateDB, "db", "coverage.db", "SQLite database path")
	stateCmd.AddCommand(stateGetCmd, stateSetCmd, stateListCmd)
	rootCmd.AddCommand(stateCmd)
}

func runStateGet(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := store.Open(logger, stateDB)
	if err != nil {
		logger.Warning("State unavailable: %v", err)
		return nil
	}
	defer s.Close()

	value, ok := s.Get(cmd.Context(), args[0])
	if !ok {
		logger.Info("%s is not set", args[0])
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runStateSet(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := store.Open(logger, stateDB)
	if err != nil {
		logger.Warning("State unavailable: %v", err)
		return nil
	}
	defer s.Close()

	if !s.Set(cmd.Context(), args[0], args[1]) {
		logger.Warning("Could not store %s, continuing without it", args[0])
		return nil
	}
	logger.Debug("Stored %s", args[0])
	return nil
}

func runStateList(cmd *cobra.Command, args []string) error {
	logger, err := createLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := store.Open(logger, stateDB)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.ListState(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, e.Value, e.UpdatedAt)
	}
	return w.Flush()
}
