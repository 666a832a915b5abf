package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/roster/internal/store"
)

func newCollegeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "college",
		Short: "Manage colleges",
	}
	cmd.AddCommand(newCollegeAddCmd())
	cmd.AddCommand(newCollegeListCmd())
	return cmd
}

func newCollegeAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME",
		Short: "Create a college",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			college, err := e.store.CreateCollege(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, store.ErrCollegeExists) {
				return withCode(exitValidation, err)
			}
			if err != nil {
				return withCode(exitDB, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), college.ID)
			return nil
		},
	}
}

func newCollegeListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List colleges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			colleges, err := e.store.ListColleges(cmd.Context())
			if err != nil {
				return withCode(exitDB, err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), colleges)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNOMBRE")
			for _, c := range colleges {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
