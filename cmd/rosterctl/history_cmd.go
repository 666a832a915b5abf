package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		college string
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent imports of a college",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collegeID, err := uuid.Parse(strings.TrimSpace(college))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --college: %w", err))
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.store.ListImports(cmd.Context(), collegeID, limit)
			if err != nil {
				return withCode(exitDB, err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FECHA\tARCHIVO\tESTADO\tREGISTRADOS\tFALLIDOS\tERRORES")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.FileName, r.Status,
					r.CreatedCount, r.FailedCount, r.ErrorCount)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&college, "college", "", "College UUID (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	_ = cmd.MarkFlagRequired("college")
	return cmd
}
