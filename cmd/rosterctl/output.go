package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JonMunkholm/roster/internal/core"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes the human-readable report of an import.
func printResult(w io.Writer, res *core.ImportResult) {
	fmt.Fprintln(w, res.Message)

	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - línea %d: %s\n", e.Line, e.Message)
		}
		if res.RemainingErrors > 0 {
			fmt.Fprintf(w, "  ... y %d errores más\n", res.RemainingErrors)
		}
	}

	if res.Summary == nil || len(res.Summary.FailedOutcomes) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LÍNEA\tIDENTIFICADOR\tMOTIVO")
	for _, o := range res.Summary.FailedOutcomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.Record.Line, o.Record.Identifier, o.Error)
	}
	_ = tw.Flush()
}
