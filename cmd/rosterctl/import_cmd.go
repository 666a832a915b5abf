package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/roster/internal/core"
)

type importOptions struct {
	college  string
	dryRun   bool
	jsonOut  bool
	progress bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import students from a CSV file into a college",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collegeID, err := uuid.Parse(strings.TrimSpace(opts.college))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --college: %w", err))
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("read %s: %w", args[0], err))
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			service := core.NewService(e.store, e.cfg.Import, slog.Default())
			if opts.dryRun {
				return runPreview(cmd, service, collegeID, data, opts)
			}
			return runImport(cmd, service, collegeID, filepath.Base(args[0]), data, opts)
		},
	}

	cmd.Flags().StringVar(&opts.college, "college", "", "College UUID (required)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Check the file without registering anyone")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "Report batch progress on stderr")
	_ = cmd.MarkFlagRequired("college")
	return cmd
}

func runImport(cmd *cobra.Command, service *core.Service, collegeID uuid.UUID, fileName string, data []byte, opts importOptions) error {
	var onProgress func(core.ImportProgress)
	if opts.progress {
		stderr := cmd.ErrOrStderr()
		last := -1
		onProgress = func(p core.ImportProgress) {
			if p.Phase != core.PhaseSubmitting || p.Percent == last {
				return
			}
			last = p.Percent
			fmt.Fprintf(stderr, "progreso: %3d%% (%d estudiantes)\n", p.Percent, p.Total)
		}
	}

	res, err := service.RunImport(cmd.Context(), collegeID, fileName, data, onProgress)
	if err != nil {
		return startError(err)
	}

	if opts.jsonOut {
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), res)
	}
	return resultError(res)
}

func runPreview(cmd *cobra.Command, service *core.Service, collegeID uuid.UUID, data []byte, opts importOptions) error {
	prepared, err := service.PreviewImport(cmd.Context(), collegeID, data)
	if err != nil {
		var aborted *core.AbortedError
		if errors.As(err, &aborted) {
			preview, remaining := aborted.Preview(service.ErrorPreview())
			res := &core.ImportResult{
				CollegeID:       collegeID,
				Status:          core.StatusAborted,
				Message:         fmt.Sprintf("El archivo sería rechazado: %d errores encontrados.", len(aborted.Errors)),
				Errors:          preview,
				RemainingErrors: remaining,
				TotalErrors:     len(aborted.Errors),
			}
			if opts.jsonOut {
				_ = writeJSON(cmd.OutOrStdout(), res)
			} else {
				printResult(cmd.OutOrStdout(), res)
			}
			return withCode(exitValidation, errors.New("archivo rechazado"))
		}
		return startError(err)
	}

	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), prepared)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archivo válido: %d estudiantes listos para registrar (%d ya existen en el colegio).\n",
		len(prepared.Candidates), prepared.Existing)
	return nil
}

// startError classifies an error returned before any student was submitted.
func startError(err error) error {
	msg := core.FormatUserError(err)
	switch {
	case core.IsFormatError(err), errors.Is(err, core.ErrFileTooLarge):
		return withCode(exitValidation, errors.New(msg))
	case errors.Is(err, core.ErrCollegeNotFound):
		return withCode(exitUsage, errors.New(msg))
	case errors.Is(err, context.Canceled):
		return withCode(exitCancelled, errors.New(msg))
	default:
		return withCode(exitDB, fmt.Errorf("%s: %w", msg, err))
	}
}

// resultError maps the final status of an import to the process exit code.
func resultError(res *core.ImportResult) error {
	switch res.Status {
	case core.StatusFullSuccess:
		return nil
	case core.StatusAborted:
		return withCode(exitValidation, errors.New("archivo rechazado"))
	case core.StatusPartialSuccess, core.StatusAllFailed:
		return withCode(exitPartial, fmt.Errorf("%d estudiantes no se registraron", res.Summary.FailedCount()))
	case core.StatusCancelled:
		return withCode(exitCancelled, errors.New("importación cancelada"))
	}

	if res.Err == nil {
		return withCode(exitDB, errors.New(res.Message))
	}
	if core.IsFormatError(res.Err) {
		return withCode(exitValidation, errors.New(core.FormatUserError(res.Err)))
	}
	return withCode(exitDB, errors.New(core.FormatUserError(res.Err)))
}
