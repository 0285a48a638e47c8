package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/corpus"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/harness"
	"github.com/Beastly713/parsefuzz/pkg/invoker"
	"github.com/Beastly713/parsefuzz/pkg/report"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	showStack  bool
	showOutput bool
	saveDir    string
)

var (
	defectColor   = color.New(color.FgRed, color.Bold)
	benignColor   = color.New(color.FgYellow)
	acceptedColor = color.New(color.FgGreen)
)

var replayCmd = &cobra.Command{
	Use:   "replay [path...]",
	Short: "Replay crash artifacts through the harness",
	Long: `Replay files or directories of crash artifacts through the same decoder,
invoker and classifier the fuzz target uses. Raw buffers, Go corpus files
("go test fuzz v1") and crash reports are accepted.

Example:
  parsefuzz replay testdata/fuzz/FuzzProcess --save crashes/

  Exits non-zero when any artifact still reproduces a defect.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []harness.Option
		if showOutput {
			opts = append(opts, harness.WithInvoker(invoker.New(invoker.WithoutSilence(), invoker.WithLogger(logger))))
		}
		h, err := newHarness(opts...)
		if err != nil {
			return err
		}

		paths, err := corpus.Collect(args...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		defects := 0
		for _, path := range paths {
			a, err := corpus.Load(path)
			if err != nil {
				logger.Warn("skipping unreadable artifact", zap.String("path", path), zap.Error(err))
				continue
			}
			o, err := replay(out, h, a)
			if err != nil {
				return err
			}
			if !o.Defect() {
				continue
			}
			defects++
			if saveDir != "" {
				saved, err := saveReport(saveDir, a, o)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  saved %s\n", saved)
			}
		}

		if defects > 0 {
			return fmt.Errorf("%d of %d artifacts reproduce a defect", defects, len(paths))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&showStack, "stack", false, "Print the goroutine stack captured at each panic")
	replayCmd.Flags().BoolVar(&showOutput, "show-output", false, "Let parsers write to stdout and stderr")
	replayCmd.Flags().StringVarP(&saveDir, "save", "s", "", "Directory to write crash reports for defects")
}

// replay evaluates one artifact and describes the outcome on w.
func replay(w io.Writer, h *harness.Harness, a *corpus.Artifact) (harness.Outcome, error) {
	o, err := h.Evaluate(a.Data)
	if err != nil {
		return o, err
	}
	describe(w, a.Path, o)
	if showStack && o.Fault != nil && len(o.Fault.Stack) > 0 {
		fmt.Fprintf(w, "%s\n", o.Fault.Stack)
	}
	return o, nil
}

// describe prints a one-line summary of o, plus the fault if there is one.
func describe(w io.Writer, path string, o harness.Outcome) {
	var verdict string
	switch {
	case o.Fault == nil:
		verdict = acceptedColor.Sprint(harness.Accepted)
	case o.Verdict == classify.Defect:
		verdict = defectColor.Sprint(classify.Defect)
	default:
		verdict = benignColor.Sprint(classify.Benign)
	}

	fmt.Fprintf(w, "%-8s %-12s %s\n", verdict, o.Testcase.ParserID, path)
	if o.Fault != nil {
		fmt.Fprintf(w, "  %s: %s\n", o.Fault.Kind, o.Fault.Message)
	}
}

// saveReport writes a crash report for o into dir and returns its path.
func saveReport(dir string, a *corpus.Artifact, o harness.Outcome) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	f := fault.Fault{}
	if o.Fault != nil {
		f = *o.Fault
	}
	h := report.NewHeader(o.Testcase.ParserID, f, o.Verdict, a.Data)
	name := fmt.Sprintf("%s-%s.report", o.Testcase.ParserID, h.SHA256[:12])
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report %s: %w", path, err)
	}
	defer file.Close()

	if err := report.NewWriter(file).Write(h, a.Data); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}
