package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raaihank/doc-sanitizer/internal/bootstrap"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// --- Sanitize ---

var (
	sanitizeProfile string
	sanitizeOutput  string
)

func newSanitizeCmd() *cobra.Command {
	sanitizeCmd := &cobra.Command{
		Use:   "sanitize <file>",
		Short: "Sanitize a local document into Markdown",
		Long: `Extracts the document text, asks the local model to rewrite it under the
selected profile and writes the result next to the input as <name>_sanitized.md.
Use --output - to print the result instead.`,
		Args: cobra.ExactArgs(1),
		RunE: sanitizeDocument,
	}
	sanitizeCmd.Flags().StringVarP(&sanitizeProfile, "profile", "p", "", "Profile id or name (default profile when empty)")
	sanitizeCmd.Flags().StringVarP(&sanitizeOutput, "output", "o", "", "Output path, - for stdout")
	return sanitizeCmd
}

func sanitizeDocument(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg, log, err := loadConfig(cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer log.Sync()

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", input, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", input)
	}

	rt, err := bootstrap.Build(cfg, log, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.App.Extractors().Supports(input) {
		return fmt.Errorf("unsupported file type %q, supported: %s",
			filepath.Ext(input), strings.Join(rt.App.Extractors().Extensions(), ", "))
	}
	if limit := rt.App.Extractors().MaxSize(); info.Size() > limit {
		return fmt.Errorf("%s is %d bytes, maximum is %d", input, info.Size(), limit)
	}

	content, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", input, err)
	}

	res, err := rt.App.SanitizeBytes(commandContext(cmd), content, filepath.Base(input), profile.ParseRef(sanitizeProfile))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sanitizeOutput == "-" {
		fmt.Fprint(out, res.Document)
		return nil
	}

	target := sanitizeOutput
	if target == "" {
		target = defaultOutputPath(input)
	}
	if err := os.WriteFile(target, []byte(res.Document), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	log.Debug("Document written", zap.String("path", target), zap.Bool("cached", res.Cached))
	fmt.Fprintf(out, "Sanitized with profile '%s' using %s\n", res.ProfileName, res.Model)
	fmt.Fprintf(out, "Output: %s\n", target)
	return nil
}

// defaultOutputPath maps report.docx to report_sanitized.md in the same directory
func defaultOutputPath(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), stem+"_sanitized.md")
}
