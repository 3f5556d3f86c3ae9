package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/newsplaces/internal/metrics"
	"github.com/ppiankov/newsplaces/internal/ocr"
	"github.com/ppiankov/newsplaces/internal/store"
)

// ocrCmd represents the ocr command
var ocrCmd = &cobra.Command{
	Use:   "ocr [folder]",
	Short: "OCR every PDF in a folder into the document table",
	Long: `OCR converts each PDF in the folder (default ./column) to text:
- Render pages with pdftoppm and read them with tesseract
- Process files in parallel with a configurable worker count
- Skip files that fail, reporting the error
- Write filename,extracted_text rows in file name order

Example:
  newsplaces ocr
  newsplaces ocr ./scans --output ocr_results.csv --workers 4
  newsplaces ocr --text-layer --max-pages 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOCR,
}

var ocrFlagKeys = map[string]string{
	"output":     "ocr.output_path",
	"workers":    "ocr.workers",
	"dpi":        "ocr.dpi",
	"lang":       "ocr.lang",
	"max-pages":  "ocr.max_pages",
	"text-layer": "ocr.use_text_layer",
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	f := ocrCmd.Flags()
	f.String("output", "ocr_results.csv", "document table to write")
	f.Int("workers", 0, "number of files converted at once (default: number of CPUs)")
	f.Int("dpi", 300, "render resolution passed to pdftoppm")
	f.String("lang", "eng", "tesseract language")
	f.Int("max-pages", 0, "only OCR the first N pages of each file (0 = all)")
	f.Bool("text-layer", false, "use the PDF's embedded text when it has one")
	f.String("metrics-file", "", "write Prometheus metrics to this file at the end of the run")
}

func runOCR(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := bindFlags(v, cmd.Flags(), ocrFlagKeys); err != nil {
		return err
	}
	if err := v.BindPFlag("metrics.file", cmd.Flags().Lookup("metrics-file")); err != nil {
		return err
	}
	cfg, logger, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.OCR.InputDir = args[0]
	}
	start := time.Now()

	m := metrics.New()
	extractor := ocr.NewExtractor(cfg.OCR, logger)
	stage := ocr.NewStage(extractor, cfg.OCR.Workers, m, logger, cmd.ErrOrStderr())

	docs, runErr := stage.Run(cmd.Context(), cfg.OCR.InputDir)

	if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
		logger.Warn("ocr.metrics.write_failed", "path", cfg.Metrics.File, "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("ocr failed: %w", runErr)
	}

	if err := store.WriteDocuments(cfg.OCR.OutputPath, docs); err != nil {
		return fmt.Errorf("write %s: %w", cfg.OCR.OutputPath, err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "OCR results saved to %s (%d documents in %s)\n",
		cfg.OCR.OutputPath, len(docs), elapsed(start))
	return nil
}
