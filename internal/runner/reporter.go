package runner

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Reporter writes the tabular summary of an Outcome. The output directory is
// an explicit parameter; nothing here relies on the working directory.
type Reporter struct {
	outcome    *Outcome
	outputPath string
}

// NewReporter creates a reporter writing under outputPath.
func NewReporter(outcome *Outcome, outputPath string) *Reporter {
	return &Reporter{outcome: outcome, outputPath: outputPath}
}

// GenerateReport writes all report files.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateRunLog(); err != nil {
		return err
	}

	if err := r.generateCurve(); err != nil {
		return err
	}

	return r.generateOutlierLog()
}

// generateRunLog writes one row per repetition: index, AUC, selected
// features joined by a delimiter, artifact reference, parameter text and the
// error marker for failed runs.
func (r *Reporter) generateRunLog() error {
	csvPath := filepath.Join(r.outputPath, "run_summary.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create run summary: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Run", "AUC", "Features", "Artifact", "Params", "Error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range r.outcome.Records {
		auc := ""
		if !rec.Failed() {
			auc = fmt.Sprintf("%.4f", rec.AUC)
		}
		record := []string{
			fmt.Sprintf("%d", rec.Run),
			auc,
			strings.Join(rec.Features, ";"),
			rec.Artifact,
			rec.Params,
			rec.Err,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", csvPath).Msg("Run summary generated")
	return nil
}

// generateCurve writes the pooled aggregate curve and its confidence band.
func (r *Reporter) generateCurve() error {
	csvPath := filepath.Join(r.outputPath, "aggregate_curve.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create curve file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"FPR", "TPR"}); err != nil {
		return err
	}
	for i := range r.outcome.FPR {
		record := []string{
			fmt.Sprintf("%.6f", r.outcome.FPR[i]),
			fmt.Sprintf("%.6f", r.outcome.TPR[i]),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	bandPath := filepath.Join(r.outputPath, "confidence_band.csv")
	bandFile, err := os.Create(bandPath)
	if err != nil {
		return fmt.Errorf("failed to create band file: %w", err)
	}
	defer bandFile.Close()

	bandWriter := csv.NewWriter(bandFile)
	defer bandWriter.Flush()

	if err := bandWriter.Write([]string{"FPR", "TPR", "Lower", "Upper"}); err != nil {
		return err
	}
	band := r.outcome.Band
	for i := range band.FPR {
		record := []string{
			fmt.Sprintf("%.6f", band.FPR[i]),
			fmt.Sprintf("%.6f", band.TPR[i]),
			fmt.Sprintf("%.6f", band.Lower[i]),
			fmt.Sprintf("%.6f", band.Upper[i]),
		}
		if err := bandWriter.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("curve", csvPath).Str("band", bandPath).Msg("Aggregate curve generated")
	return nil
}

// generateOutlierLog writes the per-run proximity outlier flags for review.
func (r *Reporter) generateOutlierLog() error {
	csvPath := filepath.Join(r.outputPath, "outliers.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create outlier log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Run", "Sample", "Proximity", "OutlierScore", "Flagged"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, diag := range r.outcome.Diagnostics {
		for _, o := range diag.Outliers {
			if !o.Flagged {
				continue
			}
			record := []string{
				fmt.Sprintf("%d", diag.Run),
				o.SampleID,
				fmt.Sprintf("%.4f", o.Proximity),
				fmt.Sprintf("%.4f", o.Score),
				"true",
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	log.Info().Str("file", csvPath).Msg("Outlier log generated")
	return nil
}

// PrintSummary prints a batch summary to the console.
func (r *Reporter) PrintSummary() {
	o := r.outcome
	fmt.Println("\n=== DISCRIMINATION RESULTS ===")
	fmt.Printf("Repetitions: %d (%d succeeded, %d failed)\n",
		len(o.Records), o.Successes, len(o.Records)-o.Successes)
	fmt.Printf("Pooled AUC: %.4f\n", o.AUC)
	for _, rec := range o.Records {
		if rec.Failed() {
			fmt.Printf("  run %d: FAILED (%s)\n", rec.Run, rec.Err)
			continue
		}
		fmt.Printf("  run %d: AUC %.4f, %d features\n", rec.Run, rec.AUC, len(rec.Features))
	}
	fmt.Println("==============================")
}
