package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// LoadOptions describes the shape of the input table: which columns hold the
// sample identifier, the class label and metadata. Every remaining column is
// treated as a numeric feature. Filters are equality constraints on metadata
// columns applied before the dataset is assembled.
type LoadOptions struct {
	IDColumn      string
	LabelColumn   string
	PositiveLabel string
	MetaColumns   []string
	Filters       map[string]string
}

// LoadCSV loads a dataset from a CSV file with a header row. Each row is one
// sample; the feature block is every column not named as ID, label or
// metadata, kept in file order.
func LoadCSV(filePath string, opts LoadOptions) (*Dataset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[col] = i
	}

	idIdx, ok := indices[opts.IDColumn]
	if !ok {
		return nil, fmt.Errorf("ID column %q not found in header", opts.IDColumn)
	}
	labelIdx, ok := indices[opts.LabelColumn]
	if !ok {
		return nil, fmt.Errorf("label column %q not found in header", opts.LabelColumn)
	}

	metaIdx := make(map[string]int, len(opts.MetaColumns))
	for _, col := range opts.MetaColumns {
		idx, ok := indices[col]
		if !ok {
			return nil, fmt.Errorf("metadata column %q not found in header", col)
		}
		metaIdx[col] = idx
	}

	// Everything that is not ID, label or metadata is a feature column.
	special := map[int]bool{idIdx: true, labelIdx: true}
	for _, idx := range metaIdx {
		special[idx] = true
	}
	var featureNames []string
	var featureIdx []int
	for i, col := range header {
		if !special[i] {
			featureNames = append(featureNames, col)
			featureIdx = append(featureIdx, i)
		}
	}
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("no feature columns found in %s", filePath)
	}

	var samples []Sample
	rows, skipped := 0, 0
	for {
		record, err := reader.Read()
		if err != nil {
			break // EOF or error
		}
		rows++

		meta := make(map[string]string, len(metaIdx))
		for col, idx := range metaIdx {
			meta[col] = record[idx]
		}

		if !matchesFilters(meta, opts.Filters) {
			skipped++
			continue
		}

		features := make([]float64, len(featureIdx))
		bad := false
		for j, idx := range featureIdx {
			v, err := strconv.ParseFloat(record[idx], 64)
			if err != nil {
				bad = true
				break
			}
			features[j] = v
		}
		if bad {
			skipped++
			continue
		}

		samples = append(samples, Sample{
			ID:       record[idIdx],
			Label:    record[labelIdx],
			Features: features,
			Meta:     meta,
		})
	}

	ds, err := New(featureNames, samples, opts.PositiveLabel)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", filePath).
		Int("rows", rows).
		Int("kept", len(samples)).
		Int("skipped", skipped).
		Int("features", len(featureNames)).
		Msg("CSV dataset loaded")

	return ds, nil
}

func matchesFilters(meta map[string]string, filters map[string]string) bool {
	for k, v := range filters {
		if meta[k] != v {
			return false
		}
	}
	return true
}
