// Command khadb-train builds a khadb collection from a CSV file of
// vectors (one vector per line, comma-separated float32 values) and
// persists the trained result to disk. Grounded on
// schollz/progressbar/v3's Default() bar, the way
// patrikhermansson-hann/example/run_datasets.go reports bulk-load
// progress.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/xDarkicex/khadb/internal/distance"
	"github.com/xDarkicex/khadb/khadb"
)

func main() {
	input := flag.String("input", "", "path to a CSV file of training vectors (required)")
	output := flag.String("output", "khadb.khdy", "path to write the trained collection")
	metricName := flag.String("metric", "euclidean", "distance metric: euclidean, cosine, dot")
	usePQ := flag.Bool("pq", false, "enable product quantization + IVF")
	subvectors := flag.Int("subvectors", 8, "PQ subspace count (M); must divide the vector dimension")
	clusters := flag.Int("clusters", 100, "IVF coarse cluster count (C)")
	probe := flag.Int("probe", 8, "IVF probe width (p)")
	verbose := flag.Bool("v", false, "debug-level logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "khadb-train: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	metric, err := parseMetric(*metricName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -metric")
	}

	vectors, err := readCSVVectors(*input)
	if err != nil {
		log.Fatal().Err(err).Str("input", *input).Msg("failed to read training vectors")
	}
	if len(vectors) == 0 {
		log.Fatal().Msg("no training vectors found in input file")
	}
	dim := len(vectors[0])
	log.Info().Int("vectors", len(vectors)).Int("dimension", dim).Msg("loaded training vectors")

	opts := []khadb.Option{khadb.WithMetric(metric)}
	if *usePQ {
		opts = append(opts, khadb.WithProductQuantization(*subvectors, *clusters, *probe))
	}

	db, err := khadb.Open(dim, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open collection")
	}

	bar := progressbar.Default(int64(len(vectors)), "inserting")
	for _, v := range vectors {
		if _, err := db.Insert(v, nil); err != nil {
			log.Fatal().Err(err).Msg("insert failed")
		}
		_ = bar.Add(1)
	}

	log.Info().Msg("building index")
	if err := db.BuildIndex(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("build_index failed")
	}

	if err := db.Save(*output); err != nil {
		log.Fatal().Err(err).Str("output", *output).Msg("save failed")
	}
	log.Info().Str("output", *output).Int("vectors", db.Len()).Msg("collection saved")
}

func parseMetric(name string) (distance.Metric, error) {
	switch strings.ToLower(name) {
	case "euclidean", "l2":
		return distance.Euclidean, nil
	case "cosine":
		return distance.Cosine, nil
	case "dot", "dot_product", "dotproduct":
		return distance.DotProduct, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// readCSVVectors reads one vector per line, fields comma-separated.
// Blank lines are skipped. Every line must have the same field count
// as the first non-blank line.
func readCSVVectors(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vectors [][]float32
	dim := -1

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if dim == -1 {
			dim = len(fields)
		} else if len(fields) != dim {
			return nil, fmt.Errorf("line %d: got %d fields, want %d", lineNo, len(fields), dim)
		}

		v := make([]float32, len(fields))
		for i, field := range fields {
			x, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, fmt.Errorf("line %d, field %d: %w", lineNo, i, err)
			}
			v[i] = float32(x)
		}
		vectors = append(vectors, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}
