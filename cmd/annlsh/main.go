package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/annlsh"
)

var (
	indexPath string
	family    string
	k, l      int
	seed      uint64
	r, u      float64
	m         int
	probe     int
	onlyIndex bool
)

var rootCmd = &cobra.Command{
	Use:   "annlsh",
	Short: "CLI for building and querying approximate nearest-neighbor LSH indexes",
	Long:  `A command-line binding over the annlsh library: build an index from a CSV of vectors, then predict nearest neighbors for a query vector.`,
}

var fitCmd = &cobra.Command{
	Use:   "fit <vectors.csv>",
	Short: "Build a new index from a CSV of vectors (one per line, comma-separated) and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vecs, err := readCSVVectors(args[0])
		if err != nil {
			return err
		}
		if len(vecs) == 0 {
			return fmt.Errorf("no vectors found in %s", args[0])
		}

		b := annlsh.New[float64](k, l, len(vecs[0])).Seed(seed).MultiProbe(probe).OnlyIndex(onlyIndex)
		idx, err := finalize(b)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		defer idx.Close()

		ctx := context.Background()
		if _, err := idx.StoreVecs(ctx, vecs); err != nil {
			return fmt.Errorf("store vectors: %w", err)
		}

		f, err := os.Create(indexPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", indexPath, err)
		}
		defer f.Close()
		if err := idx.Save(ctx, f); err != nil {
			return fmt.Errorf("save index: %w", err)
		}

		fmt.Printf("fit %d vectors (family=%s k=%d l=%d) into %s\n", len(vecs), family, k, l, indexPath)
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <vector>",
	Short: "Query the top-k nearest neighbors of a comma-separated vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		return runPredict(args[0], topK, nil)
	},
}

var predictTrainsetCmd = &cobra.Command{
	Use:   "predict-trainset <id>",
	Short: "Query the top-k neighbors of an already-stored training point, excluding itself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}

		f, err := os.Open(indexPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", indexPath, err)
		}
		defer f.Close()
		idx, err := annlsh.Load[float64](f)
		if err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		defer idx.Close()

		ctx := context.Background()
		v, err := idx.VectorByID(ctx, id)
		if err != nil {
			return fmt.Errorf("look up id %d: %w", id, err)
		}
		results, err := idx.QueryBucketIdsTopKExcluding(ctx, v, topK, id)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, res := range results {
			fmt.Printf("%d\t%.6f\n", res.ID, res.Score)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "index.lshx", "serialized index path")
	rootCmd.PersistentFlags().StringVar(&family, "family", "srp", "hash family: srp, l2, mips, minhash")
	rootCmd.PersistentFlags().IntVar(&k, "k", 8, "hashers per table")
	rootCmd.PersistentFlags().IntVar(&l, "l", 8, "number of tables")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 1, "PRNG seed")
	rootCmd.PersistentFlags().Float64Var(&r, "r", 1.0, "bucket width (l2, mips)")
	rootCmd.PersistentFlags().Float64Var(&u, "u", 0.75, "mips scale bound in (0,1)")
	rootCmd.PersistentFlags().IntVar(&m, "m", 3, "mips concatenation count")
	rootCmd.PersistentFlags().IntVar(&probe, "probe", 0, "multi-probe budget")
	rootCmd.PersistentFlags().BoolVar(&onlyIndex, "only-index", false, "retain ids but not vectors")

	predictCmd.Flags().Int("top-k", 5, "number of neighbors to return")
	predictTrainsetCmd.Flags().Int("top-k", 5, "number of neighbors to return")

	rootCmd.AddCommand(fitCmd, predictCmd, predictTrainsetCmd)
}

func finalize(b *annlsh.Builder[float64]) (*annlsh.Index[float64], error) {
	switch family {
	case "srp":
		return b.Srp()
	case "l2":
		return b.L2(r)
	case "mips":
		return b.Mips(r, u, m)
	case "minhash":
		return b.MinHash()
	default:
		return nil, fmt.Errorf("unknown family %q", family)
	}
}

func runPredict(vectorStr string, topK int, exclude []int64) error {
	v, err := parseVector(vectorStr)
	if err != nil {
		return err
	}

	f, err := os.Open(indexPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", indexPath, err)
	}
	defer f.Close()
	idx, err := annlsh.Load[float64](f)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	defer idx.Close()

	ctx := context.Background()
	results, err := idx.QueryBucketIdsTopKExcluding(ctx, v, topK, exclude...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	for _, res := range results {
		fmt.Printf("%d\t%.6f\n", res.ID, res.Score)
	}
	return nil
}

func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = val
	}
	return out, nil
}

func readCSVVectors(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var vecs [][]float64
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := parseVector(line)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
