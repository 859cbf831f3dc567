package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/pkg/livetree"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

type benchConfig struct {
	Size   int     `json:"size"`
	Rounds int     `json:"rounds"`
	Seed   uint64  `json:"seed"`
	Churn  float64 `json:"churn"`
}

type benchResult struct {
	Config   benchConfig   `json:"config"`
	Stats    vdom.Stats    `json:"stats"`
	Bound    int           `json:"bound"`   // sum of len - LIS over all rounds
	Optimal  int           `json:"optimal"` // rounds whose moves met the bound
	Duration time.Duration `json:"duration"`
}

func benchCmd() *cobra.Command {
	var (
		cfg    benchConfig
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Reconcile random reorderings and compare moves with the optimum",
		Long: `Reconcile a keyed list of --size nodes into --rounds random
reorderings. With --churn a fraction of the nodes is replaced by new
keys in every round.

For each round the number of moves is compared with the lower bound,
the number of kept nodes minus the length of their longest increasing
subsequence.

Examples:
  vdiff bench
  vdiff bench --size 1000 --rounds 200 --churn 0.1 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Size < 1 || cfg.Rounds < 1 {
				return fmt.Errorf("size and rounds must be positive")
			}
			if cfg.Churn < 0 || cfg.Churn > 1 {
				return fmt.Errorf("churn must be between 0 and 1")
			}
			res, err := runBench(cfg)
			if err != nil {
				return err
			}
			return printBench(cmd.OutOrStdout(), res, asJSON)
		},
	}

	cmd.Flags().IntVarP(&cfg.Size, "size", "n", 100, "Number of keyed children")
	cmd.Flags().IntVarP(&cfg.Rounds, "rounds", "r", 100, "Number of reorderings")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "Random seed")
	cmd.Flags().Float64Var(&cfg.Churn, "churn", 0, "Fraction of nodes replaced per round")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func runBench(cfg benchConfig) (*benchResult, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	res := &benchResult{Config: cfg}

	doc := livetree.New()
	root := doc.Root()
	keys := make([]string, cfg.Size)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	prev := listOf(keys)
	if err := vdom.Reconcile(doc, root, nil, prev); err != nil {
		return nil, err
	}

	fresh := 0
	for range cfg.Rounds {
		var sources []int
		keys, sources = reorder(rng, keys, cfg.Churn, &fresh)
		next := listOf(keys)

		counter := vdom.NewCounter(doc)
		start := time.Now()
		if err := vdom.Reconcile(counter, root, prev, next); err != nil {
			return nil, err
		}
		res.Duration += time.Since(start)

		bound := vdom.MinMoves(sources)
		res.Stats = res.Stats.Add(counter.Stats)
		res.Bound += bound
		if counter.Stats.Moved == bound {
			res.Optimal++
		}
		prev = next
	}
	if err := livetree.EqualChildren(root, prev); err != nil {
		return nil, fmt.Errorf("bench: live tree diverged: %w", err)
	}
	return res, nil
}

// reorder shuffles keys and replaces a churn fraction of them with new keys.
// sources[i] is the old index of next[i], or -1 for a new key.
func reorder(rng *rand.Rand, keys []string, churn float64, fresh *int) (next []string, sources []int) {
	n := len(keys)
	perm := rng.Perm(n)
	next = make([]string, n)
	sources = make([]int, n)
	for i, j := range perm {
		next[i] = keys[j]
		sources[i] = j
	}
	for range int(churn * float64(n)) {
		i := rng.IntN(n)
		if sources[i] == -1 {
			continue
		}
		*fresh++
		next[i] = fmt.Sprintf("n%d", *fresh)
		sources[i] = -1
	}
	return next, sources
}

func listOf(keys []string) []*vdom.VNode {
	nodes := make([]*vdom.VNode, len(keys))
	for i, k := range keys {
		nodes[i] = &vdom.VNode{Kind: vdom.KindElement, Tag: "li", Key: k}
	}
	return nodes
}

func printBench(w io.Writer, res *benchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	c := res.Config
	fmt.Fprintf(w, "%s size=%d rounds=%d churn=%.2f seed=%d\n", bold("bench"), c.Size, c.Rounds, c.Churn, c.Seed)
	info(w, "moves      %d (bound %d)", res.Stats.Moved, res.Bound)
	info(w, "inserts    %d", res.Stats.Inserted)
	info(w, "removes    %d", res.Stats.Removed)
	info(w, "updates    %d", res.Stats.Updated)
	info(w, "per pass   %s", res.Duration/time.Duration(c.Rounds))
	if res.Optimal == c.Rounds {
		success(w, "every round met the move bound")
	} else {
		failure(w, "%d of %d rounds exceeded the move bound", c.Rounds-res.Optimal, c.Rounds)
	}
	return nil
}
