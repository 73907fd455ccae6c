package main

import (
	"errors"
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/pfez/revng-c/colors"
	"github.com/pfez/revng-c/internal/config"
	"github.com/pfez/revng-c/internal/flowgraph"
	"github.com/pfez/revng-c/internal/restructure"
)

const version = "0.1.0"

func main() {
	klog.InitFlags(nil)

	cfg := config.Default()
	var cfgPath string

	root := &cobra.Command{
		Use:           "revng-c",
		Short:         "Decompiler core: control-flow restructuring, bit liveness, data layouts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				return nil
			}
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML run configuration")
	// Expose the klog verbosity flags (-v, -logtostderr, ...).
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	restructureCmd := &cobra.Command{
		Use:   "restructure <cfg.dot>",
		Short: "Comb a CFG fixture into a structured AST and print it as dot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			rc, err := flowgraph.ParseDot(in, "entry")
			if err != nil {
				return err
			}
			tree, err := restructure.RestructureCFG(rc, restructure.Options{
				DuplicateWhileConditionInBody: cfg.DuplicateWhileConditionInBody,
				MaxInflation:                  cfg.MaxInflation,
			})
			if err != nil {
				if errors.Is(err, flowgraph.ErrIrreducible) {
					colors.RED.Fprintln(os.Stderr, err)
					os.Exit(2)
				}
				return err
			}
			return tree.WriteDot(os.Stdout)
		},
	}

	equivalentCmd := &cobra.Command{
		Use:   "equivalent <a.dot> <b.dot>",
		Short: "Decide topological equivalence of two CFG fixtures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			graphs := make([]*flowgraph.RegionCFG, 2)
			for i, path := range args {
				in, err := os.Open(path)
				if err != nil {
					return err
				}
				rc, err := flowgraph.ParseDot(in, "entry")
				in.Close()
				if err != nil {
					return err
				}
				graphs[i] = rc
			}
			if graphs[0].IsTopologicallyEquivalent(graphs[1]) {
				colors.GREEN.Println("equivalent")
				return nil
			}
			colors.YELLOW.Println("not equivalent")
			os.Exit(1)
			return nil
		},
	}

	root.AddCommand(restructureCmd, equivalentCmd)

	if err := root.Execute(); err != nil {
		colors.RED.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
