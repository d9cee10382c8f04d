package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/voyager/classify"
	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/unified"
)

func newMemoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Store, recall and inspect agent memory",
	}
	cmd.AddCommand(
		newStoreCmd(a),
		newRecallCmd(a),
		newStatsCmd(a),
		newFinalizeCmd(a),
		newClassifyCmd(a),
		newDemoCmd(a),
	)
	return cmd
}

func newStoreCmd(a *app) *cobra.Command {
	var kind, speaker string

	cmd := &cobra.Command{
		Use:   "store <content>",
		Short: "Store information in unified memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSpace(cmd, func(s *space) error {
				res := s.Store(cmd.Context(), unified.StoreRequest{
					Content: args[0],
					Kind:    memory.Kind(kind),
					Speaker: speaker,
				})
				if !res.OK {
					fmt.Fprintf(cmd.ErrOrStderr(), "❌ Failed to store memory: %v\n", res.Err)
					return errReported
				}

				label := kind
				if label == "" {
					label = "auto-classified"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Stored in %s memory (%s, %s layer)\n", label, res.Kind, res.Layer)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", "", "Memory type (skill/fact/context/dialogue)")
	cmd.Flags().StringVarP(&speaker, "speaker", "s", memory.DefaultSpeaker, "Who provided the information")
	return cmd
}

func newRecallCmd(a *app) *cobra.Command {
	var (
		limit int
		kinds []string
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Recall information from unified memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}
			opts := unified.RecallOptions{Limit: limit}
			for _, k := range kinds {
				opts.Kinds = append(opts.Kinds, memory.Kind(k))
			}

			return a.withSpace(cmd, func(s *space) error {
				bundle := s.Recall(cmd.Context(), args[0], opts)
				if bundle.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  Partial recall: %v\n", bundle.Err)
				}

				if raw {
					return writeJSON(cmd.OutOrStdout(), bundle)
				}
				fmt.Fprintln(cmd.OutOrStdout(), unified.Digest(bundle))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", unified.DefaultQuickRecallLimit, "Maximum results per type")
	cmd.Flags().StringSliceVarP(&kinds, "types", "t", nil, "Restrict to these types (comma separated)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full result as JSON")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show unified memory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSpace(cmd, func(s *space) error {
				stats := s.Stats(cmd.Context())
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON")
	return cmd
}

func printStats(w io.Writer, stats unified.Stats) {
	fmt.Fprintln(w, "📊 Unified Memory Statistics")
	fmt.Fprintln(w, strings.Repeat("=", 30))
	fmt.Fprintf(w, "Total Entries: %d\n", stats.TotalEntries)

	if stats.TotalEntries > 0 {
		fmt.Fprintln(w, "\nMemory Types:")
		rows := []struct {
			title string
			count int
		}{
			{"Skills", stats.Counts.Skills},
			{"Facts", stats.Counts.Facts},
			{"Context", stats.Counts.Context},
			{"Dialogue", stats.Counts.Dialogue},
		}
		for _, r := range rows {
			if r.count > 0 {
				pct := float64(r.count) / float64(stats.TotalEntries) * 100
				fmt.Fprintf(w, "  %s: %d (%.1f%%)\n", r.title, r.count, pct)
			}
		}
	}

	fmt.Fprintln(w, "\nSystems:")
	fmt.Fprintf(w, "  Entry Store: %s\n", status(stats.EntryStore.Available))
	fmt.Fprintf(w, "  Episodic: %s\n", status(stats.Episodic.Available))
	if stats.Episodic.CountsKnown {
		fmt.Fprintf(w, "    turns: %d, pending: %d, facts: %d\n",
			stats.Episodic.Turns, stats.Episodic.Pending, stats.Episodic.Facts)
	}
}

func status(ok bool) string {
	if ok {
		return "✅ Active"
	}
	return "❌ Unavailable"
}

func newFinalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize",
		Short: "Finalize the memory session (compress dialogue into facts)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSpace(cmd, func(s *space) error {
				res := s.FinalizeSession(cmd.Context())
				if !res.OK {
					fmt.Fprintf(cmd.ErrOrStderr(), "❌ Failed to finalize memory session: %v\n", res.Err)
					return errReported
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Memory session finalized")
				return nil
			})
		},
	}
}

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <content>",
		Short: "Show which memory type content would be stored as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			d := classify.New(cfg.Classifier).Explain(args[0])
			if d.Keyword == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (no keyword matched)\n", d.Kind)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (matched %q)\n", d.Kind, d.Keyword)
			return nil
		},
	}
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Store and recall sample memories in a throwaway project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := os.MkdirTemp("", "voyager-demo-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg.ProjectDir = dir
			cfg.AgentName = "demo"

			s, err := a.open(cmd, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			return runDemo(cmd, s)
		},
	}
}

func runDemo(cmd *cobra.Command, s *space) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Storing memories...")
	samples := []unified.StoreRequest{
		{Content: "How to perform SQL injection testing: Use sqlmap with --batch flag for automated testing", Kind: memory.KindSkill},
		{Content: "Found XSS vulnerability in login form at /admin/login on 2025-01-11", Kind: memory.KindFact},
		{Content: "Currently working on penetration test of example.com web application", Kind: memory.KindContext},
		{Content: "The target appears to be running Apache 2.4.41 with PHP 7.4", Speaker: "scanner"},
	}
	for _, req := range samples {
		if res := s.Store(ctx, req); !res.OK {
			fmt.Fprintf(out, "  ❌ %s: %v\n", res.Kind, res.Err)
		}
	}

	fmt.Fprintln(out, "\nRecalling memories...")
	for _, query := range []string{
		"SQL injection techniques",
		"XSS vulnerabilities found",
		"What am I working on?",
		"Apache version",
	} {
		fmt.Fprintf(out, "\nQuery: %s\n", query)
		bundle := s.Recall(ctx, query, unified.RecallOptions{Limit: unified.DefaultQuickRecallLimit})
		fmt.Fprintln(out, unified.Digest(bundle))
	}

	fmt.Fprintln(out, "\nMemory Statistics:")
	stats := s.Stats(ctx)
	fmt.Fprintf(out, "Total entries: %d\n", stats.TotalEntries)
	for _, k := range memory.Kinds() {
		if n := stats.Counts.Get(k); n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", k.Slot(), n)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
