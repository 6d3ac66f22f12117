package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"redcell/internal/assess"
	"redcell/internal/config"
	"redcell/internal/grader"
	"redcell/internal/guardrail"
	"redcell/internal/plugin"
	"redcell/internal/report"
	"redcell/internal/strategy"
	"redcell/internal/target"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "redcell",
		Short:         "Adversarial assessment tool for LLM applications",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	root.AddCommand(
		newRunCommand(),
		newPluginsCommand(),
		newStrategiesCommand(),
		newPresetsCommand(),
		newGuardCommand(),
		newVersionCommand(),
	)
	return root
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func newRunCommand() *cobra.Command {
	var (
		configPath string
		outputDir  string
		formats    []string
		dryRun     bool
		failOnVuln bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an assessment described by a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			if len(formats) > 0 {
				cfg.Output.Formats = formats
			}

			logger := slog.Default()
			engine := assess.NewEngine(
				plugin.NewRegistry(logger, plugin.Builtins()...),
				strategy.NewRegistry(strategy.Builtins()...),
				grader.New(logger),
				logger,
			)
			spec := assess.Spec{
				Plugins:       cfg.Plugins,
				Strategies:    cfg.Strategies,
				NumTests:      cfg.NumTests,
				MaxConcurrent: cfg.MaxConcurrent,
				Params:        cfg.Params,
			}

			if dryRun {
				cases, err := engine.Expand(spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "plan: %d test cases against %s\n", len(cases), cfg.Target.Name)
				for _, tc := range cases {
					label := "base"
					if tc.StrategyID != "" {
						label = tc.StrategyID
					}
					fmt.Fprintf(cmd.OutOrStdout(), "  [%4d] %-18s %-14s %s\n", tc.Seq, tc.PluginID, label, truncateLine(tc.Prompt, 60))
				}
				return nil
			}

			client, err := target.New(cfg.Target)
			if err != nil {
				return err
			}
			result, err := engine.Run(cmd.Context(), client, spec)
			if err != nil {
				return err
			}

			writer := report.NewWriter(cfg.Output.Dir, logger)
			paths, writeErr := writer.WriteAll(result, cfg.Output.Formats)
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), "report:", path)
			}
			if writeErr != nil {
				return writeErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "tests=%d vulnerabilities=%d errors=%d attack_success_rate=%.1f%%\n",
				result.TotalTests, result.VulnerabilitiesFound, result.ErrorTests, result.AttackSuccessRate*100)
			if failOnVuln && result.VulnerabilitiesFound > 0 {
				return fmt.Errorf("%d vulnerabilities found", result.VulnerabilitiesFound)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to run config YAML/JSON")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "report output directory override")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "report formats override: json,text,html")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "expand the test plan without invoking the target")
	cmd.Flags().BoolVar(&failOnVuln, "fail-on-vuln", false, "exit non-zero when vulnerabilities are found")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newPluginsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List available attack plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := make([]plugin.Info, 0)
			for _, p := range plugin.Builtins() {
				infos = append(infos, p.Info())
			}
			sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
			if asJSON {
				return printJSON(cmd, infos)
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-10s %s\n", info.ID, info.DefaultSeverity, info.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}

func newStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List available attack strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategies := strategy.Builtins()
			sort.Slice(strategies, func(i, j int) bool { return strategies[i].ID() < strategies[j].ID() })
			for _, s := range strategies {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", s.ID(), s.Description())
			}
			return nil
		},
	}
}

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List compliance presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, preset := range config.Presets() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n  %s\n  plugins: %s\n  strategies: %s\n",
					preset.Name,
					preset.Description,
					strings.Join(preset.Plugins, ", "),
					strings.Join(preset.Strategies, ", "))
			}
			return nil
		},
	}
}

func newGuardCommand() *cobra.Command {
	var (
		direction string
		redactPII bool
	)
	cmd := &cobra.Command{
		Use:   "guard [text]",
		Short: "Run a one-shot guardrail check over the given text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guard := guardrail.New(guardrail.Config{RedactPII: redactPII}, slog.Default())
			text := strings.Join(args, " ")
			var verdict guardrail.Verdict
			switch strings.ToLower(strings.TrimSpace(direction)) {
			case "input":
				verdict = guard.CheckInput(cmd.Context(), text)
			case "output":
				verdict = guard.CheckOutput(cmd.Context(), text)
			default:
				return fmt.Errorf("direction must be input or output, got %q", direction)
			}
			return printJSON(cmd, verdict)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "input", "check direction: input|output")
	cmd.Flags().BoolVar(&redactPII, "redact-pii", true, "redact matched PII instead of blocking")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the redcell version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "redcell", version)
		},
	}
}

func printJSON(cmd *cobra.Command, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
