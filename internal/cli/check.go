package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reposplit/internal/check"
	"reposplit/internal/config"
	"reposplit/internal/dataset"
	"reposplit/internal/flags"
	gh "reposplit/internal/github"
	"reposplit/internal/output"
	"reposplit/internal/partition"
)

// attentionError reports a completed check that found repositories needing
// attention.
type attentionError struct {
	failed int
	total  int
}

func (e *attentionError) Error() string {
	return fmt.Sprintf("%d of %d repositories need attention", e.failed, e.total)
}

func (e *attentionError) ExitCode() int { return 2 }

func newCheckCmd(o *rootOptions) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Look up the repositories of one partition on GitHub",
		Long: `Split the input exactly like the root command (without writing any files) and
look up every repository of one half on GitHub.

Keys must be OWNER/REPO or github.com URLs. Each key gets one status:
	ACTIVE    repository exists
	ARCHIVED  repository exists but is archived
	MISSING   GitHub answered 404 (deleted, or private to this token)
	INVALID   key does not name a GitHub repository
	ERROR     lookup failed for another reason

Authentication:
	GITHUB_TOKEN, then GH_TOKEN, then "gh auth token". Without a token, lookups
	are anonymous and heavily rate limited.

Exit codes:
	0 = every repository is ACTIVE or ARCHIVED
	1 = fatal error (check did not complete)
	2 = some repositories are MISSING, INVALID or ERROR

Examples:
	# Check never-checked and 2023-checked repositories
	reposplit check

	# Check the other half, stream NDJSON events, and keep a JSON copy
	reposplit check --partition other --format ndjson --out results.json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, o, statuses)
		},
	}

	cfg := o.cfg
	cmd.Flags().StringVar(&cfg.Check.Partition, flags.FlagPartition, cfg.Check.Partition, "Half to look up: matched|other")
	cmd.Flags().StringVar(&cfg.Check.Format, flags.FlagFormat, cfg.Check.Format, "Console output format: text|json|ndjson")
	cmd.Flags().StringSliceVar(&statuses, flags.FlagStatus, nil, "Only print results with these statuses (comma-separated)")
	cmd.Flags().StringVar(&cfg.Check.APIURL, flags.FlagAPIURL, cfg.Check.APIURL, "GitHub REST API root (default: https://api.github.com/)")
	cmd.Flags().StringVar(&cfg.Check.Out, flags.FlagOut, cfg.Check.Out, "Also write results to this file")
	cmd.Flags().StringVar(&cfg.Check.OutFormat, flags.FlagOutFormat, cfg.Check.OutFormat, "Format for --out: json|ndjson (default: inferred from extension)")
	cmd.Flags().IntVar(&cfg.Check.Concurrency, flags.FlagConcurrency, cfg.Check.Concurrency, "Concurrent GitHub lookups")
	cmd.Flags().DurationVar(&cfg.Check.Timeout, flags.FlagTimeout, cfg.Check.Timeout, "Timeout for the whole check")
	return cmd
}

func runCheck(cmd *cobra.Command, o *rootOptions, statuses []string) error {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Check.Timeout)
	defer cancel()

	keys, err := partitionKeys(cfg)
	if err != nil {
		return err
	}
	o.log.Debug("selected partition", zap.String("partition", cfg.Check.Partition), zap.Int("repositories", len(keys)))

	token, source, err := gh.ResolveAuthToken(ctx)
	if err != nil {
		return fmt.Errorf("resolve GitHub auth token: %w", err)
	}
	if token == "" {
		o.log.Warn("no GitHub token found; using anonymous requests")
	} else {
		o.log.Debug("resolved GitHub token", zap.String("source", string(source)))
	}

	client, err := gh.NewClient(ctx, token, gh.WithLogger(o.log), gh.WithBaseURL(cfg.Check.APIURL))
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}
	checker, err := check.New(client, cfg.Check.Concurrency, o.log)
	if err != nil {
		return err
	}

	mgr := output.NewManager()
	if err := mgr.AddSink(output.NewConsoleSink(cmd.OutOrStdout(), cfg.Check.Format, statuses)); err != nil {
		return err
	}
	if cfg.Check.Out != "" {
		fs, err := output.NewFileSink(cfg.Check.Out, cfg.Check.OutFormat)
		if err != nil {
			return err
		}
		if err := mgr.AddSink(fs); err != nil {
			_ = fs.Close()
			return err
		}
	}

	if err := mgr.Write(output.Event{Type: output.EventCheckStarted, Partition: cfg.Check.Partition, Total: len(keys)}); err != nil {
		_ = mgr.Close()
		return err
	}

	sum, runErr := checker.Run(ctx, keys, func(r check.Result) error {
		return mgr.Write(r)
	})
	if runErr != nil {
		_ = mgr.Close()
		return fmt.Errorf("check %s partition: %w", cfg.Check.Partition, runErr)
	}

	exitCode := 0
	if sum.Failed() > 0 {
		exitCode = 2
	}
	finished := output.Event{
		Type:      output.EventCheckFinished,
		Partition: cfg.Check.Partition,
		Total:     sum.Total,
		Failures:  sum.Failed(),
		ExitCode:  exitCode,
	}
	if err := mgr.Write(finished); err != nil {
		_ = mgr.Close()
		return err
	}
	if err := mgr.Close(); err != nil {
		return err
	}

	if cfg.Check.Format == "text" {
		if err := output.PrintCheckSummary(cmd.OutOrStdout(), cfg.Check.Partition, sum); err != nil {
			return err
		}
	}
	if sum.Failed() > 0 {
		return &attentionError{failed: sum.Failed(), total: sum.Total}
	}
	return nil
}

func partitionKeys(cfg *config.Config) ([]string, error) {
	ds, err := dataset.Load(cfg.Input.Path)
	if err != nil {
		return nil, err
	}
	res, err := partition.Split(ds, partition.Predicate{Field: cfg.Predicate.Field, Prefix: cfg.Predicate.Prefix})
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", cfg.Input.Path, err)
	}
	if cfg.Check.Partition == config.PartitionOther {
		return res.Other.Keys(), nil
	}
	return res.Matched.Keys(), nil
}
