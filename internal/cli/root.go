package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"reposplit/internal/config"
	"reposplit/internal/flags"
	"reposplit/internal/logging"
	"reposplit/internal/output"
	"reposplit/internal/partition"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

// rootOptions is the state shared by the root command and its subcommands.
type rootOptions struct {
	cfg        *config.Config
	configPath string
	log        *zap.Logger
}

func NewRootCmd() *cobra.Command {
	o := &rootOptions{cfg: config.New(), log: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "reposplit",
		Short: "Split a repository map in two by the value of one record field",
		Long: `reposplit reads a JSON object that maps repository identifiers to metadata
records and writes it back out as two files.

A record goes to the matching file when its lastCheckedAt field is missing or
null, or is a string starting with "2023". Every other record goes to the
other file. Field and prefix can be changed with --field and --prefix.

Examples:
	# Split found_repositories.json into the default output files
	reposplit

	# Split another file
	reposplit --input data/repos.json --matched-out stale.json --other-out fresh.json

	# Look up the matching repositories on GitHub
	reposplit check

	# Print build info
	reposplit version

Output:
	Both files are JSON objects indented with two spaces. Non-ASCII text is
	written as-is. Keys keep the order of the input file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigFile(cmd, o.cfg, o.configPath); err != nil {
				return err
			}
			log, err := logging.New(o.cfg.Runtime.Verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			o.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = o.log.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, o)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	// Shared by split and check.
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, flags.FlagConfig, "", "YAML config file; explicitly set flags take precedence")
	pf.StringVar(&o.cfg.Input.Path, flags.FlagInput, o.cfg.Input.Path, "Repository map to split (JSON object)")
	pf.StringVar(&o.cfg.Predicate.Field, flags.FlagField, o.cfg.Predicate.Field, "Record field inspected by the split")
	pf.StringVar(&o.cfg.Predicate.Prefix, flags.FlagPrefix, o.cfg.Predicate.Prefix, "String prefix that selects a record for the matching file (null or missing always matches)")
	pf.BoolVar(&o.cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable debug logging on stderr")

	cmd.Flags().StringVar(&o.cfg.Output.Matched, flags.FlagMatchedOut, o.cfg.Output.Matched, "File receiving matching records")
	cmd.Flags().StringVar(&o.cfg.Output.Other, flags.FlagOtherOut, o.cfg.Output.Other, "File receiving all other records")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newCheckCmd(o))
	return cmd
}

func runSplit(cmd *cobra.Command, o *rootOptions) error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	sum, err := partition.Run(partition.Options{
		Input:      o.cfg.Input.Path,
		MatchedOut: o.cfg.Output.Matched,
		OtherOut:   o.cfg.Output.Other,
		Predicate: partition.Predicate{
			Field:  o.cfg.Predicate.Field,
			Prefix: o.cfg.Predicate.Prefix,
		},
		Logger: o.log,
	})
	if err != nil {
		return err
	}
	return output.PrintSplitSummary(cmd.OutOrStdout(), sum)
}

// applyConfigFile overlays the YAML file at path onto cfg, then re-applies
// every flag the user set so the command line wins over the file.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config, path string) error {
	if path == "" {
		return nil
	}

	type saved struct {
		scalar string
		slice  []string
	}
	explicit := make(map[string]saved)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			explicit[f.Name] = saved{slice: append([]string(nil), sv.GetSlice()...)}
			return
		}
		explicit[f.Name] = saved{scalar: f.Value.String()}
	})

	if err := cfg.LoadFile(path); err != nil {
		return err
	}

	for name, v := range explicit {
		if name == flags.FlagConfig {
			continue
		}
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if err := sv.Replace(v.slice); err != nil {
				return fmt.Errorf("re-apply --%s: %w", name, err)
			}
			continue
		}
		if err := f.Value.Set(v.scalar); err != nil {
			return fmt.Errorf("re-apply --%s: %w", name, err)
		}
	}
	return nil
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

// exitCoder lets a command choose its process exit code.
type exitCoder interface {
	ExitCode() int
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ec exitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}
