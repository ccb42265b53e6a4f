package flags

// Package flags defines canonical CLI flag names shared by the CLI and the
// config file overlay. Keeping them as constants avoids drift between Cobra
// flag wiring and code that checks whether a flag was set explicitly.
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Input.Path, flags.FlagInput, "", "...")
//	arg := "--" + flags.FlagInput
const (
	// Input
	FlagInput  = "input"
	FlagConfig = "config"

	// Output
	FlagMatchedOut = "matched-out"
	FlagOtherOut   = "other-out"

	// Predicate
	FlagField  = "field"
	FlagPrefix = "prefix"

	// Check
	FlagPartition   = "partition"
	FlagFormat      = "format"
	FlagStatus      = "status"
	FlagAPIURL      = "api-url"
	FlagOut         = "out"
	FlagOutFormat   = "out-format"
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"

	// Runtime
	FlagVerbose = "verbose"
)
