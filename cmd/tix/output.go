package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tixhq/tix/internal/tixerr"
)

// printJSON writes v as a single compact JSON line to stdout, per
// spec.md 6.3's "single-line JSON object" contract for mutations and
// query output alike.
func printJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return tixerr.New(tixerr.KindInvalidArg, "cmd.printJSON", "%v", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}

// mutationResult is the fixed shape spec.md 6.3 requires every
// mutating subcommand to print on success.
type mutationResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func tixerrInvalidPriority(value string) error {
	return tixerr.New(tixerr.KindInvalidArg, "cmd.prioritize", "unrecognized priority %q", value)
}

// exitCodeFor maps an error to a process exit code via the tixerr
// taxonomy (spec.md 7), falling back to 1 for anything unclassified
// (e.g. cobra's own usage errors).
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	kind := tixerr.KindOf(err)
	if kind == tixerr.KindUnknown {
		return 1
	}
	return kind.ExitCode()
}
