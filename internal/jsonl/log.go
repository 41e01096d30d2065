package jsonl

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/tixhq/tix/internal/tixerr"
)

// ReadAll reads and decodes every line of the log at path. Malformed
// lines are skipped and reported as warnings rather than failing the
// whole read (spec.md 7's propagation policy: "the cache projector
// ignores individual malformed lines"). The returned warnings slice
// preserves line numbers for diagnostics.
func ReadAll(path string) (lines []*Line, warnings []string, err error) {
	// #nosec G304 - path is operator-controlled, resolved from repo config.
	f, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return nil, nil, nil
		}
		return nil, nil, tixerr.New(tixerr.KindIO, "jsonl.ReadAll", "%v", openErr)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		line, decErr := DecodeLine(raw)
		if decErr != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", lineNum, decErr))
			continue
		}
		lines = append(lines, line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return lines, warnings, tixerr.New(tixerr.KindIO, "jsonl.ReadAll", "%v", scanErr)
	}
	return lines, warnings, nil
}

// ReadAllBytes is like ReadAll but decodes an in-memory log, used by
// the git history walker to replay a commit's blob content (spec.md 4.6).
func ReadAllBytes(data []byte) (lines []*Line, warnings []string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		line, decErr := DecodeLine(raw)
		if decErr != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", lineNum, decErr))
			continue
		}
		lines = append(lines, line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return lines, warnings, tixerr.New(tixerr.KindIO, "jsonl.ReadAllBytes", "%v", scanErr)
	}
	return lines, warnings, nil
}

// Append writes one record as a single \n-terminated line via a
// plain O_APPEND handle (spec.md 4.2/5): a single write() of one line
// is already atomic at the filesystem level for the sizes spec.md 5
// bounds (line <= 8192 bytes), so no rename-based atomicity is needed
// for the append path — that is reserved for the rewrite path in
// compactwrite.go.
func Append(path string, rec *Record) error {
	b, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	// #nosec G304 - path is operator-controlled, resolved from repo config.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return tixerr.New(tixerr.KindIO, "jsonl.Append", "%v", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return tixerr.New(tixerr.KindIO, "jsonl.Append", "%v", err)
	}
	return nil
}

// Stat returns the log's mtime (unix seconds) and size, used by the
// freshness check in storage/sqlite/freshness.go. A missing file
// reports zero values, not an error; the freshness check compares
// those zeros like any other recorded values.
func Stat(path string) (mtime int64, size int64, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, 0, nil
		}
		return 0, 0, tixerr.New(tixerr.KindIO, "jsonl.Stat", "%v", statErr)
	}
	return info.ModTime().Unix(), info.Size(), nil
}
