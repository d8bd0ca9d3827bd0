// Command-line entry point for the tachograph drive-log decoder.
//
// Note about input files
// ----------------------
// The recorder exports one fixed-width log per trip, natively EUC-KR
// encoded. Files re-saved by desktop tools may arrive as UTF-8; both are
// handled. The extension is not authoritative — a mismatched one only
// produces a warning, never a rejection.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tacho_parser/internal/decoder"
	"tacho_parser/internal/storage"
)

// Stats are the counters printed with -stats.
type Stats struct {
	Bytes       int
	Samples     int
	RecordFails int
	ArchivedRun int64
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "tacho_parser - commands:")
	fmt.Fprintln(w, "  decode  - decode one drive-recorder log and output JSON")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tacho_parser decode -input drive.txt [-output out.json] [-pretty] [-stats] [-db archive.db] [-progress]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Input is one raw recorder file (EUC-KR or UTF-8); stdin is used when -input is omitted.")
	fmt.Fprintln(w, "  - With -db, the result is archived to a local SQLite file for later review.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		runDecode(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	inPath := fs.String("input", "", "Input log file (default: stdin)")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	dbPath := fs.String("db", "", "Archive the result to this SQLite file")
	showProgress := fs.Bool("progress", false, "Print decode progress to stderr")
	_ = fs.Parse(args)

	var raw []byte
	var err error
	source := "stdin"
	if *inPath != "" {
		warnExtension(*inPath)
		raw, err = os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
			os.Exit(1)
		}
		source = filepath.Base(*inPath)
	} else {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			os.Exit(1)
		}
	}

	opts := decoder.Options{}
	if *showProgress {
		opts.Progress = func(parsed, total int) {
			fmt.Fprintf(os.Stderr, "\rdecoding: %d/%d samples", parsed, total)
			if parsed == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	result, err := decoder.DecodeWithOptions(context.Background(), raw, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	if len(result.Samples) == 0 {
		fmt.Fprintln(os.Stderr, "Warning: input is well-formed but contains no telemetry records")
	}

	st := Stats{
		Bytes:       len(raw),
		Samples:     len(result.Samples),
		RecordFails: len(result.Errors),
	}

	if *dbPath != "" {
		archive, err := storage.OpenArchive(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open archive: %v\n", err)
			os.Exit(1)
		}
		defer archive.Close()

		runID, err := archive.SaveResult(source, result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to archive result: %v\n", err)
			os.Exit(1)
		}
		st.ArchivedRun = runID
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	enc, err := marshalJSON(result, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: bytes=%d samples=%d record_errors=%d",
			st.Bytes, st.Samples, st.RecordFails)
		if st.ArchivedRun != 0 {
			fmt.Fprintf(os.Stderr, " archived_run=%d", st.ArchivedRun)
		}
		fmt.Fprintln(os.Stderr)
	}
}

// warnExtension flags unexpected file extensions. The recorder's export
// tool writes .txt; the extension is advisory only.
func warnExtension(path string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".log", ".dat":
	default:
		fmt.Fprintf(os.Stderr, "Warning: unexpected file extension on %s (continuing anyway)\n", filepath.Base(path))
	}
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
