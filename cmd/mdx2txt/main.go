// mdx2txt - Convert CADI MD2/MD4 ionosonde soundings to readable text
//
// One text file per input, rendering every header field, the frequency
// table, and the per-frequency trace dumps. Corrupt files are reported and
// skipped; the batch always runs to completion.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/mdx2txt ./cmd/mdx2txt

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cadi-tools/mdx-convert/internal/common"
	"github.com/cadi-tools/mdx-convert/internal/convert"
)

// Version can be overridden at build time via -ldflags
var Version = "2.0.0"

func main() {
	gzipOut := flag.Bool("gzip", false, "Compress output files with gzip")
	silent := flag.Bool("silent", false, "Suppress periodic progress output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mdx2txt v%s - CADI MD2/MD4 to Text Converter\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [input_path [output_directory]]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "input_path is a single .md2/.md4 file (optionally gzipped) or a\n")
		fmt.Fprintf(os.Stderr, "directory searched recursively for such files. Omitted paths\n")
		fmt.Fprintf(os.Stderr, "default to the raw/ and converted/ trees under MDX_DATA_DIR.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := common.DefaultConfig()
	inputPath := cfg.RawDataDir()
	outputDir := cfg.ConvertedDataDir()
	switch flag.NArg() {
	case 0:
	case 1:
		inputPath = flag.Arg(0)
	case 2:
		inputPath = flag.Arg(0)
		outputDir = flag.Arg(1)
	default:
		flag.Usage()
		os.Exit(2)
	}

	log.Println("=========================================================")
	log.Printf("MDX to Text Converter v%s", Version)
	log.Println("=========================================================")
	log.Printf("Input:  %s", inputPath)
	log.Printf("Output: %s", outputDir)

	stats := common.NewStats()
	stats.SetSilent(*silent)

	d := &convert.Dispatcher{
		Writer:     convert.TextWriter{},
		GzipOutput: *gzipOut,
		Stats:      stats,
	}

	stats.StartReporter()
	report, err := d.Run(inputPath, outputDir)
	stats.StopReporter()
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	log.Println("=========================================================")
	log.Println("Conversion Complete")
	log.Println("=========================================================")
	for _, line := range stats.Summary() {
		log.Print(line)
	}

	if !report.OK() {
		log.Printf("%d file(s) failed; see %s", len(report.Failed), convert.FailureReportName)
		os.Exit(1)
	}
}
