// mdx-parquet - Export CADI MD2/MD4 soundings to Parquet
//
// Flattens every decoded sounding into one Parquet row per sample for
// columnar analysis. Files are processed by a bounded worker pool; each
// file's decode and write is independent, so a corrupt input never stalls
// the batch.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/mdx-parquet ./cmd/mdx-parquet

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/cadi-tools/mdx-convert/internal/common"
	"github.com/cadi-tools/mdx-convert/internal/convert"
	"github.com/cadi-tools/mdx-convert/internal/mdx"
)

// Version can be overridden at build time via -ldflags
var Version = "2.0.0"

const NumWorkers = 8

// SoundingRow is one flattened sample in the Parquet schema.
type SoundingRow struct {
	Site         string  `parquet:"site"`
	Timestamp    int64   `parquet:"timestamp"`
	FileType     string  `parquet:"file_type"`
	FrequencyHz  float64 `parquet:"frequency_hz"`
	FrequencyMHz float64 `parquet:"frequency_mhz"`
	HeightKM     float64 `parquet:"height_km"`
	PowerDB      float64 `parquet:"power_db"`
	HasPower     bool    `parquet:"has_power"`
	DopplerFlag  uint8   `parquet:"doppler_flag"`
	NoiseFlag    uint8   `parquet:"noise_flag"`
	NoisePower10 uint16  `parquet:"noise_power10"`
	GainFlag     uint8   `parquet:"gain_flag"`
	Minute       uint8   `parquet:"minute"`
	Second       uint8   `parquet:"second"`
	SourceFile   string  `parquet:"source_file"`
}

// flattenRows expands a decoded ionogram into Parquet rows.
func flattenRows(ion *mdx.Ionogram, sourceFile string) []SoundingRow {
	rows := make([]SoundingRow, 0, ion.SampleCount())
	ts := ion.Timestamp.Unix()

	for _, blk := range ion.Blocks {
		for i, bin := range blk.Bins {
			for _, s := range bin.Samples {
				rows = append(rows, SoundingRow{
					Site:         ion.Site,
					Timestamp:    ts,
					FileType:     string(ion.FileType),
					FrequencyHz:  ion.Frequencies[i],
					FrequencyMHz: ion.FrequencyMHz(i),
					HeightKM:     s.Height,
					PowerDB:      s.Power,
					HasPower:     s.HasPower,
					DopplerFlag:  s.DopplerFlag,
					NoiseFlag:    bin.NoiseFlag,
					NoisePower10: bin.NoisePower,
					GainFlag:     blk.GainFlag,
					Minute:       blk.Minute,
					Second:       blk.Second,
					SourceFile:   sourceFile,
				})
			}
		}
	}
	return rows
}

func processFile(ctx context.Context, filePath, outputDir string, stats *common.Stats, wg *sync.WaitGroup) {
	defer wg.Done()

	select {
	case <-ctx.Done():
		return
	default:
	}

	fileName := filepath.Base(filePath)

	data, err := convert.ReadRecordFile(filePath)
	if err != nil {
		log.Printf("[%s] Read error: %v", fileName, err)
		stats.FilesFailed.Add(1)
		return
	}
	stats.BytesRead.Add(uint64(len(data)))

	ion, err := mdx.Decode(data)
	if err != nil {
		log.Printf("[%s] Decode error: %v", fileName, err)
		stats.FilesFailed.Add(1)
		return
	}

	rows := flattenRows(ion, fileName)
	dst := filepath.Join(outputDir, convert.OutputName(filePath, ".parquet"))

	f, err := os.Create(dst)
	if err != nil {
		log.Printf("[%s] Create error: %v", fileName, err)
		stats.FilesFailed.Add(1)
		return
	}

	pw := parquet.NewGenericWriter[SoundingRow](f)
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			log.Printf("[%s] Parquet write error: %v", fileName, err)
			f.Close()
			os.Remove(dst)
			stats.FilesFailed.Add(1)
			return
		}
	}
	if err := pw.Close(); err != nil {
		log.Printf("[%s] Parquet close error: %v", fileName, err)
		f.Close()
		os.Remove(dst)
		stats.FilesFailed.Add(1)
		return
	}
	if err := f.Close(); err != nil {
		log.Printf("[%s] Close error: %v", fileName, err)
		os.Remove(dst)
		stats.FilesFailed.Add(1)
		return
	}

	stats.FilesConverted.Add(1)
	stats.Samples.Add(uint64(len(rows)))
	log.Printf("[%s] %d samples", fileName, len(rows))
}

func main() {
	workers := flag.Int("workers", NumWorkers, "Number of parallel file workers")
	silent := flag.Bool("silent", false, "Suppress progress output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mdx-parquet v%s - CADI MD2/MD4 to Parquet Exporter\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [input_path [output_directory]]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "One Parquet file per input, one row per decoded sample. Omitted\n")
		fmt.Fprintf(os.Stderr, "paths default to the raw/ and converted/ trees under MDX_DATA_DIR.\n\n")
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

	files, err := convert.DiscoverInputs(inputPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("Cannot create output directory: %v", err)
	}

	log.Println("=========================================================")
	log.Printf("MDX Parquet Exporter v%s", Version)
	log.Println("=========================================================")
	log.Printf("Found %d MD2/MD4 file(s)", len(files))
	log.Printf("Workers: %d | CPUs: %d", *workers, runtime.NumCPU())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	stats := common.NewStats()
	stats.SetSilent(*silent)
	stats.StartReporter()

	sem := make(chan struct{}, *workers)
	var wg sync.WaitGroup

	for _, filePath := range files {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(fp string) {
			defer func() { <-sem }()
			processFile(ctx, fp, outputDir, stats, &wg)
		}(filePath)
	}

	wg.Wait()
	stats.StopReporter()

	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	for _, line := range stats.Summary() {
		log.Print(line)
	}

	reportFile := filepath.Join(outputDir, fmt.Sprintf("parquet_%s.log", time.Now().Format("20060102_150405")))
	if f, err := os.Create(reportFile); err == nil {
		fmt.Fprintf(f, "MDX Parquet Exporter v%s Report\n", Version)
		fmt.Fprintf(f, "===============================\n")
		for _, line := range stats.Summary() {
			fmt.Fprintln(f, line)
		}
		f.Close()
		log.Printf("Report: %s", reportFile)
	}

	if stats.FilesFailed.Load() > 0 {
		os.Exit(1)
	}
}
