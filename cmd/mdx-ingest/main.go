// mdx-ingest - Ingest CADI MD2/MD4 soundings into ClickHouse
//
// Decodes MD2/MD4 files in a bounded worker pool and streams flattened
// sample rows to ClickHouse through batched LZ4-compressed inserts. Corrupt
// files are logged and skipped; the batch always runs to completion.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/mdx-ingest ./cmd/mdx-ingest

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

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/cadi-tools/mdx-convert/internal/common"
	"github.com/cadi-tools/mdx-convert/internal/convert"
	"github.com/cadi-tools/mdx-convert/internal/mdx"
)

// Version can be overridden at build time via -ldflags
var Version = "2.0.0"

const (
	NumWorkers    = 8
	BatchSize     = 100_000
	ChannelBuffer = 16
)

// SampleRow is one flattened sounding sample bound for ClickHouse.
type SampleRow struct {
	Site         string
	Timestamp    time.Time
	FileType     string
	FrequencyHz  float64
	HeightKM     float64
	PowerDB      float64
	HasPower     bool
	DopplerFlag  uint8
	NoiseFlag    uint8
	NoisePower10 uint16
	GainFlag     uint8
	Minute       uint8
	Second       uint8
	SourceFile   string
}

func flattenRows(ion *mdx.Ionogram, sourceFile string) []SampleRow {
	rows := make([]SampleRow, 0, ion.SampleCount())
	for _, blk := range ion.Blocks {
		for i, bin := range blk.Bins {
			for _, s := range bin.Samples {
				rows = append(rows, SampleRow{
					Site:         ion.Site,
					Timestamp:    ion.Timestamp,
					FileType:     string(ion.FileType),
					FrequencyHz:  ion.Frequencies[i],
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

const createTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
    site          String,
    timestamp     DateTime,
    file_type     String,
    frequency_hz  Float64,
    height_km     Float64,
    power_db      Float64,
    has_power     Bool,
    doppler_flag  UInt8,
    noise_flag    UInt8,
    noise_power10 UInt16,
    gain_flag     UInt8,
    minute        UInt8,
    second        UInt8,
    source_file   String
) ENGINE = MergeTree()
ORDER BY (site, timestamp, frequency_hz)`

func processFile(ctx context.Context, filePath string, rowChan chan<- []SampleRow, stats *common.Stats, wg *sync.WaitGroup) {
	defer wg.Done()

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
	select {
	case rowChan <- rows:
	case <-ctx.Done():
		return
	}

	stats.FilesConverted.Add(1)
	stats.Samples.Add(uint64(len(rows)))
	log.Printf("[%s] %d samples", fileName, len(rows))
}

// batchConn is the slice of driver.Conn the writer needs.
type batchConn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// clickhouseWriter drains rowChan into batched inserts. It must keep
// draining on insert errors; a stalled writer would leave the file workers
// blocked on rowChan forever.
func clickhouseWriter(ctx context.Context, conn batchConn, tableFQN string, rowChan <-chan []SampleRow, wg *sync.WaitGroup) {
	defer wg.Done()

	var pending driver.Batch
	var pendingRows int

	flush := func() {
		if pending == nil || pendingRows == 0 {
			return
		}
		if err := pending.Send(); err != nil {
			log.Printf("Writer: flush error: %v", err)
		}
		pending = nil
		pendingRows = 0
	}
	defer flush()

	for rows := range rowChan {
		for _, r := range rows {
			if pending == nil {
				var err error
				pending, err = conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", tableFQN))
				if err != nil {
					log.Printf("Writer: prepare error: %v", err)
					continue
				}
			}

			err := pending.Append(
				r.Site,
				r.Timestamp,
				r.FileType,
				r.FrequencyHz,
				r.HeightKM,
				r.PowerDB,
				r.HasPower,
				r.DopplerFlag,
				r.NoiseFlag,
				r.NoisePower10,
				r.GainFlag,
				r.Minute,
				r.Second,
				r.SourceFile,
			)
			if err != nil {
				log.Printf("Writer: append error: %v", err)
				continue
			}
			pendingRows++

			if pendingRows >= BatchSize {
				flush()
			}
		}
	}
}

func main() {
	cfg := common.DefaultConfig()

	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", "soundings", "ClickHouse table")
	workers := flag.Int("workers", NumWorkers, "Number of parallel file workers")
	silent := flag.Bool("silent", false, "Suppress progress output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "mdx-ingest v%s - CADI MD2/MD4 ClickHouse Ingester\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [input_path]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "One row per decoded sample; batched inserts with LZ4. An omitted\n")
		fmt.Fprintf(os.Stderr, "input_path defaults to the raw/ tree under MDX_DATA_DIR.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	inputPath := cfg.RawDataDir()
	switch flag.NArg() {
	case 0:
	case 1:
		inputPath = flag.Arg(0)
	default:
		flag.Usage()
		os.Exit(2)
	}

	files, err := convert.DiscoverInputs(inputPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Println("=========================================================")
	log.Printf("MDX ClickHouse Ingester v%s", Version)
	log.Println("=========================================================")
	log.Printf("Found %d MD2/MD4 file(s)", len(files))
	log.Printf("Workers: %d | Batch: %d | CPUs: %d", *workers, BatchSize, runtime.NumCPU())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	log.Printf("Connecting to ClickHouse at %s...", *chHost)
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{*chHost},
		Auth: clickhouse.Auth{
			Database: *chDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time":    60,
			"max_insert_block_size": 1048576,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		log.Fatalf("ClickHouse connection failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		log.Fatalf("ClickHouse ping failed: %v", err)
	}

	tableFQN := fmt.Sprintf("%s.%s", *chDB, *chTable)
	if err := conn.Exec(ctx, fmt.Sprintf(createTableDDL, tableFQN)); err != nil {
		log.Fatalf("Cannot ensure table %s: %v", tableFQN, err)
	}
	log.Printf("Table: %s", tableFQN)

	stats := common.NewStats()
	stats.SetSilent(*silent)
	stats.StartReporter()

	rowChan := make(chan []SampleRow, ChannelBuffer)

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go clickhouseWriter(ctx, conn, tableFQN, rowChan, &writerWG)

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
			processFile(ctx, fp, rowChan, stats, &wg)
		}(filePath)
	}

	wg.Wait()
	close(rowChan)
	writerWG.Wait()
	stats.StopReporter()

	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	for _, line := range stats.Summary() {
		log.Print(line)
	}

	if stats.FilesFailed.Load() > 0 {
		os.Exit(1)
	}
}
