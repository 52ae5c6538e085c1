package convert

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"

	"github.com/cadi-tools/mdx-convert/internal/common"
	"github.com/cadi-tools/mdx-convert/internal/mdx"
)

// FailureReportName is the per-run report of files that failed to decode,
// written into the output directory.
const FailureReportName = "corrupt_files.txt"

// FileError attributes one conversion failure to its input file.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Report summarizes a batch run.
type Report struct {
	Converted []string
	Failed    []FileError
}

// OK reports whether every input converted successfully.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Dispatcher converts a batch of MD2/MD4 files with one writer. Each file is
// decoded independently; a failure is recorded and the batch continues.
type Dispatcher struct {
	Writer Writer

	// GzipOutput compresses each output file with gzip.
	GzipOutput bool

	// Stats receives per-file counters when non-nil.
	Stats *common.Stats
}

// Run converts every input under inputPath into outputDir, sequentially and
// in lexicographic order. Batch-fatal conditions (inaccessible input, no
// matching files, unwritable output directory) return an error; per-file
// decode failures land in the report instead. When any file fails, a
// corrupt_files.txt report is written alongside the outputs.
func (d *Dispatcher) Run(inputPath, outputDir string) (*Report, error) {
	files, err := DiscoverInputs(inputPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}

	report := &Report{}
	for _, f := range files {
		if err := d.convertFile(f, outputDir); err != nil {
			log.Printf("[%s] %v", filepath.Base(f), err)
			report.Failed = append(report.Failed, FileError{Path: f, Err: err})
			if d.Stats != nil {
				d.Stats.FilesFailed.Add(1)
			}
			continue
		}
		report.Converted = append(report.Converted, f)
		if d.Stats != nil {
			d.Stats.FilesConverted.Add(1)
		}
	}

	if !report.OK() {
		if err := writeFailureReport(outputDir, report.Failed); err != nil {
			log.Printf("failure report: %v", err)
		}
	}
	return report, nil
}

func (d *Dispatcher) convertFile(path, outputDir string) error {
	data, err := ReadRecordFile(path)
	if err != nil {
		return err
	}
	if d.Stats != nil {
		d.Stats.BytesRead.Add(uint64(len(data)))
	}

	ion, err := mdx.Decode(data)
	if err != nil {
		return err
	}
	if d.Stats != nil {
		d.Stats.Samples.Add(uint64(ion.SampleCount()))
	}

	dst := filepath.Join(outputDir, OutputName(path, d.Writer.Ext()))
	if d.GzipOutput {
		dst += ".gz"
	}
	return d.writeOutput(dst, ion)
}

// writeOutput renders into a temp file and renames it into place, so an
// output file either exists complete or not at all.
func (d *Dispatcher) writeOutput(dst string, ion *mdx.Ionogram) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".mdx-*")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	var w io.Writer = tmp
	var gz *gzip.Writer
	if d.GzipOutput {
		gz = gzip.NewWriter(tmp)
		w = gz
	}

	if err := d.Writer.Write(w, ion); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// =============================================================================
// Input Discovery
// =============================================================================

// DiscoverInputs expands inputPath into the files to convert. A directory is
// walked recursively for MD2/MD4 files (optionally gzipped), returned in
// lexicographic order for reproducible batch output; a single file is
// accepted as-is.
func DiscoverInputs(inputPath string) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", inputPath, err)
	}

	if !info.IsDir() {
		return []string{inputPath}, nil
	}

	var files []string
	filepath.Walk(inputPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && IsRecordFile(path) {
			files = append(files, path)
		}
		return nil
	})

	if len(files) == 0 {
		return nil, fmt.Errorf("no MD2 or MD4 files found under %s", inputPath)
	}
	sort.Strings(files)
	return files, nil
}

// IsRecordFile reports whether path carries an MD2/MD4 extension, with or
// without gzip compression. Matching is case-insensitive; station archives
// mix upper and lower case.
func IsRecordFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	return strings.HasSuffix(name, ".md2") || strings.HasSuffix(name, ".md4")
}

// ReadRecordFile reads a record file fully into memory, decompressing
// gzipped archives in parallel.
func ReadRecordFile(path string) ([]byte, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return os.ReadFile(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return data, nil
}

// OutputName maps an input file name to its output name: the record
// extensions (and any .gz suffix) are stripped and ext appended.
func OutputName(inputPath, ext string) string {
	name := filepath.Base(inputPath)
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".gz") {
		name = name[:len(name)-3]
		lower = lower[:len(lower)-3]
	}
	if strings.HasSuffix(lower, ".md2") || strings.HasSuffix(lower, ".md4") {
		name = name[:len(name)-4]
	}
	return name + ext
}

func writeFailureReport(outputDir string, failed []FileError) error {
	f, err := os.Create(filepath.Join(outputDir, FailureReportName))
	if err != nil {
		return err
	}
	defer f.Close()

	for _, fe := range failed {
		fmt.Fprintf(f, "%s: %v\n", fe.Path, fe.Err)
	}
	return nil
}
