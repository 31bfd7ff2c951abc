package submission

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// ArchiveName is the name of the packaged submission.
const ArchiveName = "d-domain.tgz"

// ErrMissingPredictions is returned when any prediction file is absent.
// Nothing is written in that case.
var ErrMissingPredictions = errors.New("prediction files missing")

// ErrScoreRange is returned for a prediction score outside [0,1].
var ErrScoreRange = errors.New("score not in [0,1]")

// Config describes one rewrite.
type Config struct {
	Root        string      // prediction root
	Subdirs     []string    // searched under Root, in order
	Selections  []Selection // one per domain
	Exclude     []string    // document ids to drop
	OutDir      string      // receives <domain>.tsv
	Temperature float64     // 0 means 1
	Archive     bool        // also write ArchiveName into the output directory
}

// Report summarizes a rewrite.
type Report struct {
	OutDir    string
	Files     []string       // domain files in selection order
	Positives map[string]int // Y count per domain
	Total     map[string]int // rows per domain
	Archive   string         // empty unless requested
}

// PredictionPath returns <root>/<subdir>/<encoder>/<domain>.tsv.
func PredictionPath(root, subdir, encoder, domain string) string {
	return filepath.Join(root, subdir, encoder, domain+".tsv")
}

// OutputDir returns the directory a rewrite with temperature t writes to:
// dir itself when t is 1, dir_<t> otherwise.
func OutputDir(dir string, t float64) string {
	if t == 0 || t == 1 {
		return dir
	}
	return dir + "_" + strconv.FormatFloat(t, 'g', -1, 64)
}

// Rewrite converts every selected domain's prediction files.
//
// All prediction files are resolved first; if any is missing the rewrite
// aborts with every missing path and no output. The output directory is
// recreated from scratch and removed again if any domain fails, including
// on a score outside [0,1].
func Rewrite(cfg Config) (*Report, error) {
	t := cfg.Temperature
	if t == 0 {
		t = 1
	}
	if t < 0 {
		return nil, fmt.Errorf("temperature must be positive, got %v", t)
	}
	if len(cfg.Subdirs) == 0 {
		cfg.Subdirs = []string{""}
	}

	inputs := make(map[string][]string, len(cfg.Selections))
	var missing []string
	for _, sel := range cfg.Selections {
		for _, sub := range cfg.Subdirs {
			p := PredictionPath(cfg.Root, sub, sel.Encoder, sel.Domain)
			if _, err := os.Stat(p); err != nil {
				missing = append(missing, p)
				continue
			}
			inputs[sel.Domain] = append(inputs[sel.Domain], p)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingPredictions, strings.Join(missing, ", "))
	}

	exclude := make(map[string]bool, len(cfg.Exclude))
	for _, id := range cfg.Exclude {
		exclude[id] = true
	}

	out := OutputDir(cfg.OutDir, t)
	if err := os.RemoveAll(out); err != nil {
		return nil, fmt.Errorf("clear output dir: %w", err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	report := &Report{
		OutDir:    out,
		Positives: make(map[string]int),
		Total:     make(map[string]int),
	}
	for _, sel := range cfg.Selections {
		path := filepath.Join(out, sel.Domain+".tsv")
		pos, total, err := rewriteDomain(path, inputs[sel.Domain], sel.Threshold, t, exclude)
		if err != nil {
			_ = os.RemoveAll(out)
			return nil, fmt.Errorf("domain %s: %w", sel.Domain, err)
		}
		report.Files = append(report.Files, path)
		report.Positives[sel.Domain] = pos
		report.Total[sel.Domain] = total
		klog.Infof("domain %s: %d of %d positive (threshold %v)", sel.Domain, pos, total, sel.Threshold)
	}

	if cfg.Archive {
		archive := filepath.Join(out, ArchiveName)
		size, err := WriteArchive(archive, report.Files)
		if err != nil {
			_ = os.RemoveAll(out)
			return nil, err
		}
		report.Archive = archive
		klog.Infof("wrote %s (%s)", archive, humanize.Bytes(uint64(size)))
	}
	return report, nil
}

func rewriteDomain(path string, inputs []string, threshold, t float64, exclude map[string]bool) (pos, total int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for _, in := range inputs {
		p, n, err := rewriteFile(w, in, threshold, t, exclude)
		if err != nil {
			return 0, 0, err
		}
		pos += p
		total += n
	}
	return pos, total, w.Flush()
}

// rewriteFile copies one prediction file, skipping its header line.
func rewriteFile(w *bufio.Writer, path string, threshold, t float64, exclude map[string]bool) (pos, total int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if n == 1 {
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return 0, 0, fmt.Errorf("%s:%d: want `id label score`, got %q", path, n, sc.Text())
		}
		id := fields[0]
		if exclude[id] {
			continue
		}
		score, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%s:%d: score: %w", path, n, err)
		}
		if math.IsNaN(score) || score < 0 || score > 1 {
			return 0, 0, fmt.Errorf("%s:%d: %w: %v", path, n, ErrScoreRange, score)
		}

		score = Temperature(score, t)
		label := "N"
		if score > threshold {
			label = "Y"
			pos++
		}
		total++
		if _, err := fmt.Fprintf(w, "%s\t%s\t%.5f\n", id, label, score); err != nil {
			return 0, 0, err
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return pos, total, nil
}
