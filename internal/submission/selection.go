package submission

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Selection picks the encoder and threshold used for one domain.
type Selection struct {
	Domain    string
	Encoder   string
	Threshold float64
}

// ParseSelection reads lines of the form `DOMAIN ENCODER THRESHOLD`.
// Blank lines are skipped. A later line for the same domain replaces an
// earlier one.
func ParseSelection(r io.Reader) ([]Selection, error) {
	var out []Selection
	index := make(map[string]int)

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("selection line %d: want DOMAIN ENCODER THRESHOLD, got %q", n, sc.Text())
		}
		threshold, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("selection line %d: threshold: %w", n, err)
		}

		sel := Selection{Domain: fields[0], Encoder: fields[1], Threshold: threshold}
		if i, ok := index[sel.Domain]; ok {
			out[i] = sel
			continue
		}
		index[sel.Domain] = len(out)
		out = append(out, sel)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	return out, nil
}

// LoadSelection reads a selection file.
func LoadSelection(path string) ([]Selection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSelection(f)
}

// LoadExclude reads document ids to drop, one per line.
func LoadExclude(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read exclude list: %w", err)
	}
	return ids, nil
}
