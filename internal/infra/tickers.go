package infra

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadTickers loads a ticker file: one symbol per line, order and
// duplicates preserved. Blank lines are skipped and surrounding
// whitespace is trimmed.
func ReadTickers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tickers file: %w", err)
	}
	defer f.Close()

	tickers, err := ParseTickers(f)
	if err != nil {
		return nil, fmt.Errorf("read tickers file %s: %w", path, err)
	}
	return tickers, nil
}

// ParseTickers reads ticker lines from r.
func ParseTickers(r io.Reader) ([]string, error) {
	var tickers []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		t := strings.TrimSpace(sc.Text())
		if t == "" {
			continue
		}
		tickers = append(tickers, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tickers, nil
}
