package code

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GzipSuffix marks list files that are gzip-compressed.
const GzipSuffix = ".gz"

// ReadList reads newline-delimited codes from r. Surrounding whitespace is
// trimmed, blank lines are skipped and duplicates are dropped, keeping the
// first occurrence. Codes are not checked against the checksum rule.
func ReadList(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	seen := make(map[string]struct{})
	var codes []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		codes = append(codes, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read code list: %w", err)
	}

	return codes, nil
}

// WriteList writes one code per line to w.
func WriteList(w io.Writer, codes []string) error {
	bw := bufio.NewWriter(w)
	for _, c := range codes {
		if _, err := bw.WriteString(c); err != nil {
			return fmt.Errorf("failed to write code list: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write code list: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write code list: %w", err)
	}
	return nil
}

// OpenList wraps rc with a gzip reader when name carries the .gz suffix.
// Closing the returned reader closes rc.
func OpenList(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	if !strings.HasSuffix(name, GzipSuffix) {
		return rc, nil
	}

	gz, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
	}

	return &gzipReadCloser{Reader: gz, source: rc}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	source io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.source.Close(); err != nil {
		return err
	}
	return gzErr
}
