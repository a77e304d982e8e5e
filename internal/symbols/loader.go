package symbols

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxDownloadSize bounds a remote symbol list (the NSE equity list is ~200KB).
const maxDownloadSize = 16 << 20

// Source loads the symbol universe once at startup.
type Source interface {
	Load(ctx context.Context) (*Index, error)
}

// FileSource reads a CSV file whose first column is the symbol.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(_ context.Context) (*Index, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file %s: %w", s.Path, err)
	}
	defer f.Close()

	list, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file %s: %w", s.Path, err)
	}
	return NewIndex(list), nil
}

// URLSource downloads a CSV symbol list over HTTP.
type URLSource struct {
	URL    string
	Client *http.Client
}

// Load implements Source.
func (s URLSource) Load(ctx context.Context) (*Index, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download symbols from %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("symbols download from %s returned %d", s.URL, resp.StatusCode)
	}

	list, err := ReadCSV(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to parse symbols from %s: %w", s.URL, err)
	}
	return NewIndex(list), nil
}

// ReadCSV parses a symbol list. The first column of each record is the
// symbol; a leading "symbol" header is skipped, values are trimmed and
// upper-cased, blanks and repeats are dropped. A ".NS"-style exchange suffix
// is kept as part of the symbol.
func ReadCSV(r io.Reader) ([]Symbol, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Symbol
	seen := make(map[string]bool)
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}
		s := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")))
		if first {
			first = false
			if s == "SYMBOL" {
				continue
			}
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
