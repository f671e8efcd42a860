package us

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

const (
	completedFile = ".last-completed"
	emptyFile     = ".tried-empty"
)

// progressTracker remembers, per target end date, which tickers returned no
// bars and whether the whole pass finished. Both survive restarts as small
// text files in the daily bar directory.
type progressTracker struct {
	mu    sync.Mutex
	dir   string
	empty map[string]struct{}
}

// newProgressTracker loads the tracker state kept in dir.
func newProgressTracker(dir string) (*progressTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}
	p := &progressTracker{dir: dir, empty: make(map[string]struct{})}
	for _, sym := range p.readLines(emptyFile) {
		p.empty[sym] = struct{}{}
	}
	return p, nil
}

func (p *progressTracker) readLines(name string) []string {
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsEmpty reports whether ticker already came back without bars.
func (p *progressTracker) IsEmpty(ticker string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.empty[ticker]
	return ok
}

// MarkEmpty records tickers that returned no bars and rewrites the file.
func (p *progressTracker) MarkEmpty(tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tickers {
		p.empty[t] = struct{}{}
	}
	all := make([]string, 0, len(p.empty))
	for t := range p.empty {
		all = append(all, t)
	}
	slices.Sort(all)
	return os.WriteFile(filepath.Join(p.dir, emptyFile), []byte(strings.Join(all, "\n")+"\n"), 0o644)
}

// LastCompleted returns the end date of the last finished pass, or "".
func (p *progressTracker) LastCompleted() string {
	lines := p.readLines(completedFile)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// MarkCompleted records that the pass for date finished.
func (p *progressTracker) MarkCompleted(date string) error {
	return os.WriteFile(filepath.Join(p.dir, completedFile), []byte(date+"\n"), 0o644)
}

// Reset forgets the empty set. It is called when the target date moves on.
func (p *progressTracker) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.empty = make(map[string]struct{})
	if err := os.Remove(filepath.Join(p.dir, emptyFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
