package output

import (
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress is a byte progress bar drawn only on interactive consoles. A nil
// *Progress is valid and does nothing.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a bar for total bytes (-1 if unknown), or nil when c
// is not a terminal.
func NewProgress(c *Console, total int64, description string) *Progress {
	if c == nil || !c.Interactive() {
		return nil
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(c.Writer()),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &Progress{bar: bar}
}

// Add advances the bar by n bytes.
func (p *Progress) Add(n int64) {
	if p == nil {
		return
	}
	_ = p.bar.Add64(n)
}

// Write advances the bar by len(b) so a Progress can sit in an io.MultiWriter.
func (p *Progress) Write(b []byte) (int, error) {
	p.Add(int64(len(b)))
	return len(b), nil
}

// Finish completes and clears the bar.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
