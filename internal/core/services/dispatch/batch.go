package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

// BatchOptions control a batch replay.
type BatchOptions struct {
	// Progress, when set, receives a progress bar.
	Progress io.Writer
	// Size is the input length in bytes, or 0 when unknown (FIFOs, pipes).
	Size int64
}

// RunBatch replays one query per line from r and writes each reply to w.
// Lines are read and answered one at a time, so r may be a stream that is
// still being written. A line containing QUIT ends the run at once and
// nothing after it is read. A fatal executor error is returned after its
// ERROR line is written.
func (d *Dispatcher) RunBatch(ctx context.Context, r io.Reader, w io.Writer, opts BatchOptions) error {
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = newBatchBar(opts)
		defer bar.Finish()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineLen)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		raw := sc.Text()
		if bar != nil {
			bar.Add(len(raw) + 1)
		}
		if strings.Contains(raw, domain.QueryQuit) {
			d.logger.Info("Batch terminated by QUIT")
			return nil
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		out := d.handle(ctx, line)
		if out.reply != "" {
			if _, err := fmt.Fprintln(w, out.reply); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		}
		if out.err != nil {
			return out.err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read batch: %w", err)
	}
	return nil
}

func newBatchBar(opts BatchOptions) *progressbar.ProgressBar {
	size := opts.Size
	if size <= 0 {
		size = -1
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(opts.Progress),
		progressbar.OptionSetDescription("Replaying"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// RunBatchFile replays the query file at path.
func (d *Dispatcher) RunBatchFile(ctx context.Context, path string, w io.Writer, opts BatchOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	if opts.Size == 0 {
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			opts.Size = fi.Size()
		}
	}
	return d.RunBatch(ctx, f, w, opts)
}
