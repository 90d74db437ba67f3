package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/ir"
)

// statsSource is satisfied by *engine.Engine.
type statsSource interface {
	Stats() engine.Stats
}

// statusReporter prints a progress line every interval while a run is live.
// With a logger set (stderr is not a terminal) it logs structured fields
// instead.
type statusReporter struct {
	w        io.Writer
	src      statsSource
	interval time.Duration
	printer  *message.Printer
	logger   *slog.Logger
}

func newStatusReporter(w io.Writer, src statsSource, interval time.Duration) *statusReporter {
	return &statusReporter{
		w:        w,
		src:      src,
		interval: interval,
		printer:  message.NewPrinter(language.English),
	}
}

func (r *statusReporter) run(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := r.src.Stats()
			if s.RunID == "" {
				continue
			}
			r.report(s, time.Since(start))
		}
	}
}

func (r *statusReporter) report(s engine.Stats, elapsed time.Duration) {
	if r.logger == nil {
		fmt.Fprintln(r.w, r.line(s, elapsed))
		return
	}
	r.logger.Info("status",
		"run_id", s.RunID,
		"watermark", s.Watermark.String(),
		"verified", verifiedSince(s).String(),
		"backlog", s.Backlog,
		"queue", s.QueueDepth,
		"merged", s.Merged,
		"claimed", s.Claimed,
	)
}

// verifiedSince counts the numbers this run has merged into the watermark.
func verifiedSince(s engine.Stats) ir.Number {
	if s.Watermark.Cmp(s.Origin) < 0 {
		return ir.Number{}
	}
	return s.Watermark.Sub(s.Origin).Add64(1)
}

// line renders one status line with grouped digits.
func (r *statusReporter) line(s engine.Stats, elapsed time.Duration) string {
	verified := verifiedSince(s)

	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		f, _ := verified.Big().Float64()
		rate = f / secs
	}

	return r.printer.Sprintf("watermark %s | verified %s | %.0f/s | backlog %d | queue %d | batches %d/%d",
		r.number(s.Watermark), r.number(verified), rate,
		s.Backlog, s.QueueDepth, s.Merged, s.Claimed)
}

// number groups the decimal digits of n in threes. The printer only groups
// native integers, and watermarks above 2^64 are the common case.
func (r *statusReporter) number(n ir.Number) string {
	if n.Hi == 0 {
		return r.printer.Sprintf("%d", n.Lo)
	}
	digits := n.String()
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}
