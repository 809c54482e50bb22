// Package progress renders the transfer meter of one transfer.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/tanq16/urlget/internal/utils"
)

// MinSize is the largest known size for which no meter is shown.
const MinSize = utils.BufferSize

const header = "  %   Received      Total      Speed  Time left  Total time"

// Meter holds the progress state of a single transfer. It is not shared
// between transfers.
type Meter struct {
	out      io.Writer
	disabled bool // no progress wanted at all
	hidden   bool // size too small to bother
	total    int64
	lastShow int64
	rendered bool

	// Style decorates each rendered line, e.g. with a terminal color.
	Style func(string) string
}

// New returns a meter writing to w. A disabled meter never writes.
func New(w io.Writer, disabled bool) *Meter {
	if w == nil {
		disabled = true
	}
	return &Meter{out: w, disabled: disabled, total: -1}
}

// Init sets the expected size, -1 if unknown.
func (m *Meter) Init(total int64) {
	if m.disabled {
		return
	}
	m.total = total
	m.hidden = total != -1 && total <= MinSize
	if m.hidden || total == -1 {
		return
	}
	fmt.Fprintln(m.out, m.style(header))
}

// Show renders the state after bytes were transferred. It draws at most
// once per second unless the transfer just completed.
func (m *Meter) Show(bytes int64, start, now time.Time) {
	if m.disabled || m.hidden {
		return
	}
	sec := now.Unix()
	if bytes != m.total && sec == m.lastShow {
		return
	}
	m.lastShow = sec

	spent := int64(now.Sub(start) / time.Second)
	speed := bytes / max(spent, 1)
	if speed == 0 {
		speed = 1
	}

	var line string
	if m.total > 0 {
		estimate := m.total / speed
		line = fmt.Sprintf("%3d%% %10s %10s %10s %s %s",
			bytes*100/m.total,
			utils.FormatBytes(uint64(bytes)),
			utils.FormatBytes(uint64(m.total)),
			utils.FormatSpeed(speed, 1),
			utils.FormatDuration(estimate-spent),
			utils.FormatDuration(estimate))
	} else {
		line = fmt.Sprintf("%s received in %d seconds (%s)",
			utils.FormatBytes(uint64(bytes)), spent, utils.FormatSpeed(speed, 1))
	}
	fmt.Fprint(m.out, "\r"+m.style(line))
	m.rendered = true
}

// End terminates the meter line.
func (m *Meter) End() {
	if m.disabled || !m.rendered {
		return
	}
	fmt.Fprintln(m.out)
	m.rendered = false
}

func (m *Meter) style(s string) string {
	if m.Style == nil {
		return s
	}
	return m.Style(s)
}
