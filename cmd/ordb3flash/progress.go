package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"golang.org/x/term"

	"github.com/moffa90/go-ordb3/flashclient"
)

// progressBar draws transfer progress on a terminal, or logs it at -v=1
// when stdout is redirected.
type progressBar struct {
	w     io.Writer
	width int
	tty   bool
	last  int
}

func newProgressBar() *progressBar {
	fd := int(os.Stdout.Fd())
	p := &progressBar{w: os.Stdout, width: 40, last: -1}
	if term.IsTerminal(fd) {
		p.tty = true
		if cols, _, err := term.GetSize(fd); err == nil && cols > 40 {
			p.width = cols - 32
		}
	}
	return p
}

func (p *progressBar) update(pr flashclient.Progress) {
	pct := int(pr.Percentage)
	if !p.tty {
		if pct/10 != p.last/10 || pr.Phase == flashclient.PhaseComplete {
			glog.V(1).Infof("%s: %d%% block %d (%s)", pr.Phase, pct, pr.Block, pr.ElapsedTime.Round(time.Millisecond))
		}
		p.last = pct
		return
	}
	fmt.Fprint(p.w, "\r"+p.render(pr))
	if pr.Phase == flashclient.PhaseComplete {
		fmt.Fprintln(p.w)
	}
	p.last = pct
}

func (p *progressBar) render(pr flashclient.Progress) string {
	filled := int(pr.Percentage / 100 * float64(p.width))
	if filled > p.width {
		filled = p.width
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %3.0f%% %-12s",
		strings.Repeat("#", filled), strings.Repeat(" ", p.width-filled), pr.Percentage, pr.Phase)
}
