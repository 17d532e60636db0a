package main

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// progress shows a spinner on stderr while a slow call runs. It is silent
// when stderr is not a terminal.
type progress struct {
	s *spinner.Spinner
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func startProgress(w io.Writer, message string) *progress {
	if !isTerminal(w) {
		return &progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	s.Start()
	return &progress{s: s}
}

func (p *progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}
