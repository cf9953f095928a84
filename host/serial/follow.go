package serial

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LineKind classifies a firmware debug line
type LineKind int

const (
	LineInfo   LineKind = iota
	LineState           // "[BLDC] <side> <state> ..." transitions
	LineFault           // "[BLDC] <side> fault: ..."
	LineTiming          // timing ring dump
)

// Classify returns the kind of a debug line
func Classify(line string) LineKind {
	switch {
	case strings.Contains(line, " fault: "):
		return LineFault
	case strings.HasPrefix(line, "[TIMING]"):
		return LineTiming
	case strings.HasPrefix(line, "[BLDC]"):
		return LineState
	default:
		return LineInfo
	}
}

// Styler decorates a line before it is written
type Styler func(kind LineKind, line string) string

// FollowStats counts what Follow saw
type FollowStats struct {
	Lines  int // lines written
	Faults int // fault reports among them
	Dumps  int // timing ring dumps
}

// Follow copies debug lines from r to w until r is exhausted. Lines not
// containing filter are dropped; an empty filter keeps everything. A nil
// style writes lines unchanged.
func Follow(r io.Reader, w io.Writer, filter string, style Styler) (FollowStats, error) {
	var stats FollowStats
	reader := bufio.NewReader(r)
	var partial strings.Builder

	for {
		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)

		if strings.HasSuffix(chunk, "\n") {
			line := strings.TrimRight(partial.String(), "\r\n")
			partial.Reset()
			if line != "" && (filter == "" || strings.Contains(line, filter)) {
				kind := Classify(line)
				dump := kind == LineTiming && strings.Contains(line, "Timing Ring Dump")
				if style != nil {
					line = style(kind, line)
				}
				if _, werr := fmt.Fprintln(w, line); werr != nil {
					return stats, werr
				}
				stats.Lines++
				if kind == LineFault {
					stats.Faults++
				}
				if dump {
					stats.Dumps++
				}
			}
		}

		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read debug port: %w", err)
		}
	}
}
