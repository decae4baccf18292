package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/sim"
)

// TraceFormatError reports a trace line that cannot be parsed.
type TraceFormatError struct {
	Line int
	Text string
	Err  error
}

func (e *TraceFormatError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *TraceFormatError) Unwrap() error {
	return e.Err
}

// LoadTrace reads a trace file.
func LoadTrace(path string) (Generator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	requests, err := ParseTrace(f)
	if err != nil {
		return nil, err
	}

	return FromRequests(requests), nil
}

// ParseTrace reads one request per line in the form
//
//	<time_us> <R|W|D> <sector> <length>
//
// Blank lines and lines starting with # are skipped. The requests are
// returned sorted by arrival time.
func ParseTrace(r io.Reader) ([]Request, error) {
	var requests []Request

	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		req, err := parseTraceLine(text)
		if err != nil {
			return nil, &TraceFormatError{Line: line, Text: text, Err: err}
		}

		requests = append(requests, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].Time < requests[j].Time
	})

	return requests, nil
}

func parseTraceLine(text string) (Request, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return Request{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}

	us, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || us < 0 {
		return Request{}, fmt.Errorf("bad time %q", fields[0])
	}

	kind, err := parseTraceKind(fields[1])
	if err != nil {
		return Request{}, err
	}

	sector, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || sector < 0 {
		return Request{}, fmt.Errorf("bad sector %q", fields[2])
	}

	length, err := strconv.Atoi(fields[3])
	if err != nil || length <= 0 {
		return Request{}, fmt.Errorf("bad length %q", fields[3])
	}

	return Request{
		Time:    sim.Micro(us),
		Kind:    kind,
		Sector:  sector,
		Sectors: length,
	}, nil
}

func parseTraceKind(s string) (ftl.RequestKind, error) {
	switch strings.ToUpper(s) {
	case "R":
		return ftl.RequestRead, nil
	case "W":
		return ftl.RequestWrite, nil
	case "D":
		return ftl.RequestDiscard, nil
	default:
		return 0, fmt.Errorf("bad operation %q", s)
	}
}
