// Package trace parses and replays allocation workload scripts.
//
// A script is line oriented:
//
//	# comment
//	alloc NAME SIZE [ALIGN]
//	free NAME
//	check
//	stats
//
// SIZE and ALIGN accept decimal, 0x-hex and 0o-octal. ALIGN defaults to the
// machine word. Files may be UTF-8 or UTF-16 with a byte order mark.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joshuapare/heapkit/internal/format"
)

const (
	// CommentPrefix starts a comment line.
	CommentPrefix = "#"

	// ScannerMaxLineSize bounds a single script line.
	ScannerMaxLineSize = 64 * 1024
)

// OpKind identifies a script operation.
type OpKind int

const (
	OpAlloc OpKind = iota + 1
	OpFree
	OpCheck
	OpStats
)

func (k OpKind) String() string {
	switch k {
	case OpAlloc:
		return "alloc"
	case OpFree:
		return "free"
	case OpCheck:
		return "check"
	case OpStats:
		return "stats"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one parsed script line.
type Op struct {
	Kind  OpKind
	Name  string  // block name for alloc and free
	Size  uintptr // alloc only
	Align uintptr // alloc only
	Line  int     // 1-based source line
}

// Trace is a parsed script.
type Trace struct {
	Ops    []Op
	Allocs int
	Frees  int
}

// ParseError reports a malformed script line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d: %s", e.Line, e.Msg)
}

// Parse reads a script from r.
func Parse(r io.Reader) (*Trace, error) {
	// Honor a UTF-8 or UTF-16 BOM, assume UTF-8 otherwise.
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, decoder))
	scanner.Buffer(make([]byte, 0, 4096), ScannerMaxLineSize)

	t := &Trace{}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, CommentPrefix) {
			continue
		}
		op, err := parseLine(strings.Fields(text), line)
		if err != nil {
			return nil, err
		}
		switch op.Kind {
		case OpAlloc:
			t.Allocs++
		case OpFree:
			t.Frees++
		}
		t.Ops = append(t.Ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trace: %w", err)
	}
	return t, nil
}

func parseLine(fields []string, line int) (Op, error) {
	fail := func(msg string, args ...any) (Op, error) {
		return Op{}, &ParseError{Line: line, Msg: fmt.Sprintf(msg, args...)}
	}

	switch verb := strings.ToLower(fields[0]); verb {
	case "alloc":
		if len(fields) < 3 || len(fields) > 4 {
			return fail("usage: alloc NAME SIZE [ALIGN]")
		}
		size, err := strconv.ParseUint(fields[2], 0, 64)
		if err != nil || size == 0 {
			return fail("invalid size %q", fields[2])
		}
		align := uint64(format.WordSize)
		if len(fields) == 4 {
			align, err = strconv.ParseUint(fields[3], 0, 64)
			if err != nil || !format.IsPowerOfTwo(uintptr(align)) {
				return fail("invalid alignment %q (must be a power of two)", fields[3])
			}
		}
		return Op{Kind: OpAlloc, Name: fields[1], Size: uintptr(size), Align: uintptr(align), Line: line}, nil

	case "free":
		if len(fields) != 2 {
			return fail("usage: free NAME")
		}
		return Op{Kind: OpFree, Name: fields[1], Line: line}, nil

	case "check", "stats":
		if len(fields) != 1 {
			return fail("%s takes no arguments", verb)
		}
		kind := OpCheck
		if verb == "stats" {
			kind = OpStats
		}
		return Op{Kind: kind, Line: line}, nil

	default:
		return fail("unknown operation %q", fields[0])
	}
}
