package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/region"
	"github.com/joshuapare/heapkit/internal/trace"
	"github.com/joshuapare/heapkit/internal/writer"
)

var (
	replaySize    string
	replayBacking string
	replayVerify  bool
	replayImage   string
	replayStats   bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVar(&replaySize, "size", "1M", "Heap region size (suffixes K, M, G)")
	cmd.Flags().StringVar(&replayBacking, "backing", "anon", "Region backing: go, anon, or file:PATH")
	cmd.Flags().BoolVar(&replayVerify, "verify", false, "Check all invariants after every operation")
	cmd.Flags().StringVar(&replayImage, "image", "", "Write a heap image to this path when done")
	cmd.Flags().BoolVar(&replayStats, "stats", false, "Print allocator statistics when done")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay an allocation script",
		Long: `The replay command runs an allocation script against a fresh heap.

Script lines:
  alloc NAME SIZE [ALIGN]   allocate SIZE bytes (ALIGN defaults to a word)
  free NAME                 release a block allocated earlier
  check                     verify the free list and block contents
  stats                     print allocator statistics
  # ...                     comment

Example:
  heapctl replay workload.trace
  heapctl replay workload.trace --size 64K --verify
  heapctl replay workload.trace --backing file:heap.bin --image heap.img --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

func runReplay(args []string) error {
	tracePath := args[0]

	f, err := os.Open(tracePath)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	tr, err := trace.Parse(f)
	f.Close()
	if err != nil {
		return err
	}
	printVerbose("Parsed %d operations (%d allocs, %d frees) from %s\n", len(tr.Ops), tr.Allocs, tr.Frees, tracePath)

	size, err := parseSize(replaySize)
	if err != nil {
		return err
	}
	r, err := openBacking(replayBacking, size)
	if err != nil {
		return err
	}
	defer r.Close()

	var h heap.Heap
	if err = h.InitBytes(r.Bytes()); err != nil {
		return fmt.Errorf("failed to initialize heap: %w", err)
	}
	printVerbose("Heap: %s managed at 0x%X (%s backing)\n", formatBytes(int64(h.Size())), r.Addr(), replayBacking)

	opts := trace.Options{VerifyEach: replayVerify}
	if !jsonOut && !quiet {
		opts.Stats = os.Stdout
	}
	res, replayErr := trace.Replay(&h, tr, opts)

	if replayImage != "" {
		if err = writeImage(&h, &writer.FileWriter{Path: replayImage}); err != nil {
			return err
		}
		printVerbose("Wrote heap image to %s\n", replayImage)
	}
	if err = r.Sync(); err != nil {
		return err
	}

	if replayErr != nil {
		return fmt.Errorf("replay stopped after %d operations: %w", res.Ops, replayErr)
	}

	if jsonOut {
		return printJSON(res)
	}

	printInfo("\nReplay: %s\n", tracePath)
	printInfo("%s\n", strings.Repeat("=", 40))
	printInfo("  Operations: %s\n", formatNumber(int64(res.Ops)))
	printInfo("  Allocations: %s (failed: %s)\n", formatNumber(int64(res.Allocs)), formatNumber(int64(res.Failures)))
	printInfo("  Frees: %s\n", formatNumber(int64(res.Frees)))
	printInfo("  Checks passed: %d\n", res.Checks)
	printInfo("  Peak used: %s (%.1f%%)\n", formatBytes(int64(res.PeakUsed)), percent(int64(res.PeakUsed), int64(res.Size)))
	printInfo("  Final used: %s bytes\n", formatNumber(int64(res.Used)))
	printInfo("  Final free: %s bytes\n", formatNumber(int64(res.Free)))
	printInfo("  Live blocks: %d\n", len(res.Live))
	for _, b := range res.Live {
		printVerbose("    %-16s 0x%X %d bytes (align %d)\n", b.Name, b.Addr, b.Size, b.Align)
	}
	if replayStats {
		h.PrintStats(os.Stdout)
	}
	return nil
}

// openBacking obtains the region named by a --backing value.
func openBacking(backing string, size int) (*region.Region, error) {
	switch {
	case backing == "anon":
		return region.Anonymous(size)
	case backing == "go":
		return region.FromBytes(make([]byte, size)), nil
	case strings.HasPrefix(backing, "file:"):
		path := strings.TrimPrefix(backing, "file:")
		if path == "" {
			return nil, fmt.Errorf("--backing file: needs a path")
		}
		return region.MapFile(path, size)
	default:
		return nil, fmt.Errorf("unknown --backing %q (want go, anon, or file:PATH)", backing)
	}
}

func writeImage(h *heap.Heap, sink writer.Sink) error {
	var buf bytes.Buffer
	if err := h.WriteImage(&buf); err != nil {
		return err
	}
	if err := sink.WriteImage(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// parseSize parses a byte count with an optional K, M or G suffix
// (powers of 1024, "KiB" and "KB" accepted too).
func parseSize(s string) (int, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	u = strings.TrimSuffix(strings.TrimSuffix(u, "B"), "I")
	mult := 1
	if n := len(u); n > 0 {
		switch u[n-1] {
		case 'K':
			mult = 1 << 10
		case 'M':
			mult = 1 << 20
		case 'G':
			mult = 1 << 30
		}
	}
	if mult != 1 {
		u = u[:len(u)-1]
	}
	n, err := strconv.Atoi(u)
	if err != nil || n <= 0 || n > int(^uint(0)>>1)/mult {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
