// Command segwardctl drives a Segward allocator through a synthetic
// allocate/deallocate workload and reports its bookkeeping stats. It
// exists to exercise the library end to end from the command line, the
// way a smoke-test binary would.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	"github.com/jurgen-kluft/segward"
	"github.com/jurgen-kluft/segward/config"
)

const toolVersion = "0.1.0"

func main() {
	var (
		showVersion   bool
		jsonOutput    bool
		configFile    string
		segmentSize   uint64
		totalSize     uint64
		apiConstraint string
		operations    int
		maxAllocSize  uint64
		watchConfig   bool
		seed          int64
	)

	flag.BoolVar(&showVersion, "version", false, "show version information")
	flag.BoolVar(&jsonOutput, "json", false, "print the final stats as JSON")
	flag.StringVar(&configFile, "config", "", "load allocator configuration from a JSON file instead of the flags below")
	flag.Uint64Var(&segmentSize, "segment-size", 64*1024, "requested segment size in bytes (rounded up to a power of two)")
	flag.Uint64Var(&totalSize, "total-size", 8*1024*1024, "requested total arena size in bytes")
	flag.StringVar(&apiConstraint, "api-version-constraint", "", "semver constraint the module's API version must satisfy (e.g. \">=1.0.0,<2.0.0\")")
	flag.IntVar(&operations, "operations", 10000, "number of simulated allocate/deallocate operations to run")
	flag.Uint64Var(&maxAllocSize, "max-alloc-size", 4096, "largest single allocation the workload will request")
	flag.BoolVar(&watchConfig, "watch-config", false, "watch -config for changes and log re-validation results (never touches the running allocator)")
	flag.Int64Var(&seed, "seed", 1, "seed for the synthetic workload's random allocation sizes")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Drives a Segward allocator through a synthetic workload and reports stats.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s --segment-size=65536 --total-size=8388608\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config=segward.json --json\n", os.Args[0])
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("segwardctl v%s\n", toolVersion)
		return
	}

	var cfg *config.Config

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config: %v", err)
		}
		cfg = loaded

		if watchConfig {
			w, err := config.Watch(configFile, func(c *config.Config, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "config reload failed: %v\n", err)

					return
				}
				fmt.Fprintf(os.Stderr, "config reloaded: segment_size=%d total_size=%d (not applied to the running allocator)\n",
					c.SegmentSize, c.TotalSize)
			})
			if err != nil {
				exitWithError("failed to watch config: %v", err)
			}
			defer w.Close()
		}
	} else {
		cfg = config.New(
			config.WithSegmentSize(uintptr(segmentSize)),
			config.WithTotalSize(uintptr(totalSize)),
			config.WithAPIVersionConstraint(apiConstraint),
		)
	}

	alloc, err := segward.Create(
		config.WithSegmentSize(cfg.SegmentSize),
		config.WithTotalSize(cfg.TotalSize),
		config.WithAPIVersionConstraint(cfg.APIVersionConstraint),
	)
	if err != nil {
		exitWithError("failed to create allocator: %v", err)
	}
	defer alloc.Close()

	runWorkload(alloc, operations, uintptr(maxAllocSize), seed)

	stats := alloc.Stats()
	if jsonOutput {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
	} else {
		printStatsHuman(stats)
	}
}

// runWorkload allocates and frees a mix of random sizes, holding onto a
// rolling window of live pointers so deallocations also target FULL
// segments rather than only the current one — the same interleaving
// spec.md's scenarios exercise.
func runWorkload(alloc *segward.Allocator, operations int, maxSize uintptr, seed int64) {
	rng := rand.New(rand.NewSource(seed))

	var live []unsafe.Pointer

	for i := 0; i < operations; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			ptr := live[idx]
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]

			alloc.Deallocate(ptr)

			continue
		}

		size := uintptr(rng.Int63n(int64(maxSize))) + 1

		ptr, err := alloc.Allocate(size, 8)
		if err != nil {
			continue
		}

		live = append(live, ptr)
	}

	for _, ptr := range live {
		alloc.Deallocate(ptr)
	}
}

func printStatsHuman(stats segward.Stats) {
	fmt.Printf("segments:      %d (size %d bytes each)\n", stats.SegmentCount, stats.SegmentSize)
	fmt.Printf("current:       segment %d\n", stats.CurrentSegment)
	fmt.Printf("empty:         %d\n", stats.EmptySegments)
	fmt.Printf("active:        %d\n", stats.ActiveSegments)
	fmt.Printf("full:          %d\n", stats.FullSegments)
	fmt.Printf("retired:       %d\n", stats.RetiredSegments)
	fmt.Printf("live allocs:   %d\n", stats.LiveAllocations)
	fmt.Printf("total alloc'd: %d bytes\n", stats.TotalAllocated)
	fmt.Printf("total freed:   %d allocations\n", stats.TotalFreed)
	fmt.Printf("replacements:  %d\n", stats.ReplacementSearches)
}

func exitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
