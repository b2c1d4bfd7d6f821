// Command otaripper extracts partition images out of an Android/Brillo OTA
// payload.bin. It is a thin CLI shell around the otaripper package: flag
// parsing, a progress bar, and stats rendering, in the same style as the
// teacher's cmd/main.go (flag.StringVar/IntVar/Func, log.Fatalln on setup
// errors) generalized to the Engine Facade's Extract/Manifest entry points.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	otaripper "github.com/syedinsaf/otaripper"
)

const version = "dev"

type cliConfig struct {
	input       string
	outdir      string
	partitions  []string
	workers     int
	infoOnly    bool
	verify      string
	sanity      bool
	stats       bool
	showVersion bool
}

func main() {
	cfg := cliConfig{
		outdir:  "out",
		workers: 12,
		verify:  "normal",
	}

	flag.StringVar(&cfg.input, "i", "", "input payload.bin")
	flag.StringVar(&cfg.outdir, "o", "out", "output directory")
	flag.Func("X", "comma-separated partitions to extract (default: all)", func(s string) error {
		cfg.partitions = strings.Split(s, ",")
		return nil
	})
	flag.IntVar(&cfg.workers, "T", 12, fmt.Sprintf("worker pool size per partition (clamped to [1,%d])", otaripper.MaxThreads))
	flag.BoolFunc("P", "do not extract, print partition info", func(s string) error {
		cfg.infoOnly = true
		return nil
	})
	flag.StringVar(&cfg.verify, "verify", "normal", "hash verification level: off, normal, strict")
	flag.BoolVar(&cfg.sanity, "sanity", false, "reject an all-zero output image for any extracted partition")
	flag.BoolVar(&cfg.stats, "stats", false, "print per-partition timing, size and image hash after extraction")
	flag.BoolVar(&cfg.showVersion, "v", false, "print version and exit")
	flag.Parse()

	if cfg.showVersion {
		fmt.Println("otaripper", version)
		return
	}
	if cfg.input == "" {
		log.Fatalln("must specify an input payload with -i")
	}

	level, err := parseVerifyLevel(cfg.verify)
	if err != nil {
		log.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.infoOnly {
		runInfoOnly(cfg)
		return
	}
	runExtract(ctx, cfg, level)
}

func parseVerifyLevel(s string) (otaripper.VerifyLevel, error) {
	switch strings.ToLower(s) {
	case "off":
		return otaripper.VerifyOff, nil
	case "normal", "":
		return otaripper.VerifyNormal, nil
	case "strict":
		return otaripper.VerifyStrict, nil
	default:
		return 0, fmt.Errorf("unrecognized -verify level %q (want off, normal, or strict)", s)
	}
}

func runInfoOnly(cfg cliConfig) {
	summary, err := otaripper.Manifest(cfg.input, cfg.partitions)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("block size: %d\n", summary.BlockSize)
	for _, p := range summary.Partitions {
		fmt.Printf("- %-16s %10s  %d operation(s)\n", p.Name, humanize.Bytes(p.TotalLength), len(p.Operations))
	}
}

func runExtract(ctx context.Context, cfg cliConfig, level otaripper.VerifyLevel) {
	bar := progressbar.DefaultBytes(-1, "extracting")

	started := time.Now()
	summary, err := otaripper.Extract(ctx, cfg.input, otaripper.Config{
		OutDir:   cfg.outdir,
		Selected: cfg.partitions,
		Verify:   level,
		Sanity:   cfg.sanity,
		Threads:  cfg.workers,
	}, otaripper.Sinks{
		OnProgress: func(partition string, n uint64) {
			bar.Add64(int64(n))
		},
		OnPartitionDone: func(partition string, hash []byte, elapsed time.Duration) {
			if cfg.stats {
				fmt.Fprintf(os.Stderr, "\n%s: done in %s\n", partition, elapsed.Round(time.Millisecond))
			}
		},
	})
	bar.Finish()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Printf("\nextracted %d partition(s), %s in %s\n",
		len(summary.Partitions), humanize.Bytes(summary.TotalBytes), time.Since(started).Round(time.Millisecond))
	if cfg.stats {
		for _, p := range summary.Partitions {
			fmt.Printf("  %-16s %10s  %x\n", p.Name, humanize.Bytes(p.Bytes), p.Hash)
		}
	}
}
