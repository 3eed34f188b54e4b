package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spiralsafe/qrbridge/internal/config"
	"github.com/spiralsafe/qrbridge/internal/ledger"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

// #region main

func main() {
	configPath := flag.String("config", "", "config file (default qrbridge.yaml when present)")
	trailPath := flag.String("trail", "", "trail file (overrides config)")
	dbPath := flag.String("db", "", "ledger file (overrides config)")
	contributor := flag.String("contributor", "", "attribution for indexed atoms (overrides config)")
	force := flag.Bool("force", false, "replace an existing ledger file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *trailPath != "" {
		cfg.Trail.Path = *trailPath
	}
	if *dbPath != "" {
		cfg.Ledger.Path = *dbPath
	}
	if *contributor != "" {
		cfg.Ledger.Contributor = *contributor
	}

	fmt.Println("=== Ledger Rebuild Tool ===")
	fmt.Printf("  Trail: %s | Ledger: %s\n", cfg.Trail.Path, cfg.Ledger.Path)
	fmt.Printf("  Snap-in threshold: %g%%\n", cfg.Gate.SnapInThreshold)

	records, err := trail.New(cfg.TrailConfig()).Records()
	if err != nil {
		log.Fatalf("read trail: %v", err)
	}
	fmt.Printf("Found %d trail records.\n", len(records))
	if len(records) == 0 {
		fmt.Println("Nothing to index. Done.")
		return
	}

	if _, err := os.Stat(cfg.Ledger.Path); err == nil {
		if !*force {
			log.Fatalf("ledger %s already exists (use --force to replace)", cfg.Ledger.Path)
		}
		for _, p := range []string{cfg.Ledger.Path, cfg.Ledger.Path + "-wal", cfg.Ledger.Path + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				log.Fatalf("remove %s: %v", p, err)
			}
		}
	}

	store, err := ledger.NewStore(cfg.Ledger.Path)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer store.Close()

	if err := store.SetSnapInThreshold(cfg.Gate.SnapInThreshold); err != nil {
		log.Fatalf("set threshold: %v", err)
	}

	fmt.Println("\n--- Folding records ---")
	indexed, skipped := 0, 0
	for i, rec := range records {
		if err := store.RecordValidation(rec, cfg.Ledger.Contributor); err != nil {
			log.Printf("skip %s: %v", rec.AtomTag, err)
			skipped++
			continue
		}
		indexed++
		if (i+1)%100 == 0 || i+1 == len(records) {
			fmt.Printf("  [%d/%d] indexed\n", i+1, len(records))
		}
	}

	vs, err := store.VortexState()
	if err != nil {
		log.Fatalf("vortex state: %v", err)
	}

	fmt.Printf("\n=== Rebuild Complete ===\n")
	fmt.Printf("  Trail records: %d\n", len(records))
	fmt.Printf("  Indexed atoms: %d\n", indexed)
	fmt.Printf("  Skipped:       %d\n", skipped)
	fmt.Printf("  Avg coherence: %.1f%% | Snap-ins: %d\n", vs.AverageScore, vs.SnapInCount)
}

// #endregion main
