// ledgerdump prints every entry in the clip ledger. It answers the question a
// partial or crashed run leaves behind: which locally-present clips were
// confirmed uploaded and which never were. It needs no camera or destination
// credentials, only read access to the ledger file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/ledger"
	"github.com/baophamtd/reolink-automation/testutils"
)

func main() {
	path := flag.String("path", "", "Path to the ledger database (env: LEDGER_PATH)")
	bucket := flag.String("bucket", "", "Ledger bucket name (env: LEDGER_BUCKET)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := &config.LedgerConfig{
		Path:   *path,
		Bucket: *bucket,
	}
	if cfg.Path == "" {
		cfg.Path = os.Getenv("LEDGER_PATH")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv("LEDGER_BUCKET")
	}
	cfg.ApplyDefaults()

	led, err := ledger.CreateLedger(cfg)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer led.Close()

	entries, err := led.DumpAll()
	if err != nil {
		log.Fatalf("Failed to read ledger: %v", err)
	}

	fmt.Printf("%d entries in %s\n", len(entries), cfg.Path)
	testutils.OutputIndent(entries)
}
