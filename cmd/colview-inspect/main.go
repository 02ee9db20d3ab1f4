// Command colview-inspect is a thin, read-only tool for inspecting a
// colview-backed order book: the hash it would commit, and a summary of
// its live price levels. It never mutates the store it opens.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/nspcc-dev/colview/pkg/config"
	"github.com/nspcc-dev/colview/pkg/matchingengine"
	"github.com/nspcc-dev/colview/pkg/store"
)

var configPath = flag.String("config", "colview.yml", "path to the YAML config file describing the store to inspect")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("colview-inspect: %v", err)
	}

	s, err := cfg.Store.Open()
	if err != nil {
		log.Fatalf("colview-inspect: %v", err)
	}

	engine, err := matchingengine.Load(store.NewContext(s))
	if err != nil {
		log.Fatalf("colview-inspect: load engine: %v", err)
	}

	hash, err := engine.Hash()
	if err != nil {
		log.Fatalf("colview-inspect: hash: %v", err)
	}
	fmt.Printf("hash: %s\n", hex.EncodeToString(hash))

	bidLevels, askLevels, err := engine.LevelCounts()
	if err != nil {
		log.Fatalf("colview-inspect: level counts: %v", err)
	}
	fmt.Printf("bid levels: %d\n", bidLevels)
	fmt.Printf("ask levels: %d\n", askLevels)
}
