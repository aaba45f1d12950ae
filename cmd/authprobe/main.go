package main

import (
	"log"

	"github.com/aussiebroadwan/authkit/internal/probe"
)

func main() {
	cfg := probe.LoadConfig()

	p, err := probe.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize probe: %v", err)
	}

	if err := p.Run(); err != nil {
		log.Fatalf("probe error: %v", err)
	}
}
