package main

import (
	"github.com/cockroachdb-vectors/vectorize/internal/provider"
	"github.com/cockroachdb-vectors/vectorize/internal/provider/hosted"
	"github.com/cockroachdb-vectors/vectorize/internal/provider/local"
)

// buildRegistry registers every provider family the CLI ships with. Any
// further family is added here, not in internal/provider, so the registry
// wiring itself stays a CLI-façade concern, the way cmd/memoryctl wires
// its own HTTP client rather than a library package doing it.
func buildRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("local", local.New)
	reg.Register("hosted", hosted.New)
	return reg
}
