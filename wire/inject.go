//go:build wireinject

package wire

import (
	"github.com/google/wire"

	"github.com/vanillake254/BAHATI-YANGU/config"
	"github.com/vanillake254/BAHATI-YANGU/sandbox"
)

// InitializeApp assembles the player client from cfg
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(DefaultSet)
	return nil, nil, nil
}

// InitializeSandbox assembles the sandbox server from cfg
func InitializeSandbox(cfg *config.Config) (*sandbox.Server, error) {
	wire.Build(SandboxSet)
	return nil, nil
}
