package commands

import (
	"fmt"

	"git.home.luguber.info/inful/slimpack/internal/logfields"
	"git.home.luguber.info/inful/slimpack/internal/sessionkey"
)

// KeyCmd implements the 'key' command.
type KeyCmd struct {
	EnvFile string `arg:"" optional:"" default:".env.local" help:"Env file receiving the key"`
}

func (k *KeyCmd) Run(g *Global) error {
	written, err := sessionkey.Ensure(k.EnvFile, nil)
	if err != nil {
		return fmt.Errorf("session key: %w", err)
	}
	if !written {
		g.Logger.Info("Key already exists, skipping", logfields.Path(k.EnvFile))
		return nil
	}
	g.Logger.Info("Session key written", logfields.Path(k.EnvFile), "name", sessionkey.Name)
	return nil
}
