package researchcmd

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/config"
	"go.uber.org/zap"
)

// Env carries what every command needs. It is filled by Init before any
// command body runs.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
	Out    io.Writer
}

// Init loads configuration from configPath (optional) and the environment and builds the logger
func (e *Env) Init(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}

	e.Config = cfg
	e.Logger = logger
	if e.Out == nil {
		e.Out = os.Stdout
	}
	return nil
}

// Close flushes the logger
func (e *Env) Close() {
	if e.Logger != nil {
		_ = e.Logger.Sync()
	}
}

func (e *Env) ready() error {
	if e.Config == nil || e.Logger == nil {
		return eris.New("configuration not loaded")
	}
	return nil
}
