package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Mora-na/mimotions/auth"
	"github.com/Mora-na/mimotions/config"
	"github.com/Mora-na/mimotions/credstore"
	"github.com/Mora-na/mimotions/engine"
	"github.com/Mora-na/mimotions/history"
	"github.com/Mora-na/mimotions/notify"
	"github.com/Mora-na/mimotions/runtime"
	"github.com/Mora-na/mimotions/secrets"
	"github.com/Mora-na/mimotions/steprange"
	"github.com/Mora-na/mimotions/types"
	"github.com/Mora-na/mimotions/validate"
	"github.com/Mora-na/mimotions/zepp"
)

func (o *globalOptions) logger(w io.Writer) runtime.Logger {
	if o.logFormat == "json" {
		return runtime.NewJSONLogger(w, o.verbose)
	}
	return runtime.NewConsoleLogger(w, o.verbose)
}

// secretChain resolves secrets from the environment first, then the dotenv
// file.
func (o *globalOptions) secretChain() (*secrets.ChainProvider, error) {
	dot, err := secrets.NewDotEnvProvider(o.envFile)
	if err != nil {
		return nil, err
	}
	return secrets.NewChainProvider(secrets.NewEnvProvider(), dot), nil
}

// loadConfig reads, validates and decodes the run configuration. Every
// failure is a configuration error (exit code 1).
func (o *globalOptions) loadConfig(chain secrets.Provider, stderr io.Writer) (*types.Config, error) {
	var (
		raw config.Raw
		err error
	)
	if o.configFile != "" {
		raw, err = config.LoadFile(o.configFile)
	} else {
		var payload string
		if payload, err = secrets.Lookup(chain, secrets.KeyConfig); err == nil {
			raw, err = config.ParseJSON(payload)
		}
	}
	if err != nil {
		return nil, configError(err)
	}

	result := validate.ValidateRaw(raw)
	if result.IsValid() {
		cfg, err := config.Decode(raw)
		if err != nil {
			return nil, configError(err)
		}
		result.Merge(validate.ValidateConfig(cfg))
		for _, w := range result.Warnings {
			_, _ = fmt.Fprintf(stderr, "WARNING: %s\n", w)
		}
		if result.IsValid() {
			return cfg, nil
		}
	}
	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(stderr, "ERROR: %s\n", e)
	}
	return nil, configError(fmt.Errorf("config validation failed: %d error(s)", len(result.Errors)))
}

// aesKey returns AES_KEY, prompting on a terminal when prompt is set and the
// key is not configured.
func aesKey(chain secrets.Provider, prompt bool, stderr io.Writer) ([]byte, error) {
	key, err := secrets.Lookup(chain, secrets.KeyAES)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", secrets.KeyAES, err)
	}
	if key == "" && prompt {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return nil, fmt.Errorf("%s is not set and stdin is not a terminal", secrets.KeyAES)
		}
		_, _ = fmt.Fprintf(stderr, "Enter %s: ", secrets.KeyAES)
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(stderr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", secrets.KeyAES, err)
		}
		key = string(raw)
	}
	return []byte(key), nil
}

func (o *globalOptions) auditLogger() (*runtime.AuditLogger, func(), error) {
	if o.auditFile == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(o.auditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit log: %w", err)
	}
	return runtime.NewAuditLogger(f), func() { _ = f.Close() }, nil
}

// session bundles everything a run needs. Close releases the history
// database.
type session struct {
	cfg    *types.Config
	chain  secrets.Provider
	logger runtime.Logger
	audit  *runtime.AuditLogger
	clock  clockwork.Clock
	closer func()
}

func (s *session) Close() { s.closer() }

func (o *globalOptions) newSession(cmd *cobra.Command) (*session, error) {
	stderr := cmd.ErrOrStderr()
	chain, err := o.secretChain()
	if err != nil {
		return nil, configError(err)
	}
	cfg, err := o.loadConfig(chain, stderr)
	if err != nil {
		return nil, err
	}
	audit, closeAudit, err := o.auditLogger()
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		chain:  chain,
		logger: o.logger(stderr),
		audit:  audit,
		clock:  clockwork.NewRealClock(),
		closer: closeAudit,
	}, nil
}

// orchestrator wires a fresh orchestrator. The credential file is loaded
// anew so each run starts from the last persisted state.
func (s *session) orchestrator(stderr io.Writer) (*engine.Orchestrator, func(), error) {
	cfg, logger := s.cfg, s.logger

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, configError(fmt.Errorf("loading time zone: %w", err))
	}

	key, err := aesKey(s.chain, false, stderr)
	if err != nil {
		return nil, nil, err
	}
	vault := credstore.NewVault(cfg.TokenFile, key)
	if !vault.Enabled() {
		logger.Warn("AES_KEY missing or not 16 bytes; tokens will not be cached", nil)
	}
	records, err := vault.Load()
	if err != nil {
		logger.Warn("discarding unreadable token file", map[string]any{"path": vault.Path(), "error": err.Error()})
	}
	store := credstore.NewStore(records)

	client := zepp.NewClient(zepp.Config{
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Clock:             s.clock,
		Location:          loc,
	})

	runner := engine.NewTaskRunner(engine.TaskConfig{
		Tokens:    auth.NewManager(client, s.clock, logger),
		Submitter: client,
		Store:     store,
		Policy:    steprange.New(cfg),
		Clock:     s.clock,
		Location:  loc,
		Logger:    logger,
	})

	opts := engine.Options{
		Config:    cfg,
		Runner:    runner,
		Persister: vault,
		Notifier:  notify.New(cfg.Push, nil, s.clock, loc, logger),
		Audit:     s.audit,
		Clock:     s.clock,
		Logger:    logger,
	}

	cleanup := func() {}
	if cfg.HistoryDB != "" {
		db, err := history.Open(cfg.HistoryDB)
		if err != nil {
			logger.Warn("run history disabled", map[string]any{"error": err.Error()})
		} else {
			opts.Recorder = db
			cleanup = func() { _ = db.Close() }
		}
	}
	return engine.New(opts), cleanup, nil
}

// execute performs one run and maps configuration failures to exit code 1.
func (s *session) execute(ctx context.Context, stderr io.Writer) (*engine.Report, error) {
	o, cleanup, err := s.orchestrator(stderr)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	report, err := o.Execute(ctx)
	var cfgErr *engine.ConfigError
	if errors.As(err, &cfgErr) {
		return nil, configError(err)
	}
	return report, err
}
