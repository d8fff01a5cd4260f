// Command toolforge manages and invokes the dynamic tool registry: a
// persistent store of schema-described primitives whose handlers are
// interpreted in a sandbox at call time.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"toolforge/internal/adapter"
	"toolforge/internal/config"
	"toolforge/internal/gate"
	"toolforge/internal/logging"
	"toolforge/internal/registry"
	"toolforge/internal/sandbox"
	"toolforge/internal/store"
)

var (
	workspace   string
	autoApprove bool
)

var rootCmd = &cobra.Command{
	Use:   "toolforge",
	Short: "Dynamic tool registry with sandboxed execution",
	Long: `toolforge stores callable primitives as data: a name, an input
schema, and handler source that runs inside a restricted interpreter
with a hard deadline. Primitives can be created, mounted, and invoked
at runtime without redeploying anything.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".",
		"workspace directory (data lives in <workspace>/.toolforge)")
	rootCmd.PersistentFlags().BoolVarP(&autoApprove, "yes", "y", false,
		"approve invocations without prompting (ask mode only)")

	rootCmd.AddCommand(
		createCmd, listCmd, searchCmd, showCmd, deleteCmd,
		mountCmd, dismountCmd, execCmd, historyCmd, statsCmd,
		settingsCmd, watchCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app wires the full runtime for one command invocation.
type app struct {
	cfg     *config.Config
	logs    *logging.Manager
	store   *store.Store
	reg     *registry.Registry
	gate    *gate.Gate
	runtime *sandbox.Runtime
	adapter *adapter.Adapter
}

func openApp() (*app, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}

	logs, err := logging.New(cfg.Logging, cfg.DataDir())
	if err != nil {
		return nil, err
	}
	log := logs.Logger()

	st, err := store.Open(cfg.DatabasePath(), log)
	if err != nil {
		logs.Close()
		return nil, err
	}

	reg, err := registry.New(st, log)
	if err != nil {
		st.Close()
		logs.Close()
		return nil, err
	}

	var handler gate.ApprovalHandler = promptHandler{}
	if autoApprove {
		handler = gate.AutoApproveHandler{}
	}

	// Seeding and gate state both hit the store; neither depends on
	// the other.
	var permGate *gate.Gate
	var g errgroup.Group
	g.Go(reg.SeedBuiltins)
	g.Go(func() error {
		var err error
		permGate, err = gate.New(st, handler, log)
		return err
	})
	if err := g.Wait(); err != nil {
		st.Close()
		logs.Close()
		return nil, err
	}

	rt := sandbox.New(reg.Cache(), st, log)
	ad := adapter.New(reg, rt, permGate, log)

	log.Debug("toolforge ready", zap.String("workspace", cfg.Workspace))
	return &app{
		cfg:     cfg,
		logs:    logs,
		store:   st,
		reg:     reg,
		gate:    permGate,
		runtime: rt,
		adapter: ad,
	}, nil
}

func (a *app) close() {
	a.reg.Cache().Clear()
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close store: %v\n", err)
	}
	a.logs.Close()
}
