// Package cmd implements swarmctl, the command-line surface over the
// claude-swarm core packages, per spec §6.
//
// Grounded on the teacher's cmd/gt/main.go + internal/cmd convention: a
// thin main() that calls cmd.Execute(), package-level `var xCmd =
// &cobra.Command{...}` declarations grouped with GroupID, and an init()
// per file wiring subcommands onto their parent and rootCmd.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/ack"
	"github.com/claude-swarm/swarm/internal/backend"
	"github.com/claude-swarm/swarm/internal/card"
	"github.com/claude-swarm/swarm/internal/conflict"
	"github.com/claude-swarm/swarm/internal/config"
	"github.com/claude-swarm/swarm/internal/coordination"
	"github.com/claude-swarm/swarm/internal/delegate"
	"github.com/claude-swarm/swarm/internal/discovery"
	"github.com/claude-swarm/swarm/internal/filelock"
	"github.com/claude-swarm/swarm/internal/learning"
	"github.com/claude-swarm/swarm/internal/memory"
	"github.com/claude-swarm/swarm/internal/messaging"
	"github.com/claude-swarm/swarm/internal/rootpath"
	"github.com/claude-swarm/swarm/internal/store"
	"github.com/claude-swarm/swarm/internal/swarmcontext"
	"github.com/claude-swarm/swarm/internal/task"
)

// Command groups, mirroring the teacher's GroupID-tagged command groups.
const (
	GroupDiscovery    = "discovery"
	GroupLocks        = "locks"
	GroupMessaging    = "messaging"
	GroupTasks        = "tasks"
	GroupDelegation   = "delegation"
	GroupConflicts    = "conflicts"
	GroupContext      = "context"
	GroupCoordination = "coordination"
	GroupLearning     = "learning"
	GroupMonitor      = "monitor"
)

var rootCmd = &cobra.Command{
	Use:           "swarmctl",
	Short:         "Coordinate peer Claude agents sharing a project root",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          requireSubcommand,
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

func init() {
	rootCmd.PersistentFlags().String("project-root", "", "Project root (defaults to CLAUDESWARM_ROOT or the nearest ancestor marker)")
	rootCmd.PersistentFlags().Bool("json", false, "Emit machine-readable JSON instead of a styled table")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupDiscovery, Title: "Discovery:"},
		&cobra.Group{ID: GroupLocks, Title: "File locks:"},
		&cobra.Group{ID: GroupMessaging, Title: "Messaging:"},
		&cobra.Group{ID: GroupTasks, Title: "Tasks:"},
		&cobra.Group{ID: GroupDelegation, Title: "Delegation:"},
		&cobra.Group{ID: GroupConflicts, Title: "Conflicts:"},
		&cobra.Group{ID: GroupContext, Title: "Context:"},
		&cobra.Group{ID: GroupCoordination, Title: "Coordination:"},
		&cobra.Group{ID: GroupLearning, Title: "Learning:"},
		&cobra.Group{ID: GroupMonitor, Title: "Monitoring:"},
	)
}

// Execute runs the CLI and returns the process exit code: 0 on success, 1
// if any command returned an error (a validation failure, a lock
// conflict, or anything else), per spec §6.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// app bundles every core package wired together for one project root, built
// lazily per command from the --project-root/--json persistent flags.
type app struct {
	root string
	cfg  config.Config
	json bool

	store      *store.Store
	backend    backend.Backend
	discovery  *discovery.Registry
	locks      *filelock.Manager
	messaging  *messaging.Core
	ack        *ack.Engine
	tasks      *task.Store
	cards      *card.Registry
	delegate   *delegate.Engine
	conflicts  *conflict.Resolver
	memory     *memory.Store
	contexts   *swarmcontext.Store
	learning   *learning.Store
	coordinate *coordination.Editor
}

// buildApp resolves the project root, loads .claudeswarm.toml if present,
// and wires every core package against it, per spec §3's "one project root,
// one shared state directory" model.
func buildApp(cmd *cobra.Command) (*app, error) {
	explicitRoot, _ := cmd.Flags().GetString("project-root")
	jsonOut, _ := cmd.Flags().GetBool("json")

	root, err := rootpath.Resolve(explicitRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	cfg := config.Default()
	cfgPath := filepath.Join(root, ".claudeswarm.toml")
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		loaded, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			return nil, loadErr
		}
		cfg = loaded
	}

	s := store.New(root)
	b := backend.Select("")

	disc := discovery.New(s, b, cfg.StaleThreshold(), 0)
	locks := filelock.New(s, cfg.LockStaleTimeout())
	msg := messaging.New(s, disc, b, cfg.RateLimit())
	if cfg.Security.HMACSecret != "" {
		msg.SetSecret(cfg.Security.HMACSecret)
	}
	ackEngine := ack.New(msg, s, 0)
	tasks := task.New(s, 0)
	cards := card.New(s, 0)
	delegateEngine := delegate.New(cards, tasks, s, 0)
	conflicts := conflict.New(tasks, s, 0)
	mem := memory.New(s, 0)
	ctxStore := swarmcontext.New(s, 0)
	learn := learning.New(s, cards, 0)
	coord := coordination.New(s, 0)

	return &app{
		root:       root,
		cfg:        cfg,
		json:       jsonOut,
		store:      s,
		backend:    b,
		discovery:  disc,
		locks:      locks,
		messaging:  msg,
		ack:        ackEngine,
		tasks:      tasks,
		cards:      cards,
		delegate:   delegateEngine,
		conflicts:  conflicts,
		memory:     mem,
		contexts:   ctxStore,
		learning:   learn,
		coordinate: coord,
	}, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
