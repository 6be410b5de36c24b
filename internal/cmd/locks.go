package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude-swarm/swarm/internal/style"
	"github.com/claude-swarm/swarm/internal/swarmerr"
)

var listAllLocksIncludeStale bool

var acquireFileLockCmd = &cobra.Command{
	Use:     "acquire-file-lock <path> <agent-id> [reason]",
	GroupID: GroupLocks,
	Short:   "Claim exclusive ownership of a path or glob pattern",
	Args:    cobra.RangeArgs(2, 3),
	RunE:    runAcquireFileLock,
}

var releaseFileLockCmd = &cobra.Command{
	Use:     "release-file-lock <path> <agent-id>",
	GroupID: GroupLocks,
	Short:   "Release a held file lock",
	Args:    cobra.ExactArgs(2),
	RunE:    runReleaseFileLock,
}

var whoHasLockCmd = &cobra.Command{
	Use:     "who-has-lock <path>",
	GroupID: GroupLocks,
	Short:   "Show who holds the lock on a path, if anyone",
	Args:    cobra.ExactArgs(1),
	RunE:    runWhoHasLock,
}

var listAllLocksCmd = &cobra.Command{
	Use:     "list-all-locks",
	GroupID: GroupLocks,
	Short:   "List every currently held file lock",
	RunE:    runListAllLocks,
}

var cleanupStaleLocksCmd = &cobra.Command{
	Use:     "cleanup-stale-locks",
	GroupID: GroupLocks,
	Short:   "Remove locks whose holder has gone quiet past the stale timeout",
	RunE:    runCleanupStaleLocks,
}

func init() {
	listAllLocksCmd.Flags().BoolVar(&listAllLocksIncludeStale, "include-stale", false, "Include locks past the stale timeout")

	rootCmd.AddCommand(acquireFileLockCmd, releaseFileLockCmd, whoHasLockCmd, listAllLocksCmd, cleanupStaleLocksCmd)
}

func runAcquireFileLock(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	path, agentID := args[0], args[1]
	reason := ""
	if len(args) == 3 {
		reason = args[2]
	}

	ok, conflict, err := a.locks.Acquire(path, agentID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s held by %s (%s)", swarmerr.ErrConflict, conflict.FilePath, conflict.Holder, conflict.Reason)
	}
	if a.json {
		return printJSON(map[string]any{"acquired": true, "path": path, "agent_id": agentID})
	}
	fmt.Printf("%s acquired %s\n", agentID, path)
	return nil
}

func runReleaseFileLock(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	path, agentID := args[0], args[1]
	released, err := a.locks.Release(path, agentID)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"released": released, "path": path, "agent_id": agentID})
	}
	if released {
		fmt.Printf("%s released %s\n", agentID, path)
	} else {
		fmt.Printf("%s did not hold %s\n", agentID, path)
	}
	return nil
}

func runWhoHasLock(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	lock, held, err := a.locks.WhoHas(args[0])
	if err != nil {
		return err
	}
	if a.json {
		if !held {
			return printJSON(map[string]any{"held": false, "path": args[0]})
		}
		return printJSON(lock)
	}
	if !held {
		fmt.Printf("%s is not locked\n", args[0])
		return nil
	}
	fmt.Printf("%s held by %s since %s (%s)\n", lock.FilePath, lock.AgentID, time.Unix(lock.LockedAt, 0).Format(time.RFC3339), lock.Reason)
	return nil
}

func runListAllLocks(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	locks, err := a.locks.ListAll(listAllLocksIncludeStale)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(locks)
	}

	t := style.NewTable(
		style.Column{Name: "PATH", Width: 40},
		style.Column{Name: "AGENT", Width: 16},
		style.Column{Name: "LOCKED AT", Width: 20},
		style.Column{Name: "REASON", Width: 24},
	)
	for _, l := range locks {
		t.AddRow(l.FilePath, l.AgentID, time.Unix(l.LockedAt, 0).Format("2006-01-02 15:04:05"), l.Reason)
	}
	fmt.Print(t.Render())
	return nil
}

func runCleanupStaleLocks(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	n, err := a.locks.CleanupStale(a.cfg.LockStaleTimeout())
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(map[string]any{"removed": n})
	}
	fmt.Printf("removed %d stale lock(s)\n", n)
	return nil
}
