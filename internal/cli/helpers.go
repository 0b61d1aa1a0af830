package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/taskledger/internal/store"
)

// projectRoot is the directory holding .taskledger/. Commands run from it.
const projectRoot = "."

// storeConfig resolves the database the command should use.
func (a *app) storeConfig() (store.Config, error) {
	return a.cfg.StoreConfig(projectRoot)
}

// mustStore opens the store, returning an error if the ledger is not
// initialized.
func (a *app) mustStore(cmd *cobra.Command) (*store.Store, error) {
	sc, err := a.storeConfig()
	if err != nil {
		return nil, err
	}
	if sc.Driver == store.DriverSQLite {
		if _, err := os.Stat(sc.DSN); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ledger not initialized. Run: taskledger init")
		}
	}
	return a.openStore(cmd, sc)
}

// openStore opens or creates the configured store.
func (a *app) openStore(cmd *cobra.Command, sc store.Config) (*store.Store, error) {
	return store.Open(cmd.Context(), sc, store.WithLogger(a.log))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusIcon is the board glyph for a task status.
func statusIcon(s store.TaskStatus) string {
	switch s {
	case store.StatusCompleted:
		return "✓"
	case store.StatusInProgress:
		return "●"
	case store.StatusReview:
		return "◎"
	case store.StatusBlocked:
		return "✗"
	case store.StatusPending:
		return "○"
	default:
		return "·"
	}
}

// statusLabel prefixes a status with its board icon.
func statusLabel(s store.TaskStatus) string {
	return statusIcon(s) + " " + string(s)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
