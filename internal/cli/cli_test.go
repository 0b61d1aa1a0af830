package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/imkarma/taskledger/internal/config"
	"github.com/imkarma/taskledger/internal/store"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err, "taskledger %s", strings.Join(args, " "))
	return out
}

// initLedger creates an empty ledger in a fresh working directory.
func initLedger(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	mustRun(t, "init")
}

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"init", "task", "phase", "status", "msg", "agent", "plan", "deps", "board", "brief", "ui", "serve"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	for _, flag := range []string{"config", "db", "driver", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

func TestNotInitialized(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger not initialized")
}

func TestInit(t *testing.T) {
	t.Chdir(t.TempDir())

	out := mustRun(t, "init", "--seed")
	assert.Contains(t, out, "Initialized ledger in .taskledger/ (sqlite)")
	assert.Contains(t, out, "Seeded 10 tasks")
	assert.FileExists(t, filepath.Join(config.Dir, config.FileName))
	assert.FileExists(t, filepath.Join(config.Dir, config.DBName))

	_, err := run(t, "", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")

	out = mustRun(t, "status")
	assert.Contains(t, out, "Tasks: 10 total")
	assert.Contains(t, out, "Phase 1: 0.0%")

	out = mustRun(t, "board", "--by-agent")
	assert.Contains(t, out, "Backend-Agent (2)")
	assert.Contains(t, out, "waiting on P1-A1, P1-A2")
	assert.Contains(t, out, "10 tasks")

	out = mustRun(t, "board")
	assert.Contains(t, out, "PENDING (10)")
}

func TestTaskLifecycle(t *testing.T) {
	initLedger(t)

	out := mustRun(t, "task", "add", "T1", "Build", "API", "--assignee", "Backend", "--dep", "T0", "--priority", "P0")
	assert.Contains(t, out, "Task T1 assigned to Backend [P0, phase 1]")

	_, err := run(t, "", "task", "create", "T1", "Other", "--assignee", "Frontend")
	assert.ErrorIs(t, err, store.ErrDuplicateTask)

	out = mustRun(t, "task", "start", "T1")
	assert.Contains(t, out, "Task T1 → in_progress")
	assert.Contains(t, out, "Session ")

	out = mustRun(t, "task", "show", "T1", "--json")
	assert.Equal(t, "Build API", gjson.Get(out, "title").String())
	assert.Equal(t, "in_progress", gjson.Get(out, "status").String())
	assert.NotEmpty(t, gjson.Get(out, "assignee_session").String())
	assert.JSONEq(t, `["T0"]`, gjson.Get(out, "dependencies").Raw)

	mustRun(t, "task", "block", "T1", "waiting", "on", "db")
	out = mustRun(t, "task", "list", "--status", "blocked")
	assert.Contains(t, out, `BLOCKED: "waiting on db"`)

	mustRun(t, "task", "done", "T1")
	out = mustRun(t, "phase", "1", "--json")
	assert.Equal(t, int64(1), gjson.Get(out, "completed").Int())
	assert.Equal(t, "100.0%", gjson.Get(out, "progress").String())

	mustRun(t, "task", "assign", "T1", "Frontend")
	out = mustRun(t, "task", "agent", "Frontend", "--json")
	assert.Equal(t, "pending", gjson.Get(out, "0.status").String(), "reassigning resets the status")

	_, err = run(t, "", "task", "update", "missing", "completed")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	_, err = run(t, "", "task", "add", "T2", "No owner")
	assert.Error(t, err, "--assignee is required")
}

func TestMessages(t *testing.T) {
	initLedger(t)

	out := mustRun(t, "msg", "send", "PM", "all", "standup", "at", "10")
	assert.Contains(t, out, "Message #1 sent to all agents")
	mustRun(t, "msg", "send", "PM", "Backend", "start T1", "--task", "T1", "--type", "task")
	mustRun(t, "msg", "send", "PM", "Frontend", "not for backend")

	out = mustRun(t, "msg", "inbox", "Backend")
	assert.Contains(t, out, "start T1")
	assert.Contains(t, out, "standup at 10")
	assert.NotContains(t, out, "not for backend")
	assert.Less(t, strings.Index(out, "start T1"), strings.Index(out, "standup at 10"), "newest first")

	out = mustRun(t, "msg", "inbox", "Backend", "--unread", "--json", "--mark-read")
	assert.Equal(t, `[2,1]`, gjson.Get(out, "#.id").Raw)

	out = mustRun(t, "msg", "inbox", "Backend", "--unread")
	assert.Contains(t, out, "No messages for Backend.")

	mustRun(t, "msg", "read", "3")
	_, err := run(t, "", "msg", "read", "99")
	assert.ErrorIs(t, err, store.ErrMessageNotFound)
	_, err = run(t, "", "msg", "read", "x")
	assert.Error(t, err)
}

func TestAgentStatus(t *testing.T) {
	initLedger(t)

	out := mustRun(t, "agent", "set", "Backend-Agent", "working", "--task", "P1-B1", "--progress", "40")
	assert.Contains(t, out, "Backend-Agent is working (40%)")

	out = mustRun(t, "agent", "list")
	assert.Contains(t, out, "PM-Agent")
	assert.Regexp(t, `Backend-Agent\s+working\s+40% on P1-B1`, out)

	_, err := run(t, "", "agent", "set", "Backend-Agent", "asleep")
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestDepsCheck(t *testing.T) {
	initLedger(t)
	mustRun(t, "task", "add", "A", "a", "--assignee", "X", "--dep", "B")
	mustRun(t, "task", "add", "B", "b", "--assignee", "X", "--dep", "A")
	mustRun(t, "task", "add", "C", "c", "--assignee", "X", "--dep", "ghost")

	out, err := run(t, "", "deps", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 dangling dependencies, 1 cycles")
	assert.Contains(t, out, "dangling: C depends on unknown task ghost")
	assert.Contains(t, out, "cycle: A → B")

	initLedger(t)
	mustRun(t, "plan", "load")
	out = mustRun(t, "deps", "check")
	assert.Contains(t, out, "10 tasks, dependencies OK")
}

func TestPlanLoadFile(t *testing.T) {
	initLedger(t)
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: sprint
tasks:
  - id: S1
    title: Spike
    assignee: Backend-Agent
    phase: 2
  - id: S2
    title: Follow up
    assignee: Backend-Agent
    phase: 2
    dependencies: [S1]
`), 0644))

	out := mustRun(t, "plan", "load", path)
	assert.Contains(t, out, `Loaded 2 tasks from plan "sprint"`)

	out = mustRun(t, "phase")
	assert.Contains(t, out, "Phase 2: 0/2 completed (0.0%)")

	out = mustRun(t, "plan", "show")
	assert.Contains(t, out, "P1-A1")
}

func TestBrief(t *testing.T) {
	initLedger(t)
	mustRun(t, "plan", "load")
	mustRun(t, "msg", "send", "PM-Agent", "Backend-Agent", "schema is ready")

	out := mustRun(t, "brief", "Backend-Agent", "--mark-read")
	assert.Contains(t, out, "# Briefing: Backend-Agent\nRole: backend developer")
	assert.Contains(t, out, "**P1-B1**")
	assert.Contains(t, out, "schema is ready")

	out = mustRun(t, "brief", "Backend-Agent")
	assert.NotContains(t, out, "schema is ready")
}

func TestServe(t *testing.T) {
	initLedger(t)

	in := strings.Join([]string{
		`{"method":"assign_task","params":{"task_id":"T1","agent_name":"Backend-Agent","title":"API"}}`,
		`not json`,
		`{"method":"get_phase_status","params":{"phase":1}}`,
	}, "\n") + "\n"

	out, err := run(t, in, "serve")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "success", gjson.Get(lines[0], "status").String())
	assert.JSONEq(t, `{"status":"error","message":"invalid JSON"}`, lines[1])
	assert.Equal(t, int64(1), gjson.Get(lines[2], "total_tasks").Int())
}

func TestDBFlagOverridesConfig(t *testing.T) {
	initLedger(t)
	other := filepath.Join(t.TempDir(), "other.db")

	_, err := run(t, "", "--db", other, "status")
	require.Error(t, err, "a missing sqlite file is not created implicitly")

	// init refuses to run twice in one directory, so create the file directly.
	s, err := store.New(other)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	mustRun(t, "--db", other, "task", "add", "X1", "elsewhere", "--assignee", "A")
	out := mustRun(t, "task", "list")
	assert.Contains(t, out, "No tasks found.")
	out = mustRun(t, "--db", other, "task", "list")
	assert.Contains(t, out, "X1")
}
