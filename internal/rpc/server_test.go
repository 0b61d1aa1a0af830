package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/imkarma/taskledger/internal/metrics"
	"github.com/imkarma/taskledger/internal/store"
)

func testServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewServer(s, opts...), s
}

// serve feeds lines to the server and returns the response lines.
func serve(t *testing.T, srv *Server, lines ...string) []string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, srv.Serve(context.Background(), in, &out))
	resp := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(resp) == 1 && resp[0] == "" {
		return nil
	}
	return resp
}

func TestServe_MalformedThenValid(t *testing.T) {
	srv, _ := testServer(t)

	resp := serve(t, srv,
		`{not json`,
		`{"method":"get_phase_status","params":{"phase":1}}`,
	)
	require.Len(t, resp, 2)
	assert.JSONEq(t, `{"status":"error","message":"invalid JSON"}`, resp[0])
	assert.JSONEq(t, `{"phase":1,"total_tasks":0,"completed":0,"in_progress":0,"pending":0,"review":0,"blocked":0,"progress":"0.0%"}`, resp[1])
}

func TestServe_UnknownMethodAndBlankLines(t *testing.T) {
	srv, _ := testServer(t)

	resp := serve(t, srv, "", `{"method":"drop_tables"}`, "   ", `[1,2]`)
	require.Len(t, resp, 2)
	assert.JSONEq(t, `{"status":"error","message":"unknown method: drop_tables"}`, resp[0])
	assert.Equal(t, "error", gjson.Get(resp[1], "status").String())
}

func TestServe_AssignTask(t *testing.T) {
	srv, st := testServer(t)

	resp := serve(t, srv,
		`{"method":"assign_task","params":{"task_id":"T1","agent_name":"Backend-Agent","title":"API","dependencies":["T0"]}}`,
		`{"method":"assign_task","params":{"task_id":"T1","agent_name":"Frontend-Agent","title":"other"}}`,
	)
	require.Len(t, resp, 2)
	assert.JSONEq(t, `{"status":"success","task_id":"T1","assigned_to":"Backend-Agent","message":"task T1 assigned to Backend-Agent"}`, resp[0])
	assert.JSONEq(t, `{"status":"error","message":"task T1 already exists"}`, resp[1])

	task, err := st.GetTask(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "Backend-Agent", task.Assignee)
	assert.Equal(t, 1, task.Phase)
	assert.Equal(t, []string{"T0"}, task.Dependencies)
}

func TestServe_TaskLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	resp := serve(t, srv,
		`{"method":"add_task","params":{"task_id":"T1","title":"Build","assignee":"Backend","phase":1}}`,
		`{"method":"update_task_status","params":{"task_id":"T1","status":"in_progress","session_id":"s-1"}}`,
		`{"method":"get_task","params":{"task_id":"T1"}}`,
		`{"method":"update_task_status","params":{"task_id":"T1","status":"completed"}}`,
		`{"method":"get_phase_status","params":{"phase":1}}`,
		`{"method":"get_agent_tasks","params":{"agent_name":"Backend"}}`,
		`{"method":"update_task_status","params":{"task_id":"nope","status":"completed"}}`,
	)
	require.Len(t, resp, 7)

	assert.Equal(t, "success", gjson.Get(resp[0], "status").String())
	assert.JSONEq(t, `{"status":"success","task_id":"T1","new_status":"in_progress"}`, resp[1])
	assert.Equal(t, "s-1", gjson.Get(resp[2], "assignee_session").String())
	assert.True(t, gjson.Get(resp[2], "started_at").Exists())
	assert.Equal(t, "100.0%", gjson.Get(resp[4], "progress").String())
	assert.Equal(t, int64(1), gjson.Get(resp[4], "completed").Int())

	agentTasks := gjson.Parse(resp[5]).Array()
	require.Len(t, agentTasks, 1)
	assert.Equal(t, "completed", agentTasks[0].Get("status").String())

	assert.Equal(t, "error", gjson.Get(resp[6], "status").String())
	assert.Contains(t, gjson.Get(resp[6], "message").String(), "task not found")
}

func TestServe_ListAndReassign(t *testing.T) {
	srv, _ := testServer(t)

	resp := serve(t, srv,
		`{"method":"add_task","params":{"task_id":"A","title":"a","assignee":"X","phase":2}}`,
		`{"method":"add_task","params":{"task_id":"B","title":"b","assignee":"X","phase":1,"dependencies":["A","ghost"]}}`,
		`{"method":"reassign_task","params":{"task_id":"A","assignee":"Y"}}`,
		`{"method":"list_tasks","params":{"assignee":"X"}}`,
		`{"method":"list_tasks"}`,
		`{"method":"get_progress"}`,
		`{"method":"check_dependencies"}`,
	)
	require.Len(t, resp, 7)
	assert.JSONEq(t, `{"status":"success","task_id":"A","assigned_to":"Y"}`, resp[2])
	assert.Equal(t, `["B"]`, gjson.Get(resp[3], "#.task_id").Raw)
	assert.Equal(t, `["B","A"]`, gjson.Get(resp[4], "#.task_id").Raw)
	assert.Equal(t, `[1,2]`, gjson.Get(resp[5], "#.phase").Raw)
	assert.Equal(t, "ghost", gjson.Get(resp[6], "dangling.0.missing").String())
}

func TestServe_Messages(t *testing.T) {
	srv, _ := testServer(t, WithInboxLimit(2))

	resp := serve(t, srv,
		`{"method":"send_message","params":{"from_agent":"PM","to_agent":"B","message_type":"task","content":"one","task_ref":"T1"}}`,
		`{"method":"send_message","params":{"from_agent":"PM","message_type":"notice","content":"two","context_refs":["T1","T2"]}}`,
		`{"method":"send_message","params":{"from_agent":"PM","to_agent":"C","content":"three"}}`,
		`{"method":"send_message","params":{"from_agent":"PM","to_agent":"B","content":"four"}}`,
		`{"method":"mark_read","params":{"id":4}}`,
		`{"method":"get_messages","params":{"agent_name":"B"}}`,
		`{"method":"get_messages","params":{"agent_name":"B","unread_only":true,"limit":1}}`,
		`{"method":"mark_read","params":{"id":99}}`,
	)
	require.Len(t, resp, 8)
	assert.JSONEq(t, `{"status":"success","id":1,"message":"message sent to B"}`, resp[0])
	assert.Equal(t, "message sent to all agents", gjson.Get(resp[1], "message").String())
	assert.JSONEq(t, `{"status":"success","id":4}`, resp[4])

	assert.Equal(t, `[4,2]`, gjson.Get(resp[5], "#.id").Raw, "bounded by the server limit")
	assert.Equal(t, `[true,false]`, gjson.Get(resp[5], "#.read").Raw)
	assert.Equal(t, `["T1","T2"]`, gjson.Get(resp[5], "1.context").Raw)

	assert.Equal(t, `[2]`, gjson.Get(resp[6], "#.id").Raw)
	assert.Contains(t, gjson.Get(resp[7], "message").String(), "message not found")
}

func TestServe_AgentStatus(t *testing.T) {
	srv, _ := testServer(t)

	resp := serve(t, srv,
		`{"method":"set_agent_status","params":{"agent_name":"DevOps","current_task":"D1","status":"working","progress_percent":50}}`,
		`{"method":"set_agent_status","params":{"agent_name":"DevOps","status":"asleep"}}`,
		`{"method":"list_agent_status","params":{}}`,
	)
	require.Len(t, resp, 3)
	assert.Equal(t, "working", gjson.Get(resp[0], "status").String())
	assert.Equal(t, "error", gjson.Get(resp[1], "status").String())
	assert.Equal(t, `["DevOps"]`, gjson.Get(resp[2], "#.agent_name").Raw)
	assert.Equal(t, int64(50), gjson.Get(resp[2], "0.progress_percent").Int())
}

func TestServe_BadParams(t *testing.T) {
	srv, _ := testServer(t)

	resp := serve(t, srv,
		`{"method":"get_phase_status","params":{"phase":"one"}}`,
		`{"method":"get_task","params":{"task_id":"T1","extra":true}}`,
		`{"method":"add_task","params":{"task_id":"T1"}}`,
	)
	require.Len(t, resp, 3)
	for _, r := range resp {
		assert.Equal(t, "error", gjson.Get(r, "status").String(), r)
	}
	assert.Contains(t, gjson.Get(resp[0], "message").String(), "invalid params")
	assert.Contains(t, gjson.Get(resp[1], "message").String(), "unknown field")
	assert.Contains(t, gjson.Get(resp[2], "message").String(), "invalid argument")
}

func TestHandle_RecoversPanics(t *testing.T) {
	srv, _ := testServer(t)
	srv.handlers["boom"] = func(context.Context, []byte) (any, error) {
		panic("kaboom")
	}

	resp := serve(t, srv, `{"method":"boom"}`, `{"method":"list_agent_status"}`)
	require.Len(t, resp, 2)
	assert.JSONEq(t, `{"status":"error","message":"internal error: kaboom"}`, resp[0])
	assert.Equal(t, "[]", resp[1])
}

func TestHandle_Metrics(t *testing.T) {
	m := metrics.New()
	srv, _ := testServer(t, WithMetrics(m))

	serve(t, srv,
		`{"method":"get_phase_status","params":{"phase":1}}`,
		`{"method":"get_task","params":{"task_id":"missing"}}`,
		`garbage`,
	)

	got, err := testutil.GatherAndCount(m.Registry(), "taskledger_requests_total", "taskledger_rejected_lines_total")
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestServe_OversizedLineThenValid(t *testing.T) {
	m := metrics.New()
	srv, _ := testServer(t, WithMetrics(m))

	big := fmt.Sprintf(`{"method":"send_message","params":{"from_agent":"PM","content":"%s"}}`,
		strings.Repeat("x", maxLineSize+10))
	resp := serve(t, srv,
		big,
		`{"method":"get_phase_status","params":{"phase":1}}`,
	)

	require.Len(t, resp, 2)
	assert.JSONEq(t, `{"status":"error","message":"request too large"}`, resp[0])
	assert.Equal(t, int64(0), gjson.Get(resp[1], "total_tasks").Int())
	assert.Equal(t, "0.0%", gjson.Get(resp[1], "progress").String())

	got, err := testutil.GatherAndCount(m.Registry(), "taskledger_rejected_lines_total")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestServe_LastLineWithoutNewline(t *testing.T) {
	srv, _ := testServer(t)

	var out bytes.Buffer
	in := strings.NewReader(`{"method":"get_phase_status","params":{"phase":1}}`)
	require.NoError(t, srv.Serve(context.Background(), in, &out))
	assert.Equal(t, int64(1), gjson.Get(out.String(), "phase").Int())
}

func TestReadLine_AtLimit(t *testing.T) {
	exact := strings.Repeat("a", maxLineSize)
	r := bufio.NewReaderSize(strings.NewReader(exact+"\n"+exact+"b\nok\n"), 4096)

	line, tooLong, err := readLine(r)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Len(t, line, maxLineSize)

	line, tooLong, err = readLine(r)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Nil(t, line)

	line, tooLong, err = readLine(r)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "ok", string(line))
}

func TestServe_Cancelled(t *testing.T) {
	srv, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := srv.Serve(ctx, strings.NewReader(`{"method":"list_tasks"}`+"\n"), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestMethods(t *testing.T) {
	srv, _ := testServer(t)
	assert.Len(t, srv.Methods(), 15)
	assert.Contains(t, srv.Methods(), "check_dependencies")
}

func TestHandle_BusyIsRetryable(t *testing.T) {
	srv, _ := testServer(t)
	srv.handlers["locked"] = func(context.Context, []byte) (any, error) {
		return nil, fmt.Errorf("update task status: %w", store.ErrBusy)
	}

	data, err := json.Marshal(srv.Handle(context.Background(), []byte(`{"method":"locked"}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"update task status: store busy","retryable":true}`, string(data))
}
