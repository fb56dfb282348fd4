package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/cluster/clustertest"
	"github.com/goyalankit/click/internal/config"
	"github.com/goyalankit/click/internal/session"
)

func newShell(t *testing.T, input string) (*Dispatcher, *clustertest.Fake, *bytes.Buffer) {
	t.Helper()
	fake := clustertest.New("prod")
	cfg := &config.Config{
		Contexts:        []config.Context{{Name: "prod", Server: "https://prod.example.com:6443"}},
		RefreshInterval: time.Minute,
		CancelGrace:     time.Second,
	}
	sess := session.New(cfg, session.WithConnector(
		func(context.Context, config.Context) (cluster.Interface, error) {
			return fake, nil
		}))
	t.Cleanup(sess.Close)

	out := &bytes.Buffer{}
	return NewDispatcher(NewRegistry(), sess, out, strings.NewReader(input), time.Second), fake, out
}

func mustRun(t *testing.T, d *Dispatcher, line string) {
	t.Helper()
	outcome := d.Execute(context.Background(), line)
	require.Equal(t, StatusOK, outcome.Status, "%q failed: %v", line, outcome.Err)
}

func TestExecuteEmptyLine(t *testing.T) {
	d, _, _ := newShell(t, "")
	assert.Equal(t, StatusOK, d.Execute(context.Background(), "   ").Status)
}

func TestExecuteUnknownCommand(t *testing.T) {
	d, _, _ := newShell(t, "")
	outcome := d.Execute(context.Background(), "frobnicate")
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindUnknownCommand, outcome.Kind)
}

func TestExecuteUnknownCommandSuggestsClosest(t *testing.T) {
	d, _, _ := newShell(t, "")
	outcome := d.Execute(context.Background(), "lgs")
	require.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindUnknownCommand, outcome.Kind)
	assert.Contains(t, outcome.Err.Error(), "did you mean 'logs'")
}

func TestListAtLeafDepthNamesTheKind(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1/app")

	out.Reset()
	mustRun(t, d, "ls")
	assert.Contains(t, out.String(), "nothing beneath a container")

	mustRun(t, d, "cd /")
	mustRun(t, d, "cd node-1")
	out.Reset()
	mustRun(t, d, "ls")
	assert.Contains(t, out.String(), "nothing beneath a node")
}

func TestExecuteRequiresContext(t *testing.T) {
	d, _, _ := newShell(t, "")
	outcome := d.Execute(context.Background(), "ls")
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindNoSelection, outcome.Kind)
}

func TestContextListAndSwitch(t *testing.T) {
	d, _, out := newShell(t, "")

	mustRun(t, d, "ctx")
	assert.Contains(t, out.String(), "prod")
	assert.Contains(t, out.String(), "not activated")

	out.Reset()
	mustRun(t, d, "ctx prod")
	assert.Contains(t, out.String(), "switched to context prod")
}

func TestListAtEachDepth(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "ctx prod")

	out.Reset()
	mustRun(t, d, "ls")
	assert.Contains(t, out.String(), "default")
	assert.Contains(t, out.String(), "node-1")

	mustRun(t, d, "cd default")
	out.Reset()
	mustRun(t, d, "ls")
	assert.Contains(t, out.String(), "web-1")
	assert.Contains(t, out.String(), "web-2")

	mustRun(t, d, "cd web-1")
	out.Reset()
	mustRun(t, d, "ls")
	assert.Contains(t, out.String(), "app")
	assert.Contains(t, out.String(), "sidecar")
}

func TestChangeDirMultiSegment(t *testing.T) {
	d, _, _ := newShell(t, "")
	mustRun(t, d, "ctx prod")

	mustRun(t, d, "cd default/web-1/app")
	path := d.session.Nav().Snapshot()
	assert.Equal(t, "default", path.Namespace())
	assert.Equal(t, "web-1", path.Pod())
	assert.Equal(t, "app", path.Container())

	mustRun(t, d, "cd /")
	assert.Empty(t, d.session.Nav().Snapshot().Segments)

	mustRun(t, d, "cd default/web-1")
	mustRun(t, d, "cd ..")
	assert.Equal(t, "default", d.session.Nav().Snapshot().Namespace())
	assert.Empty(t, d.session.Nav().Snapshot().Pod())
}

func TestChangeDirNotFound(t *testing.T) {
	d, _, _ := newShell(t, "")
	mustRun(t, d, "ctx prod")

	outcome := d.Execute(context.Background(), "cd ghost")
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindNotFound, outcome.Kind)
	assert.Empty(t, d.session.Nav().Snapshot().Segments, "failed cd must not move")
}

func TestLogsRequiresPod(t *testing.T) {
	d, _, _ := newShell(t, "")
	mustRun(t, d, "ctx prod")

	outcome := d.Execute(context.Background(), "logs")
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindNoSelection, outcome.Kind)
}

func TestLogsFiniteStream(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1")

	out.Reset()
	mustRun(t, d, "logs")
	assert.Contains(t, out.String(), "log line one")
	assert.Contains(t, out.String(), "log line two")
}

func TestFollowLogsCancelledByInterrupt(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1")
	out.Reset()

	results := make(chan Outcome, 1)
	go func() {
		results <- d.Execute(context.Background(), "logs -f")
	}()

	// Let the stream serve its seed lines, then interrupt the follow.
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "log line two")
	}, time.Second, 5*time.Millisecond)
	d.Interrupt()

	select {
	case outcome := <-results:
		assert.Equal(t, StatusCancelled, outcome.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("interrupted follow did not finish")
	}
}

func TestInterruptWhenIdleIsNoop(t *testing.T) {
	d, _, _ := newShell(t, "")
	d.Interrupt()
	mustRun(t, d, "ctx prod")
}

func TestExecRunsCommand(t *testing.T) {
	d, fake, out := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1/app")

	out.Reset()
	mustRun(t, d, "exec ls -la")
	require.Len(t, fake.ExecCalls, 1)
	assert.Equal(t, []string{"ls", "-la"}, fake.ExecCalls[0])
	assert.Contains(t, out.String(), "default/web-1[app]")
}

func TestExecRequiresCommand(t *testing.T) {
	d, _, _ := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1")

	outcome := d.Execute(context.Background(), "exec")
	assert.Equal(t, KindInvalidArgument, outcome.Kind)
}

func TestDeleteConfirmed(t *testing.T) {
	d, fake, out := newShell(t, "y\n")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1/app")

	mustRun(t, d, "delete")
	assert.Equal(t, []string{"default/web-1"}, fake.Deleted)
	assert.Contains(t, out.String(), "deleted pod default/web-1")

	// The cursor cannot keep pointing at a pod that no longer exists.
	assert.Equal(t, "default", d.session.Nav().Snapshot().Namespace())
	assert.Empty(t, d.session.Nav().Snapshot().Pod())
}

func TestDeleteDeclined(t *testing.T) {
	d, fake, out := newShell(t, "n\n")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1")

	mustRun(t, d, "delete")
	assert.Empty(t, fake.Deleted)
	assert.Contains(t, out.String(), "aborted")
}

func TestDescribeSelectedPod(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1")

	out.Reset()
	mustRun(t, d, "describe")
	assert.Contains(t, out.String(), "Name: web-1")
}

func TestYAMLForContainerUsesPod(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "ctx prod")
	mustRun(t, d, "cd default/web-1/app")

	out.Reset()
	mustRun(t, d, "yaml")
	assert.Contains(t, out.String(), "kind: Pod")
	assert.Contains(t, out.String(), "name: web-1")
}

func TestDescribeWithoutSelection(t *testing.T) {
	d, _, _ := newShell(t, "")
	mustRun(t, d, "ctx prod")

	outcome := d.Execute(context.Background(), "describe")
	assert.Equal(t, KindNoSelection, outcome.Kind)
}

func TestQuit(t *testing.T) {
	d, _, _ := newShell(t, "")
	outcome := d.Execute(context.Background(), "quit")
	assert.Equal(t, StatusOK, outcome.Status)
	assert.True(t, outcome.Quit)
}

func TestHelpListsCommands(t *testing.T) {
	d, _, out := newShell(t, "")
	mustRun(t, d, "help")
	for _, name := range d.registry.Names() {
		assert.Contains(t, out.String(), name)
	}
}
