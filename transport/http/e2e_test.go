package http_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joyqueue/journalkeeper/follower"
	httptransport "github.com/joyqueue/journalkeeper/transport/http"
)

// testFollowerNode wraps a single followerd container, grounded on
// raft-server/server_e2e_test.go's testRaftNode — there is no leader
// to elect here, so the test itself plays the leader's part over the
// HTTP ingress, exactly as an external leader collaborator would.
type testFollowerNode struct {
	container testcontainers.Container
	hostPort  string
}

func startFollowerNode(t *testing.T, ctx context.Context, configPath string) *testFollowerNode {
	repoRoot, err := filepath.Abs("../..")
	require.NoError(t, err)

	req := testcontainers.ContainerRequest{
		FromDockerfile: testcontainers.FromDockerfile{
			Context:    repoRoot,
			Dockerfile: "Dockerfile",
		},
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"-config", "/config/node.yaml"},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      configPath,
				ContainerFilePath: "/config/node.yaml",
			},
		},
		WaitingFor: wait.ForHTTP("/health").
			WithPort("8000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8000")
	require.NoError(t, err)

	return &testFollowerNode{
		container: container,
		hostPort:  fmt.Sprintf("%s:%s", host, port.Port()),
	}
}

func writeTestConfig(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := "" +
		"node:\n" +
		"  uri: follower-1\n" +
		"  address: 0.0.0.0:8000\n" +
		"  data_dir: /data\n" +
		"  cached_requests: 64\n" +
		"cluster:\n" +
		"  peers:\n" +
		"    - uri: follower-1\n" +
		"      address: 0.0.0.0:8000\n"

	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

// TestFollowerHTTPIngress_Heartbeat drives scenario 1 from spec.md §8
// through the real HTTP/Docker boundary: a heartbeat against an empty
// journal's implicit prefix is accepted.
func TestFollowerHTTPIngress_Heartbeat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker-backed e2e test in short mode")
	}

	ctx := context.Background()
	configPath := writeTestConfig(t)
	node := startFollowerNode(t, ctx, configPath)
	defer func() { _ = node.container.Terminate(ctx) }()

	client := httptransport.NewClient(5 * time.Second)
	heartbeat := &follower.AppendEntriesRequest{
		Term:         1,
		Leader:       "leader-1",
		PrevLogIndex: -1,
		PrevLogTerm:  0,
		LeaderCommit: 0,
	}
	resp, err := client.SendAppendEntries(node.hostPort, heartbeat)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, int64(0), resp.JournalIndex)
	require.Equal(t, 0, resp.EntryCount)
}
