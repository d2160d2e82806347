package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// Mock container for testing
type mockContainer struct {
	hostVal      string
	hostErr      error
	ports        map[nat.Port][]nat.PortBinding
	terminateErr error
	terminated   int
}

func (m *mockContainer) GetContainerID() string                                { return "mock-id" }
func (m *mockContainer) Start(ctx context.Context) error                       { return nil }
func (m *mockContainer) Stop(ctx context.Context, timeout *time.Duration) error { return nil }
func (m *mockContainer) Terminate(ctx context.Context, opts ...testcontainers.TerminateOption) error {
	m.terminated++
	return m.terminateErr
}
func (m *mockContainer) Host(ctx context.Context) (string, error) {
	return m.hostVal, m.hostErr
}
func (m *mockContainer) MappedPort(ctx context.Context, port nat.Port) (nat.Port, error) {
	if bindings, ok := m.ports[port]; ok && len(bindings) > 0 {
		return nat.Port(bindings[0].HostPort), nil
	}
	return "", fmt.Errorf("port not found: %s", port)
}
func (m *mockContainer) Ports(ctx context.Context) (nat.PortMap, error) { return m.ports, nil }
func (m *mockContainer) SessionID() string                               { return "session" }
func (m *mockContainer) IsRunning() bool                                 { return true }
func (m *mockContainer) Exec(ctx context.Context, cmd []string, options ...tcexec.ProcessOption) (int, io.Reader, error) {
	return 0, strings.NewReader(""), nil
}
func (m *mockContainer) Logs(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("Listening on ws://0.0.0.0:3000/\n")), nil
}
func (m *mockContainer) FollowOutput(consumer testcontainers.LogConsumer) {}
func (m *mockContainer) StartLogProducer(ctx context.Context, opts ...testcontainers.LogProductionOption) error {
	return nil
}
func (m *mockContainer) StopLogProducer() error                                  { return nil }
func (m *mockContainer) Name(ctx context.Context) (string, error)                { return "mock", nil }
func (m *mockContainer) State(ctx context.Context) (*container.State, error)     { return nil, nil }
func (m *mockContainer) Networks(ctx context.Context) ([]string, error)          { return nil, nil }
func (m *mockContainer) NetworkAliases(ctx context.Context) (map[string][]string, error) {
	return nil, nil
}
func (m *mockContainer) Endpoint(ctx context.Context, proto string) (string, error) { return "", nil }
func (m *mockContainer) PortEndpoint(ctx context.Context, port nat.Port, proto string) (string, error) {
	return "", nil
}
func (m *mockContainer) CopyToContainer(ctx context.Context, fileContent []byte, containerFilePath string, fileMode int64) error {
	return nil
}
func (m *mockContainer) CopyDirToContainer(ctx context.Context, hostDirPath string, containerParentPath string, fileMode int64) error {
	return nil
}
func (m *mockContainer) CopyFileToContainer(ctx context.Context, hostFilePath string, containerFilePath string, fileMode int64) error {
	return nil
}
func (m *mockContainer) CopyFileFromContainer(ctx context.Context, filePath string) (io.ReadCloser, error) {
	return nil, nil
}
func (m *mockContainer) GetLogProductionErrorChannel() <-chan error { return nil }
func (m *mockContainer) Inspect(ctx context.Context) (*container.InspectResponse, error) {
	return nil, nil
}
func (m *mockContainer) ContainerIP(ctx context.Context) (string, error) { return "172.17.0.2", nil }
func (m *mockContainer) ContainerIPs(ctx context.Context) ([]string, error) {
	return []string{"172.17.0.2"}, nil
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		container   *mockContainer
		want        string
		wantErr     bool
		errContains string
	}{
		{
			name: "localhost mapping",
			container: &mockContainer{
				hostVal: "localhost",
				ports:   map[nat.Port][]nat.PortBinding{serverPort: {{HostPort: "49153"}}},
			},
			want: "ws://localhost:49153/",
		},
		{
			name: "remote docker host",
			container: &mockContainer{
				hostVal: "10.0.0.5",
				ports:   map[nat.Port][]nat.PortBinding{serverPort: {{HostPort: "32768"}}},
			},
			want: "ws://10.0.0.5:32768/",
		},
		{
			name:        "host error",
			container:   &mockContainer{hostErr: fmt.Errorf("network error")},
			wantErr:     true,
			errContains: "network error",
		},
		{
			name:        "port not mapped",
			container:   &mockContainer{hostVal: "localhost"},
			wantErr:     true,
			errContains: "port not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := endpoint(context.Background(), tt.container)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTerminate(t *testing.T) {
	t.Run("nil server", func(t *testing.T) {
		var s *Server
		if err := s.Terminate(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("terminates once", func(t *testing.T) {
		mc := &mockContainer{}
		s := &Server{container: mc, endpoint: "ws://localhost:1/"}

		if err := s.Terminate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Terminate(context.Background()); err != nil {
			t.Fatalf("unexpected error on second terminate: %v", err)
		}
		if mc.terminated != 1 {
			t.Errorf("expected 1 terminate call, got %d", mc.terminated)
		}
	})

	t.Run("wraps error", func(t *testing.T) {
		s := &Server{container: &mockContainer{terminateErr: fmt.Errorf("boom")}}

		err := s.Terminate(context.Background())
		if err == nil || !strings.Contains(err.Error(), "terminating browser server: boom") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	opts.applyDefaults()

	if opts.Image != "mcr.microsoft.com/playwright:v1.52.0-noble" {
		t.Errorf("unexpected image %q", opts.Image)
	}
	if opts.StartupTimeout != 2*time.Minute {
		t.Errorf("unexpected startup timeout %v", opts.StartupTimeout)
	}

	custom := Options{Image: "custom:latest", StartupTimeout: time.Second}
	custom.applyDefaults()
	if custom.Image != "custom:latest" || custom.StartupTimeout != time.Second {
		t.Errorf("defaults overwrote explicit options: %+v", custom)
	}
}

func TestDockerNotRunningError(t *testing.T) {
	err := fmt.Errorf("starting browser server: %w", &DockerNotRunningError{})

	if !errors.Is(err, ErrDockerNotRunning) {
		t.Error("expected errors.Is to match ErrDockerNotRunning")
	}
	if !strings.Contains(err.Error(), "Docker") {
		t.Errorf("expected instructions in message, got %q", err.Error())
	}
}

func TestBuildWaitStrategy(t *testing.T) {
	if buildWaitStrategy(time.Second) == nil {
		t.Fatal("expected a wait strategy")
	}
}
