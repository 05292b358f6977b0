package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"liyu1981.xyz/home-state-monitor/pkg/common"
)

var ErrNotInstalled = errors.New("tunnel: cloudflared not found in PATH")

var quickTunnelURL = regexp.MustCompile(`https://[A-Za-z0-9-]+\.trycloudflare\.com`)

// ParseURL extracts a quick tunnel URL from one line of cloudflared output.
func ParseURL(line string) (string, bool) {
	u := quickTunnelURL.FindString(line)
	return u, u != ""
}

// Manager runs cloudflared as a child process and reports its public URL.
// With a Hostname the URL is known up front; otherwise it is scraped from the
// process output once cloudflared prints it.
type Manager struct {
	Binary     string
	ConfigPath string
	LocalURL   string
	Hostname   string

	mu   sync.RWMutex
	url  string
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func New(localURL, hostname string) *Manager {
	return &Manager{Binary: "cloudflared", LocalURL: localURL, Hostname: hostname}
}

func (m *Manager) args() []string {
	switch {
	case m.ConfigPath != "":
		return []string{"tunnel", "--config", m.ConfigPath, "run"}
	case m.Hostname != "":
		return []string{"tunnel", "--url", m.LocalURL, "--hostname", m.Hostname}
	default:
		return []string{"tunnel", "--url", m.LocalURL}
	}
}

// PublicURL implements iot.Tunnel.
func (m *Manager) PublicURL() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.url, m.url != ""
}

func (m *Manager) setURL(u string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = u
}

// Start launches the process. It stops when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryTunnel),
	)

	bin, err := exec.LookPath(m.Binary)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	cmd := exec.CommandContext(ctx, bin, m.args()...)
	cmd.WaitDelay = 5 * time.Second

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("tunnel: start cloudflared: %w", err)
	}
	logger.Info("Tunnel process started", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", m.args()))

	if m.Hostname != "" {
		m.setURL("https://" + strings.TrimPrefix(m.Hostname, "https://"))
	}

	m.mu.Lock()
	m.cmd = cmd
	m.done = make(chan struct{})
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.scan(stderr, logger) }()
	go func() { defer wg.Done(); m.scan(stdout, logger) }()

	go func() {
		wg.Wait()
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			logger.Error("Tunnel process exited", zap.Error(err))
		} else {
			logger.Info("Tunnel process stopped")
		}
		m.mu.Lock()
		m.err = err
		m.url = ""
		close(m.done)
		m.mu.Unlock()
	}()

	return nil
}

// Done is closed once the process has exited.
func (m *Manager) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

func (m *Manager) scan(r io.Reader, logger *zap.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("cloudflared", zap.String("line", line))

		if u, ok := ParseURL(line); ok {
			if current, _ := m.PublicURL(); current != u {
				m.setURL(u)
				logger.Info("Tunnel URL detected", zap.String("url", u))
			}
			continue
		}
		if strings.Contains(line, " ERR ") {
			logger.Warn("cloudflared reported an error", zap.String("line", line))
		}
	}
}
