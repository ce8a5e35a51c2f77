package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-myhome/internal/audit"
	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

const (
	ack            = "*#*1##"
	commandSession = "*99*0##"
)

// gatewayStub accepts command sessions and records every frame.
type gatewayStub struct {
	ln     net.Listener
	mu     sync.Mutex
	frames []string
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	g := &gatewayStub{ln: ln}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // Test cleanup
	go g.serve()
	return g
}

func (g *gatewayStub) serve() {
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			return
		}
		go g.handle(conn)
	}
}

func (g *gatewayStub) handle(conn net.Conn) {
	defer conn.Close() //nolint:errcheck // Test stub
	r := bufio.NewReader(conn)

	if _, err := conn.Write([]byte(ack)); err != nil {
		return
	}
	if frame, err := readFrame(r); err != nil || frame != commandSession {
		return
	}
	if _, err := conn.Write([]byte(ack)); err != nil {
		return
	}

	for {
		frame, err := readFrame(r)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.frames = append(g.frames, frame)
		g.mu.Unlock()
		if _, err := conn.Write([]byte(ack)); err != nil {
			return
		}
	}
}

func (g *gatewayStub) port() int {
	return g.ln.Addr().(*net.TCPAddr).Port
}

func (g *gatewayStub) received() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.frames...)
}

func readFrame(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		sb.WriteByte(b)
		if strings.HasSuffix(sb.String(), "##") {
			return sb.String(), nil
		}
	}
}

// testConfig returns defaults pointed at a temp database and quiet logging.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "myhome.db")
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Plant.PacingMS = 5
	cfg.Plant.ConnectTimeoutMS = 1000
	cfg.Plant.AwaitAck = true
	return cfg
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		arg       string
		wantDelay time.Duration
		wantFrame string
		wantErr   bool
	}{
		{"*1*1*21##", 0, "*1*1*21##", false},
		{"delay:250ms", 250 * time.Millisecond, "", false},
		{"delay:soon", 0, "", true},
		{"delay:-1s", 0, "", true},
		{"", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			c, err := parseCommand(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCommand(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch v := c.(type) {
			case command.Directive:
				if v.Payload() != tt.wantFrame {
					t.Errorf("Payload() = %q, want %q", v.Payload(), tt.wantFrame)
				}
			case command.Delay:
				if v.Duration() != tt.wantDelay {
					t.Errorf("Duration() = %v, want %v", v.Duration(), tt.wantDelay)
				}
			}
		})
	}
}

func TestBuildAction_ResetFirst(t *testing.T) {
	opts := sendOptions{
		description: "test",
		priority:    queue.High,
		reset:       []string{"*1*0*21##", "*1*0*22##"},
	}

	a, err := buildAction(opts, []string{"*1*1*21##"})
	if err != nil {
		t.Fatalf("buildAction() error = %v", err)
	}
	if a.Len() != 3 || !a.HasDelay() || a.Priority() != queue.High {
		t.Fatalf("action = %s", a)
	}
	first := a.Commands()[0].(command.Directive)
	if first.Payload() != "*1*0*21##" {
		t.Errorf("first = %q, want reset command", first.Payload())
	}
}

func TestBuildAction_BadReset(t *testing.T) {
	_, err := buildAction(sendOptions{reset: []string{"delay:x"}}, []string{"*1*1*21##"})
	if err == nil {
		t.Error("buildAction() should fail on a bad reset command")
	}
}

func TestDispatchConfig(t *testing.T) {
	cfg := config.Default().Plant
	cfg.Retry.Policy = "requeue"
	cfg.Retry.MaxAttempts = 4

	dc, err := dispatchConfig(cfg)
	if err != nil {
		t.Fatalf("dispatchConfig() error = %v", err)
	}
	if dc.Policy != dispatcher.PolicyRequeue || dc.MaxAttempts != 4 || dc.Pacing != 300*time.Millisecond {
		t.Errorf("dispatchConfig() = %+v", dc)
	}

	cfg.Retry.Policy = "retry-forever"
	if _, err := dispatchConfig(cfg); !errors.Is(err, dispatcher.ErrInvalidPolicy) {
		t.Errorf("dispatchConfig() error = %v, want ErrInvalidPolicy", err)
	}
}

func TestNewDialer(t *testing.T) {
	cfg := config.Default().Plant
	cfg.Host = "10.0.0.5"
	cfg.AwaitAck = true

	d := newDialer(cfg)
	if d.Address() != "10.0.0.5:20000" || !d.AwaitAck || d.ConnectTimeout != 5*time.Second {
		t.Errorf("newDialer() = %+v", d)
	}
}

// TestSendThenHistory delivers an action to a stub gateway and reads it
// back from the history database.
func TestSendThenHistory(t *testing.T) {
	gw := newGatewayStub(t)
	cfg := testConfig(t)
	cfg.Plant.Port = gw.port()

	opts := sendOptions{
		description: "hall lights",
		priority:    queue.Medium,
		reset:       []string{"*1*0*21##", "delay:10ms"},
		timeout:     5 * time.Second,
	}

	var out bytes.Buffer
	if err := runSend(context.Background(), cfg, opts, []string{"*1*1*21##"}, &out); err != nil {
		t.Fatalf("runSend() error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "sent=2 held=1 dropped=0") {
		t.Errorf("output = %q", out.String())
	}

	got := gw.received()
	want := []string{"*1*0*21##", "*1*1*21##"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("gateway received %v, want %v", got, want)
	}

	out.Reset()
	if err := runHistory(context.Background(), cfg, audit.Filter{}, "", &out); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	for _, want := range []string{"hall lights", "medium", "accepted", "cli", "1 of 1 actions"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("history missing %q:\n%s", want, out.String())
		}
	}
}

func TestSend_GatewayDownRecordsDrop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() //nolint:errcheck // Free the port so dials are refused

	cfg := testConfig(t)
	cfg.Plant.Port = port

	var out bytes.Buffer
	opts := sendOptions{description: "unreachable", priority: queue.Low, timeout: 5 * time.Second}
	err = runSend(context.Background(), cfg, opts, []string{"*1*1*21##"}, &out)
	if err == nil || !strings.Contains(err.Error(), "dropped") {
		t.Fatalf("runSend() error = %v, want dropped frames", err)
	}

	out.Reset()
	if err := runHistory(context.Background(), cfg, audit.Filter{Limit: 1}, "", &out); err != nil {
		t.Fatalf("runHistory() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("history output = %q", out.String())
	}
	fields := strings.Fields(lines[1])
	actionID := fields[2]

	out.Reset()
	if err := runHistory(context.Background(), cfg, audit.Filter{}, actionID, &out); err != nil {
		t.Fatalf("runHistory(%s) error = %v", actionID, err)
	}
	if !strings.Contains(out.String(), "dropped") || !strings.Contains(out.String(), "*1*1*21##") {
		t.Errorf("deliveries output = %q", out.String())
	}
}

func TestSend_NoAudit(t *testing.T) {
	gw := newGatewayStub(t)
	cfg := testConfig(t)
	cfg.Plant.Port = gw.port()

	var out bytes.Buffer
	opts := sendOptions{priority: queue.Low, timeout: 5 * time.Second, noAudit: true}
	if err := runSend(context.Background(), cfg, opts, []string{"*1*1*21##"}, &out); err != nil {
		t.Fatalf("runSend() error = %v", err)
	}
	if _, err := os.Stat(cfg.Database.Path); !os.IsNotExist(err) {
		t.Errorf("database created with --no-audit (stat err = %v)", err)
	}
}

// TestRun_MQTTUnavailable verifies run fails fast when the broker refuses.
func TestRun_MQTTUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.MQTT.Broker.Host = "127.0.0.1"
	cfg.MQTT.Broker.Port = 1

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx, cfg)
	if err == nil || !strings.Contains(err.Error(), "MQTT") {
		t.Fatalf("run() error = %v, want MQTT connection failure", err)
	}
}

func TestRootCommand_Version(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "myhomed dev") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestRootCommand_MissingConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"history", "--config", "/nonexistent/config.yaml"})
	defer func() {
		rootCmd.SetArgs(nil)
		_ = rootCmd.PersistentFlags().Set("config", "")
	}()

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("Execute() error = %v, want config load failure", err)
	}
}

func TestConfigPath(t *testing.T) {
	newCmd := func(flag string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("config", flag, "")
		return cmd
	}

	t.Setenv("MYHOME_CONFIG", "")
	if got := configPath(newCmd("")); got != defaultConfigPath {
		t.Errorf("configPath() = %q, want default", got)
	}

	t.Setenv("MYHOME_CONFIG", "/etc/myhome/config.yaml")
	if got := configPath(newCmd("")); got != "/etc/myhome/config.yaml" {
		t.Errorf("configPath() = %q, want env value", got)
	}
	if got := configPath(newCmd("local.yaml")); got != "local.yaml" {
		t.Errorf("configPath() = %q, want flag value", got)
	}
}

func TestMigrateCommands(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	const migration = "20260301_090000"

	steps := []struct {
		name string
		run  func(context.Context, *config.Config, io.Writer) error
		want []string
	}{
		{"status before up", runMigrateStatus, []string{cfg.Database.Path, migration, "pending"}},
		{"up", runMigrateUp, []string{"schema up to date"}},
		{"status after up", runMigrateStatus, []string{migration, "applied"}},
		{"down", runMigrateDown, []string{"rolled back " + migration}},
		{"down again", runMigrateDown, []string{"nothing to roll back"}},
	}

	for _, step := range steps {
		var out bytes.Buffer
		if err := step.run(ctx, cfg, &out); err != nil {
			t.Fatalf("%s: error = %v", step.name, err)
		}
		for _, want := range step.want {
			if !strings.Contains(out.String(), want) {
				t.Errorf("%s: output missing %q:\n%s", step.name, want, out.String())
			}
		}
	}
}
