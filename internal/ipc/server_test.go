package ipc

import (
	"bufio"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/presentation"
)

type fakeRuntime struct {
	mu      sync.Mutex
	inv     *display.Inventory
	stops   []string
	stopped bool
}

func (f *fakeRuntime) Status() coordinator.Status {
	return coordinator.Status{
		RunID: "run-1",
		Phase: coordinator.PhaseRunning,
		Sinks: []presentation.SinkStatus{
			{SinkID: 1, Name: "wall", State: presentation.StateRunning, FramesSubmitted: 42},
		},
	}
}

func (f *fakeRuntime) Inventory() *display.Inventory {
	return f.inv
}

func (f *fakeRuntime) Stop(origin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, origin)
	if f.stopped {
		return false
	}
	f.stopped = true
	return true
}

func startServer(t *testing.T, rt Runtime) *Client {
	t.Helper()
	t.Setenv("PROJECTMAPPER_SOCKET", filepath.Join(t.TempDir(), "pm.sock"))

	srv, err := NewServer(rt, []string{"rtsp", "file"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return NewClient()
}

func TestServer_Status(t *testing.T) {
	client := startServer(t, &fakeRuntime{})

	st, err := client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.RunID != "run-1" || st.Phase != coordinator.PhaseRunning {
		t.Fatalf("status = %+v", st)
	}
	if len(st.Sinks) != 1 || st.Sinks[0].State != presentation.StateRunning || st.Sinks[0].FramesSubmitted != 42 {
		t.Fatalf("sinks = %+v", st.Sinks)
	}
}

func TestServer_Monitors(t *testing.T) {
	rt := &fakeRuntime{inv: display.NewInventory([]display.MonitorCaps{{
		Name:    "HDMI-1",
		Bounds:  display.Rect{X: 1920, Width: 1920, Height: 1080},
		Current: display.Mode{Width: 1920, Height: 1080, RefreshHz: 60},
		Modes: []display.Mode{
			{Width: 1280, Height: 720, RefreshHz: 60},
			{Width: 1920, Height: 1080, RefreshHz: 60},
		},
	}})}
	client := startServer(t, rt)

	data, err := client.GetMonitors()
	if err != nil {
		t.Fatalf("GetMonitors: %v", err)
	}
	if len(data.Monitors) != 1 {
		t.Fatalf("got %d monitors", len(data.Monitors))
	}
	m := data.Monitors[0]
	if m.Name != "HDMI-1" || m.X != 1920 || len(m.Modes) != 2 || m.Modes[0].Width != 1920 {
		t.Fatalf("monitor = %+v", m)
	}

	opts, err := client.GetOptions()
	if err != nil {
		t.Fatalf("GetOptions: %v", err)
	}
	rates := opts.Sinks[0].TypeOptions.FullScreen.Exclusive.MonitorConfigs["HDMI-1"]["1920x1080"]
	if len(rates) != 1 || rates[0] != 60000 {
		t.Fatalf("exclusive rates = %v", rates)
	}
	if got := opts.Sources[0].TypeOptions.URITypes; len(got) != 2 || got[0] != "file" {
		t.Fatalf("uri types = %v", got)
	}
}

func TestServer_MonitorsBeforeEnumeration(t *testing.T) {
	client := startServer(t, &fakeRuntime{})
	if _, err := client.GetMonitors(); err == nil || !strings.Contains(err.Error(), "not been enumerated") {
		t.Fatalf("expected enumeration error, got %v", err)
	}
}

func TestServer_StopIsAcceptedOnce(t *testing.T) {
	rt := &fakeRuntime{}
	client := startServer(t, rt)

	accepted, err := client.Stop("test")
	if err != nil || !accepted {
		t.Fatalf("first Stop = %v, %v", accepted, err)
	}
	accepted, err = client.Stop("")
	if err != nil || accepted {
		t.Fatalf("second Stop = %v, %v", accepted, err)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.stops) != 2 || rt.stops[0] != "ipc (test)" || rt.stops[1] != "ipc" {
		t.Fatalf("stop origins = %v", rt.stops)
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	startServer(t, &fakeRuntime{})
	path := NewClient().socketPath

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"command":"RELOAD"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(line, `"status":"ERROR"`) || !strings.Contains(line, "Unknown command: RELOAD") {
		t.Fatalf("response = %s", line)
	}
}

func TestClient_NoServer(t *testing.T) {
	t.Setenv("PROJECTMAPPER_SOCKET", filepath.Join(t.TempDir(), "missing.sock"))
	if err := NewClient().Ping(); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestNewServer_RefusesLiveSocket(t *testing.T) {
	startServer(t, &fakeRuntime{})

	if _, err := NewServer(&fakeRuntime{}, nil); err == nil || !strings.Contains(err.Error(), "already listening") {
		t.Fatalf("second server err = %v", err)
	}
}
