// Package monitoring exposes a running stress test over HTTP so that memory
// pressure can be watched from outside the terminal.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/syifan/goseth"

	"github.com/sarchlab/allocate/hooking"
	"github.com/sarchlab/allocate/stress"
)

// Status is the latest lifecycle state seen by the monitor.
type Status struct {
	Phase      string `json:"phase"`
	Event      string `json:"event"`
	Seq        uint64 `json:"seq"`
	Index      int    `json:"index"`
	Occupied   int    `json:"occupied"`
	BlockCount uint64 `json:"block_count"`
	BlockSize  uint64 `json:"block_size"`
	Overhead   uint64 `json:"overhead"`
	Total      uint64 `json:"total"`
}

// Monitor is a hook that mirrors the controller state and serves it to HTTP
// clients. The controller never waits on the monitor; handlers only read
// the mirrored state.
type Monitor struct {
	portNumber int
	sampler    *ResourceSampler
	out        io.Writer

	lock     sync.Mutex
	status   Status
	progress *ProgressBar

	server *http.Server
	url    string
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{out: os.Stderr}
}

// WithWriter sets where the monitor prints its notices.
func (m *Monitor) WithWriter(w io.Writer) *Monitor {
	m.out = w
	return m
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(m.out,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithResourceSampler sets the sampler used by /api/resource.
func (m *Monitor) WithResourceSampler(s *ResourceSampler) *Monitor {
	m.sampler = s
	return m
}

// Func mirrors the controller state carried by the hook.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	s, ok := ctx.Item.(stress.Snapshot)
	if !ok {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.status = Status{
		Phase:      s.Phase.String(),
		Event:      ctx.Pos.Name,
		Seq:        ctx.Seq,
		Index:      s.Index,
		Occupied:   s.Occupied,
		BlockCount: s.BlockCount,
		BlockSize:  s.BlockSize,
		Overhead:   s.Overhead,
		Total:      s.Total,
	}

	if ctx.Pos == stress.HookPosTableCreated {
		m.progress = NewProgressBar("blocks", s.BlockCount)
	}

	if m.progress == nil {
		return
	}

	switch ctx.Pos {
	case stress.HookPosBlockAllocated:
		m.progress.IncrementAllocated(1)
	case stress.HookPosBlockReleased:
		m.progress.MoveAllocatedToReleased(1)
	}
}

// CurrentStatus returns the latest mirrored state.
func (m *Monitor) CurrentStatus() Status {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.status
}

// Handler returns the HTTP API of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", m.listStatus)
	r.HandleFunc("/api/progress", m.listProgress)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/registry", m.dumpStatus)
	r.HandleFunc("/api/registry/{field}", m.dumpStatusField)

	return r
}

// StartServer starts serving the HTTP API in the background and returns the
// status URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	m.url = fmt.Sprintf("http://localhost:%d/api/status",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{Handler: m.Handler()}

	fmt.Fprintf(m.out, "Monitoring allocation with %s\n", m.url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Panic(err)
		}
	}()

	return m.url, nil
}

// OpenInBrowser opens the status URL in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.url == "" {
		return fmt.Errorf("monitoring server is not running")
	}

	return browser.OpenURL(m.url)
}

// StopServer closes the listener and all connections.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) listStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.CurrentStatus())
}

func (m *Monitor) listProgress(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.progress == nil {
		writeJSON(w, []any{})
		return
	}

	m.progress.Lock()
	defer m.progress.Unlock()

	writeJSON(w, []any{map[string]any{
		"id":         m.progress.ID,
		"name":       m.progress.Name,
		"start_time": m.progress.StartTime,
		"total":      m.progress.Total,
		"allocated":  m.progress.Allocated,
		"released":   m.progress.Released,
	}})
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	if m.sampler == nil {
		http.Error(w, "resource sampling is disabled", http.StatusNotFound)
		return
	}

	rsp, err := m.sampler.Sample()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.Lookup("heap").WriteTo(buf, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func (m *Monitor) dumpStatus(w http.ResponseWriter, _ *http.Request) {
	status := m.CurrentStatus()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&status)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) dumpStatusField(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	status := m.CurrentStatus()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&status)
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint([]string{field})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
