// Package monitoring serves the live state of a run over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/metrics"
)

// Monitor turns a run into a server that reports metrics, flight state and
// resource usage.
type Monitor struct {
	portNumber int
	runID      string
	mode       string
	store      *metrics.Store
	state      *flight.State

	profileDuration time.Duration

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{profileDuration: time.Second}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// RegisterRun sets the identity of the run.
func (m *Monitor) RegisterRun(runID, mode string) {
	m.runID = runID
	m.mode = mode
}

// RegisterStore registers the metrics store of the run.
func (m *Monitor) RegisterStore(s *metrics.Store) {
	m.store = s
}

// RegisterState registers the flight state of the run.
func (m *Monitor) RegisterState(s *flight.State) {
	m.state = s
}

// Router returns the handler of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/run", m.describeRun)
	r.HandleFunc("/api/metrics", m.listMetrics)
	r.HandleFunc("/api/metrics/{task}", m.taskMetrics)
	r.HandleFunc("/api/state", m.flightState)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() error {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.mu.Lock()
	m.listener = listener
	m.server = server
	m.mu.Unlock()

	fmt.Fprintf(os.Stderr, "Monitoring flight run with %s\n", m.URL())

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("monitor: %v", err)
		}
	}()

	return nil
}

// URL returns the address of the server, or an empty string if it is not
// running.
func (m *Monitor) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the metrics page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	url := m.URL()
	if url == "" {
		return errors.New("monitor is not running")
	}

	return browser.OpenURL(url + "/api/metrics")
}

// Close stops the server.
func (m *Monitor) Close() error {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

type runRsp struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
}

func (m *Monitor) describeRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, runRsp{RunID: m.runID, Mode: m.mode})
}

type entryRsp struct {
	Task           string `json:"task"`
	Class          string `json:"class"`
	Iterations     int64  `json:"iterations"`
	ExecTimeNS     int64  `json:"exec_time_ns"`
	Preemptions    int64  `json:"preemptions"`
	DeadlineMisses int64  `json:"deadline_misses"`
	Throughput     int64  `json:"throughput"`
	Rejected       int64  `json:"rejected"`
	Policy         string `json:"policy"`
	Priority       int    `json:"priority"`
	CPU            int    `json:"cpu"`
	Unenforced     bool   `json:"unenforced"`
	Note           string `json:"note,omitempty"`
}

func toEntryRsp(e metrics.TaskEntry) entryRsp {
	return entryRsp{
		Task:           e.Task,
		Class:          e.Class.String(),
		Iterations:     e.Iterations,
		ExecTimeNS:     int64(e.ExecTime),
		Preemptions:    e.Preemptions,
		DeadlineMisses: e.DeadlineMisses,
		Throughput:     e.Throughput,
		Rejected:       e.Rejected,
		Policy:         e.Policy.String(),
		Priority:       e.Priority,
		CPU:            e.CPU,
		Unenforced:     e.Unenforced,
		Note:           e.Note,
	}
}

// listMetrics reports the store without resetting the per-interval counters;
// those belong to the profiler.
func (m *Monitor) listMetrics(w http.ResponseWriter, _ *http.Request) {
	if m.store == nil {
		http.Error(w, "no metrics registered", http.StatusNotFound)
		return
	}

	entries := m.store.Snapshot()
	rsp := make([]entryRsp, 0, len(entries))

	for _, e := range entries {
		rsp = append(rsp, toEntryRsp(e))
	}

	writeJSON(w, rsp)
}

func (m *Monitor) taskMetrics(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["task"]

	if m.store == nil {
		http.Error(w, "no metrics registered", http.StatusNotFound)
		return
	}

	e, ok := m.store.Lookup(name)
	if !ok {
		http.Error(w, "task "+name+" not found", http.StatusNotFound)
		return
	}

	writeJSON(w, toEntryRsp(e))
}

type flightView struct {
	Snapshot flight.Snapshot
	Status   string
}

func (m *Monitor) flightState(w http.ResponseWriter, _ *http.Request) {
	if m.state == nil {
		http.Error(w, "no flight state registered", http.StatusNotFound)
		return
	}

	view := &flightView{
		Snapshot: m.state.Snapshot(),
		Status:   m.state.Status().String(),
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(view)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemorySize  uint64  `json:"memory_size"`
	Voluntary   int64   `json:"voluntary_ctx_switches"`
	Involuntary int64   `json:"involuntary_ctx_switches"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	switches, err := process.NumCtxSwitches()
	if err == nil {
		rsp.Voluntary = switches.Voluntary
		rsp.Involuntary = switches.Involuntary
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
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
