// Package monitoring turns a simulation into an HTTP server that reports the
// state of the FTL and the flash array and lets a user control the engine.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/monitoring/web"
	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
)

// FTLView is what the monitor reads from a translation layer.
type FTLView interface {
	sim.Named
	Stats() ftl.Stats
	BlockStates() []ftl.BlockState
	BlockState(pbn nand.PBN) (ftl.BlockState, error)
	CheckInvariants() error
}

// DeviceView is what the monitor reads from a flash array.
type DeviceView interface {
	sim.Named
	Stats() nand.Stats
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine      sim.Engine
	ftl         FTLView
	device      DeviceView
	components  []sim.Named
	portNumber  int
	openBrowser bool
	logger      *slog.Logger

	runLock sync.Mutex
	running bool
	runErr  error

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: slog.Default(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 pick
// a random free port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("monitor port is not allowed, using a random port",
			"port", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor page.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(l *slog.Logger) *Monitor {
	m.logger = l
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterFTL registers the translation layer to report.
func (m *Monitor) RegisterFTL(f FTLView) {
	m.ftl = f
	m.RegisterComponent(f)
}

// RegisterDevice registers the flash array to report.
func (m *Monitor) RegisterDevice(d DeviceView) {
	m.device = d
	m.RegisterComponent(d)
}

// RegisterComponent registers a component whose fields can be inspected.
func (m *Monitor) RegisterComponent(c sim.Named) {
	m.components = append(m.components, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of all the monitor routes.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/ftl/stats", m.ftlStats)
	r.HandleFunc("/api/ftl/blocks", m.ftlBlocks)
	r.HandleFunc("/api/ftl/block/{pbn}", m.ftlBlock)
	r.HandleFunc("/api/ftl/invariants", m.ftlInvariants)
	r.HandleFunc("/api/nand/stats", m.nandStats)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", "localhost:"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitor cannot listen: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Info("monitoring simulation", "url", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor stopped", "err", err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.Warn("cannot open browser", "err", err)
		}
	}

	return url, nil
}

// StopServer closes the server started by StartServer.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) engineOr503(w http.ResponseWriter) bool {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return false
	}

	return true
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

// run drives the engine in the background. A second call while the engine
// runs is rejected.
func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	if !m.engineOr503(w) {
		return
	}

	m.runLock.Lock()
	defer m.runLock.Unlock()

	if m.running {
		http.Error(w, "engine is already running", http.StatusConflict)
		return
	}

	m.running = true

	go func() {
		err := m.engine.Run()

		m.runLock.Lock()
		m.running = false
		m.runErr = err
		m.runLock.Unlock()

		if err != nil {
			m.logger.Error("engine stopped with an error", "err", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) ftlOr404(w http.ResponseWriter) bool {
	if m.ftl == nil {
		http.Error(w, "no ftl registered", http.StatusNotFound)
		return false
	}

	return true
}

type ftlStatsRsp struct {
	ftl.Stats
	WriteAmplification float64 `json:"write_amplification"`
}

func (m *Monitor) ftlStats(w http.ResponseWriter, _ *http.Request) {
	if !m.ftlOr404(w) {
		return
	}

	s := m.ftl.Stats()
	writeJSON(w, ftlStatsRsp{Stats: s, WriteAmplification: s.WriteAmplification()})
}

type blockRsp struct {
	PBN nand.PBN `json:"pbn"`
	ftl.BlockState
}

func (m *Monitor) ftlBlocks(w http.ResponseWriter, r *http.Request) {
	if !m.ftlOr404(w) {
		return
	}

	sortMethod, limit, offset, err := parseBlockParams(r)
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	states := m.ftl.BlockStates()
	blocks := make([]blockRsp, len(states))
	for i, s := range states {
		blocks[i] = blockRsp{PBN: nand.PBN(i), BlockState: s}
	}

	writeJSON(w, sortAndSelectBlocks(blocks, sortMethod, limit, offset))
}

func (m *Monitor) ftlBlock(w http.ResponseWriter, r *http.Request) {
	if !m.ftlOr404(w) {
		return
	}

	pbn, err := strconv.ParseInt(mux.Vars(r)["pbn"], 10, 64)
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	s, err := m.ftl.BlockState(nand.PBN(pbn))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, blockRsp{PBN: nand.PBN(pbn), BlockState: s})
}

type invariantsRsp struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (m *Monitor) ftlInvariants(w http.ResponseWriter, _ *http.Request) {
	if !m.ftlOr404(w) {
		return
	}

	rsp := invariantsRsp{OK: true}
	if err := m.ftl.CheckInvariants(); err != nil {
		rsp = invariantsRsp{Error: err.Error()}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) nandStats(w http.ResponseWriter, _ *http.Request) {
	if m.device == nil {
		http.Error(w, "no nand device registered", http.StatusNotFound)
		return
	}

	writeJSON(w, m.device.Stats())
}

// parseBlockParams reads sort (pbn or valid), limit, and offset. A zero limit
// selects all the blocks after offset.
func parseBlockParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "pbn"
	}

	if sortMethod != "pbn" && sortMethod != "valid" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s. Allowed values are `pbn` and `valid`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	if limit < 0 || offset < 0 {
		return sortMethod, limit, offset, errors.New("limit and offset must not be negative")
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0, nil
	}

	return strconv.Atoi(str)
}

// sortAndSelectBlocks orders the blocks and cuts a page out of them. Sorting
// by valid puts the data blocks with the fewest valid pages first, which is
// the order collection picks victims in.
func sortAndSelectBlocks(
	blocks []blockRsp,
	sortMethod string,
	limit, offset int,
) []blockRsp {
	if sortMethod == "valid" {
		sort.SliceStable(blocks, func(i, j int) bool {
			di := blocks[i].Type == ftl.BlockData
			dj := blocks[j].Type == ftl.BlockData

			if di != dj {
				return di
			}

			return blocks[i].ValidPages < blocks[j].ValidPages
		})
	}

	if offset > len(blocks) {
		offset = len(blocks)
	}

	end := len(blocks)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return blocks[offset:end]
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	_, err = m.walkFields(component, req.FieldName)
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type fieldFormatError struct {
	path string
}

func (e fieldFormatError) Error() string {
	return "cannot follow field path " + e.path
}

// walkFields follows a dot separated path of field names and slice indexes.
func (m *Monitor) walkFields(
	comp interface{},
	fields string,
) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			if elem.IsNil() {
				return elem, fieldFormatError{path: fields}
			}

			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			if !elem.IsValid() {
				return elem, fieldFormatError{path: fields}
			}

			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index < 0 || index >= elem.Len() {
				return elem, fieldFormatError{path: fields}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			return elem, fieldFormatError{path: fields}
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
