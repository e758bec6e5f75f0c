// Package handlers provides the HTTP API and websocket handlers for youcube.
package handlers

import (
	"context"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const bytesPerMB = 1024 * 1024

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	dataDir   string
	binaries  map[string]string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		binaries:  make(map[string]string),
	}
}

// WithDataDir sets the artifact directory whose disk usage is reported.
func (h *HealthHandler) WithDataDir(dir string) *HealthHandler {
	h.dataDir = dir
	return h
}

// WithBinary records the resolved path of an external tool. An empty path marks
// the tool as missing.
func (h *HealthHandler) WithBinary(name, path string) *HealthHandler {
	h.binaries[name] = path
	return h
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the output for the liveness probe.
type LivezOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse is the detailed health report.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPU           CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	Storage       *StorageInfo      `json:"storage,omitempty"`
	Binaries      []BinaryStatus    `json:"binaries"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo reports load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports system memory and the memory held by this process and its
// converter children.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMB         float64 `json:"process_mb"`
	ChildProcessCount int     `json:"child_process_count"`
	ChildProcessesMB  float64 `json:"child_processes_mb"`
}

// StorageInfo reports the filesystem holding the artifact cache.
type StorageInfo struct {
	Path        string  `json:"path"`
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// BinaryStatus reports whether an external tool was found.
type BinaryStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns service health, host load and the availability of the converter binaries",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetLivez reports that the process is serving requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetHealth returns the health status of the service. The status is "degraded"
// when a converter binary is missing.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		CPU:           cpuInfo(ctx),
		Memory:        memoryInfo(ctx),
		Binaries:      h.binaryStatuses(),
		Checks:        make(map[string]string),
	}

	for _, b := range resp.Binaries {
		if b.Available {
			resp.Checks[b.Name] = "ok"
			continue
		}
		resp.Checks[b.Name] = "missing"
		resp.Status = "degraded"
	}

	if h.dataDir != "" {
		resp.Storage = storageInfo(ctx, h.dataDir)
		if resp.Storage == nil {
			resp.Checks["storage"] = "unavailable"
		} else {
			resp.Checks["storage"] = "ok"
		}
	}

	return &HealthOutput{Body: resp}, nil
}

func (h *HealthHandler) binaryStatuses() []BinaryStatus {
	out := make([]BinaryStatus, 0, len(h.binaries))
	for name, path := range h.binaries {
		out = append(out, BinaryStatus{Name: name, Path: path, Available: path != ""})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cpuInfo(ctx context.Context) CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	avg, err := load.AvgWithContext(ctx)
	if err != nil || avg == nil {
		return info
	}
	info.Load1Min = avg.Load1
	info.Load5Min = avg.Load5
	info.Load15Min = avg.Load15
	if info.Cores > 0 {
		info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
	}
	return info
}

func memoryInfo(ctx context.Context) MemoryInfo {
	info := MemoryInfo{}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / bytesPerMB
		info.UsedMemoryMB = float64(vm.Used) / bytesPerMB
		info.AvailableMemoryMB = float64(vm.Available) / bytesPerMB
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return info
	}
	if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		info.ProcessMB = float64(mi.RSS) / bytesPerMB
	}

	// ffmpeg and sanjuuni run as children while converting.
	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		return info
	}
	info.ChildProcessCount = len(children)
	for _, child := range children {
		if mi, err := child.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.ChildProcessesMB += float64(mi.RSS) / bytesPerMB
		}
	}
	return info
}

func storageInfo(ctx context.Context, dir string) *StorageInfo {
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil || usage == nil {
		return nil
	}
	return &StorageInfo{
		Path:        dir,
		TotalMB:     float64(usage.Total) / bytesPerMB,
		FreeMB:      float64(usage.Free) / bytesPerMB,
		UsedPercent: usage.UsedPercent,
	}
}
