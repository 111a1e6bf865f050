package ws

import (
	"log"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type metrics struct {
	uptime     time.Duration
	heapMB     float64
	rssMB      float64
	cpuPercent float64
}

// sampler reads process metrics for server_status. gopsutil failures leave
// the affected fields at zero.
type sampler struct {
	proc    *process.Process
	started time.Time
}

func newSampler() *sampler {
	s := &sampler{started: time.Now()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("status: process metrics unavailable: %v", err)
		return s
	}
	s.proc = proc
	if ms, err := proc.CreateTime(); err == nil {
		s.started = time.UnixMilli(ms)
	}
	return s
}

func (s *sampler) sample() metrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := metrics{
		uptime: time.Since(s.started),
		heapMB: float64(mem.HeapAlloc) / 1024 / 1024,
	}
	if s.proc == nil {
		return m
	}
	if info, err := s.proc.MemoryInfo(); err == nil {
		m.rssMB = float64(info.RSS) / 1024 / 1024
	}
	if pct, err := s.proc.CPUPercent(); err == nil {
		m.cpuPercent = pct
	}
	return m
}
