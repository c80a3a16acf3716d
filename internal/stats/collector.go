// Package stats samples process memory and CPU usage during a
// generation run and writes a plain-text report next to the graph.
package stats

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

type Sample struct {
	Elapsed    time.Duration
	HeapAlloc  uint64
	Sys        uint64
	RSS        uint64
	CPUPercent float64
	Goroutines int
	NumGC      uint32
}

type Report struct {
	Start    time.Time
	End      time.Time
	Samples  []Sample
	Interval time.Duration
}

// Collector polls runtime and process stats on a fixed interval until
// stopped.
type Collector struct {
	mu       sync.Mutex
	report   Report
	interval time.Duration
	proc     *process.Process
	stop     chan struct{}
	done     chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}
	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.report.Start = time.Now()
	c.report.Interval = c.interval
	go c.loop()
}

func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Elapsed:    time.Since(c.report.Start),
		HeapAlloc:  mem.HeapAlloc,
		Sys:        mem.Sys,
		NumGC:      mem.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.RSS = info.RSS
	}
	if pct, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = pct
	}

	c.mu.Lock()
	c.report.Samples = append(c.report.Samples, s)
	c.mu.Unlock()
}

// Stop halts sampling and returns the finished report.
func (c *Collector) Stop() Report {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.End = time.Now()
	return c.report
}

func (r *Report) SaveToFile(filename string) error {
	var peakHeap, peakRSS uint64
	var peakCPU, totalCPU float64
	peakGoroutines := 0
	for _, s := range r.Samples {
		peakHeap = max(peakHeap, s.HeapAlloc)
		peakRSS = max(peakRSS, s.RSS)
		peakCPU = max(peakCPU, s.CPUPercent)
		peakGoroutines = max(peakGoroutines, s.Goroutines)
		totalCPU += s.CPUPercent
	}
	avgCPU := 0.0
	if len(r.Samples) > 0 {
		avgCPU = totalCPU / float64(len(r.Samples))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "start:           %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(&sb, "end:             %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(&sb, "duration:        %s\n", r.End.Sub(r.Start))
	fmt.Fprintf(&sb, "samples:         %d (every %s)\n", len(r.Samples), r.Interval)
	fmt.Fprintf(&sb, "peak heap:       %s\n", humanize.IBytes(peakHeap))
	fmt.Fprintf(&sb, "peak rss:        %s\n", humanize.IBytes(peakRSS))
	fmt.Fprintf(&sb, "peak cpu:        %.2f%%\n", peakCPU)
	fmt.Fprintf(&sb, "avg cpu:         %.2f%%\n", avgCPU)
	fmt.Fprintf(&sb, "peak goroutines: %d\n", peakGoroutines)
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "%-12s %-12s %-12s %-8s %-10s\n", "elapsed(s)", "heap", "rss", "cpu%", "goroutines")
	for _, s := range r.Samples {
		fmt.Fprintf(&sb, "%-12.1f %-12s %-12s %-8.1f %-10d\n",
			s.Elapsed.Seconds(), humanize.IBytes(s.HeapAlloc), humanize.IBytes(s.RSS), s.CPUPercent, s.Goroutines)
	}

	if err := os.WriteFile(filename, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}
