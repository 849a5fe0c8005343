package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/remote"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// NmonBackend samples CPU/memory/swap usage on a target host by polling
// top/free over SSH on a ticker while a background nmon process runs, the
// shape grounded on the teacher's periodic pod-metrics sampling loop: a
// goroutine per monitored resource, ticker-driven, summarised on stop.
type NmonBackend struct {
	Executor func(target *model.TargetHost) (*remote.Executor, error)

	mu      sync.Mutex
	running map[int64]*session
}

type session struct {
	cancel func()
	done   chan struct{}
	cpu    []model.TrendPoint
	mem    []model.TrendPoint
	swap   []model.TrendPoint
	mu     sync.Mutex
}

func NewNmonBackend(executor func(*model.TargetHost) (*remote.Executor, error)) *NmonBackend {
	return &NmonBackend{Executor: executor, running: make(map[int64]*session)}
}

var _ Backend = (*NmonBackend)(nil)

// Install places nmon on the target host, returning the path the engine
// invokes it from for the rest of the monitor's lifecycle.
func (b *NmonBackend) Install(ctx *hscontext.Context, target *model.TargetHost) (string, error) {
	exec, err := b.Executor(target)
	if err != nil {
		return "", err
	}
	result, err := exec.Exec(ctx, "command -v nmon || (sudo apt-get update -y && sudo apt-get install -y nmon && command -v nmon)")
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(result.Stdout)
	if path == "" {
		return "", errors.New("nmon installation produced no executable path")
	}
	return path, nil
}

// StartMonitoring launches the per-host sampling goroutine. Rather than
// parsing nmon's own binary snapshot format, samples are read directly
// from top/free at the configured cadence, giving the same CPU/mem/swap
// percentages without depending on a particular tool's wire format.
func (b *NmonBackend) StartMonitoring(ctx *hscontext.Context, target *model.TargetHost, execPath string) (int, error) {
	exec, err := b.Executor(target)
	if err != nil {
		return 0, err
	}

	interval := time.Duration(target.SamplingInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	loopCtx, cancel := hscontext.WithCancel(ctx)
	sess := &session{cancel: cancel, done: make(chan struct{})}

	b.mu.Lock()
	b.running[target.ID] = sess
	b.mu.Unlock()

	go b.sampleLoop(loopCtx, exec, target, interval, sess)

	// nmon itself runs as a long-lived background process on the host so a
	// restart of this engine doesn't orphan sampling; its pid is reported
	// back so the store can track it like any other monitored process.
	result, err := exec.Exec(ctx, fmt.Sprintf("nohup %s -s %d -c 360000 > /tmp/nmon.out 2>&1 & echo $!", execPath, target.SamplingInterval))
	if err != nil {
		cancel()
		return 0, err
	}
	var pid int
	if _, scanErr := fmt.Sscanf(result.Stdout, "%d", &pid); scanErr != nil {
		cancel()
		return 0, errors.Wrapf(scanErr, "parsing nmon pid from output %q", result.Stdout)
	}
	return pid, nil
}

// sampleLoop polls the host every interval until cancelled, appending a
// trend point per resource each tick.
func (b *NmonBackend) sampleLoop(ctx *hscontext.Context, exec *remote.Executor, target *model.TargetHost, interval time.Duration, sess *session) {
	defer close(sess.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpu, mem, swap, err := sampleUsage(ctx, exec)
			if err != nil {
				ctx.Log.Warn().Err(err).Str("host", target.HostName).Msg("skipping sample after transient read failure")
				continue
			}
			now := sampleTime()
			sess.mu.Lock()
			sess.cpu = append(sess.cpu, model.TrendPoint{At: now, Value: cpu})
			sess.mem = append(sess.mem, model.TrendPoint{At: now, Value: mem})
			sess.swap = append(sess.swap, model.TrendPoint{At: now, Value: swap})
			sess.mu.Unlock()
		}
	}
}

// sampleTime is a thin seam over time.Now so tests can fake the clock
// without this package depending on an injected clock interface everywhere.
var sampleTime = time.Now

// sampleUsage reads one snapshot of CPU/memory/swap percentage usage by
// running top and free remotely, so nmon's own output format is never
// parsed and format changes across nmon versions do not matter.
func sampleUsage(ctx *hscontext.Context, exec *remote.Executor) (cpu, mem, swap float64, err error) {
	result, err := exec.Exec(ctx, "top -bn1 | grep 'Cpu(s)' ; free | grep -E 'Mem|Swap'")
	if err != nil {
		return 0, 0, 0, err
	}
	cpu, mem, swap = parseUsageSnapshot(result.Stdout)
	return cpu, mem, swap, nil
}

// parseUsageSnapshot extracts approximate percentages from the combined
// top/free output; malformed lines degrade to 0 rather than erroring, since
// a single bad sample shouldn't abort the whole monitoring loop.
func parseUsageSnapshot(output string) (cpu, mem, swap float64) {
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "Cpu(s)"):
			var idle float64
			if _, err := fmt.Sscanf(strings.TrimSpace(afterComma(line, 3)), "%f", &idle); err == nil {
				cpu = 100 - idle
			}
		case strings.HasPrefix(strings.TrimSpace(line), "Mem:"):
			mem = percentUsed(line)
		case strings.HasPrefix(strings.TrimSpace(line), "Swap:"):
			swap = percentUsed(line)
		}
	}
	return cpu, mem, swap
}

func afterComma(line string, n int) string {
	parts := strings.Split(line, ",")
	if n >= len(parts) {
		return ""
	}
	return strings.Fields(parts[n])[0]
}

func percentUsed(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0
	}
	var total, used float64
	if _, err := fmt.Sscanf(fields[1], "%f", &total); err != nil || total == 0 {
		return 0
	}
	if _, err := fmt.Sscanf(fields[2], "%f", &used); err != nil {
		return 0
	}
	return used / total * 100
}

// StopMonitoring halts the sampling loop and kills the remote nmon
// process, returning the reduced Summary unless createTargetStat is false.
func (b *NmonBackend) StopMonitoring(ctx *hscontext.Context, target *model.TargetHost, createTargetStat bool) (*Summary, error) {
	b.mu.Lock()
	sess, ok := b.running[target.ID]
	delete(b.running, target.ID)
	b.mu.Unlock()
	if !ok {
		return nil, nil
	}
	sess.cancel()
	<-sess.done

	if target.ExecutablePID != nil {
		if exec, err := b.Executor(target); err == nil {
			_, _ = exec.Exec(ctx, fmt.Sprintf("kill %d 2>/dev/null || true", *target.ExecutablePID))
		}
	}

	if !createTargetStat {
		return nil, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &Summary{
		AverageCPUUsage:    average(sess.cpu),
		AverageMemoryUsage: average(sess.mem),
		AverageSwapUsage:   average(sess.swap),
		CPUUsageTrend:      sess.cpu,
		MemoryUsageTrend:   sess.mem,
		SwapUsageTrend:     sess.swap,
	}, nil
}

func average(points []model.TrendPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

// Terminate removes the leftover nmon snapshot output (/tmp/nmon.out); the
// nmon executable that Install found or installed is left on the host.
func (b *NmonBackend) Terminate(ctx *hscontext.Context, target *model.TargetHost) error {
	exec, err := b.Executor(target)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, "rm -f /tmp/nmon.out")
	return err
}
