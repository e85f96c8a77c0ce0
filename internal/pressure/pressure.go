// Package pressure implements the memory-pressure governor (§4.7): it
// observes resident memory via github.com/shirou/gopsutil/v3/process
// (present in the teacher's go.mod as a direct dependency) and flips a
// per-Governor pressure flag used to halve wildcard complexity limits and clear
// compiled-pattern caches when the process is running hot.
package pressure

import (
	"os"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"
)

// Limits is a copy-on-write snapshot of the wildcard complexity caps,
// generalizing the single process-global pair from the design into a value
// threaded through a Server per design note §9.
type Limits struct {
	MaxQuestions int
	MaxStars     int
}

// Halved returns a new Limits with both caps halved, floored at 1.
func (l Limits) Halved() Limits {
	q, s := l.MaxQuestions/2, l.MaxStars/2
	if q < 1 {
		q = 1
	}
	if s < 1 {
		s = 1
	}
	return Limits{MaxQuestions: q, MaxStars: s}
}

// Governor tracks the pressure flag and the base/effective complexity
// limits. It introduces no additional goroutine; Observe is called inline
// before each request is matched, per §4.7.
type Governor struct {
	softLimitBytes int64 // 0 disables the governor
	proc           *process.Process

	pressureFlag atomic.Bool
	base         atomic.Pointer[Limits]

	clearCaches atomic.Pointer[func()]
}

// SetCacheClearer registers the callback invoked every time Observe finds
// the process over the soft limit, per §4.7 ("clear both compile caches").
// Passing nil disables clearing (the default).
func (g *Governor) SetCacheClearer(fn func()) {
	if fn == nil {
		g.clearCaches.Store(nil)
		return
	}
	g.clearCaches.Store(&fn)
}

// New constructs a Governor for the current process. softLimitBytes <= 0
// disables pressure observation entirely (Observe always reports "not
// under pressure").
func New(softLimitBytes int64, base Limits) *Governor {
	g := &Governor{softLimitBytes: softLimitBytes}
	g.base.Store(&base)

	if softLimitBytes > 0 {
		if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
			g.proc = p
		}
	}
	return g
}

// SetBase updates the unhalved limits, used on config reload.
func (g *Governor) SetBase(base Limits) {
	g.base.Store(&base)
}

// Observe re-reads resident memory (if the platform/process handle
// supports it) and updates the pressure flag: set when over the soft
// limit, cleared otherwise. It returns the resident byte count and whether
// the platform could report one at all.
func (g *Governor) Observe() (residentBytes int64, ok bool) {
	if g.softLimitBytes <= 0 || g.proc == nil {
		return 0, false
	}
	info, err := g.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0, false
	}
	over := int64(info.RSS) > g.softLimitBytes
	g.pressureFlag.Store(over)
	if over {
		if fn := g.clearCaches.Load(); fn != nil {
			(*fn)()
		}
	}
	return int64(info.RSS), true
}

// Pressured reports the current flag value. Readers tolerate up to one
// request's worth of staleness per §5, so no lock is needed beyond the
// atomic itself.
func (g *Governor) Pressured() bool { return g.pressureFlag.Load() }

// EffectiveLimits returns the base limits, or the halved limits if the
// pressure flag is currently set.
func (g *Governor) EffectiveLimits() Limits {
	base := *g.base.Load()
	if g.Pressured() {
		return base.Halved()
	}
	return base
}
