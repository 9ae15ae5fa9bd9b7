// Package replay feeds a recorded ACT network log through the engine. Run
// does it in virtual time as fast as the log can be read and returns a trace
// of what happened; Play does it in (scaled) real time against a live
// engine.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/host"
	"github.com/large-farva/mitplan-engine/internal/telemetry"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

// Open opens a network log for reading. Files ending in .zst are
// decompressed on the fly.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdFile{dec: dec, f: f}, nil
}

type zstdFile struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// Compress writes a zstd copy of a network log next to it and returns the
// new path.
func Compress(srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	destPath := srcPath + ".zst"
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer dest.Close()

	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("finalize compression: %w", err)
	}
	return destPath, nil
}

// ---------------------------------------------------------------------------
// Virtual-time replay
// ---------------------------------------------------------------------------

// Options configures Run. Engine is the base engine configuration; its Sink,
// Scheduler and Now are replaced.
type Options struct {
	Engine engine.Options

	// Tick is the virtual tick interval. Zero means engine.DefaultTickInterval.
	Tick time.Duration

	// Sink, if set, also receives every engine event.
	Sink engine.Sink
}

// TraceEvent is one notable moment of a replay.
type TraceEvent struct {
	Offset float64 `json:"offset"` // seconds since the first line
	Type   string  `json:"type"`
	Detail string  `json:"detail"`
}

// Trace is the outcome of a replay.
type Trace struct {
	Lines   int              `json:"lines"`
	Skipped int              `json:"skipped"`
	Start   time.Time        `json:"start"`
	End     time.Time        `json:"end"`
	Events  []TraceEvent     `json:"events"`
	Final   *engine.Snapshot `json:"final,omitempty"`
}

// File replays the log at path.
func File(path string, opts Options) (*Trace, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Run(rc, opts)
}

// Run replays every line of r. Lines without a readable timestamp take the
// time of the line before them; lines before the first timestamp are
// skipped.
func Run(r io.Reader, opts Options) (*Trace, error) {
	tick := opts.Tick
	if tick <= 0 {
		tick = engine.DefaultTickInterval
	}

	trace := &Trace{}
	var (
		sched *combat.ManualScheduler
		e     *engine.Engine
		rec   *recorder
		last  time.Time
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		ev, ok := host.FromNetworkLine(sc.Text())
		if !ok {
			trace.Skipped++
			continue
		}
		at := ev.At
		if at.IsZero() {
			at = last
		}
		if at.IsZero() {
			trace.Skipped++
			continue
		}

		if e == nil {
			trace.Start = at
			last = at
			sched = combat.NewManualScheduler(at)
			rec = &recorder{start: at, now: sched.Now, next: opts.Sink}
			eo := opts.Engine
			eo.Sink = rec
			eo.Scheduler = sched
			eo.Now = sched.Now
			e = engine.New(eo)
		}

		advance(e, sched, last, at, tick)
		if at.After(last) {
			last = at
		}
		e.Step(ev)
		trace.Lines++
	}
	if err := sc.Err(); err != nil {
		return trace, fmt.Errorf("read log: %w", err)
	}
	if e == nil {
		return trace, nil
	}

	// Let pending timers (end grace, decay) run out.
	for i := 0; sched.Pending() > 0 && i < 1000; i++ {
		advance(e, sched, last, last.Add(time.Second), tick)
		last = last.Add(time.Second)
	}
	trace.End = last
	trace.Events = rec.events()
	snap := e.Snapshot()
	trace.Final = &snap
	return trace, nil
}

// advance moves virtual time from -> to in tick steps. While nothing is
// moving (clock stopped, no timers armed) it jumps straight to the target.
func advance(e *engine.Engine, sched *combat.ManualScheduler, from, to time.Time, tick time.Duration) {
	for t := from.Add(tick); t.Before(to); t = t.Add(tick) {
		if !e.Snapshot().Clock.Running && sched.Pending() == 0 {
			break
		}
		sched.AdvanceTo(t)
		e.Tick()
	}
	sched.AdvanceTo(to)
	e.Tick()
}

// recorder keeps the events worth showing in a trace.
type recorder struct {
	start time.Time
	now   func() time.Time
	next  engine.Sink

	mu  sync.Mutex
	out []TraceEvent
}

func (r *recorder) BroadcastJSON(v any) {
	if r.next != nil {
		r.next.BroadcastJSON(v)
	}

	var typ, detail string
	switch ev := v.(type) {
	case telemetry.StateTransition:
		typ, detail = string(ev.Type), ev.From+" -> "+ev.To
	case telemetry.Countdown:
		typ, detail = string(ev.Type), fmt.Sprintf("%ds by %s", ev.Seconds, ev.Initiator)
	case telemetry.Zone:
		typ, detail = string(ev.Type), ev.ZoneName
		if ev.Fight != "" {
			detail += " (" + ev.Fight + ")"
		}
	case telemetry.Wipe:
		typ, detail = string(ev.Type), fmt.Sprintf("at %.1fs", ev.Elapsed)
	case telemetry.Pull:
		typ, detail = string(ev.Type), ev.Phase
		if ev.Outcome != "" {
			detail += " " + ev.Outcome
		}
	case telemetry.Callout:
		if !ev.Active {
			return
		}
		var names []string
		for _, a := range ev.Callout.Abilities {
			names = append(names, a.Job+" "+a.Name)
		}
		typ, detail = string(ev.Type), ev.Display+" "+strings.Join(names, ", ")
	case telemetry.Cue:
		typ, detail = string(ev.Type), ev.Cue.Text
		if ev.Cue.Kind == "sound" {
			detail = "sound " + ev.Cue.Sound
		}
	case telemetry.Plan:
		typ, detail = string(ev.Type), ev.Reason
	default:
		return
	}

	r.mu.Lock()
	r.out = append(r.out, TraceEvent{
		Offset: r.now().Sub(r.start).Seconds(),
		Type:   typ,
		Detail: detail,
	})
	r.mu.Unlock()
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.out...)
}

// ---------------------------------------------------------------------------
// Real-time playback
// ---------------------------------------------------------------------------

// Play reads r and hands each event to fn, sleeping between lines so the
// gaps match the log divided by speed. Events are stamped with the wall
// time at which they are delivered. It returns when the log ends or ctx is
// cancelled.
func Play(ctx context.Context, r io.Reader, speed float64, fn host.Handler) error {
	if speed <= 0 {
		speed = 1
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var last time.Time
	for sc.Scan() {
		ev, ok := host.FromNetworkLine(sc.Text())
		if !ok {
			continue
		}
		if !ev.At.IsZero() {
			if !last.IsZero() && ev.At.After(last) {
				gap := time.Duration(float64(ev.At.Sub(last)) / speed)
				if !sleepOrCancel(ctx, gap) {
					return ctx.Err()
				}
			}
			last = ev.At
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev.At = time.Now()
		fn(ev)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}

func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
