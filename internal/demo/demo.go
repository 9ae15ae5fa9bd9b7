// Package demo simulates raid pulls so the daemon, the CLI and the overlay
// can be exercised end-to-end without the game or ACT running. Each
// simulated pull is written as network log lines and played through the
// same translation path as a real log, so every engine path from countdown
// to wipe gets traffic.
package demo

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/large-farva/mitplan-engine/internal/host"
	"github.com/large-farva/mitplan-engine/internal/plan"
	"github.com/large-farva/mitplan-engine/internal/replay"
)

// Pull describes one simulated pull.
type Pull struct {
	ZoneID    int
	Zone      string
	Countdown int           // seconds; 0 skips the countdown
	Length    time.Duration // engage to wipe or kill
	Wipe      bool
	// Transition adds a short combat-flag drop halfway through, the way a
	// phase change does.
	Transition bool
	Initiator  string
}

// Log renders p as network log lines starting at start.
func (p Pull) Log(start time.Time) string {
	var b strings.Builder
	line := func(at time.Duration, typ, rest string) {
		ts := start.Add(at).UTC().Format("2006-01-02T15:04:05.0000000-07:00")
		fmt.Fprintf(&b, "%s|%s|%s\n", typ, ts, rest)
	}

	at := time.Duration(0)
	line(at, "01", fmt.Sprintf("%X|%s|0", p.ZoneID, p.Zone))
	at += time.Second

	if p.Countdown > 0 {
		line(at, "268", fmt.Sprintf("10FF0001|4F|%d|00|%s|0", p.Countdown, p.Initiator))
		at += time.Duration(p.Countdown) * time.Second
	}
	line(at, "00", "0039||Engage!|0")
	line(at+100*time.Millisecond, "260", "1|1|0")
	engage := at

	if p.Transition {
		mid := engage + p.Length/2
		line(mid, "260", "0|0|0")
		line(mid+2*time.Second, "260", "1|1|0")
	}

	end := engage + p.Length
	if p.Wipe {
		line(end, "33", "80037569|40000010|00|00|00|00")
		line(end+time.Second, "260", "0|0|0")
	} else {
		line(end, "260", "0|0|0")
	}
	return b.String()
}

// Runner plays simulated pulls into the engine on a loop.
type Runner struct {
	Submit host.Handler
	Log    *log.Logger

	Interval   time.Duration // pause between pulls
	PullLength time.Duration
	WipeChance float64
	Speed      float64 // playback rate; 1 is real time
	Zones      []string

	rng  *rand.Rand
	next int
}

// New returns a runner cycling through the known raid zones.
func New(submit host.Handler, logger *log.Logger) *Runner {
	zones := make([]string, 0, len(plan.DefaultZones))
	for z := range plan.DefaultZones {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return &Runner{
		Submit:     submit,
		Log:        logger,
		Interval:   20 * time.Second,
		PullLength: 90 * time.Second,
		WipeChance: 0.5,
		Speed:      1,
		Zones:      zones,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d69)),
	}
}

// Run plays pulls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.Log.Printf("demo mode active, simulating pulls every %s", r.Interval)
	for {
		p := r.Next()
		outcome := "kill"
		if p.Wipe {
			outcome = "wipe"
		}
		r.Log.Printf("demo pull: %s (%s, %s)", p.Zone, p.Length, outcome)

		err := replay.Play(ctx, strings.NewReader(p.Log(time.Now())), r.Speed, r.Submit)
		if err != nil {
			return
		}
		t := time.NewTimer(r.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Next picks the next pull. Zones rotate; the outcome and length vary.
func (r *Runner) Next() Pull {
	zone := "AAC Heavyweight M1 (Savage)"
	if len(r.Zones) > 0 {
		zone = r.Zones[r.next%len(r.Zones)]
		r.next++
	}
	// Spread the length across 75%..125% of the configured value.
	length := time.Duration(float64(r.PullLength) * (0.75 + r.rng.Float64()/2)).Truncate(time.Second)
	if length < 10*time.Second {
		length = 10 * time.Second
	}
	return Pull{
		ZoneID:     0x500 + r.next,
		Zone:       zone,
		Countdown:  10,
		Length:     length,
		Wipe:       r.rng.Float64() < r.WipeChance,
		Transition: length >= 30*time.Second,
		Initiator:  "Demo Player",
	}
}
