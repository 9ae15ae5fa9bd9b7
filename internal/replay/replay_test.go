package replay

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/large-farva/mitplan-engine/internal/combat"
	"github.com/large-farva/mitplan-engine/internal/engine"
	"github.com/large-farva/mitplan-engine/internal/host"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

const pullLog = `01|2026-03-01T20:00:00.0000000+00:00|52F|AAC Heavyweight M1 (Savage)|h
268|2026-03-01T20:00:05.0000000+00:00|10FF0001|4F|10|00|Alice Ault|h
00|2026-03-01T20:00:15.0000000+00:00|0039||Engage!|h
260|2026-03-01T20:00:15.1000000+00:00|1|1|h
not a log line
260|2026-03-01T20:01:00.0000000+00:00|0|0|h
260|2026-03-01T20:01:02.0000000+00:00|1|1|h
33|2026-03-01T20:01:30.0000000+00:00|80037569|40000010|00|00|00|00
260|2026-03-01T20:01:31.0000000+00:00|0|0|h
`

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	p := plan.Plan{
		ID:        "m9s",
		FightName: "M9S",
		Version:   "1.0",
		Timeline:  []plan.Entry{{Timestamp: 20, Job: "WHM", Ability: "Temperance"}},
	}
	b, _ := json.Marshal(p)
	if err := os.WriteFile(filepath.Join(dir, "m9s.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard, "", 0)
	cat := plan.NewCatalog(dir, logger)
	if err := cat.Reload(); err != nil {
		t.Fatal(err)
	}
	return Options{Engine: engine.Options{Logger: logger, Catalog: cat, AutoLoad: true}}
}

// milestones drops the callout and cue noise from a trace.
func milestones(tr *Trace) []string {
	var out []string
	for _, ev := range tr.Events {
		switch ev.Type {
		case "callout", "cue":
			continue
		}
		out = append(out, ev.Type+": "+ev.Detail)
	}
	return out
}

func checkPullTrace(t *testing.T, tr *Trace) {
	t.Helper()
	want := []string{
		"zone: AAC Heavyweight M1 (Savage) (M9S)",
		"plan: zone: AAC Heavyweight M1 (Savage)",
		"countdown: 10s by Alice Ault",
		"state: IDLE -> COUNTDOWN",
		"pull: start",
		"state: COUNTDOWN -> COMBAT",
		"state: COMBAT -> ENDED",
		"state: ENDED -> COMBAT",
		"pull: end wipe",
		"wipe: at 75.0s",
		"state: COMBAT -> IDLE",
	}
	got := milestones(tr)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("milestones:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if tr.Lines != 9 {
		t.Fatalf("lines = %d, want 9", tr.Lines)
	}
	if tr.Final == nil || tr.Final.Combat.Phase != combat.Idle || tr.Final.Plan == nil || tr.Final.Plan.ID != "m9s" {
		t.Fatalf("final = %+v", tr.Final)
	}

	var first *TraceEvent
	for i := range tr.Events {
		if tr.Events[i].Type == "callout" {
			first = &tr.Events[i]
			break
		}
	}
	// Engage at 15s, entry at 20s: the "5" callout opens just after 29s.
	if first == nil || !strings.HasPrefix(first.Detail, "5 WHM Temperance") || first.Offset < 29 || first.Offset > 29.2 {
		t.Fatalf("first callout = %+v", first)
	}
}

func TestRunPlainLog(t *testing.T) {
	tr, err := Run(strings.NewReader(pullLog), testOptions(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkPullTrace(t, tr)
	if !tr.Start.Equal(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", tr.Start)
	}
}

func TestFileZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Network_30001_20260301.log.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(enc, pullLog); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tr, err := File(path, testOptions(t))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	checkPullTrace(t, tr)
}

func TestCompressRoundTrip(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "Network_30001_20260301.log")
	if err := os.WriteFile(plain, []byte(pullLog), 0o644); err != nil {
		t.Fatal(err)
	}
	zst, err := Compress(plain)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if zst != plain+".zst" {
		t.Fatalf("path = %q", zst)
	}
	rc, err := Open(zst)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != pullLog {
		t.Fatalf("decompressed content differs:\n%s", got)
	}
}

func TestRunEmpty(t *testing.T) {
	tr, err := Run(strings.NewReader("junk without a timestamp\n"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Lines != 0 || tr.Skipped != 1 || tr.Final != nil {
		t.Fatalf("trace = %+v", tr)
	}
}

func TestPlay(t *testing.T) {
	var mu sync.Mutex
	var got []host.Event
	start := time.Now()
	err := Play(context.Background(), strings.NewReader(pullLog), 1000, func(ev host.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("events = %d, want 9", len(got))
	}
	// 91 seconds of log at 1000x.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("playback took %v, too fast", elapsed)
	}
	for _, ev := range got {
		if ev.At.Before(start) {
			t.Fatalf("event not stamped with delivery time: %v", ev.At)
		}
	}
}

func TestPlayCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := Play(ctx, strings.NewReader(pullLog), 1, func(host.Event) {
		n++
		if n == 1 {
			cancel()
		}
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n != 1 {
		t.Fatalf("delivered %d events after cancel", n)
	}
}
