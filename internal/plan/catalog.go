package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Info describes a catalog entry for listings.
type Info struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	FightName     string   `json:"fightName,omitempty"`
	IsDefault     bool     `json:"isDefault,omitempty"`
	RequiresRoles bool     `json:"requiresRoles,omitempty"`
	Source        string   `json:"source"`
	Summary       Summary  `json:"summary"`
	Warnings      []string `json:"warnings,omitempty"`
}

type catalogEntry struct {
	plan     *Plan
	source   string
	warnings []string
}

// Catalog holds every plan found in a directory plus plans imported at
// runtime. It is safe for concurrent use.
type Catalog struct {
	dir string
	log *log.Logger

	mu       sync.RWMutex
	files    map[string]catalogEntry // by plan id
	imported map[string]catalogEntry
	failures map[string]string // file path -> load error

	onChange func()
}

// NewCatalog returns an empty catalog rooted at dir. dir may be empty, in
// which case only imported plans are held.
func NewCatalog(dir string, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(os.Stderr, "plan: ", log.LstdFlags)
	}
	return &Catalog{
		dir:      dir,
		log:      logger,
		files:    map[string]catalogEntry{},
		imported: map[string]catalogEntry{},
		failures: map[string]string{},
	}
}

// Dir returns the watched directory.
func (c *Catalog) Dir() string { return c.dir }

// OnChange registers fn to run after every reload triggered by the watcher.
func (c *Catalog) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Reload rescans the directory. Files that fail to load are skipped and
// reported through Failures; the previous contents are replaced.
func (c *Catalog) Reload() error {
	if c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			c.files = map[string]catalogEntry{}
			c.failures = map[string]string{}
			c.mu.Unlock()
			return nil
		}
		return fmt.Errorf("scan plans: %w", err)
	}

	files := map[string]catalogEntry{}
	failures := map[string]string{}
	for _, de := range entries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		if _, ok := FormatFromPath(path); !ok {
			continue
		}
		p, rep, err := Load(path)
		if err != nil {
			failures[path] = err.Error()
			c.log.Printf("skipping %s: %v", path, err)
			continue
		}
		if prev, dup := files[p.ID]; dup {
			failures[path] = fmt.Sprintf("duplicate plan id %q (also in %s)", p.ID, prev.source)
			continue
		}
		files[p.ID] = catalogEntry{plan: p, source: path, warnings: rep.Warnings}
	}

	c.mu.Lock()
	c.files = files
	c.failures = failures
	c.mu.Unlock()
	return nil
}

// Import adds a plan that did not come from the directory. It replaces an
// imported plan with the same id; a plan without an id gets one.
func (c *Catalog) Import(p *Plan) (*Plan, Report) {
	rep := Validate(p)
	if !rep.Valid() {
		return nil, rep
	}
	cp := *p
	if cp.Name == "" {
		cp.Name = cp.DisplayName()
	}
	if cp.ID == "" {
		cp.ID = fmt.Sprintf("imported-%d", time.Now().UnixMilli())
	}
	c.mu.Lock()
	c.imported[cp.ID] = catalogEntry{plan: &cp, source: "imported", warnings: rep.Warnings}
	c.mu.Unlock()
	return &cp, rep
}

// Save writes p into the catalog directory as JSON and reloads.
func (c *Catalog) Save(p *Plan) (string, error) {
	if c.dir == "" {
		return "", fmt.Errorf("save plan: no plan directory configured")
	}
	if p.ID == "" || strings.ContainsAny(p.ID, `/\`) || strings.Contains(p.ID, "..") {
		return "", fmt.Errorf("save plan: invalid id %q", p.ID)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	path := filepath.Join(c.dir, p.ID+".json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	return path, c.Reload()
}

// Remove drops an imported plan. Directory plans are only removed by
// deleting their file.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.imported[id]; !ok {
		return false
	}
	delete(c.imported, id)
	return true
}

// ByID returns the plan with the given id. Imported plans win over files.
func (c *Catalog) ByID(id string) (*Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.imported[id]; ok {
		return e.plan, true
	}
	if e, ok := c.files[id]; ok {
		return e.plan, true
	}
	return nil, false
}

// DefaultFor returns the plan to auto-load for a fight: the one flagged as
// default, otherwise the only plan for that fight. Several unflagged plans
// for one fight give no default.
func (c *Catalog) DefaultFor(fight string) (*Plan, bool) {
	if fight == "" {
		return nil, false
	}
	var candidates []*Plan
	for _, info := range c.List() {
		if info.FightName != fight {
			continue
		}
		p, _ := c.ByID(info.ID)
		if p == nil {
			continue
		}
		if p.IsDefault {
			return p, true
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return nil, false
}

// List returns every plan sorted by id.
func (c *Catalog) List() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[string]bool{}
	var out []Info
	add := func(e catalogEntry) {
		if seen[e.plan.ID] {
			return
		}
		seen[e.plan.ID] = true
		out = append(out, Info{
			ID:            e.plan.ID,
			Name:          e.plan.DisplayName(),
			FightName:     e.plan.FightName,
			IsDefault:     e.plan.IsDefault,
			RequiresRoles: e.plan.RequiresRoles,
			Source:        e.source,
			Summary:       Summarize(e.plan),
			Warnings:      e.warnings,
		})
	}
	for _, e := range c.imported {
		add(e)
	}
	for _, e := range c.files {
		add(e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Failures returns file path to error for files that did not load.
func (c *Catalog) Failures() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.failures))
	for k, v := range c.failures {
		out[k] = v
	}
	return out
}

// Watch reloads the catalog whenever a file in the directory is written,
// created, removed or renamed. Bursts of events are coalesced. It blocks
// until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.dir == "" {
		<-ctx.Done()
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("watch plans: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch plans: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(c.dir); err != nil {
		return fmt.Errorf("watch plans: %w", err)
	}

	const settle = 250 * time.Millisecond
	debounce := time.NewTimer(settle)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if _, isPlan := FormatFromPath(ev.Name); !isPlan {
				continue
			}
			debounce.Reset(settle)

		case <-debounce.C:
			if err := c.Reload(); err != nil {
				c.log.Printf("reload: %v", err)
				continue
			}
			c.mu.RLock()
			fn := c.onChange
			c.mu.RUnlock()
			if fn != nil {
				fn()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			c.log.Printf("watcher error: %v", err)
		}
	}
}
