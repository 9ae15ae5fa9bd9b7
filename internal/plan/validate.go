package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/large-farva/mitplan-engine/internal/jobs"
)

// Report collects validation findings. Errors make a plan unusable;
// warnings are informational.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether there are no errors.
func (r Report) Valid() bool { return len(r.Errors) == 0 }

// Err returns the errors joined into one error, or nil.
func (r Report) Err() error {
	if r.Valid() {
		return nil
	}
	return errors.New("invalid plan: " + strings.Join(r.Errors, "; "))
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) merge(o Report) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// Validate checks the values of a decoded plan.
func Validate(p *Plan) Report {
	var rep Report
	if p == nil {
		rep.errorf("plan must be a valid object")
		return rep
	}
	if p.Version == "" {
		rep.errorf("missing required field: version")
	}
	if len(p.Timeline) == 0 {
		rep.warnf("timeline is empty, no actions will be displayed")
	}

	for i, e := range p.Timeline {
		prefix := fmt.Sprintf("timeline entry %d", i+1)
		if e.Timestamp < 0 {
			rep.errorf("%s: timestamp must be a non-negative number", prefix)
		}

		if e.IsRaidPlan() {
			if e.ImageURL == "" {
				rep.errorf("%s: raid plan entry needs imageUrl", prefix)
			}
			if e.EndTimestamp <= e.Timestamp {
				rep.errorf("%s: endTimestamp must be after timestamp", prefix)
			}
			for _, f := range e.RoleFilters {
				if !jobs.Known(f) {
					rep.warnf("%s: unknown role filter %q", prefix, f)
				}
			}
			continue
		}

		job := e.EffectiveJob()
		if job == "" {
			rep.errorf("%s: missing required field \"job\"", prefix)
		} else if !jobs.Known(job) {
			rep.warnf("%s: unknown job code %q", prefix, job)
		}
		if e.Ability == "" {
			rep.errorf("%s: missing required field \"ability\"", prefix)
		}
	}

	if p.FightName == "" {
		rep.warnf("missing optional field: fightName, fight name will not be displayed")
	}
	return rep
}

// validateDocument checks the shape of an undecoded plan document: the
// required keys exist and carry the right types. Value checks happen in
// Validate once the document decodes.
func validateDocument(doc map[string]any) Report {
	var rep Report
	if _, ok := doc["version"]; !ok {
		rep.errorf("missing required field: version")
	} else if _, ok := doc["version"].(string); !ok {
		rep.errorf("version must be a string")
	}

	raw, ok := doc["timeline"]
	if !ok {
		rep.errorf("missing required field: timeline")
		return rep
	}
	timeline, ok := raw.([]any)
	if !ok {
		rep.errorf("timeline must be an array")
		return rep
	}

	for i, item := range timeline {
		prefix := fmt.Sprintf("timeline entry %d", i+1)
		entry, ok := item.(map[string]any)
		if !ok {
			rep.errorf("%s: must be an object", prefix)
			continue
		}
		ts, ok := entry["timestamp"]
		if !ok {
			rep.errorf("%s: missing required field \"timestamp\"", prefix)
		} else if _, ok := toFloat(ts); !ok {
			rep.errorf("%s: timestamp must be a non-negative number", prefix)
		}
		for _, key := range []string{"job", "jobType", "ability", "note", "role", "type", "imageUrl"} {
			if v, present := entry[key]; present {
				if _, isString := v.(string); !isString {
					rep.errorf("%s: %s must be a string", prefix, key)
				}
			}
		}
	}
	return rep
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Summary is a short description of a plan for listings.
type Summary struct {
	FightName  string         `json:"fightName"`
	EntryCount int            `json:"entryCount"`
	JobCounts  map[string]int `json:"jobCounts"`
	Duration   float64        `json:"duration"`
}

// Summarize counts entries per job and finds the last timestamp.
func Summarize(p *Plan) Summary {
	s := Summary{FightName: "Unknown Fight", JobCounts: map[string]int{}}
	if p == nil {
		return s
	}
	if p.FightName != "" {
		s.FightName = p.FightName
	}
	s.EntryCount = len(p.Timeline)
	for _, e := range p.Timeline {
		job := strings.ToUpper(e.EffectiveJob())
		if e.IsRaidPlan() {
			job = "RAIDPLAN"
		} else if job == "" {
			job = "UNKNOWN"
		}
		s.JobCounts[job]++
		if e.Timestamp > s.Duration {
			s.Duration = e.Timestamp
		}
	}
	return s
}
