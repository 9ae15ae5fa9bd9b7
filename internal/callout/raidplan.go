package callout

import (
	"strings"

	"github.com/large-farva/mitplan-engine/internal/jobs"
	"github.com/large-farva/mitplan-engine/internal/plan"
)

// RaidPlan is the strategy image on screen.
type RaidPlan struct {
	ImageURL      string  `json:"imageUrl"`
	Note          string  `json:"note,omitempty"`
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
	TimeRemaining float64 `json:"timeRemaining"`
}

// ActiveRaidPlan returns the first raid plan entry covering now that the
// player's job may see. An entry without role filters is for everyone; a
// filter names a job type or a job code. With no job set only unfiltered
// entries are shown.
func ActiveRaidPlan(p *plan.Plan, now float64, job string) *RaidPlan {
	for _, e := range p.RaidPlans() {
		if now < e.Timestamp || now >= e.EndTimestamp {
			continue
		}
		if !visibleTo(e.RoleFilters, job) {
			continue
		}
		return &RaidPlan{
			ImageURL:      e.ImageURL,
			Note:          e.Note,
			StartTime:     e.Timestamp,
			EndTime:       e.EndTimestamp,
			TimeRemaining: e.EndTimestamp - now,
		}
	}
	return nil
}

func visibleTo(filters []string, job string) bool {
	if len(filters) == 0 {
		return true
	}
	if job == "" {
		return false
	}
	jobType := jobs.TypeOf(job)
	for _, f := range filters {
		if strings.EqualFold(f, job) || strings.EqualFold(f, jobs.All) {
			return true
		}
		if jobType != "" && strings.EqualFold(f, jobType) {
			return true
		}
	}
	return false
}
