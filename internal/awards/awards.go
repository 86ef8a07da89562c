// Package awards stores group award events (finished scenes and stories) and
// weekly award requests, and computes how much XP each is worth.
package awards

import (
	"strings"
	"time"

	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
)

// SceneAward is the XP each member earns for a finished scene.
const SceneAward = 1

// StoryFlags are the story outcomes that each add one XP per member.
type StoryFlags struct {
	Success  bool `json:"success"`
	Danger   bool `json:"danger"`
	Growth   bool `json:"growth"`
	Drama    bool `json:"drama"`
	Duration bool `json:"duration"`
}

// Count returns how many flags are set.
func (f StoryFlags) Count() int {
	return countTrue(f.Success, f.Danger, f.Growth, f.Drama, f.Duration)
}

// Amount is the XP credited to every awarded member of event.
func Amount(event *models.AwardEvent) int {
	if event.Kind == enums.AwardEventKindStory {
		return StoryFlags{
			Success:  event.Success,
			Danger:   event.Danger,
			Growth:   event.Growth,
			Drama:    event.Drama,
			Duration: event.Duration,
		}.Count()
	}
	return SceneAward
}

// Category is one weekly award line: whether it was earned and the activity
// (scene, story, journal entry) that earned it.
type Category struct {
	Earned bool   `json:"earned"`
	Ref    string `json:"ref,omitempty"`
}

// WeeklyCategories is the full category breakdown of a weekly award request.
type WeeklyCategories struct {
	Finishing Category `json:"finishing"`
	Learning  Category `json:"learning"`
	RP        Category `json:"rp"`
	Focus     Category `json:"focus"`
	Standout  Category `json:"standout"`
}

func (c WeeklyCategories) named() []struct {
	name string
	cat  Category
} {
	return []struct {
		name string
		cat  Category
	}{
		{"finishing", c.Finishing},
		{"learning", c.Learning},
		{"rp", c.RP},
		{"focus", c.Focus},
		{"standout", c.Standout},
	}
}

// Validate rejects any earned category without an activity reference.
func (c WeeklyCategories) Validate() error {
	details := map[string]string{}
	for _, entry := range c.named() {
		if entry.cat.Earned && strings.TrimSpace(entry.cat.Ref) == "" {
			details[entry.name+"_ref"] = "is required when " + entry.name + " is earned"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "weekly award category is missing its activity reference").WithDetails(details)
	}
	return nil
}

// TotalXP is one XP per earned category.
func (c WeeklyCategories) TotalXP() int {
	return countTrue(c.Finishing.Earned, c.Learning.Earned, c.RP.Earned, c.Focus.Earned, c.Standout.Earned)
}

// Earned lists the names of the earned categories in display order.
func (c WeeklyCategories) Earned() []string {
	out := []string{}
	for _, entry := range c.named() {
		if entry.cat.Earned {
			out = append(out, entry.name)
		}
	}
	return out
}

// Merge returns c with every earned category of overrides applied. Categories
// not earned in overrides leave c untouched.
func (c WeeklyCategories) Merge(overrides WeeklyCategories) WeeklyCategories {
	merged := c
	pick := func(dst *Category, src Category) {
		if src.Earned {
			*dst = src
		}
	}
	pick(&merged.Finishing, overrides.Finishing)
	pick(&merged.Learning, overrides.Learning)
	pick(&merged.RP, overrides.RP)
	pick(&merged.Focus, overrides.Focus)
	pick(&merged.Standout, overrides.Standout)
	return merged
}

// CategoriesOf reads the category breakdown stored on a request row.
func CategoriesOf(r *models.WeeklyAwardRequest) WeeklyCategories {
	return WeeklyCategories{
		Finishing: Category{Earned: r.Finishing, Ref: deref(r.FinishingRef)},
		Learning:  Category{Earned: r.Learning, Ref: deref(r.LearningRef)},
		RP:        Category{Earned: r.RP, Ref: deref(r.RPRef)},
		Focus:     Category{Earned: r.Focus, Ref: deref(r.FocusRef)},
		Standout:  Category{Earned: r.Standout, Ref: deref(r.StandoutRef)},
	}
}

// ApplyCategories writes c onto the request row.
func ApplyCategories(r *models.WeeklyAwardRequest, c WeeklyCategories) {
	r.Finishing, r.FinishingRef = c.Finishing.Earned, ref(c.Finishing.Ref)
	r.Learning, r.LearningRef = c.Learning.Earned, ref(c.Learning.Ref)
	r.RP, r.RPRef = c.RP.Earned, ref(c.RP.Ref)
	r.Focus, r.FocusRef = c.Focus.Earned, ref(c.Focus.Ref)
	r.Standout, r.StandoutRef = c.Standout.Earned, ref(c.Standout.Ref)
}

// PeriodStart returns Monday 00:00 UTC of the week containing t.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// PeriodEnd is the exclusive end of the week starting at start.
func PeriodEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, 7)
}

// FormatPeriod renders a week as its ISO date, e.g. "2026-03-02".
func FormatPeriod(start time.Time) string {
	return start.UTC().Format(time.DateOnly)
}

func countTrue(flags ...bool) int {
	n := 0
	for _, flag := range flags {
		if flag {
			n++
		}
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
