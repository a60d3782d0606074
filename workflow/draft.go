package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"secret-evoting/chain"
	"secret-evoting/models"
)

// ParseCloseTimeOffset turns a time of day such as "02:30" or "02:30:15"
// into seconds after midnight. ok is false for blank or invalid input, in
// which case the draft must be left unchanged.
func ParseCloseTimeOffset(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	limits := []int64{23, 59, 59}
	weights := []int64{3600, 60, 1}
	var seconds int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || n > limits[i] {
			return 0, false
		}
		seconds += n * weights[i]
	}
	return seconds, true
}

// FormatCloseTimeOffset renders an offset the way the time input shows it.
func FormatCloseTimeOffset(seconds int64) string {
	return fmt.Sprintf("%02d:%02d", seconds/3600, seconds%3600/60)
}

// StartOfDay returns midnight UTC of t's UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CloseTime is the draft's close date at midnight UTC plus its time of day
// offset, rounded up to a whole second.
func CloseTime(d models.CreationDraft) int64 {
	t := StartOfDay(d.CloseDate).Add(time.Duration(d.CloseTimeOffset) * time.Second)
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}
	return secs
}

// BuildInitMsg assigns candidate ids by list position, starting at zero.
func BuildInitMsg(d models.CreationDraft) models.InitMsg {
	candidates := make([]models.Candidate, len(d.Candidates))
	for i, name := range d.Candidates {
		candidates[i] = models.Candidate{ID: i, Name: name}
	}
	voters := d.Voters
	if voters == nil {
		voters = []string{}
	}
	return models.InitMsg{
		Name:       d.Title,
		Candidates: candidates,
		Voters:     voters,
		CloseTime:  CloseTime(d),
	}
}

// InstantiateLabel is the contract label: the title and the creation time.
// Labels must be unique on chain.
func InstantiateLabel(title string, now time.Time) string {
	return title + "_" + now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ValidateDraft performs all checks before a draft may be instantiated
func ValidateDraft(d models.CreationDraft, prefix string, now time.Time) error {
	// 1. A contract without a title gets an unreadable label
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("title is required")
	}

	// 2. Candidates must be a non-empty set of non-blank names
	if len(d.Candidates) == 0 {
		return errors.New("at least one candidate is required")
	}
	seen := make(map[string]bool, len(d.Candidates))
	for i, c := range d.Candidates {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("candidate %d is blank", i)
		}
		if seen[c] {
			return fmt.Errorf("candidate %q is listed twice", c)
		}
		seen[c] = true
	}

	// 3. Voters must be unique addresses on this chain
	seen = make(map[string]bool, len(d.Voters))
	for _, v := range d.Voters {
		if err := chain.ValidateAddress(v, prefix); err != nil {
			return fmt.Errorf("voter validation failed: %w", err)
		}
		if seen[v] {
			return fmt.Errorf("voter %s is listed twice", v)
		}
		seen[v] = true
	}

	// 4. The contract refuses votes after close time
	if closeTime := time.Unix(CloseTime(d), 0); !closeTime.After(now) {
		return fmt.Errorf("close time %s is not in the future", closeTime.UTC().Format(time.RFC3339))
	}

	return nil
}

// uniqueNonBlank trims entries and drops blanks and repeats, keeping order.
func uniqueNonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
