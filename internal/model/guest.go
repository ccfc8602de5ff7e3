package model

import "time"

// GuestToken is a persisted guest link. Used maps a quota day
// (YYYY-MM-DD in the service time zone) to prints made that day.
type GuestToken struct {
	Name        string         `json:"name"`
	Created     int64          `json:"created"` // unix seconds
	Active      bool           `json:"active"`
	QuotaPerDay int            `json:"quota_per_day"`
	Used        map[string]int `json:"used"`
}

// CreatedAt returns Created as a time.Time.
func (g GuestToken) CreatedAt() time.Time { return time.Unix(g.Created, 0) }

// UsedOn returns the number of prints recorded for day.
func (g GuestToken) UsedOn(day string) int { return g.Used[day] }

// Remaining returns how many prints are left on day; 0 for inactive tokens.
func (g GuestToken) Remaining(day string) int {
	if !g.Active {
		return 0
	}
	if r := g.QuotaPerDay - g.Used[day]; r > 0 {
		return r
	}
	return 0
}

// Clone returns a deep copy so callers never share the Used map.
func (g GuestToken) Clone() GuestToken {
	used := make(map[string]int, len(g.Used))
	for k, v := range g.Used {
		used[k] = v
	}
	g.Used = used
	return g
}
