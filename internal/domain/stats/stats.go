// Package stats holds the WiGLE statistics entities the bot renders.
//
// Every value is built fresh per request and discarded once the reply is sent.
package stats

import "strings"

// AnonymousUser is the placeholder name the standings endpoint uses for
// users who hide their identity. Such rows are never shown.
const AnonymousUser = "anonymous"

// UserStatistics is one user's profile from the user stats endpoint.
// FirstEvent and LastEvent keep the upstream YYYYMMDD-HHMMSS form.
type UserStatistics struct {
	UserName                 string
	Rank                     int64
	PrevRank                 int64
	MonthRank                int64
	PrevMonthRank            int64
	EventMonthCount          int64
	EventPrevMonthCount      int64
	DiscoveredWiFiGPS        int64
	DiscoveredWiFiGPSPercent float64
	DiscoveredWiFi           int64
	DiscoveredCellGPS        int64
	DiscoveredCell           int64
	DiscoveredBtGPS          int64
	DiscoveredBt             int64
	TotalWiFiLocations       int64
	FirstEvent               string
	LastEvent                string
	// BadgeURL is empty when the user has no badge image.
	BadgeURL string
}

// GroupRankingEntry is one row of the group list.
type GroupRankingEntry struct {
	GroupID    string
	GroupName  string
	Discovered int64
	Total      int64
}

// GroupRef identifies a group and where to list its members.
type GroupRef struct {
	ID         string
	Name       string
	MembersURL string
}

// UserRankingEntry is one member row of a group.
type UserRankingEntry struct {
	Username   string
	Discovered int64
	Status     string
}

// Locked reports whether the member has locked or left the group.
func (e UserRankingEntry) Locked() bool {
	return strings.Contains(e.Status, "L")
}

// StandingEntry is one row of the global standings. Only the counter
// matching the requested sort order is meaningful.
type StandingEntry struct {
	UserName          string
	DiscoveredWiFiGPS int64
	EventMonthCount   int64
}

// Anonymous reports whether the row belongs to a hidden user.
func (e StandingEntry) Anonymous() bool {
	return e.UserName == AnonymousUser
}

// WithoutAnonymous returns entries minus anonymous rows, preserving order.
func WithoutAnonymous(entries []StandingEntry) []StandingEntry {
	out := make([]StandingEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Anonymous() {
			out = append(out, e)
		}
	}
	return out
}

// VisibleMembers returns members that are not locked, preserving order.
func VisibleMembers(members []UserRankingEntry) []UserRankingEntry {
	out := make([]UserRankingEntry, 0, len(members))
	for _, m := range members {
		if !m.Locked() {
			out = append(out, m)
		}
	}
	return out
}
