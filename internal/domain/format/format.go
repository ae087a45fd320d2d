// Package format renders WiGLE statistics as chat text.
//
// All functions are pure. Every block starts with a bold header line and
// ends with a newline after its last line.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/okian/wiglebot/internal/domain/stats"
)

// TopN caps every ranking list.
const TopN = 10

const (
	eventDateLayout   = "20060102"
	displayDateLayout = "January 02, 2006"
)

// Count renders n with comma grouping separators: 1234567 -> "1,234,567".
func Count(n int64) string {
	return humanize.Comma(n)
}

// Ordinal renders a 1-based rank with its English suffix: 1st, 2nd, 11th, 21st.
func Ordinal(n int) string {
	return humanize.Ordinal(n)
}

// Percent renders a percentage the way the API reports it, with no padding
// or rounding: 87 -> "87", 12.345 -> "12.345".
func Percent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// EventDate converts an upstream timestamp (YYYYMMDD-HHMMSS) to a display
// date such as "March 04, 2024". Only the date part is used. Input that does
// not parse is returned unchanged.
func EventDate(raw string) string {
	datePart, _, _ := strings.Cut(raw, "-")
	t, err := time.Parse(eventDateLayout, datePart)
	if err != nil {
		return raw
	}
	return t.Format(displayDateLayout)
}

// UserStats renders one user's profile.
func UserStats(s stats.UserStatistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**WiGLE User Stats for '%s'**\n", s.UserName)
	line := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}
	line("Username", s.UserName)
	line("Rank", Count(s.Rank))
	line("Previous Rank", Count(s.PrevRank))
	line("Monthly Rank", Count(s.MonthRank))
	line("Last Month's Rank", Count(s.PrevMonthRank))
	line("Events This Month", Count(s.EventMonthCount))
	line("Last Month's Events", Count(s.EventPrevMonthCount))
	line("Discovered WiFi GPS", Count(s.DiscoveredWiFiGPS))
	line("Discovered WiFi GPS Percent", Percent(s.DiscoveredWiFiGPSPercent))
	line("Discovered WiFi", Count(s.DiscoveredWiFi))
	line("Discovered Cell GPS", Count(s.DiscoveredCellGPS))
	line("Discovered Cell", Count(s.DiscoveredCell))
	line("Discovered BT GPS", Count(s.DiscoveredBtGPS))
	line("Discovered BT", Count(s.DiscoveredBt))
	line("Total WiFi Locations", Count(s.TotalWiFiLocations))
	line("Last Event", EventDate(s.LastEvent))
	line("First Ever Event", EventDate(s.FirstEvent))
	if s.BadgeURL != "" {
		line("Badge", s.BadgeURL)
	}
	return b.String()
}

type ranked struct {
	name  string
	total int64
}

func rankings(header string, rows []ranked) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for i, r := range rows {
		if i == TopN {
			break
		}
		fmt.Fprintf(&b, "%s: %s | Total: %s\n", Ordinal(i+1), r.name, Count(r.total))
	}
	return b.String()
}

// GroupRankings renders the top groups by discovered networks.
func GroupRankings(groups []stats.GroupRankingEntry) string {
	rows := make([]ranked, 0, min(len(groups), TopN))
	for _, g := range groups {
		rows = append(rows, ranked{name: g.GroupName, total: g.Discovered})
	}
	return rankings("**WiGLE Group Rankings:**", rows)
}

// UserRankings renders a group's top members. Locked members are removed
// before the list is truncated.
func UserRankings(members []stats.UserRankingEntry, groupName string) string {
	visible := stats.VisibleMembers(members)
	rows := make([]ranked, 0, min(len(visible), TopN))
	for _, m := range visible {
		rows = append(rows, ranked{name: m.Username, total: m.Discovered})
	}
	return rankings(fmt.Sprintf("**User Rankings for '%s':**", groupName), rows)
}

// AllTimeRankings renders the all-time standings by discovered WiFi with GPS.
func AllTimeRankings(entries []stats.StandingEntry) string {
	rows := make([]ranked, 0, min(len(entries), TopN))
	for _, e := range entries {
		rows = append(rows, ranked{name: e.UserName, total: e.DiscoveredWiFiGPS})
	}
	return rankings("**WiGLE All-Time User Rankings:**", rows)
}

// MonthlyRankings renders this month's standings by event count.
func MonthlyRankings(entries []stats.StandingEntry) string {
	rows := make([]ranked, 0, min(len(entries), TopN))
	for _, e := range entries {
		rows = append(rows, ranked{name: e.UserName, total: e.EventMonthCount})
	}
	return rankings("**WiGLE Monthly User Rankings:**", rows)
}
