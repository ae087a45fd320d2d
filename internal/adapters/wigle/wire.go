package wigle

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/okian/wiglebot/internal/domain/stats"
)

// Wire shapes of the API responses. Pointer fields mark keys whose absence
// changes the outcome; everything else defaults to its zero value.

type userResponse struct {
	Success       *bool           `json:"success"`
	Message       string          `json:"message"`
	User          string          `json:"user"`
	Rank          int64           `json:"rank"`
	MonthRank     int64           `json:"monthRank"`
	ImageBadgeURL string          `json:"imageBadgeUrl"`
	Statistics    *userStatistics `json:"statistics"`
}

type userStatistics struct {
	UserName                 *string `json:"userName"`
	PrevRank                 int64   `json:"prevRank"`
	PrevMonthRank            int64   `json:"prevMonthRank"`
	EventMonthCount          int64   `json:"eventMonthCount"`
	EventPrevMonthCount      int64   `json:"eventPrevMonthCount"`
	DiscoveredWiFiGPS        int64   `json:"discoveredWiFiGPS"`
	DiscoveredWiFiGPSPercent float64 `json:"discoveredWiFiGPSPercent"`
	DiscoveredWiFi           int64   `json:"discoveredWiFi"`
	DiscoveredCellGPS        int64   `json:"discoveredCellGPS"`
	DiscoveredCell           int64   `json:"discoveredCell"`
	DiscoveredBtGPS          int64   `json:"discoveredBtGPS"`
	DiscoveredBt             int64   `json:"discoveredBt"`
	TotalWiFiLocations       int64   `json:"totalWiFiLocations"`
	Last                     string  `json:"last"`
	First                    string  `json:"first"`
}

type groupResponse struct {
	Success *bool         `json:"success"`
	Message string        `json:"message"`
	Groups  *[]groupEntry `json:"groups"`
}

type groupEntry struct {
	GroupID    looseString `json:"groupId"`
	GroupName  string      `json:"groupName"`
	Discovered int64       `json:"discovered"`
	Total      int64       `json:"total"`
}

type membersResponse struct {
	Success *bool         `json:"success"`
	Users   []memberEntry `json:"users"`
}

type memberEntry struct {
	Username   string `json:"username"`
	Discovered int64  `json:"discovered"`
	Status     string `json:"status"`
}

type standingsResponse struct {
	Success *bool            `json:"success"`
	Message string           `json:"message"`
	Results *[]standingEntry `json:"results"`
}

type standingEntry struct {
	UserName          string `json:"userName"`
	DiscoveredWiFiGPS int64  `json:"discoveredWiFiGPS"`
	EventMonthCount   int64  `json:"eventMonthCount"`
}

// looseString accepts a JSON string or number. Group ids have been served
// as both.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

func succeeded(p *bool) bool { return p != nil && *p }

func (r *userResponse) toDomain(badgeSuffix string) stats.UserStatistics {
	st := r.Statistics
	name := r.User
	if name == "" && st.UserName != nil {
		name = *st.UserName
	}
	badge := r.ImageBadgeURL
	if badge != "" {
		badge += badgeSuffix
	}
	return stats.UserStatistics{
		UserName:                 name,
		Rank:                     r.Rank,
		PrevRank:                 st.PrevRank,
		MonthRank:                r.MonthRank,
		PrevMonthRank:            st.PrevMonthRank,
		EventMonthCount:          st.EventMonthCount,
		EventPrevMonthCount:      st.EventPrevMonthCount,
		DiscoveredWiFiGPS:        st.DiscoveredWiFiGPS,
		DiscoveredWiFiGPSPercent: st.DiscoveredWiFiGPSPercent,
		DiscoveredWiFi:           st.DiscoveredWiFi,
		DiscoveredCellGPS:        st.DiscoveredCellGPS,
		DiscoveredCell:           st.DiscoveredCell,
		DiscoveredBtGPS:          st.DiscoveredBtGPS,
		DiscoveredBt:             st.DiscoveredBt,
		TotalWiFiLocations:       st.TotalWiFiLocations,
		FirstEvent:               st.First,
		LastEvent:                st.Last,
		BadgeURL:                 badge,
	}
}

func (g groupEntry) toDomain() stats.GroupRankingEntry {
	return stats.GroupRankingEntry{
		GroupID:    string(g.GroupID),
		GroupName:  g.GroupName,
		Discovered: g.Discovered,
		Total:      g.Total,
	}
}

func (m memberEntry) toDomain() stats.UserRankingEntry {
	return stats.UserRankingEntry{Username: m.Username, Discovered: m.Discovered, Status: m.Status}
}

func (s standingEntry) toDomain() stats.StandingEntry {
	return stats.StandingEntry{
		UserName:          s.UserName,
		DiscoveredWiFiGPS: s.DiscoveredWiFiGPS,
		EventMonthCount:   s.EventMonthCount,
	}
}

func sameName(a, b string) bool { return strings.EqualFold(a, b) }
