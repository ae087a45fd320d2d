package format

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wiglebot/internal/domain/stats"
)

func TestHelpers(t *testing.T) {
	Convey("Ordinal suffixes", t, func() {
		cases := map[int]string{
			1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 10: "10th",
			11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 23: "23rd", 101: "101st", 111: "111th",
		}
		for n, want := range cases {
			So(Ordinal(n), ShouldEqual, want)
		}
	})

	Convey("Count uses grouping separators", t, func() {
		So(Count(1234567), ShouldEqual, "1,234,567")
		So(Count(999), ShouldEqual, "999")
		So(Count(0), ShouldEqual, "0")
		So(Count(-1000), ShouldEqual, "-1,000")
	})

	Convey("Percent prints the value as reported", t, func() {
		So(Percent(87), ShouldEqual, "87")
		So(Percent(87.5), ShouldEqual, "87.5")
		So(Percent(12.345), ShouldEqual, "12.345")
		So(Percent(0), ShouldEqual, "0")
	})

	Convey("EventDate", t, func() {
		So(EventDate("20240304-153000"), ShouldEqual, "March 04, 2024")
		So(EventDate("20011231"), ShouldEqual, "December 31, 2001")

		Convey("falls back to the raw value when it cannot parse", func() {
			So(EventDate("garbage"), ShouldEqual, "garbage")
			So(EventDate(""), ShouldEqual, "")
			So(EventDate("20241399-000000"), ShouldEqual, "20241399-000000")
		})
	})
}

func TestUserStats(t *testing.T) {
	Convey("Given a user's statistics", t, func() {
		s := stats.UserStatistics{
			UserName:                 "alice",
			Rank:                     1234,
			PrevRank:                 1300,
			MonthRank:                56,
			PrevMonthRank:            78,
			EventMonthCount:          12000,
			EventPrevMonthCount:      9000,
			DiscoveredWiFiGPS:        1234567,
			DiscoveredWiFiGPSPercent: 87.5,
			DiscoveredWiFi:           2000000,
			DiscoveredCellGPS:        3000,
			DiscoveredCell:           3100,
			DiscoveredBtGPS:          4000,
			DiscoveredBt:             4100,
			TotalWiFiLocations:       9999999,
			LastEvent:                "20240304-153000",
			FirstEvent:               "20150101-000000",
		}

		Convey("When rendered without a badge", func() {
			out := UserStats(s)

			Convey("Then every labelled line appears in order", func() {
				want := "**WiGLE User Stats for 'alice'**\n" +
					"Username: alice\n" +
					"Rank: 1,234\n" +
					"Previous Rank: 1,300\n" +
					"Monthly Rank: 56\n" +
					"Last Month's Rank: 78\n" +
					"Events This Month: 12,000\n" +
					"Last Month's Events: 9,000\n" +
					"Discovered WiFi GPS: 1,234,567\n" +
					"Discovered WiFi GPS Percent: 87.5\n" +
					"Discovered WiFi: 2,000,000\n" +
					"Discovered Cell GPS: 3,000\n" +
					"Discovered Cell: 3,100\n" +
					"Discovered BT GPS: 4,000\n" +
					"Discovered BT: 4,100\n" +
					"Total WiFi Locations: 9,999,999\n" +
					"Last Event: March 04, 2024\n" +
					"First Ever Event: January 01, 2015\n"
				So(out, ShouldEqual, want)
			})
		})

		Convey("When rendered with a badge", func() {
			s.BadgeURL = "https://wigle.net/bi/abc.png?nocache=1"
			out := UserStats(s)
			So(out, ShouldEndWith, "Badge: https://wigle.net/bi/abc.png?nocache=1\n")
		})
	})
}

func TestRankings(t *testing.T) {
	Convey("Given more than ten groups", t, func() {
		var groups []stats.GroupRankingEntry
		for i := 0; i < 15; i++ {
			groups = append(groups, stats.GroupRankingEntry{GroupName: fmt.Sprintf("g%d", i), Discovered: int64(1000 * (15 - i))})
		}
		out := GroupRankings(groups)
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

		Convey("Then exactly ten ranked lines follow the header", func() {
			So(lines[0], ShouldEqual, "**WiGLE Group Rankings:**")
			So(len(lines), ShouldEqual, 11)
			So(lines[1], ShouldEqual, "1st: g0 | Total: 15,000")
			So(lines[10], ShouldEqual, "10th: g9 | Total: 6,000")
			So(out, ShouldEndWith, "\n")
		})
	})

	Convey("Given an empty list", t, func() {
		Convey("Then only the header is produced", func() {
			So(GroupRankings(nil), ShouldEqual, "**WiGLE Group Rankings:**\n")
			So(AllTimeRankings(nil), ShouldEqual, "**WiGLE All-Time User Rankings:**\n")
			So(MonthlyRankings(nil), ShouldEqual, "**WiGLE Monthly User Rankings:**\n")
			So(UserRankings(nil, "Foo"), ShouldEqual, "**User Rankings for 'Foo':**\n")
		})
	})

	Convey("Given group members where locked ones are near the top", t, func() {
		var members []stats.UserRankingEntry
		for i := 0; i < 12; i++ {
			status := ""
			if i%3 == 0 {
				status = "L"
			}
			members = append(members, stats.UserRankingEntry{Username: fmt.Sprintf("u%d", i), Discovered: int64(100 - i), Status: status})
		}
		out := UserRankings(members, "Foo Bar")
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

		Convey("Then locked members never appear and fewer than ten lines are allowed", func() {
			So(lines[0], ShouldEqual, "**User Rankings for 'Foo Bar':**")
			So(len(lines), ShouldEqual, 9)
			So(lines[1], ShouldEqual, "1st: u1 | Total: 99")
			So(out, ShouldNotContainSubstring, ": u0 ")
			So(out, ShouldNotContainSubstring, ": u3 ")
			So(out, ShouldNotContainSubstring, ": u9 ")
		})
	})

	Convey("Given standings rows", t, func() {
		entries := []stats.StandingEntry{
			{UserName: "alice", DiscoveredWiFiGPS: 1234567, EventMonthCount: 42},
			{UserName: "bob", DiscoveredWiFiGPS: 1000, EventMonthCount: 4200},
		}

		Convey("Then all-time uses WiFi GPS counts and monthly uses event counts", func() {
			So(AllTimeRankings(entries), ShouldEqual,
				"**WiGLE All-Time User Rankings:**\n1st: alice | Total: 1,234,567\n2nd: bob | Total: 1,000\n")
			So(MonthlyRankings(entries), ShouldEqual,
				"**WiGLE Monthly User Rankings:**\n1st: alice | Total: 42\n2nd: bob | Total: 4,200\n")
		})
	})
}
