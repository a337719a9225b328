package apifootball

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// CurrentSeason returns the season a given instant belongs to. European
// seasons roll over in July: before that, the season is last year's.
func CurrentSeason(now time.Time) int {
	if now.Month() < time.July {
		return now.Year() - 1
	}
	return now.Year()
}

// Team is a team descriptor as returned by the fixtures endpoint.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// Fixture is a flattened fixture descriptor.
type Fixture struct {
	ID          int
	Date        time.Time
	StatusShort string
	LeagueID    int
	LeagueName  string
	Season      int
	HomeTeam    Team
	AwayTeam    Team
}

// Filter selects fixtures. Zero values are omitted from the query.
type Filter struct {
	ID     int
	League int
	Season int
	Team   int
	Date   string // YYYY-MM-DD
	From   string // YYYY-MM-DD, requires To
	To     string
	Status string // upstream short code, e.g. NS, FT
	Live   bool   // live=all
}

func (f Filter) values() url.Values {
	v := url.Values{}
	if f.ID > 0 {
		v.Set("id", strconv.Itoa(f.ID))
	}
	if f.League > 0 {
		v.Set("league", strconv.Itoa(f.League))
	}
	if f.Season > 0 {
		v.Set("season", strconv.Itoa(f.Season))
	}
	if f.Team > 0 {
		v.Set("team", strconv.Itoa(f.Team))
	}
	if f.Date != "" {
		v.Set("date", f.Date)
	}
	if f.From != "" {
		v.Set("from", f.From)
		v.Set("to", f.To)
	}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Live {
		v.Set("live", "all")
	}
	return v
}

// fixtureItem mirrors one element of the fixtures response array.
type fixtureItem struct {
	Fixture struct {
		ID     int    `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Season int    `json:"season"`
	} `json:"league"`
	Teams struct {
		Home Team `json:"home"`
		Away Team `json:"away"`
	} `json:"teams"`
}

// FetchFixtures returns fixture descriptors matching the filter. An empty
// response is no data, not an error.
func (c *Client) FetchFixtures(ctx context.Context, f Filter) ([]Fixture, error) {
	resp, err := c.get(ctx, "/fixtures", f.values())
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures: %w", err)
	}

	var items []fixtureItem
	if len(resp.Response) > 0 {
		if err := json.Unmarshal(resp.Response, &items); err != nil {
			return nil, fmt.Errorf("decode fixtures: %w", err)
		}
	}

	out := make([]Fixture, 0, len(items))
	for _, it := range items {
		if it.Fixture.ID == 0 {
			continue
		}
		date, err := time.Parse(time.RFC3339, it.Fixture.Date)
		if err != nil {
			c.logger.Warn("Unparseable fixture date",
				"fixture_id", it.Fixture.ID, "date", it.Fixture.Date)
		}
		out = append(out, Fixture{
			ID:          it.Fixture.ID,
			Date:        date,
			StatusShort: it.Fixture.Status.Short,
			LeagueID:    it.League.ID,
			LeagueName:  it.League.Name,
			Season:      it.League.Season,
			HomeTeam:    it.Teams.Home,
			AwayTeam:    it.Teams.Away,
		})
	}
	return out, nil
}
