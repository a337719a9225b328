package apifootball

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// BetValue is one quoted outcome ("Home" → 1.85).
type BetValue struct {
	Value string `json:"value"`
	Odd   string `json:"odd"`
}

// Bet is one market offered by a bookmaker.
type Bet struct {
	ID     int        `json:"id"`
	Name   string     `json:"name"`
	Values []BetValue `json:"values"`
}

// Bookmaker is one bookmaker's markets for a fixture.
type Bookmaker struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Bets []Bet  `json:"bets"`
}

// FixtureOdds is the full bookmaker tree for one fixture.
type FixtureOdds struct {
	FixtureID  int
	Bookmakers []Bookmaker
}

// OddsFilter selects odds. Zero values are omitted from the query.
type OddsFilter struct {
	Fixture   int
	League    int
	Season    int
	Date      string // YYYY-MM-DD
	Bookmaker int
	Bet       int
}

func (f OddsFilter) values() url.Values {
	v := url.Values{}
	if f.Fixture > 0 {
		v.Set("fixture", strconv.Itoa(f.Fixture))
	}
	if f.League > 0 {
		v.Set("league", strconv.Itoa(f.League))
	}
	if f.Season > 0 {
		v.Set("season", strconv.Itoa(f.Season))
	}
	if f.Date != "" {
		v.Set("date", f.Date)
	}
	if f.Bookmaker > 0 {
		v.Set("bookmaker", strconv.Itoa(f.Bookmaker))
	}
	if f.Bet > 0 {
		v.Set("bet", strconv.Itoa(f.Bet))
	}
	return v
}

// oddsItem mirrors one element of the odds response array.
type oddsItem struct {
	Fixture struct {
		ID int `json:"id"`
	} `json:"fixture"`
	Bookmakers []Bookmaker `json:"bookmakers"`
}

// FetchOdds returns bookmaker odds trees matching the filter. An empty
// response is no data, not an error — many fixtures simply carry no odds.
func (c *Client) FetchOdds(ctx context.Context, f OddsFilter) ([]FixtureOdds, error) {
	resp, err := c.get(ctx, "/odds", f.values())
	if err != nil {
		return nil, fmt.Errorf("fetch odds: %w", err)
	}

	var items []oddsItem
	if len(resp.Response) > 0 {
		if err := json.Unmarshal(resp.Response, &items); err != nil {
			return nil, fmt.Errorf("decode odds: %w", err)
		}
	}

	out := make([]FixtureOdds, 0, len(items))
	for _, it := range items {
		if it.Fixture.ID == 0 {
			continue
		}
		out = append(out, FixtureOdds{
			FixtureID:  it.Fixture.ID,
			Bookmakers: it.Bookmakers,
		})
	}
	return out, nil
}
