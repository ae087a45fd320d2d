// Package wigle is the HTTP client for the WiGLE statistics API.
//
// Every method returns either a decoded domain value or a *Error whose Kind
// says how the call failed. Callers never see a raw transport error.
package wigle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/wiglebot/internal/domain/stats"
	"github.com/okian/wiglebot/pkg/logger"
	"github.com/okian/wiglebot/pkg/metrics"
)

const (
	defaultBaseURL   = "https://api.wigle.net/api/v2/"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "wiglebot/1.0"
	maxBodyBytes     = 8 << 20
)

// Endpoint labels used in logs and metrics.
const (
	endpointUser      = "stats/user"
	endpointGroup     = "stats/group"
	endpointMembers   = "group/groupMembers"
	endpointStandings = "stats/standings"
)

// Fixed user-facing messages.
const (
	msgUserNotFound    = "User not found."
	msgInvalidUserData = "Invalid data received or user not found."
	msgNoGroupData     = "No group data available."
	msgNoRankData      = "No rank data available."
)

// Client talks to the statistics API. It is safe for concurrent use and
// owns one connection pool for its lifetime.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	timeout   time.Duration
	userAgent string
	log       logger.Logger
	now       func() time.Time
}

// NewClient builds a Client. Without WithHTTPClient it creates its own
// http.Client bounded by the configured timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Close releases idle connections held by the pool.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchUserStats returns the profile of username. A 404, or a profile whose
// name differs from username (ignoring case), yields KindNotFound.
func (c *Client) FetchUserStats(ctx context.Context, username string) (stats.UserStatistics, error) {
	ts := c.timestamp()
	q := url.Values{"user": {username}, "nocache": {ts}}
	var body userResponse
	status, err := c.get(ctx, endpointUser, c.baseURL+endpointUser+"?"+q.Encode(), &body)
	switch {
	case err != nil:
		return stats.UserStatistics{}, c.fail(ctx, endpointUser, err, logger.String("user", username))
	case status == http.StatusNotFound:
		return stats.UserStatistics{}, c.fail(ctx, endpointUser, notFound(msgUserNotFound), logger.String("user", username))
	case status != http.StatusOK:
		return stats.UserStatistics{}, c.fail(ctx, endpointUser, httpStatus(status), logger.String("user", username))
	}

	if !succeeded(body.Success) || body.Statistics == nil || body.Statistics.UserName == nil {
		return stats.UserStatistics{}, c.fail(ctx, endpointUser, notFound(msgInvalidUserData), logger.String("user", username))
	}
	if !sameName(*body.Statistics.UserName, username) {
		return stats.UserStatistics{}, c.fail(ctx, endpointUser, notFound(msgUserNotFound),
			logger.String("user", username), logger.String("profile", *body.Statistics.UserName))
	}
	c.log.Info(ctx, "fetched wigle user stats", logger.String("user", username))
	return body.toDomain("?nocache=" + ts), nil
}

// FetchGroupList returns every group in upstream order.
func (c *Client) FetchGroupList(ctx context.Context) ([]stats.GroupRankingEntry, error) {
	body, err := c.groupList(ctx)
	if err != nil {
		return nil, err
	}
	if !succeeded(body.Success) || body.Groups == nil {
		return nil, c.fail(ctx, endpointGroup, noData(msgNoGroupData))
	}
	out := make([]stats.GroupRankingEntry, 0, len(*body.Groups))
	for _, g := range *body.Groups {
		out = append(out, g.toDomain())
	}
	return out, nil
}

// ResolveGroupID finds the first group whose name equals groupName ignoring
// case and returns where to list its members.
func (c *Client) ResolveGroupID(ctx context.Context, groupName string) (stats.GroupRef, error) {
	body, err := c.groupList(ctx)
	if err != nil {
		return stats.GroupRef{}, err
	}
	if !succeeded(body.Success) {
		// Upstream explains itself in message; an empty one lets the caller
		// choose the wording.
		return stats.GroupRef{}, c.fail(ctx, endpointGroup, noData(body.Message), logger.String("group", groupName))
	}
	if body.Groups != nil {
		for _, g := range *body.Groups {
			if sameName(g.GroupName, groupName) {
				id := string(g.GroupID)
				return stats.GroupRef{
					ID:         id,
					Name:       g.GroupName,
					MembersURL: c.baseURL + endpointMembers + "?" + url.Values{"groupid": {id}}.Encode(),
				}, nil
			}
		}
	}
	return stats.GroupRef{}, c.fail(ctx, endpointGroup,
		notFound(fmt.Sprintf("No group named '%s' found.", groupName)), logger.String("group", groupName))
}

// FetchGroupMembers lists the members at membersURL, as returned by
// ResolveGroupID. A missing member list is treated as empty.
func (c *Client) FetchGroupMembers(ctx context.Context, membersURL string) ([]stats.UserRankingEntry, error) {
	var body membersResponse
	status, err := c.get(ctx, endpointMembers, membersURL, &body)
	if err != nil {
		return nil, c.fail(ctx, endpointMembers, err, logger.String("url", membersURL))
	}
	if status != http.StatusOK {
		return nil, c.fail(ctx, endpointMembers, httpStatus(status), logger.String("url", membersURL))
	}
	out := make([]stats.UserRankingEntry, 0, len(body.Users))
	for _, u := range body.Users {
		out = append(out, u.toDomain())
	}
	return out, nil
}

// FetchAllTimeStandings returns the first page of the all-time standings
// without anonymous users.
func (c *Client) FetchAllTimeStandings(ctx context.Context) ([]stats.StandingEntry, error) {
	return c.standings(ctx, "discovered")
}

// FetchMonthlyStandings returns the first page of this month's standings
// without anonymous users.
func (c *Client) FetchMonthlyStandings(ctx context.Context) ([]stats.StandingEntry, error) {
	return c.standings(ctx, "monthcount")
}

func (c *Client) standings(ctx context.Context, sort string) ([]stats.StandingEntry, error) {
	q := url.Values{"sort": {sort}, "pagestart": {"0"}}
	var body standingsResponse
	status, err := c.get(ctx, endpointStandings, c.baseURL+endpointStandings+"?"+q.Encode(), &body)
	if err != nil {
		return nil, c.fail(ctx, endpointStandings, err, logger.String("sort", sort))
	}
	if status != http.StatusOK {
		return nil, c.fail(ctx, endpointStandings, httpStatus(status), logger.String("sort", sort))
	}
	if !succeeded(body.Success) || body.Results == nil {
		return nil, c.fail(ctx, endpointStandings, noData(msgNoRankData), logger.String("sort", sort))
	}
	out := make([]stats.StandingEntry, 0, len(*body.Results))
	for _, r := range *body.Results {
		out = append(out, r.toDomain())
	}
	return stats.WithoutAnonymous(out), nil
}

func (c *Client) groupList(ctx context.Context) (*groupResponse, error) {
	q := url.Values{"nocache": {c.timestamp()}}
	var body groupResponse
	status, err := c.get(ctx, endpointGroup, c.baseURL+endpointGroup+"?"+q.Encode(), &body)
	if err != nil {
		return nil, c.fail(ctx, endpointGroup, err)
	}
	if status != http.StatusOK {
		return nil, c.fail(ctx, endpointGroup, httpStatus(status))
	}
	return &body, nil
}

// get issues an authenticated GET and, on a 200, decodes the body into out.
// Non-200 bodies are drained and discarded. A non-nil error is always
// KindTransport.
func (c *Client) get(ctx context.Context, endpoint, rawURL string, out any) (int, *Error) {
	start := time.Now()
	req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if rerr != nil {
		return 0, transport(fmt.Errorf("build request: %w", rerr))
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(endpoint, "0", elapsedMs(start))
		return 0, transport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	status := resp.StatusCode
	if status != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		metrics.RecordUpstreamRequest(endpoint, strconv.Itoa(status), elapsedMs(start))
		return status, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.RecordUpstreamRequest(endpoint, strconv.Itoa(status), elapsedMs(start))
	if err != nil {
		return status, transport(fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return status, transport(fmt.Errorf("decode %s response: %w", endpoint, err))
	}
	c.log.Debug(ctx, "wigle request completed",
		logger.String("endpoint", endpoint),
		logger.Int("status", status),
		logger.Duration("elapsed", time.Since(start)),
	)
	return status, nil
}

// fail records and logs err, then returns it.
func (c *Client) fail(ctx context.Context, endpoint string, err *Error, fields ...logger.Field) error {
	metrics.RecordUpstreamError(endpoint, err.Kind.String())
	fields = append(fields,
		logger.String("endpoint", endpoint),
		logger.String("kind", err.Kind.String()),
		logger.Error(err),
	)
	switch err.Kind {
	case KindTransport, KindHTTPStatus:
		if err.Status != 0 {
			fields = append(fields, logger.Int("status", err.Status))
		}
		c.log.Error(ctx, "wigle request failed", fields...)
	default:
		c.log.Warn(ctx, "wigle request returned no usable data", fields...)
	}
	return err
}

func (c *Client) timestamp() string {
	return strconv.FormatInt(c.now().Unix(), 10)
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
