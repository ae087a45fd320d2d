// Package router turns chat messages into statistics queries and replies.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/internal/adapters/wigle"
	"github.com/okian/wiglebot/internal/domain/command"
	"github.com/okian/wiglebot/internal/domain/format"
	"github.com/okian/wiglebot/internal/domain/stats"
	"github.com/okian/wiglebot/pkg/logger"
	"github.com/okian/wiglebot/pkg/metrics"
)

const defaultTyping = 3 * time.Second

// Fallback replies used when an error carries no message of its own.
const (
	msgUserStatsFailed  = "Failed to fetch user stats."
	msgGroupRanksFailed = "Failed to fetch group ranks."
	msgGroupIDFailed    = "Failed to fetch group ID."
	msgGroupDataFailed  = "Failed to fetch group data."
	msgUserRanksFailed  = "Failed to fetch user ranks."
	msgMonthlyFailed    = "Failed to fetch monthly rankings."
)

// Command outcomes for metrics.
const (
	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeUnknown = "unknown"
)

// StatsClient is the subset of the statistics API the router needs.
type StatsClient interface {
	FetchUserStats(ctx context.Context, username string) (stats.UserStatistics, error)
	FetchGroupList(ctx context.Context) ([]stats.GroupRankingEntry, error)
	ResolveGroupID(ctx context.Context, groupName string) (stats.GroupRef, error)
	FetchGroupMembers(ctx context.Context, membersURL string) ([]stats.UserRankingEntry, error)
	FetchAllTimeStandings(ctx context.Context) ([]stats.StandingEntry, error)
	FetchMonthlyStandings(ctx context.Context) ([]stats.StandingEntry, error)
}

// handlerFunc produces the reply for a command. When err is non-nil the
// reply is the user-facing failure text.
type handlerFunc func(ctx context.Context, cmd command.Command) (reply string, err error)

type route struct {
	verb        command.Verb
	minArgs     int
	usage       string
	description string
	handle      handlerFunc
}

// Router dispatches parsed commands. It is safe for concurrent use.
type Router struct {
	client StatsClient
	sender chat.Sender
	prefix string
	self   func() string
	typing time.Duration
	log    logger.Logger
	newID  func() string

	routes map[command.Verb]route
	order  []command.Verb
}

// New builds a Router that queries client and replies through sender.
func New(client StatsClient, sender chat.Sender, opts ...Option) *Router {
	r := &Router{
		client: client,
		sender: sender,
		prefix: command.DefaultPrefix,
		self:   func() string { return "" },
		typing: defaultTyping,
		log:    logger.Nop(),
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	r.register(
		route{verb: command.VerbUser, minArgs: 1, usage: "<username>", description: "Get stats for a WiGLE user.", handle: r.userStats},
		route{verb: command.VerbGroupRank, description: "Get WiGLE group rankings.", handle: r.groupRankings},
		route{verb: command.VerbUserRank, minArgs: 1, usage: "<groupname>", description: "Get WiGLE user rankings for a group.", handle: r.userRankings},
		route{verb: command.VerbAllTime, description: "Get WiGLE All-Time user rankings.", handle: r.allTime},
		route{verb: command.VerbMonthly, description: "Get WiGLE monthly user rankings.", handle: r.monthly},
		route{verb: command.VerbHelp, description: "Shows this help message.", handle: r.help},
	)
	return r
}

func (r *Router) register(routes ...route) {
	r.routes = make(map[command.Verb]route, len(routes))
	for _, rt := range routes {
		r.routes[rt.verb] = rt
		r.order = append(r.order, rt.verb)
	}
}

// Handle processes one chat message and sends at most one reply. Messages
// without the prefix, or from the bot itself, are ignored. The returned
// error is the send failure, if any.
func (r *Router) Handle(ctx context.Context, msg chat.Message) error {
	if self := r.self(); self != "" && msg.SenderID == self {
		metrics.RecordMessageIgnored("self")
		return nil
	}
	cmd, ok := command.Parse(msg.Body, r.prefix)
	if !ok {
		metrics.RecordMessageIgnored("no_prefix")
		return nil
	}

	start := time.Now()
	fields := []logger.Field{
		logger.String("request_id", r.newID()),
		logger.String("room", msg.RoomID),
		logger.String("sender", msg.SenderID),
		logger.String("command", string(cmd.Verb)),
	}

	rt, known := r.routes[cmd.Verb]
	if !known || len(cmd.Args) < rt.minArgs {
		r.log.Info(ctx, "unknown command", append(fields, logger.Int("args", len(cmd.Args)))...)
		metrics.RecordCommand(outcomeUnknown, outcomeUnknown, msSince(start))
		return r.send(ctx, msg.RoomID, r.UnknownText(), fields)
	}

	if arg := cmd.Rest(0); arg != "" {
		fields = append(fields, logger.String("argument", arg))
	}
	r.log.Info(ctx, "command invoked", fields...)

	// The indicator goes out before the upstream call; its failure is not fatal.
	if err := r.sender.SendTyping(ctx, msg.RoomID, r.typing); err != nil {
		r.log.Warn(ctx, "typing indicator failed", append(fields, logger.Error(err))...)
	}

	reply, err := rt.handle(ctx, cmd)
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFailed
		failFields := append(fields,
			logger.String("kind", wigle.KindOf(err).String()),
			logger.String("reply", reply),
			logger.Error(err),
		)
		if status := wigle.StatusOf(err); status != 0 {
			failFields = append(failFields, logger.Int("status", status))
		}
		r.log.Warn(ctx, "command failed", failFields...)
	}
	metrics.RecordCommand(string(cmd.Verb), outcome, msSince(start))
	return r.send(ctx, msg.RoomID, reply, fields)
}

func (r *Router) send(ctx context.Context, roomID, text string, fields []logger.Field) error {
	if err := r.sender.SendText(ctx, roomID, text); err != nil {
		r.log.Error(ctx, "send reply failed", append(fields, logger.Error(err))...)
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// UnknownText is the reply to unrecognised commands and missing arguments.
func (r *Router) UnknownText() string {
	return fmt.Sprintf("Unknown command. Type %shelp for available commands.", r.prefix)
}

// HelpText lists every command in registration order.
func (r *Router) HelpText() string {
	var b strings.Builder
	b.WriteString("**Command List**\n")
	for _, v := range r.order {
		rt := r.routes[v]
		usage := r.prefix + string(rt.verb)
		if rt.usage != "" {
			usage += " " + rt.usage
		}
		fmt.Fprintf(&b, "`%s` - %s\n", usage, rt.description)
	}
	return b.String()
}

func (r *Router) userStats(ctx context.Context, cmd command.Command) (string, error) {
	s, err := r.client.FetchUserStats(ctx, cmd.Arg(0))
	if err != nil {
		return wigle.Message(err, msgUserStatsFailed), err
	}
	return format.UserStats(s), nil
}

func (r *Router) groupRankings(ctx context.Context, _ command.Command) (string, error) {
	groups, err := r.client.FetchGroupList(ctx)
	if err != nil {
		return wigle.Message(err, msgGroupRanksFailed), err
	}
	return format.GroupRankings(groups), nil
}

// userRankings chains two calls: resolve the group, then list its members.
// A failure in the second step always gets the generic reply.
func (r *Router) userRankings(ctx context.Context, cmd command.Command) (string, error) {
	group := cmd.Rest(0)
	ref, err := r.client.ResolveGroupID(ctx, group)
	if err != nil {
		return wigle.Message(err, msgGroupIDFailed), err
	}
	members, err := r.client.FetchGroupMembers(ctx, ref.MembersURL)
	if err != nil {
		return msgGroupDataFailed, err
	}
	return format.UserRankings(members, group), nil
}

func (r *Router) allTime(ctx context.Context, _ command.Command) (string, error) {
	entries, err := r.client.FetchAllTimeStandings(ctx)
	if err != nil {
		return wigle.Message(err, msgUserRanksFailed), err
	}
	return format.AllTimeRankings(entries), nil
}

func (r *Router) monthly(ctx context.Context, _ command.Command) (string, error) {
	entries, err := r.client.FetchMonthlyStandings(ctx)
	if err != nil {
		return wigle.Message(err, msgMonthlyFailed), err
	}
	return format.MonthlyRankings(entries), nil
}

func (r *Router) help(context.Context, command.Command) (string, error) {
	return r.HelpText(), nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
