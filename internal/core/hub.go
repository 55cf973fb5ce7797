package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/metrics"
)

const (
	defaultQueueSize = 64
	defaultNameLimit = 19
)

// Hub owns the registry and the ban list. Transports talk to it through
// channels and every mutation happens on the goroutine running Run.
type Hub struct {
	registry  *Registry
	bans      *BanStore
	metrics   *metrics.Metrics
	log       *zerolog.Logger
	nameLimit int

	admin   chan *adminRequest
	accepts chan *acceptRequest
	inbound chan inbound
	done    chan struct{}
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithNameLimit caps display names to n bytes.
func WithNameLimit(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.nameLimit = n
		}
	}
}

// WithQueueSize sets the buffer of each request channel.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.admin = make(chan *adminRequest, n)
			h.accepts = make(chan *acceptRequest, n)
			h.inbound = make(chan inbound, n)
		}
	}
}

// NewHub creates a hub around an existing registry and ban store.
func NewHub(registry *Registry, bans *BanStore, logger *zerolog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		registry:  registry,
		bans:      bans,
		log:       logger,
		nameLimit: defaultNameLimit,
		admin:     make(chan *adminRequest, defaultQueueSize),
		accepts:   make(chan *acceptRequest, defaultQueueSize),
		inbound:   make(chan inbound, defaultQueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Done is closed once Run has returned and every client has been closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run processes requests until ctx is cancelled or the operator quits.
// Each wake-up handles the admin commands queued so far, then new
// connections, then client data, so nothing acts on a client removed
// earlier in the same pass.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	h.metrics.SetBans(h.bans.Len())
	h.log.Info().Int("capacity", h.registry.Cap()).Int("bans", h.bans.Len()).Msg("hub started")

	for {
		var p pass
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case req := <-h.admin:
			p.admin = append(p.admin, req)
		case req := <-h.accepts:
			p.accepts = append(p.accepts, req)
		case in := <-h.inbound:
			p.inbound = append(p.inbound, in)
		}
		h.collect(&p)

		if quit := h.dispatch(ctx, &p); quit {
			h.shutdown()
			return nil
		}
	}
}

// collect moves everything already queued into p without blocking.
func (h *Hub) collect(p *pass) {
	for n := len(h.admin); n > 0; n-- {
		p.admin = append(p.admin, <-h.admin)
	}
	for n := len(h.accepts); n > 0; n-- {
		p.accepts = append(p.accepts, <-h.accepts)
	}
	for n := len(h.inbound); n > 0; n-- {
		p.inbound = append(p.inbound, <-h.inbound)
	}
}

func (h *Hub) dispatch(ctx context.Context, p *pass) bool {
	for i, req := range p.admin {
		if req.stats {
			req.reply <- adminReply{stats: h.stats()}
			continue
		}
		res := h.exec(ctx, req.line)
		req.reply <- adminReply{result: res}
		if res.Quit {
			h.abandon(p, i+1)
			return true
		}
	}

	for _, req := range p.accepts {
		id, err := h.accept(ctx, req.conn, req.ip)
		req.reply <- acceptReply{id: id, err: err}
	}

	for _, in := range p.inbound {
		h.handleInbound(in)
	}
	return false
}

// abandon fails the rest of a pass after quit.
func (h *Hub) abandon(p *pass, nextAdmin int) {
	for _, req := range p.admin[nextAdmin:] {
		req.reply <- adminReply{result: AdminResult{Err: ErrHubStopped}}
	}
	for _, req := range p.accepts {
		_ = req.conn.Close()
		req.reply <- acceptReply{err: ErrHubStopped}
	}
}

func (h *Hub) shutdown() {
	clients := h.registry.Snapshot()
	for _, c := range clients {
		c.Farewell(shutdownMsg)
		h.remove(c, metrics.ReasonShutdown)
	}
	h.log.Info().Int("clients", len(clients)).Msg("hub stopped")
}

func (h *Hub) accept(ctx context.Context, conn Conn, ip string) (ClientID, error) {
	if h.bans.IsBanned(ip) {
		sendFinal(conn, bannedMsg)
		_ = conn.Close()
		h.bans.Refused(ctx, ip)
		h.metrics.Connection(metrics.ConnBanned)
		h.log.Info().Str("ip", ip).Msg("refused connection from banned ip")
		return NoClient, ErrBanned
	}

	c, err := h.registry.Add(conn, ip)
	if err != nil {
		_ = conn.Close()
		h.metrics.Connection(metrics.ConnCapacity)
		h.log.Warn().Str("ip", ip).Int("capacity", h.registry.Cap()).Msg("registry full, connection dropped")
		return NoClient, err
	}

	h.metrics.Connection(metrics.ConnAccepted)
	h.metrics.SetClients(h.registry.Len())
	h.log.Info().Str("client_id", string(c.ID)).Str("ip", ip).Msg("client connected")
	return c.ID, nil
}

func (h *Hub) handleInbound(in inbound) {
	c, ok := h.registry.Get(in.id)
	if !ok {
		return
	}

	switch {
	case in.closed:
		if c.Named() {
			Broadcast(h.registry.Snapshot(), c.ID, leftMsg(c.Name))
		}
		h.remove(c, metrics.ReasonClosed)
	case !c.Named():
		h.register(c, in.data)
	default:
		Broadcast(h.registry.Snapshot(), c.ID, chatMsg(c.Name, in.data))
		h.metrics.Relayed(len(in.data))
		h.log.Debug().Str("client_id", string(c.ID)).Str("name", c.Name).Int("bytes", len(in.data)).Msg("message relayed")
	}
}

// register treats the first read of a client as its display name.
func (h *Hub) register(c *Client, data []byte) {
	name := extractName(data, h.nameLimit)

	err := h.registry.AssignName(c.ID, name)
	switch {
	case err == nil:
		Broadcast(h.registry.Snapshot(), c.ID, joinedMsg(c.Name))
		h.log.Info().Str("client_id", string(c.ID)).Str("name", c.Name).Msg("client named")
	case errors.Is(err, ErrNameTaken):
		c.Farewell(nameTakenMsg(name))
		h.log.Info().Str("client_id", string(c.ID)).Str("name", name).Msg("name already taken, connection refused")
		h.remove(c, metrics.ReasonNameTaken)
	default:
		c.Farewell(emptyName)
		h.log.Info().Err(err).Str("client_id", string(c.ID)).Msg("invalid name, connection refused")
		h.remove(c, metrics.ReasonInvalidName)
	}
}

// extractName keeps the bytes before the first line break, capped to limit
// bytes without splitting a UTF-8 sequence.
func extractName(data []byte, limit int) string {
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		data = data[:i]
	}
	if limit > 0 && len(data) > limit {
		data = data[:limit]
		for i := 0; i < utf8.UTFMax-1 && len(data) > 0; i++ {
			r, size := utf8.DecodeLastRune(data)
			if r != utf8.RuneError || size != 1 {
				break
			}
			data = data[:len(data)-1]
		}
	}
	return string(data)
}

// evict sends the farewell to c, tells the others, then removes c.
func (h *Hub) evict(c *Client, farewell, notice []byte, reason string) {
	c.Farewell(farewell)
	Broadcast(h.registry.Snapshot(), c.ID, notice)
	h.remove(c, reason)
}

func (h *Hub) remove(c *Client, reason string) {
	if _, ok := h.registry.Remove(c.ID); !ok {
		return
	}
	h.metrics.Disconnect(reason)
	h.metrics.SetClients(h.registry.Len())
	h.log.Info().
		Str("client_id", string(c.ID)).
		Str("ip", c.IP).
		Str("name", c.Name).
		Str("reason", reason).
		Msg("client disconnected")
}

func (h *Hub) exec(ctx context.Context, line string) AdminResult {
	cmd, err := ParseCommand(line)
	if err != nil {
		h.metrics.AdminCommand("invalid", errorLabel(err))
		if errors.Is(err, ErrMissingArgument) {
			return AdminResult{Output: err.Error(), Err: err}
		}
		return AdminResult{Output: "unknown command, type 'help' for the list", Err: err}
	}

	var res AdminResult
	switch cmd.Kind {
	case CommandKick:
		res = h.kick(cmd.Arg)
	case CommandBan:
		res = h.ban(ctx, cmd.Arg)
	case CommandUnban:
		res = h.unban(ctx, cmd.Arg)
	case CommandShowBans:
		res = h.showBans()
	case CommandList:
		res = h.list()
	case CommandHelp:
		res = AdminResult{Output: HelpText}
	case CommandQuit:
		res = AdminResult{Output: "shutting down", Quit: true}
	}

	h.metrics.AdminCommand(cmd.Kind.String(), errorLabel(res.Err))
	h.log.Debug().Str("command", cmd.Kind.String()).Str("arg", cmd.Arg).AnErr("result", res.Err).Msg("admin command")
	return res
}

func (h *Hub) kick(name string) AdminResult {
	c, err := h.registry.FindByName(name)
	if err != nil {
		return AdminResult{
			Output: fmt.Sprintf("user '%s' not found", name),
			Err:    fmt.Errorf("kick %q: %w", name, err),
		}
	}
	h.evict(c, kickedMsg, kickNotice(c.Name), metrics.ReasonKicked)
	return AdminResult{Output: fmt.Sprintf("user '%s' kicked", name)}
}

func (h *Hub) ban(ctx context.Context, arg string) AdminResult {
	ip, err := NormalizeIP(arg)
	if err != nil {
		return AdminResult{Output: fmt.Sprintf("invalid ip address '%s'", arg), Err: err}
	}
	if err := h.bans.Ban(ctx, ip); err != nil {
		return AdminResult{Output: fmt.Sprintf("ip %s is already banned", ip), Err: err}
	}

	victims := h.registry.ByIP(ip)
	for _, c := range victims {
		h.evict(c, bannedMsg, banNotice(c.DisplayName()), metrics.ReasonBanned)
	}
	h.metrics.SetBans(h.bans.Len())
	h.log.Info().Str("ip", ip).Int("evicted", len(victims)).Msg("ip banned")
	return AdminResult{Output: fmt.Sprintf("ip %s banned, %d client(s) disconnected", ip, len(victims))}
}

func (h *Hub) unban(ctx context.Context, arg string) AdminResult {
	ip, err := NormalizeIP(arg)
	if err != nil {
		return AdminResult{Output: fmt.Sprintf("invalid ip address '%s'", arg), Err: err}
	}
	if err := h.bans.Unban(ctx, ip); err != nil {
		return AdminResult{Output: fmt.Sprintf("ip %s not found in the ban list", ip), Err: err}
	}
	h.metrics.SetBans(h.bans.Len())
	h.log.Info().Str("ip", ip).Msg("ip unbanned")
	return AdminResult{Output: fmt.Sprintf("ip %s unbanned", ip)}
}

func (h *Hub) showBans() AdminResult {
	bans := h.bans.List()
	if len(bans) == 0 {
		return AdminResult{Output: "no banned ips"}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "banned ips (%d):", len(bans))
	for i, ip := range bans {
		fmt.Fprintf(&b, "\n  [%d] %s", i+1, ip)
	}
	return AdminResult{Output: b.String()}
}

func (h *Hub) list() AdminResult {
	clients := h.registry.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "connected clients (%d/%d):", len(clients), h.registry.Cap())
	for _, c := range clients {
		name := "(unnamed)"
		if c.Named() {
			name = c.Name
		}
		fmt.Fprintf(&b, "\n  [%s] %s (%s)", c.ID.Short(), name, c.IP)
	}
	return AdminResult{Output: b.String()}
}

func (h *Hub) stats() Stats {
	clients := h.registry.Snapshot()
	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, c.Info())
	}
	return Stats{Clients: infos, Bans: h.bans.List(), Capacity: h.registry.Cap()}
}

// Accept admits conn, coming from ip, into the room. On any error the
// connection has been or must be closed by the caller.
func (h *Hub) Accept(ctx context.Context, conn Conn, ip string) (ClientID, error) {
	req := &acceptRequest{conn: conn, ip: ip, reply: make(chan acceptReply, 1)}
	if err := submit(ctx, h.done, h.accepts, req); err != nil {
		return NoClient, err
	}
	select {
	case r := <-req.reply:
		return r.id, r.err
	case <-ctx.Done():
		return NoClient, ctx.Err()
	case <-h.done:
		select {
		case r := <-req.reply:
			return r.id, r.err
		default:
			return NoClient, ErrHubStopped
		}
	}
}

// Deliver hands one read from client id to the hub.
func (h *Hub) Deliver(ctx context.Context, id ClientID, data []byte) error {
	return submit(ctx, h.done, h.inbound, inbound{id: id, data: data})
}

// Disconnect reports that the connection of id has ended.
func (h *Hub) Disconnect(ctx context.Context, id ClientID) error {
	return submit(ctx, h.done, h.inbound, inbound{id: id, closed: true})
}

// Exec runs one operator console line.
func (h *Hub) Exec(ctx context.Context, line string) (AdminResult, error) {
	reply, err := h.adminRoundTrip(ctx, &adminRequest{line: line, reply: make(chan adminReply, 1)})
	return reply.result, err
}

// Stats returns a snapshot of connected clients and bans.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply, err := h.adminRoundTrip(ctx, &adminRequest{stats: true, reply: make(chan adminReply, 1)})
	return reply.stats, err
}

func (h *Hub) adminRoundTrip(ctx context.Context, req *adminRequest) (adminReply, error) {
	if err := submit(ctx, h.done, h.admin, req); err != nil {
		return adminReply{}, err
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return adminReply{}, ctx.Err()
	case <-h.done:
		// quit replies before done is closed
		select {
		case r := <-req.reply:
			return r, nil
		default:
			return adminReply{}, ErrHubStopped
		}
	}
}

func submit[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrHubStopped
	}
}
