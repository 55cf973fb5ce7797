package core

import (
	"context"
	"errors"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/banlog"
)

// BanRecorder persists ban events.
type BanRecorder interface {
	Record(ctx context.Context, ev banlog.Event) error
}

// MultiRecorder fans an event out to several recorders and joins their errors.
type MultiRecorder []BanRecorder

// Record implements BanRecorder.
func (m MultiRecorder) Record(ctx context.Context, ev banlog.Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeIP parses s and returns its canonical text form.
// IPv4-mapped IPv6 addresses collapse to plain IPv4.
func NormalizeIP(s string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidIP
	}
	return addr.Unmap().String(), nil
}

// BanStore is the in-memory set of banned ip addresses.
// Like Registry it belongs to the hub goroutine.
type BanStore struct {
	ips   map[string]struct{}
	order []string
	rec   BanRecorder
	log   *zerolog.Logger
}

// NewBanStore builds an empty ban set. rec may be nil when persistence is unavailable.
func NewBanStore(rec BanRecorder, logger *zerolog.Logger) *BanStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BanStore{
		ips: make(map[string]struct{}),
		rec: rec,
		log: logger,
	}
}

// IsBanned reports whether ip is in the set.
func (b *BanStore) IsBanned(ip string) bool {
	_, ok := b.ips[ip]
	return ok
}

// Ban adds ip and records a BAN event. The caller evicts matching clients.
func (b *BanStore) Ban(ctx context.Context, ip string) error {
	if b.IsBanned(ip) {
		return ErrAlreadyBanned
	}
	b.add(ip)
	b.record(ctx, banlog.ActionBan, ip)
	return nil
}

// Unban removes ip and records an UNBAN event.
func (b *BanStore) Unban(ctx context.Context, ip string) error {
	if !b.IsBanned(ip) {
		return ErrNotBanned
	}
	b.remove(ip)
	b.record(ctx, banlog.ActionUnban, ip)
	return nil
}

// Refused records a CONN_REFUSED audit event. The set is unchanged.
func (b *BanStore) Refused(ctx context.Context, ip string) {
	b.record(ctx, banlog.ActionConnRefused, ip)
}

// Load replaces the set with the result of replaying events in order.
// Only BAN and UNBAN participate; addresses are normalized and invalid ones
// skipped. Loading the same events twice is harmless.
func (b *BanStore) Load(events []banlog.Event) {
	b.ips = make(map[string]struct{}, len(events))
	b.order = b.order[:0]

	for _, ev := range events {
		if !ev.Action.Replayed() {
			continue
		}
		ip, err := NormalizeIP(ev.IP)
		if err != nil {
			b.log.Debug().Str("ip", ev.IP).Str("action", string(ev.Action)).Msg("skipping ban event with invalid address")
			continue
		}
		switch ev.Action {
		case banlog.ActionBan:
			if !b.IsBanned(ip) {
				b.add(ip)
			}
		case banlog.ActionUnban:
			if b.IsBanned(ip) {
				b.remove(ip)
			}
		}
	}
}

// List returns the banned ips in the order they were banned.
func (b *BanStore) List() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of banned ips.
func (b *BanStore) Len() int {
	return len(b.order)
}

func (b *BanStore) add(ip string) {
	b.ips[ip] = struct{}{}
	b.order = append(b.order, ip)
}

func (b *BanStore) remove(ip string) {
	delete(b.ips, ip)
	for i, other := range b.order {
		if other == ip {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *BanStore) record(ctx context.Context, action banlog.Action, ip string) {
	if b.rec == nil {
		return
	}
	if err := b.rec.Record(ctx, banlog.NewEvent(action, ip)); err != nil {
		b.log.Warn().Err(err).Str("action", string(action)).Str("ip", ip).Msg("ban log unavailable, event not persisted")
	}
}
