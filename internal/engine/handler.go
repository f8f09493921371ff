package engine

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/rs/zerolog/log"

	"github.com/sashakarcz/irondhcp/internal/addr"
	"github.com/sashakarcz/irondhcp/internal/codec"
	"github.com/sashakarcz/irondhcp/internal/dhcperr"
	"github.com/sashakarcz/irondhcp/internal/retrans"
	"github.com/sashakarcz/irondhcp/internal/store"
)

var broadcastAddr = &net.UDPAddr{IP: net.IPv4bcast, Port: dhcpv4.ClientPort}

type handler struct {
	engine *Engine
}

// handle is the server4 callback: decode, dispatch by message type, send
// the response per spec.md §4.4's broadcast/unicast rules. Socket and
// codec errors are logged and the packet is dropped; the engine never
// crashes on a single bad packet.
func (h *handler) handle(conn net.PacketConn, peer net.Addr, pkt *dhcpv4.DHCPv4) {
	ctx := context.Background()
	req := codec.FromPacket(pkt)

	log.Debug().
		Str("type", req.MessageType.String()).
		Str("mac", req.ClientMAC.String()).
		Msg("received DHCP request")

	e := h.engine
	e.counts.incRequest(req.MessageType.String())

	lease, err := e.store.GetByMAC(ctx, req.ClientMAC)
	if err != nil {
		e.metrics.IncError("store")
		log.Error().Err(err).Str("mac", req.ClientMAC.String()).Msg("store lookup failed, dropping packet")
		return
	}
	blocked := lease != nil && lease.IsBlocked

	var resp []byte
	var unicast bool

	switch req.MessageType {
	case dhcpv4.MessageTypeDiscover:
		resp, err = h.handleDiscover(ctx, req, blocked)
	case dhcpv4.MessageTypeRequest:
		resp, err = h.handleRequest(ctx, req, lease, blocked)
	case dhcpv4.MessageTypeDecline:
		resp, err = h.handleDecline(ctx, req)
	case dhcpv4.MessageTypeRelease:
		h.handleRelease(ctx, req, blocked)
		return
	case dhcpv4.MessageTypeInform:
		resp, err = h.handleInform(ctx, req)
		unicast = true
	default:
		log.Warn().Str("type", req.MessageType.String()).Msg("unsupported DHCP message type")
		return
	}

	if err != nil {
		e.metrics.IncError("handler")
		log.Error().Err(err).Str("type", req.MessageType.String()).Str("mac", req.ClientMAC.String()).Msg("failed to handle DHCP request")
		return
	}
	if resp == nil {
		return
	}

	target := net.Addr(broadcastAddr)
	if unicast {
		target = peer
	}

	if _, err := conn.WriteTo(resp, target); err != nil {
		e.metrics.IncError("socket")
		log.Error().Err(err).Msg("failed to send DHCP response")
	}
}

// nak records the NAK in history and builds its wire bytes.
func (h *handler) nak(ctx context.Context, req *codec.Request, requestedIP net.IP) ([]byte, error) {
	if err := h.engine.store.NakLease(ctx, req.ClientMAC, requestedIP); err != nil {
		log.Error().Err(err).Str("mac", req.ClientMAC.String()).Msg("failed to record NAK history")
	}
	resp, err := codec.BuildNAK(req, h.engine.net.ServerIP)
	if err != nil {
		return nil, err
	}
	h.engine.counts.incResponse(dhcpv4.MessageTypeNak.String())
	return resp, nil
}

func (h *handler) replyParams(yourIP net.IP, msgType dhcpv4.MessageType) codec.ReplyParams {
	np := h.engine.net
	return codec.ReplyParams{
		MessageType:   msgType,
		YourIP:        yourIP,
		ServerIP:      np.ServerIP,
		SubnetMask:    np.SubnetMask,
		Router:        np.Gateway,
		DNSServers:    np.DNSServers,
		DomainName:    np.DomainName,
		LeaseDuration: np.LeaseTime,
	}
}

func (h *handler) handleDiscover(ctx context.Context, req *codec.Request, blocked bool) ([]byte, error) {
	e := h.engine

	if blocked {
		return h.nak(ctx, req, nil)
	}

	key := retrans.NewKey(req.TransactionID, req.ClientMAC, nil)
	if cached, ok := e.retrans.Get(key); ok {
		e.metrics.IncRetransmissionHit()
		return cached, nil
	}

	start := time.Now()
	ip, _, err := e.store.FindOrAllocate(ctx, req.ClientMAC, req.ClientID, e.net.Pool)
	e.metrics.ObserveAllocationDuration(time.Since(start))
	if errors.Is(err, dhcperr.ErrPoolExhausted) {
		log.Warn().Str("mac", req.ClientMAC.String()).Msg("pool exhausted, no OFFER sent")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := codec.BuildReply(req, h.replyParams(ip, dhcpv4.MessageTypeOffer))
	if err != nil {
		return nil, err
	}

	e.retrans.Put(key, resp)
	e.counts.incResponse(dhcpv4.MessageTypeOffer.String())
	return resp, nil
}

func (h *handler) handleRequest(ctx context.Context, req *codec.Request, existing *store.Lease, blocked bool) ([]byte, error) {
	e := h.engine

	requestedIP := req.RequestedIP
	if requestedIP == nil || requestedIP.IsUnspecified() {
		requestedIP = req.ClientIP
	}
	if requestedIP == nil || requestedIP.IsUnspecified() {
		return h.nak(ctx, req, nil)
	}

	key := retrans.NewKey(req.TransactionID, req.ClientMAC, requestedIP)
	if cached, ok := e.retrans.Get(key); ok {
		e.metrics.IncRetransmissionHit()
		return cached, nil
	}

	if blocked {
		return h.nak(ctx, req, requestedIP)
	}

	if existing != nil && existing.LeaseType == store.LeaseTypeStatic {
		if existing.IP != nil && !existing.IP.Equal(requestedIP) {
			return h.nak(ctx, req, requestedIP)
		}
	} else {
		reqIPInt, convErr := addr.ToInt(requestedIP)
		if convErr != nil || !e.net.Pool.Contains(reqIPInt) {
			return h.nak(ctx, req, requestedIP)
		}
		holder, err := e.store.GetByIP(ctx, requestedIP)
		if err != nil {
			return nil, err
		}
		if holder != nil && holder.MAC.String() != req.ClientMAC.String() {
			return h.nak(ctx, req, requestedIP)
		}
	}

	if err := h.commitRequest(ctx, req, existing, requestedIP); err != nil {
		return nil, err
	}

	resp, err := codec.BuildReply(req, h.replyParams(requestedIP, dhcpv4.MessageTypeAck))
	if err != nil {
		return nil, err
	}

	e.retrans.Put(key, resp)
	e.counts.incResponse(dhcpv4.MessageTypeAck.String())
	return resp, nil
}

// commitRequest implements the REQUEST commit rule: new mac creates a
// lease; an existing DYNAMIC lease with the identical ip renews; otherwise
// the lease's ip and hostname are updated to match the request. The lease
// type is never changed here.
func (h *handler) commitRequest(ctx context.Context, req *codec.Request, existing *store.Lease, requestedIP net.IP) error {
	e := h.engine

	if existing == nil {
		_, err := e.store.CreateLease(ctx, req.ClientMAC, requestedIP, req.Hostname, req.ClientID,
			store.LeaseTypeDynamic, store.CreateChannelDHCPRequest, store.ChangeChannelDHCP, e.net.LeaseTime)
		return err
	}

	sameIP := existing.IP != nil && existing.IP.Equal(requestedIP)
	if sameIP && existing.LeaseType == store.LeaseTypeDynamic {
		return e.store.RenewLease(ctx, req.ClientMAC, e.net.LeaseTime)
	}

	if !sameIP {
		if err := e.store.UpdateIP(ctx, req.ClientMAC, requestedIP, req.ClientID, store.ChangeChannelDHCP, e.net.LeaseTime); err != nil {
			return err
		}
	}
	if req.Hostname != "" && req.Hostname != existing.Hostname {
		if err := e.store.UpdateHostname(ctx, req.ClientMAC, req.Hostname, store.ChangeChannelDHCP); err != nil {
			return err
		}
	}
	return nil
}

// handleDecline implements spec.md §4.4's DECLINE rule: decline_lease
// reclaims the bad address and tries to reallocate; a successful
// reallocation is committed and acknowledged with an ACK, a pool-exhausted
// reallocation is logged and silently dropped.
func (h *handler) handleDecline(ctx context.Context, req *codec.Request) ([]byte, error) {
	e := h.engine

	declinedIP := req.RequestedIP
	if declinedIP == nil {
		declinedIP = req.ClientIP
	}

	newIP, err := e.store.DeclineLease(ctx, req.ClientMAC, declinedIP, e.net.Pool, e.net.LeaseTime)
	if err != nil {
		log.Error().Err(err).Str("mac", req.ClientMAC.String()).Msg("failed to process DECLINE")
		return nil, err
	}
	if newIP == nil {
		log.Warn().Str("mac", req.ClientMAC.String()).Msg("DECLINE processed, pool exhausted, no reallocation")
		return nil, nil
	}

	resp, err := codec.BuildReply(req, h.replyParams(newIP, dhcpv4.MessageTypeAck))
	if err != nil {
		return nil, err
	}
	e.counts.incResponse(dhcpv4.MessageTypeAck.String())
	return resp, nil
}

func (h *handler) handleRelease(ctx context.Context, req *codec.Request, blocked bool) {
	if blocked {
		return
	}
	if err := h.engine.store.MarkLeaseExpired(ctx, req.ClientMAC, req.ClientIP); err != nil {
		log.Error().Err(err).Str("mac", req.ClientMAC.String()).Msg("failed to process RELEASE")
	}
}

func (h *handler) handleInform(ctx context.Context, req *codec.Request) ([]byte, error) {
	e := h.engine

	key := retrans.NewKey(req.TransactionID, req.ClientMAC, req.ClientIP)
	if cached, ok := e.retrans.Get(key); ok {
		e.metrics.IncRetransmissionHit()
		return cached, nil
	}

	if err := e.store.InformLease(ctx, req.ClientMAC, req.ClientIP); err != nil {
		return nil, err
	}

	resp, err := codec.BuildReply(req, h.replyParams(net.IPv4zero, dhcpv4.MessageTypeAck))
	if err != nil {
		return nil, err
	}

	e.retrans.Put(key, resp)
	e.counts.incResponse(dhcpv4.MessageTypeAck.String())
	return resp, nil
}
