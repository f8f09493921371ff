// Package codec parses and builds BOOTP/DHCP wire frames on top of
// insomniacslk/dhcp, restricted to the option set the engine actually
// speaks.
package codec

import (
	"fmt"
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"

	"github.com/sashakarcz/irondhcp/internal/dhcperr"
)

// minPacketLen is the shortest legal BOOTP frame: fixed header plus magic
// cookie, before any options.
const minPacketLen = 240

// Request is the subset of an inbound DHCP packet the engine consumes.
type Request struct {
	Raw           *dhcpv4.DHCPv4
	MessageType   dhcpv4.MessageType
	TransactionID uint32
	ClientMAC     net.HardwareAddr
	ClientIP      net.IP // ciaddr
	GatewayIP     net.IP // giaddr
	RequestedIP   net.IP // option 50
	Hostname      string // option 12
	ClientID      string // option 61
}

// Parse decodes raw bytes into a Request, consuming only options 53, 50,
// 12 and 61 per the engine's needs. Packets shorter than 240 bytes are
// rejected.
func Parse(raw []byte) (*Request, error) {
	if len(raw) < minPacketLen {
		return nil, fmt.Errorf("%w: packet too short (%d bytes)", dhcperr.ErrCodec, len(raw))
	}

	pkt, err := dhcpv4.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dhcperr.ErrCodec, err)
	}

	req := &Request{
		Raw:           pkt,
		MessageType:   pkt.MessageType(),
		TransactionID: xidToUint32(pkt.TransactionID),
		ClientMAC:     pkt.ClientHWAddr,
		ClientIP:      pkt.ClientIPAddr,
		GatewayIP:     pkt.GatewayIPAddr,
		Hostname:      pkt.HostName(),
	}

	if opt := pkt.Options.Get(dhcpv4.OptionRequestedIPAddress); opt != nil {
		req.RequestedIP = net.IP(opt)
	}
	if opt := pkt.Options.Get(dhcpv4.OptionClientIdentifier); opt != nil {
		req.ClientID = string(opt)
	}

	return req, nil
}

func xidToUint32(xid dhcpv4.TransactionID) uint32 {
	return uint32(xid[0])<<24 | uint32(xid[1])<<16 | uint32(xid[2])<<8 | uint32(xid[3])
}

// FromPacket adapts an already-parsed *dhcpv4.DHCPv4 (as server4's handler
// callback receives it) into a Request, without re-checking wire length.
func FromPacket(pkt *dhcpv4.DHCPv4) *Request {
	req := &Request{
		Raw:           pkt,
		MessageType:   pkt.MessageType(),
		TransactionID: xidToUint32(pkt.TransactionID),
		ClientMAC:     pkt.ClientHWAddr,
		ClientIP:      pkt.ClientIPAddr,
		GatewayIP:     pkt.GatewayIPAddr,
		Hostname:      pkt.HostName(),
	}

	if opt := pkt.Options.Get(dhcpv4.OptionRequestedIPAddress); opt != nil {
		req.RequestedIP = net.IP(opt)
	}
	if opt := pkt.Options.Get(dhcpv4.OptionClientIdentifier); opt != nil {
		req.ClientID = string(opt)
	}

	return req
}

// ReplyParams is everything needed to build an OFFER or ACK.
type ReplyParams struct {
	MessageType   dhcpv4.MessageType // Offer or Ack
	YourIP        net.IP
	ServerIP      net.IP
	SubnetMask    net.IPMask
	Router        net.IP
	DNSServers    []net.IP
	DomainName    string
	LeaseDuration time.Duration
}

// BuildReply constructs an OFFER or ACK for req per spec.md §4.3: options
// 53, 54, 1, 3, 6, 51, 58 (T1 = lease/2), 59 (T2 = lease*7/8), 15, then
// 0xFF end.
func BuildReply(req *Request, params ReplyParams) ([]byte, error) {
	resp, err := dhcpv4.NewReplyFromRequest(req.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dhcperr.ErrCodec, err)
	}

	resp.UpdateOption(dhcpv4.OptMessageType(params.MessageType))
	resp.YourIPAddr = params.YourIP
	resp.ServerIPAddr = params.ServerIP
	resp.UpdateOption(dhcpv4.OptServerIdentifier(params.ServerIP))

	if params.SubnetMask != nil {
		resp.UpdateOption(dhcpv4.OptSubnetMask(params.SubnetMask))
	}
	if params.Router != nil {
		resp.UpdateOption(dhcpv4.OptRouter(params.Router))
	}
	if len(params.DNSServers) > 0 {
		resp.UpdateOption(dhcpv4.OptDNS(params.DNSServers...))
	}
	if params.DomainName != "" {
		resp.UpdateOption(dhcpv4.OptDomainName(params.DomainName))
	}

	if params.LeaseDuration > 0 {
		resp.UpdateOption(dhcpv4.OptIPAddressLeaseTime(params.LeaseDuration))
		t1 := params.LeaseDuration / 2
		t2 := (params.LeaseDuration * 7) / 8
		resp.UpdateOption(dhcpv4.OptRenewTimeValue(t1))
		resp.UpdateOption(dhcpv4.OptRebindingTimeValue(t2))
	}

	return resp.ToBytes(), nil
}

// BuildNAK constructs a DHCPNAK per spec.md §4.4: option 53 = 6, yiaddr
// zeroed, no other address-bearing options.
func BuildNAK(req *Request, serverIP net.IP) ([]byte, error) {
	resp, err := dhcpv4.NewReplyFromRequest(req.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dhcperr.ErrCodec, err)
	}

	resp.UpdateOption(dhcpv4.OptMessageType(dhcpv4.MessageTypeNak))
	resp.YourIPAddr = net.IPv4zero
	resp.UpdateOption(dhcpv4.OptServerIdentifier(serverIP))

	return resp.ToBytes(), nil
}
