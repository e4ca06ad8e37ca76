package state

import (
	"net"
	"net/netip"
	"slices"

	"github.com/cilium/cilium/pkg/ip"
)

type prefixPool struct {
	Range netip.Prefix
	Bits  int
}

// allocation pools, tried in order
var prefixPools = []prefixPool{
	{netip.MustParsePrefix("10.0.0.0/8"), 16},
	{netip.MustParsePrefix("172.16.0.0/12"), 24},
	{netip.MustParsePrefix("192.168.0.0/16"), 28},
	{netip.MustParsePrefix("100.64.0.0/10"), 32},
}

// AllocatePrefix picks a prefix for node id that overlaps none of existing.
// 10.<id>.0.0/16 is preferred, otherwise the lowest free block of the first
// pool with space left. The zero Prefix is returned when every pool is full.
func AllocatePrefix(id NodeId, existing []netip.Prefix) netip.Prefix {
	if id > 0 && id <= 255 {
		pfx := netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(id), 0, 0}), 16)
		if !Overlaps(pfx, existing) {
			return pfx
		}
	}
	for _, pool := range prefixPools {
		if pfx, ok := firstFree(pool, existing); ok {
			return pfx
		}
	}
	return netip.Prefix{}
}

func firstFree(pool prefixPool, existing []netip.Prefix) (netip.Prefix, bool) {
	free := fromIPNets(ip.RemoveCIDRs(toIPNets([]netip.Prefix{pool.Range}), toIPNets(existing)))
	slices.SortFunc(free, ComparePrefix)
	for _, f := range free {
		if f.Bits() <= pool.Bits {
			return netip.PrefixFrom(f.Addr(), pool.Bits), true
		}
	}
	return netip.Prefix{}, false
}

// Overlaps reports whether pfx overlaps any prefix in others.
func Overlaps(pfx netip.Prefix, others []netip.Prefix) bool {
	return slices.ContainsFunc(others, pfx.Overlaps)
}

func ComparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}

func toIPNets(prefixes []netip.Prefix) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(prefixes))
	for _, p := range prefixes {
		if p.IsValid() {
			nets = append(nets, &net.IPNet{
				IP:   p.Addr().AsSlice(),
				Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
			})
		}
	}
	return nets
}

func fromIPNets(nets []*net.IPNet) []netip.Prefix {
	output := make([]netip.Prefix, 0, len(nets))
	for _, n := range nets {
		if addr, ok := netip.AddrFromSlice(n.IP); ok {
			ones, _ := n.Mask.Size()
			output = append(output, netip.PrefixFrom(addr.Unmap(), ones))
		}
	}
	return output
}
