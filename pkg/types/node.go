package types

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strconv"
	"strings"
)

// Protocol is the URL scheme used to reach a gateway node.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Node identifies a single gateway endpoint.
type Node struct {
	Host     string   `json:"host" yaml:"host"`
	Port     int      `json:"port" yaml:"port"`
	Protocol Protocol `json:"protocol" yaml:"protocol"`
}

// BootstrapNode is the well-known gateway that heads every NodeSet.
var BootstrapNode = Node{Host: "arweave.net", Port: 443, Protocol: ProtocolHTTPS}

// ParseNode converts a directory entry of the form host[:port] into a Node.
// Dotted-decimal IPv4 hosts are reached over plain http on port 80, anything
// else over https on port 443. An explicit port only replaces the default port;
// an empty one after the colon keeps the default.
func ParseNode(addr string) (Node, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Node{}, fmt.Errorf("empty node address")
	}

	host, portText, hasPort := strings.Cut(addr, ":")
	if host == "" {
		return Node{}, fmt.Errorf("node address %q has no host", addr)
	}

	node := Node{Host: host, Protocol: ProtocolHTTPS, Port: 443}
	if isIPv4(host) {
		node.Protocol = ProtocolHTTP
		node.Port = 80
	}

	if hasPort && portText != "" {
		port, err := strconv.Atoi(portText)
		if err != nil {
			return Node{}, fmt.Errorf("node address %q: invalid port: %w", addr, err)
		}
		if port < 1 || port > 65535 {
			return Node{}, fmt.Errorf("node address %q: port %d out of range", addr, port)
		}
		node.Port = port
	}
	return node, nil
}

func isIPv4(host string) bool {
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return ip.Is4()
}

// URL returns the root endpoint of the node.
func (n Node) URL() string {
	return fmt.Sprintf("%s://%s:%d", n.Protocol, n.Host, n.Port)
}

func (n Node) String() string {
	return fmt.Sprintf("%s:%d/%s", n.Host, n.Port, n.Protocol)
}

// NodeSet is an ordered, read-only sequence of nodes. A NodeSet handed out by
// the registry is shared between goroutines and must not be modified.
type NodeSet []Node

// Pick returns one node chosen uniformly at random. The second result is false
// only for an empty set.
func (s NodeSet) Pick(r *rand.Rand) (Node, bool) {
	if len(s) == 0 {
		return Node{}, false
	}
	if r == nil {
		return s[rand.IntN(len(s))], true
	}
	return s[r.IntN(len(s))], true
}

// Clone returns a copy that the caller may modify freely.
func (s NodeSet) Clone() NodeSet {
	out := make(NodeSet, len(s))
	copy(out, s)
	return out
}
