// Package nid implements node identity (spec sec 3.1): the
// "<serviceId>:<serverId>" string every node uses as its ZeroMQ router
// socket identity and mesh routing key.
package nid

import (
	"fmt"
	"strconv"
	"strings"
)

// NID is a node's routing identity, "<serviceId>:<serverId>".
type NID string

// Of builds a NID from its parts.
func Of(serviceId uint16, serverId uint32) NID {
	return NID(fmt.Sprintf("%d:%d", serviceId, serverId))
}

// Parse splits a NID back into its serviceId/serverId parts.
func Parse(s string) (serviceId uint16, serverId uint32, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("nid: malformed %q", s)
	}
	sid, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("nid: malformed serviceId in %q: %w", s, err)
	}
	srv, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("nid: malformed serverId in %q: %w", s, err)
	}
	return uint16(sid), uint32(srv), nil
}

// ServiceId returns the serviceId component, or 0 if n is malformed.
func (n NID) ServiceId() uint16 {
	sid, _, _ := Parse(string(n))
	return sid
}

// Bytes returns the NID as the raw bytes used for the ZeroMQ socket
// identity / wire target frame (spec sec 4.1).
func (n NID) Bytes() []byte { return []byte(n) }

func (n NID) String() string { return string(n) }
