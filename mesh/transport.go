// Package mesh implements the inter-node transport (spec sec 4.1): a
// ZeroMQ ROUTER-ROUTER mesh where every node binds one ROUTER socket and
// connects out to every peer it discovers, exchanging 3-frame multipart
// messages (target NID, RouteHeader bytes, Payload bytes). Built on
// github.com/go-zeromq/zmq4, the pure-Go ZMQ implementation the
// HieraChain-Engine reference in the example pack uses for the same
// router-router shape.
package mesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/ulala-x/playhouse/logger"
	"github.com/ulala-x/playhouse/nid"
	"github.com/ulala-x/playhouse/route"
)

// Handler processes a RoutePacket received off the mesh. from is the
// ZeroMQ identity frame the socket attached to the message, never the
// (untrusted) header bytes (spec sec 4.1: "from is never read off the
// wire payload; it is the identity ZeroMQ attaches to the frame").
type Handler func(from nid.NID, pkt *route.RoutePacket)

// Transport owns one bound ROUTER socket and a set of outbound
// connections to peer NIDs. Connect/Disconnect are idempotent (spec sec
// 4.1). A Transport is safe for concurrent Send calls; Receive is driven
// by a single internal goroutine per spec's single-consumer-per-socket
// discipline for ZMQ sockets (zmq4 sockets are not goroutine-safe for
// concurrent Send+Recv).
type Transport struct {
	self nid.NID

	router zmq4.Socket

	mu        sync.Mutex
	peers     map[nid.NID]zmq4.Socket
	connected map[nid.NID]bool

	outbound chan outboundMsg

	handler Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type outboundMsg struct {
	target nid.NID
	header []byte
	body   []byte
}

// New builds a Transport for self, bound to bindEndpoint (e.g.
// "tcp://0.0.0.0:9000"). handler is invoked from the Transport's single
// receive goroutine for every inbound packet.
func New(self nid.NID, bindEndpoint string, handler Handler) (*Transport, error) {
	ctx, cancel := context.WithCancel(context.Background())

	router := zmq4.NewRouter(ctx, zmq4.WithID(zmq4.SocketIdentity(self.Bytes())))
	if err := router.Listen(bindEndpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("mesh: bind %s: %w", bindEndpoint, err)
	}

	t := &Transport{
		self:      self,
		router:    router,
		peers:     make(map[nid.NID]zmq4.Socket),
		connected: make(map[nid.NID]bool),
		outbound:  make(chan outboundMsg, 4096),
		handler:   handler,
		cancel:    cancel,
	}

	t.wg.Add(2)
	go t.receiveLoop(ctx)
	go t.sendLoop(ctx)

	return t, nil
}

// Connect opens an outbound DEALER-less path to peer at endpoint by
// registering it with the ROUTER socket's own connect (ZeroMQ ROUTER
// sockets can both bind and connect; connecting lets this node address
// peer by its NID identity on Send). Connect is idempotent (spec sec
// 4.2: "connecting to an already-connected peer is a no-op").
func (t *Transport) Connect(peer nid.NID, endpoint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected[peer] {
		return nil
	}
	if err := t.router.Dial(endpoint, zmq4.WithID(zmq4.SocketIdentity(t.self.Bytes()))); err != nil {
		return fmt.Errorf("mesh: connect %s at %s: %w", peer, endpoint, err)
	}
	t.connected[peer] = true
	logger.Log.Debugf("mesh: connected to %s at %s", peer, endpoint)
	return nil
}

// Disconnect forgets peer, if connected. Idempotent (spec sec 4.2).
//
// This only clears the bookkeeping entry; it does not tear down the
// shared ROUTER socket (every peer's outbound path rides the same
// socket via Dial, and zmq4's Socket exposes no call to undo a single
// prior Dial without closing the whole thing — see DESIGN.md). A
// disconnected peer that Send is still asked to reach will simply fail
// at the ZMQ layer with an unroutable-identity error rather than
// crossing the mesh.
func (t *Transport) Disconnect(peer nid.NID, endpoint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected[peer] {
		return nil
	}
	delete(t.connected, peer)
	logger.Log.Debugf("mesh: disconnected from %s", peer)
	return nil
}

// Send enqueues pkt for delivery to target, asynchronously (spec sec 4.1:
// sends never block the caller on network I/O). The RoutePacket's From
// field is never put on the wire; DecodeRouteHeader skips it and the
// receiving side fills it back in from the ZeroMQ identity frame.
func (t *Transport) Send(target nid.NID, pkt *route.RoutePacket) error {
	header := route.EncodeRouteHeader(&pkt.Header)
	body := pkt.Payload.Bytes()
	select {
	case t.outbound <- outboundMsg{target: target, header: header, body: body}:
		return nil
	default:
		return fmt.Errorf("mesh: outbound queue full, dropping to %s", target)
	}
}

func (t *Transport) sendLoop(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-t.outbound:
			msg := zmq4.NewMsgFrom([]byte(m.target), m.header, m.body)
			if err := t.router.Send(msg); err != nil {
				logger.Log.Errorf("mesh: send to %s failed: %v", m.target, err)
			}
		}
	}
}

func (t *Transport) receiveLoop(ctx context.Context) {
	defer t.wg.Done()
	for {
		msg, err := t.router.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Log.Warnf("mesh: recv error: %v", err)
				continue
			}
		}
		if len(msg.Frames) != 3 {
			logger.Log.Warnf("mesh: malformed frame, got %d parts", len(msg.Frames))
			continue
		}
		from := nid.NID(msg.Frames[0])
		header, err := route.DecodeRouteHeader(msg.Frames[1])
		if err != nil {
			logger.Log.Warnf("mesh: bad header from %s: %v", from, err)
			continue
		}
		header.From = string(from)
		pkt := &route.RoutePacket{
			Header:  *header,
			Payload: route.BorrowedPayload(msg.Frames[2]),
		}
		t.handler(from, pkt)
	}
}

// Close tears down the router socket and background loops.
func (t *Transport) Close() error {
	t.cancel()
	err := t.router.Close()
	t.wg.Wait()
	return err
}
