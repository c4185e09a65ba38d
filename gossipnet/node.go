// Package gossipnet is a thin libp2p-pubsub wrapper carrying the hub's
// primary gossip topic (§6): new messages reach this replica either by
// direct RPC submission or by broadcast on this topic. The envelope carries
// messages and ContactInfo only; IdRegistry events are not gossiped and
// arrive through RPC submission alone.
// Grounded on the teacher's network/p2p/libp2pNode.go Subscribe/Publish
// shape, narrowed to a single well-known topic instead of a full identity-
// and-protocol-negotiating overlay — peer discovery and multi-topic
// routing are out of scope (§1 Non-goals).
package gossipnet

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	multiaddr "github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack"

	"github.com/sagar-a16z/hub/model"
)

// PrimaryTopic is the single gossip topic every hub node joins.
const PrimaryTopic = "hub-primary"

// ContactInfo is gossiped so peers can find each other's RPC endpoint
// without a separate discovery protocol.
type ContactInfo struct {
	PeerId  string
	RpcAddr string
	Version string
}

// GossipMessage is the envelope published on PrimaryTopic. Exactly one of
// Message or ContactInfo is set.
type GossipMessage struct {
	Message     *wireMessage `msgpack:"message,omitempty"`
	ContactInfo *ContactInfo `msgpack:"contact_info,omitempty"`
}

// wireMessage mirrors model.Message in a form msgpack can round-trip
// without custom marshalers; gossipnet carries gossiped hub messages
// opaquely and leaves canonical encoding/decoding to storage.codec, so this
// intentionally only transports the fields needed for the engine to
// re-validate and merge: callers pass whole model.Message values in, and
// Decode hands whole model.Message values back out.
type wireMessage struct {
	Raw []byte
}

// Handler processes a gossiped message. Implemented by engine.Engine.
type Handler interface {
	Submit(msg *model.Message) error
}

type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	log    zerolog.Logger

	encode func(*model.Message) ([]byte, error)
	decode func([]byte) (*model.Message, error)
}

// Option configures message encoding; callers typically pass
// storage.EncodeMessage/DecodeMessage so the wire format matches the KV
// row codec, but gossipnet does not import storage directly to keep the
// two concerns (transport, persistence) decoupled.
type Option func(*Node)

func WithCodec(encode func(*model.Message) ([]byte, error), decode func([]byte) (*model.Message, error)) Option {
	return func(n *Node) { n.encode, n.decode = encode, decode }
}

// New creates a libp2p host listening on listenAddr, joins PrimaryTopic,
// and returns a Node ready to Publish/Run.
func New(ctx context.Context, listenAddr string, key crypto.PrivKey, log zerolog.Logger, opts ...Option) (*Node, error) {
	maddr, err := multiaddr.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("could not parse listen address (%s): %w", listenAddr, err)
	}
	h, err := libp2p.New(libp2p.ListenAddrs(maddr), libp2p.Identity(key))
	if err != nil {
		return nil, fmt.Errorf("could not create libp2p host: %w", err)
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("could not create gossipsub: %w", err)
	}
	topic, err := ps.Join(PrimaryTopic)
	if err != nil {
		return nil, fmt.Errorf("could not join topic (%s): %w", PrimaryTopic, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("could not subscribe to topic (%s): %w", PrimaryTopic, err)
	}

	n := &Node{host: h, pubsub: ps, topic: topic, sub: sub, log: log.With().Str("component", "gossipnet").Logger()}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Node) ID() peer.ID { return n.host.ID() }

func (n *Node) Close() error {
	n.sub.Cancel()
	if err := n.topic.Close(); err != nil {
		return fmt.Errorf("could not close topic (%s): %w", PrimaryTopic, err)
	}
	return n.host.Close()
}

// PublishMessage broadcasts msg to every peer subscribed to PrimaryTopic.
func (n *Node) PublishMessage(ctx context.Context, msg *model.Message) error {
	raw, err := n.encode(msg)
	if err != nil {
		return fmt.Errorf("could not encode message for gossip: %w", err)
	}
	env, err := msgpack.Marshal(GossipMessage{Message: &wireMessage{Raw: raw}})
	if err != nil {
		return fmt.Errorf("could not encode gossip envelope: %w", err)
	}
	if err := n.topic.Publish(ctx, env); err != nil {
		return fmt.Errorf("could not publish to topic (%s): %w", PrimaryTopic, err)
	}
	return nil
}

// PublishContactInfo broadcasts this replica's RPC endpoint so peers can
// discover where to pull from it.
func (n *Node) PublishContactInfo(ctx context.Context, info ContactInfo) error {
	env, err := msgpack.Marshal(GossipMessage{ContactInfo: &info})
	if err != nil {
		return fmt.Errorf("could not encode contact info: %w", err)
	}
	return n.topic.Publish(ctx, env)
}

// Run reads gossiped messages until ctx is canceled, handing each message
// to handler. A message the handler rejects is logged and dropped; a gossip
// network applies no retry or back-pressure beyond libp2p's own delivery
// guarantees (§5).
func (n *Node) Run(ctx context.Context, handler Handler, onContact func(ContactInfo)) error {
	for {
		raw, err := n.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gossip subscription ended: %w", err)
		}
		if raw.ReceivedFrom == n.host.ID() {
			continue
		}
		var env GossipMessage
		if err := msgpack.Unmarshal(raw.Data, &env); err != nil {
			n.log.Warn().Err(err).Msg("dropping malformed gossip envelope")
			continue
		}
		switch {
		case env.Message != nil:
			msg, err := n.decode(env.Message.Raw)
			if err != nil {
				n.log.Warn().Err(err).Msg("dropping unparsable gossiped message")
				continue
			}
			if err := handler.Submit(msg); err != nil {
				n.log.Debug().Err(err).Str("fid", msg.Fid.String()).Msg("rejected gossiped message")
			}
		case env.ContactInfo != nil && onContact != nil:
			onContact(*env.ContactInfo)
		}
	}
}
