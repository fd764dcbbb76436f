package node

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agenc-io/agenc-registry/pkg/chain"
	"github.com/agenc-io/agenc-registry/pkg/config"
	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/p2p"
)

const compactInterval = time.Hour

// Node ties the ledger, chain and gossip network into one process.
type Node struct {
	cfg     *config.Config
	ledger  *ledger.Ledger
	chain   *chain.Chain
	network *p2p.Network
	logger  *zap.Logger

	unsubscribe func()
}

func New(cfg *config.Config, l *ledger.Ledger, logger *zap.Logger) (*Node, error) {
	network, err := p2p.NewNetwork(cfg)
	if err != nil {
		return nil, err
	}

	c := chain.New(l, logger.Named("chain"), chain.WithParams(chain.Params{
		ArbiterMinStake: cfg.ArbiterMinStake,
	}))

	return &Node{
		cfg:     cfg,
		ledger:  l,
		chain:   c,
		network: network,
		logger:  logger,
	}, nil
}

func (n *Node) Chain() *chain.Chain {
	return n.chain
}

func (n *Node) Network() *p2p.Network {
	return n.network
}

func (n *Node) Start(ctx context.Context) error {
	n.network.SetEventHandler(n.handleRemoteEvent)

	if err := n.network.Start(ctx); err != nil {
		return err
	}

	events, cancel := n.chain.Events().Subscribe()
	n.unsubscribe = cancel

	go n.pumpEvents(ctx, events)
	go n.maintenance(ctx)

	return nil
}

func (n *Node) Stop() error {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
	return n.network.Stop()
}

// pumpEvents forwards locally committed events to the gossip network.
func (n *Node) pumpEvents(ctx context.Context, events <-chan chain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := n.network.BroadcastEvent(ctx, ev); err != nil {
				n.logger.Warn("event broadcast failed",
					zap.String("type", string(ev.Type)),
					zap.Error(err))
			}
		}
	}
}

// handleRemoteEvent surfaces events committed on peer nodes. The remote
// ledger is authoritative for its own accounts; we only log here.
func (n *Node) handleRemoteEvent(msg p2p.Message) {
	n.logger.Info("remote registry event",
		zap.String("type", string(msg.Event.Type)),
		zap.String("account", msg.Event.Account.String()),
		zap.String("node", msg.Node),
		zap.String("peer", msg.From.String()))
}

// maintenance periodically compacts the ledger backend.
func (n *Node) maintenance(ctx context.Context) {
	ticker := time.NewTicker(compactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.ledger.Compact(); err != nil {
				n.logger.Warn("ledger compaction failed", zap.Error(err))
			}
		}
	}
}
