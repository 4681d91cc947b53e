package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// requestTimeout bounds every request made to a peer.
const requestTimeout = 10 * time.Second

// Client broadcasts to the known peers of a node over HTTP. Broadcast blocks
// are delivered to the local member first so a miner commits its own block
// through the same path a peer block takes.
type Client struct {
	host      string
	peers     *peer.PeerSet
	http      http.Client
	evHandler database.EventHandler

	mu    sync.RWMutex
	local Member
}

// NewClient constructs a client for the node listening on host.
func NewClient(host string, peers *peer.PeerSet, evHandler database.EventHandler) *Client {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Client{
		host:      host,
		peers:     peers,
		http:      http.Client{Timeout: requestTimeout},
		evHandler: ev,
	}
}

// Attach sets the member that represents this node.
func (c *Client) Attach(local Member) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.local = local
}

// Host returns the host of this node.
func (c *Client) Host() string {
	return c.host
}

// KnownPeers returns the peers this node talks to, excluding itself.
func (c *Client) KnownPeers() []peer.Peer {
	return c.peers.Copy(c.host)
}

// AddPeer adds the peer to the known set. It reports false if the peer was
// already known or is this node.
func (c *Client) AddPeer(pr peer.Peer) bool {
	if pr.Match(c.host) {
		return false
	}
	return c.peers.Add(pr)
}

// BroadcastBlock delivers the block to the local member and then to every
// known peer. A block the local member rejects is not sent to the peers.
func (c *Client) BroadcastBlock(block *database.Block) error {
	c.evHandler("network: BroadcastBlock: started: blk[%s]", block.ID)
	defer c.evHandler("network: BroadcastBlock: completed: blk[%s]", block.ID)

	if local := c.member(); local != nil {
		if err := local.ReceiveBlock(block); err != nil {
			return fmt.Errorf("local: %w", err)
		}
	}

	for _, pr := range c.KnownPeers() {
		url := fmt.Sprintf("%s/block/next", fmt.Sprintf(baseURL, pr.Host))
		if err := c.send(context.Background(), http.MethodPost, url, block, nil); err != nil {
			c.evHandler("network: BroadcastBlock: peer[%s]: WARNING: %s", pr, err)
			continue
		}
		c.evHandler("network: BroadcastBlock: sent to peer[%s]", pr)
	}

	return nil
}

// BroadcastTransaction shares the transaction with the known peers.
func (c *Client) BroadcastTransaction(tx database.Tx) error {
	c.evHandler("network: BroadcastTransaction: started: tx[%s]", tx)
	defer c.evHandler("network: BroadcastTransaction: completed: tx[%s]", tx)

	for _, pr := range c.KnownPeers() {
		url := fmt.Sprintf("%s/tx/submit", fmt.Sprintf(baseURL, pr.Host))
		if err := c.send(context.Background(), http.MethodPost, url, tx, nil); err != nil {
			c.evHandler("network: BroadcastTransaction: peer[%s]: WARNING: %s", pr, err)
		}
	}

	return nil
}

// Status asks the peer for its status.
func (c *Client) Status(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := c.send(ctx, http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, err
	}

	c.evHandler("network: Status: peer[%s]: ledger-size[%d]: peers[%v]", pr, ps.LedgerSize, ps.KnownPeers)

	return ps, nil
}

// Ledger asks the peer for its complete ledger.
func (c *Client) Ledger(ctx context.Context, pr peer.Peer) (*database.Blockchain, error) {
	url := fmt.Sprintf("%s/ledger", fmt.Sprintf(baseURL, pr.Host))

	var bc database.Blockchain
	if err := c.send(ctx, http.MethodGet, url, nil, &bc); err != nil {
		return nil, err
	}

	return &bc, nil
}

// Announce tells the peer this node is available.
func (c *Client) Announce(ctx context.Context, pr peer.Peer) error {
	url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))
	return c.send(ctx, http.MethodPost, url, peer.New(c.host), nil)
}

// Sync refreshes the known peers from every peer's status and adopts the
// longest ledger found when it is longer than the local one.
func (c *Client) Sync(ctx context.Context) error {
	c.evHandler("network: Sync: started")
	defer c.evHandler("network: Sync: completed")

	local := c.member()
	if local == nil {
		return errors.New("no local member attached")
	}

	localLedger := local.Ledger()

	var best peer.Peer
	var bestSize int
	for _, pr := range c.KnownPeers() {
		ps, err := c.Status(ctx, pr)
		if err != nil {
			c.evHandler("network: Sync: status: peer[%s]: ERROR: %s", pr, err)
			c.peers.Remove(pr)
			continue
		}

		for _, known := range ps.KnownPeers {
			if c.AddPeer(known) {
				c.evHandler("network: Sync: adding peer[%s]", known)
			}
		}

		if localLedger.Size() > 0 && ps.GenesisCreator != localLedger.GenesisCreator() {
			c.evHandler("network: Sync: peer[%s]: different genesis creator", pr)
			continue
		}

		if ps.LedgerSize > bestSize {
			best, bestSize = pr, ps.LedgerSize
		}
	}

	for _, pr := range c.KnownPeers() {
		if err := c.Announce(ctx, pr); err != nil {
			c.evHandler("network: Sync: announce: peer[%s]: ERROR: %s", pr, err)
		}
	}

	if bestSize <= localLedger.Size() {
		return nil
	}

	c.evHandler("network: Sync: peer[%s]: pulling ledger size[%d]", best, bestSize)

	ledger, err := c.Ledger(ctx, best)
	if err != nil {
		return fmt.Errorf("ledger: %s: %w", best, err)
	}

	if err := local.ReceiveLedger(ledger); err != nil {
		return fmt.Errorf("adopt: %s: %w", best, err)
	}

	return nil
}

func (c *Client) member() Member {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.local
}

// send is a helper function to send an HTTP request to a node.
func (c *Client) send(ctx context.Context, method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return fmt.Errorf("status[%d]: %s", resp.StatusCode, string(msg))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
