// Package agent manages the correlated round-trip with the signing agent, a
// helper process listening on a fixed loopback port. Each signing round opens
// one message-oriented duplex connection, sends a single request and waits for
// exactly one reply, bounded by a hard timeout.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/hypernova-labs/dgi-console/internal/config"
	"github.com/hypernova-labs/dgi-console/internal/models"
	"github.com/sirupsen/logrus"
)

// Availability is the probed state of the agent, reported for UI purposes.
type Availability string

const (
	// AvailabilityChecking is reported while a probe is in flight.
	AvailabilityChecking      Availability = "checking"
	AvailabilityConnected     Availability = "connected"
	AvailabilityDisconnected  Availability = "disconnected"
	AvailabilityNotApplicable Availability = "not-applicable"
)

// SignRequest is the single message sent to the agent on connect.
type SignRequest struct {
	DataToSign string `json:"DataToSign"`
	Culture    string `json:"Culture"`
}

// structuredReply is the agent's preferred response format. Succeeded is a
// pointer so a bare-string reply is not mistaken for a structured one.
type structuredReply struct {
	Succeeded *bool  `json:"Succeeded"`
	Data      string `json:"Data"`
}

// Client performs signing rounds against the local agent. At most one round
// is in flight per document; a concurrent request is rejected, never queued.
type Client struct {
	addr         string
	signTimeout  time.Duration
	probeTimeout time.Duration
	logger       *logrus.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewClient builds an agent client from configuration.
func NewClient(cfg config.AgentConfig, logger *logrus.Logger) *Client {
	return &Client{
		addr:         cfg.Addr,
		signTimeout:  cfg.SignTimeout,
		probeTimeout: cfg.ProbeTimeout,
		logger:       logger,
		inflight:     make(map[string]struct{}),
	}
}

func (c *Client) url() string {
	return "ws://" + c.addr + "/"
}

// acquire reserves the signing slot for a document.
func (c *Client) acquire(ref models.Ref) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[ref.Key()]; busy {
		return models.ErrSignInFlight
	}
	c.inflight[ref.Key()] = struct{}{}
	return nil
}

func (c *Client) release(ref models.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, ref.Key())
}

// Sign obtains a signature over the server-provided payload. Failures are
// not retried automatically.
func (c *Client) Sign(ctx context.Context, ref models.Ref, dataToSign, culture string) (string, error) {
	if err := c.acquire(ref); err != nil {
		return "", err
	}
	defer c.release(ref)

	ctx, cancel := context.WithTimeout(ctx, c.signTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url(), nil)
	if err != nil {
		c.logger.WithError(err).WithField("agent_addr", c.addr).Warn("Could not reach signing agent")
		return "", &models.AgentError{Kind: models.AgentUnavailable, Message: "connection failed", Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, conn, SignRequest{DataToSign: dataToSign, Culture: culture}); err != nil {
		return "", c.classifyTransport(ctx, err)
	}

	var raw json.RawMessage
	if err := wsjson.Read(ctx, conn, &raw); err != nil {
		return "", c.classifyTransport(ctx, err)
	}

	return c.interpretReply(ref, raw)
}

// classifyTransport distinguishes an exceeded deadline from an unclean close
// before any response arrived.
func (c *Client) classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &models.AgentError{Kind: models.AgentTimeout, Message: "no response from agent", Err: err}
	}
	return &models.AgentError{Kind: models.AgentUnavailable, Message: "connection closed before a response", Err: err}
}

// interpretReply decodes the single agent reply. The structured format is
// preferred; a bare string is accepted in compatibility mode, where a reply
// containing "error" (case-insensitive) counts as a failure. The heuristic is
// ambiguous for signatures that legitimately contain that substring, so the
// compatibility path is always logged.
func (c *Client) interpretReply(ref models.Ref, raw json.RawMessage) (string, error) {
	var reply structuredReply
	if err := json.Unmarshal(raw, &reply); err == nil && reply.Succeeded != nil {
		if *reply.Succeeded {
			return reply.Data, nil
		}
		return "", &models.AgentError{Kind: models.AgentRejected, Message: reply.Data}
	}

	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		c.logger.WithFields(logrus.Fields{
			"document":     ref.Key(),
			"reply_length": len(bare),
		}).Warn("Signing agent answered with a bare string; compatibility mode engaged")
		if strings.Contains(strings.ToLower(bare), "error") {
			return "", &models.AgentError{Kind: models.AgentRejected, Message: bare}
		}
		return bare, nil
	}

	return "", &models.AgentError{Kind: models.AgentRejected, Message: "unrecognized agent reply"}
}

// Probe reports agent availability with a short open-then-close round.
// Probing only applies to drafts; any other status is not applicable.
func (c *Client) Probe(ctx context.Context, status models.Status) Availability {
	if status != models.StatusDraft {
		return AvailabilityNotApplicable
	}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url(), nil)
	if err != nil {
		return AvailabilityDisconnected
	}
	_ = conn.Close(websocket.StatusNormalClosure, "probe")
	return AvailabilityConnected
}
