package simulator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// AgentStub impersonates the local signing agent over a websocket endpoint.
// Its behaviour is scripted through the mode so client-side handling of every
// agent outcome can be exercised without real certificate hardware.
type AgentStub struct {
	mode   string
	logger *logrus.Logger
}

// Stub modes.
const (
	AgentModeOK         = "ok"          // structured success with a signature
	AgentModeReject     = "reject"      // structured failure, certificate missing
	AgentModeBareString = "bare-string" // legacy reply, raw string instead of an envelope
	AgentModeSilent     = "silent"      // accepts the request and never answers
)

type signRequest struct {
	DataToSign string `json:"DataToSign"`
	Culture    string `json:"Culture"`
}

type signReply struct {
	Succeeded bool   `json:"Succeeded"`
	Data      string `json:"Data"`
}

// NewAgentStub builds a stub answering in the given mode.
func NewAgentStub(mode string, logger *logrus.Logger) *AgentStub {
	if mode == "" {
		mode = AgentModeOK
	}
	return &AgentStub{mode: mode, logger: logger}
}

// ServeHTTP upgrades the connection and answers one signing request.
func (s *AgentStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("Error accepting agent connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "agent closing")

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req signRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		s.logger.WithError(err).Warn("Error reading signing request")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"mode":    s.mode,
		"culture": req.Culture,
	}).Info("Signing request received")

	switch s.mode {
	case AgentModeReject:
		err = wsjson.Write(ctx, conn, signReply{Succeeded: false, Data: "certificate not found"})
	case AgentModeBareString:
		err = wsjson.Write(ctx, conn, sign(req.DataToSign))
	case AgentModeSilent:
		<-ctx.Done()
		return
	default:
		err = wsjson.Write(ctx, conn, signReply{Succeeded: true, Data: sign(req.DataToSign)})
	}
	if err != nil {
		s.logger.WithError(err).Warn("Error writing signing reply")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// sign produces a deterministic stand-in signature for the payload.
func sign(data string) string {
	sum := sha256.Sum256([]byte(data))
	return "SIG-" + hex.EncodeToString(sum[:16])
}
