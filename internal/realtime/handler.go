// Package realtime serves the quiz websocket protocol.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/httpx"
	"github.com/gokatarajesh/livequiz/internal/lobby"
	"github.com/gokatarajesh/livequiz/internal/metrics"
	"github.com/gokatarajesh/livequiz/internal/play"
	"github.com/gokatarajesh/livequiz/internal/quiz"
	"github.com/gokatarajesh/livequiz/internal/session"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
	"github.com/gokatarajesh/livequiz/pkg/http/ws"
)

const messageTimeout = 10 * time.Second

// TokenValidator authenticates the token passed on the upgrade request.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// Controller is the subset of the session controller driven by host messages.
type Controller interface {
	Start(ctx context.Context, hostID string, quizID int64) (session.Outcome, error)
	Pause(ctx context.Context, hostID string, quizID int64) (session.Outcome, error)
	Resume(ctx context.Context, hostID string, quizID int64) (session.Outcome, error)
	Stop(ctx context.Context, hostID string, quizID int64) (session.Outcome, error)
	Advance(ctx context.Context, hostID string, quizID int64, direction int) (session.Outcome, error)
}

// Submitter grades participant answers.
type Submitter interface {
	Submit(ctx context.Context, sub play.Submission) (play.Feedback, error)
}

// QuizReader loads quizzes for waiting-room checks.
type QuizReader interface {
	GetQuiz(ctx context.Context, id int64) (quiz.Quiz, error)
}

// Options tunes the websocket endpoint.
type Options struct {
	MessageRate    float64
	MessageBurst   int
	SendQueueSize  int
	AllowedOrigins []string
}

// Handler upgrades connections and routes protocol messages.
type Handler struct {
	hub      *ws.Hub
	tokens   TokenValidator
	ctrl     Controller
	play     Submitter
	quizzes  QuizReader
	lobby    lobby.Lobby
	upgrader websocket.Upgrader
	opts     Options
	logger   zerolog.Logger

	mu       sync.Mutex
	presence map[presenceKey]int
}

type presenceKey struct {
	quizID        int64
	participantID string
}

// client is the per-connection state.
type client struct {
	conn    *ws.Connection
	claims  *jwt.Claims
	limiter *rate.Limiter

	mu      sync.Mutex
	waiting map[int64]struct{}
}

// NewHandler creates the websocket handler.
func NewHandler(
	hub *ws.Hub,
	tokens TokenValidator,
	ctrl Controller,
	submitter Submitter,
	quizzes QuizReader,
	room lobby.Lobby,
	opts Options,
	logger zerolog.Logger,
) *Handler {
	if opts.MessageRate <= 0 {
		opts.MessageRate = 10
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 20
	}
	h := &Handler{
		hub:      hub,
		tokens:   tokens,
		ctrl:     ctrl,
		play:     submitter,
		quizzes:  quizzes,
		lobby:    room,
		opts:     opts,
		logger:   logger.With().Str("component", "realtime").Logger(),
		presence: make(map[presenceKey]int),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     originChecker(opts.AllowedOrigins),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

// originChecker allows requests without an Origin header, any origin when the list is
// empty or contains "*", and otherwise exact matches only.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket upgrades GET /ws/quiz?token=... and serves the connection until it closes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.HandleConnection(r.Context(), conn, claims)
}

// HandleConnection runs the read loop for an authenticated connection.
func (h *Handler) HandleConnection(ctx context.Context, conn *websocket.Conn, claims *jwt.Claims) {
	c := &client{
		conn:    ws.NewConnection(conn, h.opts.SendQueueSize, h.logger),
		claims:  claims,
		limiter: rate.NewLimiter(rate.Limit(h.opts.MessageRate), h.opts.MessageBurst),
		waiting: make(map[int64]struct{}),
	}
	h.hub.RegisterConnection(c.conn)
	metrics.WSConnections.Inc()

	go c.conn.WritePump()

	c.conn.ReadPump(func(msg ws.Message) error {
		if !c.limiter.Allow() {
			metrics.WSMessagesThrottled.Inc()
			return h.sendError(c, msg.RequestID, httperrors.ErrCodeRateLimited, "Too many messages")
		}
		msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), messageTimeout)
		defer cancel()
		return h.handleMessage(msgCtx, c, msg)
	})

	h.hub.UnregisterConnection(c.conn.ID)
	metrics.WSConnections.Dec()

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), messageTimeout)
	defer cancel()
	for _, quizID := range c.waitingRooms() {
		h.leaveWaitingRoom(cleanupCtx, c, quizID)
	}
}

// handleMessage routes incoming websocket messages.
func (h *Handler) handleMessage(ctx context.Context, c *client, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeJoinWaitingRoom:
		return h.handleJoinWaitingRoom(ctx, c, msg)
	case ws.TypeLeaveWaitingRoom:
		return h.handleLeaveWaitingRoom(ctx, c, msg)
	case ws.TypeJoinQuiz:
		return h.handleJoinQuiz(ctx, c, msg)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, c, msg)
	case ws.TypeAdminStart, ws.TypeAdminNext, ws.TypeAdminPrevious,
		ws.TypeAdminPause, ws.TypeAdminResume, ws.TypeAdminStop:
		return h.handleAdmin(ctx, c, msg)
	case ws.TypePing:
		return h.reply(c, msg.RequestID, ws.TypePong, struct{}{})
	default:
		return h.sendError(c, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleJoinWaitingRoom(ctx context.Context, c *client, msg ws.Message) error {
	quizID, ok := h.quizRef(c, msg)
	if !ok {
		return nil
	}
	qz, err := h.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return h.sendDomainError(c, msg.RequestID, err)
	}
	if !qz.IsPublished {
		return h.sendDomainError(c, msg.RequestID, quiz.ErrNotPublished)
	}

	members, err := h.lobby.Join(ctx, quizID, lobby.Participant{
		ID:   c.participantID(),
		Name: c.claims.DisplayName,
	})
	if err != nil {
		return h.sendDomainError(c, msg.RequestID, fmt.Errorf("join waiting room: %w", err))
	}

	h.hub.Join(ws.WaitingRoom(quizID), c.conn.ID)
	if c.enter(quizID) {
		h.mu.Lock()
		h.presence[presenceKey{quizID, c.participantID()}]++
		h.mu.Unlock()
	}
	h.broadcastParticipants(quizID, members)
	return nil
}

func (h *Handler) handleLeaveWaitingRoom(ctx context.Context, c *client, msg ws.Message) error {
	quizID, ok := h.quizRef(c, msg)
	if !ok {
		return nil
	}
	h.leaveWaitingRoom(ctx, c, quizID)
	return nil
}

// leaveWaitingRoom drops the connection from the room. The participant leaves the lobby
// once no other connection of theirs is still waiting.
func (h *Handler) leaveWaitingRoom(ctx context.Context, c *client, quizID int64) {
	h.hub.Leave(ws.WaitingRoom(quizID), c.conn.ID)
	if !c.exit(quizID) {
		return
	}

	key := presenceKey{quizID, c.participantID()}
	h.mu.Lock()
	h.presence[key]--
	remaining := h.presence[key]
	if remaining <= 0 {
		delete(h.presence, key)
	}
	h.mu.Unlock()
	if remaining > 0 {
		return
	}

	members, err := h.lobby.Leave(ctx, quizID, key.participantID)
	if err != nil {
		h.logger.Warn().Err(err).Int64("quiz_id", quizID).Str("participant_id", key.participantID).Msg("leave waiting room failed")
		return
	}
	h.broadcastParticipants(quizID, members)
}

func (h *Handler) handleJoinQuiz(_ context.Context, c *client, msg ws.Message) error {
	quizID, ok := h.quizRef(c, msg)
	if !ok {
		return nil
	}
	room := ws.QuizRoom(quizID)
	h.hub.Join(room, c.conn.ID)
	return h.reply(c, msg.RequestID, ws.TypeJoinQuizRoom, ws.JoinQuizRoomPayload{QuizID: quizID, Room: room})
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.QuizID <= 0 {
		return h.sendError(c, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}

	fb, err := h.play.Submit(ctx, play.Submission{
		QuizID:          req.QuizID,
		QuestionID:      req.QuestionID,
		ParticipantID:   c.participantID(),
		ParticipantName: c.claims.DisplayName,
		Answer:          req.Answer,
		Selections:      req.Selections,
		TimeTaken:       req.TimeTaken,
	})
	if err != nil {
		return h.sendDomainError(c, msg.RequestID, err)
	}
	return h.reply(c, msg.RequestID, ws.TypeAnswerAck, fb.Ack())
}

func (h *Handler) handleAdmin(ctx context.Context, c *client, msg ws.Message) error {
	if !c.claims.IsHost() {
		return h.sendError(c, msg.RequestID, httperrors.ErrCodeHostRequired, "Host role required")
	}
	quizID, ok := h.quizRef(c, msg)
	if !ok {
		return nil
	}

	hostID := c.participantID()
	var (
		out session.Outcome
		err error
	)
	switch msg.Type {
	case ws.TypeAdminStart:
		out, err = h.ctrl.Start(ctx, hostID, quizID)
	case ws.TypeAdminNext:
		out, err = h.ctrl.Advance(ctx, hostID, quizID, 1)
	case ws.TypeAdminPrevious:
		out, err = h.ctrl.Advance(ctx, hostID, quizID, -1)
	case ws.TypeAdminPause:
		out, err = h.ctrl.Pause(ctx, hostID, quizID)
	case ws.TypeAdminResume:
		out, err = h.ctrl.Resume(ctx, hostID, quizID)
	case ws.TypeAdminStop:
		out, err = h.ctrl.Stop(ctx, hostID, quizID)
	}
	if err != nil {
		return h.sendDomainError(c, msg.RequestID, err)
	}

	if msg.Type == ws.TypeAdminStop && out.Changed {
		if err := h.lobby.Clear(ctx, quizID); err != nil {
			h.logger.Warn().Err(err).Int64("quiz_id", quizID).Msg("clear waiting room failed")
		}
	}

	ack := ws.ControlAckPayload{
		QuizID:  quizID,
		Action:  msg.Type,
		Changed: out.Changed,
		State:   string(out.Quiz.State()),
	}
	if out.State != nil {
		ack.QIndex = out.State.QuestionIndex
	}
	return h.reply(c, msg.RequestID, ws.TypeControlAck, ack)
}

func (h *Handler) quizRef(c *client, msg ws.Message) (int64, bool) {
	var ref ws.QuizRefPayload
	if err := json.Unmarshal(msg.Payload, &ref); err != nil || ref.QuizID <= 0 {
		_ = h.sendError(c, msg.RequestID, httperrors.ErrCodeInvalidPayload, fmt.Sprintf("Invalid %s payload", msg.Type))
		return 0, false
	}
	return ref.QuizID, true
}

func (h *Handler) broadcastParticipants(quizID int64, members []lobby.Participant) {
	msg, err := ws.NewMessage(ws.TypeUpdateParticipants, ws.ParticipantsPayload{
		Users: lobby.Names(members),
		Count: len(members),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode participants")
		return
	}
	if err := h.hub.BroadcastToRoom(ws.WaitingRoom(quizID), msg); err != nil {
		h.logger.Debug().Err(err).Int64("quiz_id", quizID).Msg("participants broadcast incomplete")
	}
}

func (h *Handler) reply(c *client, requestID, msgType string, payload interface{}) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return c.conn.Send(msg)
}

// sendDomainError maps err to a protocol error code. Internal failures are logged and
// reported without detail.
func (h *Handler) sendDomainError(c *client, requestID string, err error) error {
	var verr *quiz.ValidationError
	if errors.As(err, &verr) {
		return h.sendError(c, requestID, httperrors.ErrCodeValidationFailed, verr.Error())
	}
	status, code := httpx.ErrorCode(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("participant_id", c.participantID()).Msg("websocket request failed")
		return h.sendError(c, requestID, code, "Internal server error")
	}
	return h.sendError(c, requestID, code, err.Error())
}

func (h *Handler) sendError(c *client, requestID, code, message string) error {
	return h.reply(c, requestID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

func (c *client) participantID() string {
	if c.claims.UserID == uuid.Nil {
		return ""
	}
	return c.claims.UserID.String()
}

// enter records the waiting room and reports whether it is new for this connection.
func (c *client) enter(quizID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.waiting[quizID]; ok {
		return false
	}
	c.waiting[quizID] = struct{}{}
	return true
}

func (c *client) exit(quizID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.waiting[quizID]; !ok {
		return false
	}
	delete(c.waiting, quizID)
	return true
}

func (c *client) waitingRooms() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.waiting))
	for id := range c.waiting {
		ids = append(ids, id)
	}
	return ids
}
