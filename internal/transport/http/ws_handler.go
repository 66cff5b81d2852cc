package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/gorilla/websocket"
)

// WSConfig holds the timers of live play.
type WSConfig struct {
	QuestionTimeout time.Duration
	// ResumeGrace is how long a session survives without a connection.
	ResumeGrace time.Duration
}

type WSHandler struct {
	quiz     *app.QuizService
	cfg      WSConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(quiz *app.QuizService, cfg WSConfig, logger *slog.Logger) *WSHandler {
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = 20 * time.Second
	}
	if cfg.ResumeGrace <= 0 {
		cfg.ResumeGrace = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		quiz:   quiz,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index    *int   `json:"index" validate:"required,gte=0"`
	OptionID string `json:"optionId" validate:"required"`
}

type skipPayload struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type sessionPayload struct {
	SessionID  string   `json:"sessionId"`
	Size       int      `json:"size"`
	Level      int      `json:"level"`
	Categories []string `json:"categories"`
	Score      int      `json:"score"`
}

type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionPayload struct {
	Index      int               `json:"index"`
	QuestionID string            `json:"questionId"`
	Category   string            `json:"category"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Prompt     string            `json:"prompt"`
	Options    []optionView      `json:"options"`
	Deadline   time.Time         `json:"deadline"`
}

// ServeWS upgrades the request and drives one play session over the socket:
// a new one built from categories, or a live one resumed by sessionId.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("userId"))
	sessionID := q.Get("sessionId")
	categories := splitCategories(q.Get("categories"))
	if userID == "" || (sessionID == "" && len(categories) == 0) {
		writeError(w, http.StatusBadRequest, "missing userId and one of categories or sessionId")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.open(ctx, userID, sessionID, categories)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.release(session)

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		broken := false
		for msg := range send {
			if broken {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "session_id", session.ID, "error", err)
				broken = true
				// unblocks the reader so the driver loop exits
				conn.Close()
			}
		}
		if !broken {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
	}()

	done := make(chan struct{})
	inbound := make(chan inboundMessage)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case inbound <- msg:
			case <-done:
				return
			}
		}
	}()

	d := &driver{h: h, ctx: ctx, session: session, send: send, current: -1}
	d.run(events, inbound, readerDone)
	d.stopTimer()

	close(done)
	close(send)
	<-writerDone
}

func (h *WSHandler) open(ctx context.Context, userID, sessionID string, categories []string) (*app.PlaySession, error) {
	var (
		session *app.PlaySession
		err     error
	)
	if sessionID != "" {
		session, err = h.quiz.Session(sessionID, userID)
	} else {
		session, err = h.quiz.StartSession(ctx, userID, categories)
	}
	if err != nil {
		return nil, err
	}
	if err := session.Attach(); err != nil {
		return nil, err
	}
	h.quiz.Touch(session)
	if sessionID != "" {
		h.logger.Info("session resumed", "session_id", session.ID, "user_id", userID)
	}
	return session, nil
}

// release detaches the connection and abandons the session if nobody resumes
// it within the grace period.
func (h *WSHandler) release(session *app.PlaySession) {
	seq := session.Detach()
	if session.Finished() {
		return
	}
	time.AfterFunc(h.cfg.ResumeGrace, func() {
		abandoned, err := h.quiz.AbandonIdle(context.Background(), session, seq)
		if err != nil {
			h.logger.Error("abandon session failed", "session_id", session.ID, "error", err)
			return
		}
		if abandoned {
			h.logger.Info("session abandoned", "session_id", session.ID, "user_id", session.UserID)
		}
	})
}

// driver owns the presentation state of one connection.
type driver struct {
	h       *WSHandler
	ctx     context.Context
	session *app.PlaySession
	send    chan<- outboundMessage
	current int
	timer   *time.Timer
}

func (d *driver) run(events <-chan app.SessionEvent, inbound <-chan inboundMessage, readerDone <-chan struct{}) {
	d.emit("session", sessionPayload{
		SessionID:  d.session.ID,
		Size:       d.session.Len(),
		Level:      d.session.Level,
		Categories: d.session.Categories,
		Score:      d.session.Score(),
	})
	if d.advance() {
		return
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.emit(string(ev.Type), ev)
			if ev.Index == d.current && d.advance() {
				return
			}
		case msg := <-inbound:
			d.handle(msg)
		case <-readerDone:
			return
		}
	}
}

// advance presents the next unresolved question, or settles the session when
// none is left. It reports true once the connection has nothing more to do.
func (d *driver) advance() bool {
	d.stopTimer()
	idx, ok := d.session.NextIndex()
	if !ok {
		// settlement must survive the client hanging up right after the last answer
		result, err := d.h.quiz.Complete(context.WithoutCancel(d.ctx), d.session)
		if errors.Is(err, domain.ErrSessionCompleted) {
			d.fail(err)
			return true
		}
		if err != nil {
			d.h.logger.Warn("session settled with errors", "session_id", d.session.ID, "error", err)
		}
		d.emit("summary", result)
		return true
	}

	q, err := d.session.Present(idx)
	if err != nil {
		d.fail(err)
		return true
	}
	d.current = idx
	d.h.quiz.Touch(d.session)
	deadline := time.Now().Add(d.h.cfg.QuestionTimeout)
	session := d.session
	d.timer = time.AfterFunc(d.h.cfg.QuestionTimeout, func() {
		_, _ = session.Expire(idx)
	})

	options := make([]optionView, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, optionView{ID: o.ID, Text: o.Text})
	}
	d.emit("question", questionPayload{
		Index:      idx,
		QuestionID: q.ID,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Options:    options,
		Deadline:   deadline,
	})
	return false
}

func (d *driver) handle(msg inboundMessage) {
	switch msg.Type {
	case "answer":
		var p answerPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			d.fail(errors.New("invalid answer payload"))
			return
		}
		if !d.active(*p.Index) {
			return
		}
		// duplicates resolve nothing; the delta arrives through the session events
		if _, _, err := d.session.Answer(*p.Index, p.OptionID); err != nil {
			d.fail(err)
		}
	case "skip":
		var p skipPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			d.fail(errors.New("invalid skip payload"))
			return
		}
		if !d.active(*p.Index) {
			return
		}
		if _, err := d.session.Skip(*p.Index); err != nil {
			d.fail(err)
		}
	default:
		d.fail(errors.New("unsupported message type"))
	}
}

// active reports whether index is the presented question. Late taps on
// already resolved indexes are dropped without an error.
func (d *driver) active(index int) bool {
	if index == d.current {
		return true
	}
	if index > d.current {
		d.fail(errors.New("question is not active"))
	}
	return false
}

func (d *driver) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *driver) emit(typ string, payload any) {
	d.send <- outboundMessage{Type: typ, Payload: payload}
}

func (d *driver) fail(err error) {
	d.emit("error", errorPayload{Message: err.Error()})
}

func decodePayload(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func splitCategories(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
