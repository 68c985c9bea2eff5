package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
)

// Router errors, one per failure class
var (
	ErrDispatch        = errors.New("query dispatch failed")
	ErrUnresolvedReply = errors.New("reply matches no pending query")
	ErrParse           = errors.New("reply could not be parsed")
	ErrMalformedAction = errors.New("malformed action payload")
)

// Telegram limits callback data to 64 bytes
const maxActionPayload = 64

var (
	embeddedKeyPattern = regexp.MustCompile(`\d{11}`)
	identityPattern    = regexp.MustCompile(`Kimlik No:\s*(\d{11})`)
)

// Messenger is the part of the transport the router talks to
type Messenger interface {
	SendMessage(ctx context.Context, target int64, msg domain.OutgoingMessage) error
	ResolveAccount(ctx context.Context, handle string) (domain.AccountRef, error)
	AnswerAction(ctx context.Context, action domain.ActionEvent, text string) error
}

// RouterTexts contains the texts the router sends
type RouterTexts struct {
	TooShort       string
	DispatchFailed string
	NoMatch        string
	ParseFailed    string
	Copied         string // {{value}} is replaced
	ResultHeader   string
	ActionLabel    string // {{label}} is replaced
	Command        string // {{key}} is replaced
	NoMatchPhrase  string
}

// DefaultRouterTexts returns the default router texts
func DefaultRouterTexts() RouterTexts {
	return RouterTexts{
		TooShort:       "❌ TC Kimlik Numarası Eksik (10 haneli)",
		DispatchFailed: "❌ Sorgu gönderilemedi, lütfen tekrar deneyin",
		NoMatch:        "❌ Eşleşme bulunamadı",
		ParseFailed:    "❌ Sorgu sonucu işlenemedi",
		Copied:         "✅ Kopyalandı: {{value}}",
		ResultHeader:   "📋 **TC Kimlik Sorgu Sonucu**",
		ActionLabel:    "📋 {{label}}",
		Command:        "/sorgu -tc {{key}}",
		NoMatchPhrase:  "Eşleşme bulunamadı",
	}
}

// Router turns inbound transport events into outbound responses
type Router struct {
	messenger Messenger
	pending   *usecase.PendingTable
	extractor *usecase.FieldExtractor
	active    *usecase.ActiveGroups
	texts     RouterTexts
	logger    *zap.Logger

	responderHandle string
	responderMu     sync.Mutex
	responder       *domain.AccountRef
}

// NewRouter creates a new reply router
func NewRouter(
	messenger Messenger,
	pending *usecase.PendingTable,
	extractor *usecase.FieldExtractor,
	active *usecase.ActiveGroups,
	responderHandle string,
	texts RouterTexts,
	logger *zap.Logger,
) *Router {
	return &Router{
		messenger:       messenger,
		pending:         pending,
		extractor:       extractor,
		active:          active,
		texts:           texts,
		responderHandle: strings.TrimPrefix(responderHandle, "@"),
		logger:          logger.Named("router"),
	}
}

// Handle processes one inbound event. Errors are logged, never returned.
func (r *Router) Handle(ctx context.Context, event domain.Event) {
	var err error
	switch ev := event.(type) {
	case domain.GroupMessage:
		err = r.HandleGroupMessage(ctx, ev)
	case domain.DirectMessage:
		if !r.isResponder(ctx, ev.From) {
			return
		}
		err = r.HandleResponderReply(ctx, ev.Text)
	case domain.ActionEvent:
		err = r.HandleAction(ctx, ev)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedAction):
		r.logger.Debug("action dropped", zap.Error(err))
	case errors.Is(err, ErrUnresolvedReply), errors.Is(err, ErrParse):
		r.logger.Warn("responder reply dropped", zap.Error(err))
	default:
		r.logger.Error("event handling failed", zap.Error(err))
	}
}

// HandleGroupMessage handles a message posted in a group chat
func (r *Router) HandleGroupMessage(ctx context.Context, msg domain.GroupMessage) error {
	if !r.active.Contains(msg.ChatID) {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case domain.IsShortKey(text):
		r.logger.Info("short identifier received", zap.Int64("chat_id", msg.ChatID), zap.String("key", domain.MaskKey(text)))
		return r.reply(ctx, msg, r.texts.TooShort)

	case domain.IsQueryKey(text):
		q := r.pending.Put(text, msg.ChatID)
		log := r.logger.With(zap.String("request_id", q.RequestID), zap.String("key", domain.MaskKey(text)))

		if err := r.dispatch(ctx, text); err != nil {
			r.pending.TakeByKey(text)
			log.Error("query dispatch failed", zap.Error(err))
			if replyErr := r.reply(ctx, msg, r.texts.DispatchFailed); replyErr != nil {
				return errors.Join(fmt.Errorf("%w: %v", ErrDispatch, err), replyErr)
			}
			return fmt.Errorf("%w: %v", ErrDispatch, err)
		}
		log.Info("query dispatched", zap.Int64("chat_id", msg.ChatID))
	}
	return nil
}

// HandleResponderReply handles a message from the responder account
func (r *Router) HandleResponderReply(ctx context.Context, raw string) error {
	if strings.Contains(raw, r.texts.NoMatchPhrase) {
		return r.handleNoMatch(ctx, raw)
	}

	m := identityPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	key := m[1]

	q, ok := r.pending.TakeByKey(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnresolvedReply, domain.MaskKey(key))
	}
	log := r.logger.With(zap.String("request_id", q.RequestID), zap.Int64("chat_id", q.OriginChat))

	extraction := r.extractor.Extract(raw)
	if extraction.Empty() {
		log.Warn("result could not be parsed")
		if err := r.send(ctx, q.OriginChat, domain.OutgoingMessage{Text: r.texts.ParseFailed}); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrParse, domain.MaskKey(key))
	}

	out := domain.OutgoingMessage{
		Text:    r.texts.ResultHeader + "\n\n" + strings.Join(extraction.Lines, "\n"),
		Actions: r.buildActions(extraction.Fields, log),
	}
	if err := r.send(ctx, q.OriginChat, out); err != nil {
		return err
	}
	log.Info("result delivered", zap.Int("fields", len(extraction.Fields)))
	return nil
}

// HandleAction answers a press on a copy button with the stored value
func (r *Router) HandleAction(ctx context.Context, action domain.ActionEvent) error {
	parts := strings.SplitN(string(action.Payload), ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("%w: %d parts", ErrMalformedAction, len(parts))
	}

	label, value := parts[1], parts[2]
	if err := r.messenger.AnswerAction(ctx, action, strings.ReplaceAll(r.texts.Copied, "{{value}}", value)); err != nil {
		return fmt.Errorf("answer action: %w", err)
	}
	r.logger.Debug("action answered", zap.String("label", label))
	return nil
}

func (r *Router) handleNoMatch(ctx context.Context, raw string) error {
	var (
		q  domain.PendingQuery
		ok bool
	)
	if key := embeddedKeyPattern.FindString(raw); key != "" {
		q, ok = r.pending.TakeByKey(key)
	}
	if !ok {
		q, ok = r.pending.TakeMostRecent()
	}
	if !ok {
		r.logger.Debug("no-match reply without pending query")
		return nil
	}

	if err := r.send(ctx, q.OriginChat, domain.OutgoingMessage{Text: r.texts.NoMatch}); err != nil {
		return err
	}
	r.logger.Info("no-match delivered", zap.String("request_id", q.RequestID), zap.Int64("chat_id", q.OriginChat))
	return nil
}

func (r *Router) buildActions(fields []domain.ExtractedField, log *zap.Logger) []domain.Action {
	actions := make([]domain.Action, 0, len(fields))
	for _, f := range fields {
		payload := "copy:" + f.Label + ":" + f.Value
		if len(payload) > maxActionPayload {
			log.Debug("action payload too long, skipped", zap.String("label", f.Label))
			continue
		}
		actions = append(actions, domain.Action{
			Text:    strings.ReplaceAll(r.texts.ActionLabel, "{{label}}", f.Label),
			Payload: []byte(payload),
		})
	}
	return actions
}

func (r *Router) dispatch(ctx context.Context, key string) error {
	responder, err := r.resolveResponder(ctx)
	if err != nil {
		return err
	}
	cmd := strings.ReplaceAll(r.texts.Command, "{{key}}", key)
	return r.messenger.SendMessage(ctx, responder.ID, domain.OutgoingMessage{Text: cmd})
}

func (r *Router) reply(ctx context.Context, msg domain.GroupMessage, text string) error {
	return r.send(ctx, msg.ChatID, domain.OutgoingMessage{Text: text, ReplyTo: msg.MessageID})
}

func (r *Router) send(ctx context.Context, chatID int64, msg domain.OutgoingMessage) error {
	if err := r.messenger.SendMessage(ctx, chatID, msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

// resolveResponder resolves the responder account once and caches it
func (r *Router) resolveResponder(ctx context.Context) (domain.AccountRef, error) {
	r.responderMu.Lock()
	defer r.responderMu.Unlock()

	if r.responder != nil {
		return *r.responder, nil
	}
	ref, err := r.messenger.ResolveAccount(ctx, r.responderHandle)
	if err != nil {
		return domain.AccountRef{}, fmt.Errorf("resolve responder @%s: %w", r.responderHandle, err)
	}
	r.responder = &ref
	return ref, nil
}

func (r *Router) isResponder(ctx context.Context, from domain.AccountRef) bool {
	if from.Username != "" && strings.EqualFold(from.Username, r.responderHandle) {
		return true
	}
	ref, err := r.resolveResponder(ctx)
	if err != nil {
		r.logger.Warn("responder lookup failed", zap.Error(err))
		return false
	}
	return from.ID != 0 && from.ID == ref.ID
}
