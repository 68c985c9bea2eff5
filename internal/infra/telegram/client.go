package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/markup"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
)

// Config contains the MTProto credentials and session location
type Config struct {
	APIID       int
	APIHash     string
	SessionPath string
}

// Client is a userbot connection over MTProto
type Client struct {
	config Config
	logger *zap.Logger

	mu       sync.RWMutex
	api      *tg.Client
	self     domain.AccountRef
	peers    map[int64]tg.InputPeerClass
	cancel   context.CancelFunc
	finished chan struct{}
	runErr   error
}

var _ repo.Transport = (*Client)(nil)

const dialogBatchSize = 100

// NewClient creates a new Telegram client
func NewClient(config Config, logger *zap.Logger) *Client {
	return &Client{
		config: config,
		logger: logger.Named("telegram"),
		peers:  make(map[int64]tg.InputPeerClass),
	}
}

func (c *Client) newTelegramClient(handler telegram.UpdateHandler) *telegram.Client {
	return telegram.NewClient(c.config.APIID, c.config.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.config.SessionPath},
		UpdateHandler:  handler,
		Logger:         c.logger.Named("mtproto").WithOptions(zap.IncreaseLevel(zap.WarnLevel)),
	})
}

// Connect starts the MTProto session and returns once it is authorized
func (c *Client) Connect(ctx context.Context, handler repo.EventHandler) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	dispatcher := tg.NewUpdateDispatcher()
	c.registerHandlers(dispatcher, handler)
	client := c.newTelegramClient(dispatcher)

	ready := make(chan struct{})
	finished := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.finished = finished
	c.runErr = nil
	c.mu.Unlock()

	go func() {
		defer close(finished)
		err := client.Run(runCtx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				return err
			}
			if !status.Authorized {
				return repo.Fatal(repo.ReasonAuthInvalid, errNotAuthorized)
			}

			c.mu.Lock()
			c.api = client.API()
			if status.User != nil {
				c.self = domain.AccountRef{ID: status.User.ID, Username: status.User.Username}
			}
			c.mu.Unlock()

			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})

		c.mu.Lock()
		c.runErr = err
		c.api = nil
		c.mu.Unlock()
	}()

	select {
	case <-ready:
		c.logger.Info("session authorized", zap.Int64("self_id", c.Self().ID), zap.String("username", c.Self().Username))
		if _, err := c.ListMemberships(ctx); err != nil {
			c.logger.Warn("failed to warm peer cache", zap.Error(err))
		}
		return nil
	case <-finished:
		cancel()
		return classify(c.lastError())
	case <-ctx.Done():
		cancel()
		<-finished
		return ctx.Err()
	}
}

// Run blocks until the session ends or ctx is done
func (c *Client) Run(ctx context.Context) error {
	c.mu.RLock()
	finished := c.finished
	c.mu.RUnlock()
	if finished == nil {
		return errNotConnected
	}

	select {
	case <-ctx.Done():
		return nil
	case <-finished:
		err := c.lastError()
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return classify(err)
	}
}

// Disconnect stops the session and waits for it to end
func (c *Client) Disconnect() error {
	c.mu.RLock()
	cancel, finished := c.cancel, c.finished
	c.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-finished
	return nil
}

// Self returns the logged-in account
func (c *Client) Self() domain.AccountRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

func (c *Client) lastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

func (c *Client) rpc() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.api == nil {
		return nil, repo.Network(errNotConnected)
	}
	return c.api, nil
}

func (c *Client) registerHandlers(d tg.UpdateDispatcher, handler repo.EventHandler) {
	d.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		c.onMessage(ctx, e, u.Message, handler)
		return nil
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.onMessage(ctx, e, u.Message, handler)
		return nil
	})
	d.OnBotCallbackQuery(func(ctx context.Context, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
		c.remember(entityPeers(e))
		chatID, _ := markedPeerID(u.Peer)
		handler(ctx, domain.ActionEvent{QueryID: u.QueryID, ChatID: chatID, Payload: u.Data})
		return nil
	})
}

func (c *Client) onMessage(ctx context.Context, e tg.Entities, raw tg.MessageClass, handler repo.EventHandler) {
	msg, ok := raw.(*tg.Message)
	if !ok || msg.Out {
		return
	}
	c.remember(entityPeers(e))

	switch p := msg.PeerID.(type) {
	case *tg.PeerUser:
		from := domain.AccountRef{ID: p.UserID}
		if u, ok := e.Users[p.UserID]; ok {
			from.Username = u.Username
		}
		handler(ctx, domain.DirectMessage{From: from, Text: msg.Message})

	case *tg.PeerChat, *tg.PeerChannel:
		chatID, _ := markedPeerID(p)
		handler(ctx, domain.GroupMessage{ChatID: chatID, MessageID: msg.ID, Text: msg.Message})
	}
}

func (c *Client) remember(peers map[int64]tg.InputPeerClass) {
	if len(peers) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range peers {
		c.peers[id] = p
	}
}

func (c *Client) inputPeer(target int64) (tg.InputPeerClass, error) {
	c.mu.RLock()
	p, ok := c.peers[target]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	if p, ok := fallbackInputPeer(target); ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown peer %d", target)
}

// SendMessage sends msg to target, a user ID or marked chat ID
func (c *Client) SendMessage(ctx context.Context, target int64, msg domain.OutgoingMessage) error {
	api, err := c.rpc()
	if err != nil {
		return err
	}
	p, err := c.inputPeer(target)
	if err != nil {
		return err
	}

	builder := message.NewSender(api).To(p).NoWebpage()
	if msg.ReplyTo != 0 {
		builder = builder.Reply(msg.ReplyTo)
	}
	if len(msg.Actions) > 0 {
		rows := make([]tg.KeyboardButtonRow, 0, len(msg.Actions))
		for _, a := range msg.Actions {
			rows = append(rows, markup.Row(markup.Callback(a.Text, a.Payload)))
		}
		builder = builder.Markup(markup.InlineKeyboard(rows...))
	}

	if _, err := builder.StyledText(ctx, styledText(msg.Text)...); err != nil {
		return classify(fmt.Errorf("send message to %d: %w", target, err))
	}
	return nil
}

// ResolveAccount resolves a public username to a user account
func (c *Client) ResolveAccount(ctx context.Context, handle string) (domain.AccountRef, error) {
	api, err := c.rpc()
	if err != nil {
		return domain.AccountRef{}, err
	}

	handle = strings.TrimPrefix(handle, "@")
	p, err := peer.DefaultResolver(api).ResolveDomain(ctx, handle)
	if err != nil {
		return domain.AccountRef{}, classify(fmt.Errorf("resolve @%s: %w", handle, err))
	}
	user, ok := p.(*tg.InputPeerUser)
	if !ok {
		return domain.AccountRef{}, fmt.Errorf("@%s is not a user account", handle)
	}

	c.remember(map[int64]tg.InputPeerClass{user.UserID: user})
	return domain.AccountRef{ID: user.UserID, Username: handle}, nil
}

// ListMemberships lists the groups, supergroups and channels the account is in
func (c *Client) ListMemberships(ctx context.Context) ([]domain.MembershipInfo, error) {
	api, err := c.rpc()
	if err != nil {
		return nil, err
	}

	peers := make(map[int64]tg.InputPeerClass)
	var out []domain.MembershipInfo
	err = query.GetDialogs(api).BatchSize(dialogBatchSize).ForEach(ctx, func(ctx context.Context, elem dialogs.Elem) error {
		info, ok := membershipOf(elem.Dialog.GetPeer(), elem.Entities)
		if !ok {
			return nil
		}
		if _, seen := peers[info.ID]; seen {
			return nil
		}
		peers[info.ID] = elem.Peer
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Errorf("get dialogs: %w", err))
	}

	c.remember(peers)
	return out, nil
}

// membershipOf maps a dialog peer to a membership, skipping users and chats the account has left
func membershipOf(p tg.PeerClass, ents peer.Entities) (domain.MembershipInfo, bool) {
	switch p := p.(type) {
	case *tg.PeerChat:
		ch, ok := ents.Chat(p.ChatID)
		if !ok || ch.Left || ch.Deactivated {
			return domain.MembershipInfo{}, false
		}
		return domain.MembershipInfo{ID: MarkChat(ch.ID), Title: ch.Title, Kind: domain.MembershipBasicGroup}, true

	case *tg.PeerChannel:
		ch, ok := ents.Channel(p.ChannelID)
		if !ok || ch.Left {
			return domain.MembershipInfo{}, false
		}
		kind := domain.MembershipSupergroup
		if ch.Broadcast {
			kind = domain.MembershipBroadcast
		}
		return domain.MembershipInfo{ID: MarkChannel(ch.ID), Title: ch.Title, Kind: kind}, true
	}
	return domain.MembershipInfo{}, false
}

// AnswerAction shows text to the user who pressed an inline button
func (c *Client) AnswerAction(ctx context.Context, action domain.ActionEvent, text string) error {
	api, err := c.rpc()
	if err != nil {
		return err
	}
	_, err = api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: action.QueryID,
		Message: text,
		Alert:   true,
	})
	if err != nil {
		return classify(fmt.Errorf("answer callback: %w", err))
	}
	return nil
}

// CodePrompt asks the operator for the login code Telegram sent
type CodePrompt func(ctx context.Context) (string, error)

// Login runs the interactive phone login and stores the session file
func (c *Client) Login(ctx context.Context, phone, password string, code CodePrompt) (domain.AccountRef, error) {
	client := c.newTelegramClient(nil)

	var self domain.AccountRef
	err := client.Run(ctx, func(ctx context.Context) error {
		codeAuth := auth.CodeAuthenticatorFunc(func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
			return code(ctx)
		})
		flow := auth.NewFlow(auth.Constant(phone, password, codeAuth), auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return err
		}

		user, err := client.Self(ctx)
		if err != nil {
			return err
		}
		self = domain.AccountRef{ID: user.ID, Username: user.Username}
		return nil
	})
	if err != nil {
		return domain.AccountRef{}, classify(fmt.Errorf("login: %w", err))
	}
	return self, nil
}

// ListDialogs connects with the stored session and lists memberships once
func (c *Client) ListDialogs(ctx context.Context) ([]domain.MembershipInfo, error) {
	if err := c.Connect(ctx, func(context.Context, domain.Event) {}); err != nil {
		return nil, err
	}
	defer c.Disconnect()
	return c.ListMemberships(ctx)
}

// styledText renders text where **bold** spans are marked with double asterisks
func styledText(text string) []styling.StyledTextOption {
	parts := splitBold(text)
	opts := make([]styling.StyledTextOption, 0, len(parts))
	for _, p := range parts {
		if p.bold {
			opts = append(opts, styling.Bold(p.text))
		} else {
			opts = append(opts, styling.Plain(p.text))
		}
	}
	return opts
}

type textPart struct {
	text string
	bold bool
}

func splitBold(text string) []textPart {
	segments := strings.Split(text, "**")
	// An unmatched marker is kept as literal text
	if len(segments)%2 == 0 {
		return []textPart{{text: text}}
	}

	parts := make([]textPart, 0, len(segments))
	for i, s := range segments {
		if s == "" {
			continue
		}
		parts = append(parts, textPart{text: s, bold: i%2 == 1})
	}
	if len(parts) == 0 {
		return []textPart{{text: text}}
	}
	return parts
}
