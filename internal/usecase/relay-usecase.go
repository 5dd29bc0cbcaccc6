package usecase

import (
	"context"
	"fmt"
	"iter"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/framing"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

type Transport interface {
	Send(ctx context.Context, channelID, text string) (model.MessageHandle, error)
	History(ctx context.Context, channelID string, opts model.HistoryOptions) iter.Seq2[model.InboundMessage, error]
	GetChannel(ctx context.Context, channelID string) (model.Channel, bool)
}

type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (model.TranslationResponse, error)
	TranslateMulti(ctx context.Context, req MultiTranslationRequest) (model.MultiTranslation, error)
}

type GameAnnouncer interface {
	Announce(ctx context.Context, text, color string) error
}

type RelayUsecaseDeps struct {
	Transport  Transport
	Translator Translator
	Game       GameAnnouncer
}

type relayGroup struct {
	cfg       config.RelayGroup
	languages map[string]string
	order     []string
	context   *RollingContext
}

func newRelayGroup(cfg config.RelayGroup, capacity int) *relayGroup {
	group := &relayGroup{
		cfg:       cfg,
		languages: make(map[string]string, len(cfg.Channels)),
		context:   NewRollingContext(capacity),
	}
	for language, channelID := range cfg.Channels {
		group.languages[channelID] = language
		group.order = append(group.order, language)
	}
	slices.Sort(group.order)
	return group
}

// RelayUsecase mirrors messages between the channels of each relay group,
// translating through the group's pivot language.
type RelayUsecase struct {
	RelayUsecaseDeps
	cfg      config.Relay
	selfID   string
	groups   []*relayGroup
	gameChat *relayGroup
	tasks    conc.WaitGroup
}

func NewRelayUsecase(cfg config.Relay, deps RelayUsecaseDeps, selfID string) (*RelayUsecase, error) {
	r := &RelayUsecase{
		RelayUsecaseDeps: deps,
		cfg:              cfg,
		selfID:           selfID,
	}
	for _, groupCfg := range cfg.Groups {
		group := newRelayGroup(groupCfg, cfg.ContextCapacity)
		r.groups = append(r.groups, group)
		if groupCfg.Name == cfg.GameChatGroup {
			r.gameChat = group
		}
	}
	if cfg.GameChatChannelID != "" && r.gameChat == nil {
		return nil, fmt.Errorf("game chat group %q is not configured", cfg.GameChatGroup)
	}
	return r, nil
}

// Warmup seeds the game chat context from the feed's recent history so the
// first translations after a restart still see the conversation.
func (r *RelayUsecase) Warmup(ctx context.Context) error {
	if r.gameChat == nil || r.gameChat.context.Len() > 0 {
		return nil
	}
	var lines []string
	for msg, err := range r.Transport.History(
		ctx, r.cfg.GameChatChannelID, model.HistoryOptions{Limit: r.gameChat.context.Capacity()},
	) {
		if err != nil {
			return fmt.Errorf("failed to read game chat history: %w", err)
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		lines = append(lines, framing.Extract(msg.Content).ContextLine())
	}
	// history is newest first
	slices.Reverse(lines)
	for _, line := range lines {
		r.gameChat.context.Append(line)
	}
	log.Printf("[relay] game chat context seeded with %d line(s)", len(lines))
	return nil
}

// IsGameChatFeed reports whether msg is a line posted by the in-game chat
// relay.
func (r *RelayUsecase) IsGameChatFeed(msg model.InboundMessage) bool {
	if r.cfg.GameChatChannelID == "" || msg.ChannelID != r.cfg.GameChatChannelID {
		return false
	}
	if r.cfg.GameChatBotID != "" {
		return msg.Author.ID == r.cfg.GameChatBotID
	}
	return msg.Author.Bot
}

// GameContext returns the newest lines of the game chat context.
func (r *RelayUsecase) GameContext(n int) []string {
	if r.gameChat == nil {
		return nil
	}
	return r.gameChat.context.Last(n)
}

// Handle returns without waiting for translations. Framing and the context
// append happen here so messages from one channel keep their order.
func (r *RelayUsecase) Handle(ctx context.Context, msg model.InboundMessage) {
	if msg.Author.ID == r.selfID || strings.TrimSpace(msg.Content) == "" {
		return
	}
	taskCtx := context.WithoutCancel(ctx)

	if r.IsGameChatFeed(msg) {
		framed := framing.Extract(msg.Content)
		prompt := r.gameChat.context.Last(r.cfg.GameChatContextSize)
		r.gameChat.context.Append(framed.ContextLine())
		r.spawn(
			taskCtx, "game-chat", func(ctx context.Context) error {
				return r.relayGameChat(ctx, framed, prompt)
			},
		)
		return
	}

	for _, group := range r.groups {
		source, ok := group.languages[msg.ChannelID]
		if !ok {
			continue
		}
		if msg.Author.Bot && !group.cfg.AcceptBots {
			continue
		}
		framed := framing.Extract(msg.Content)
		framed.Name = speakerName(framed, msg.Author)
		prompt := group.context.Last(group.cfg.ContextSize)
		group.context.Append(framed.ContextLine())

		r.spawn(
			taskCtx, group.cfg.Name, func(ctx context.Context) error {
				return r.relayGroupMessage(ctx, group, source, msg.ChannelID, framed, prompt)
			},
		)
	}
}

// Wait blocks until every spawned relay task has finished.
func (r *RelayUsecase) Wait() {
	r.tasks.Wait()
}

func (r *RelayUsecase) relayGroupMessage(
	ctx context.Context,
	group *relayGroup,
	source string,
	sourceChannelID string,
	framed framing.FramedMessage,
	prompt []string,
) error {
	pivot := group.cfg.Pivot
	pivotText := framed.Content
	if source != pivot {
		res, err := r.Translator.Translate(
			ctx, TranslationRequest{
				Text:           framed.Content,
				TargetLanguage: pivot,
				Context:        prompt,
				Sender:         framed.Name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to translate %s message to %s: %w", source, pivot, err)
		}
		pivotText = res.Translation
	}

	p := pool.New().WithErrors()
	if group.cfg.AnnounceInGame && r.Game != nil {
		p.Go(
			func() error {
				text := framing.FramedMessage{Name: framed.Name, Content: pivotText}.ContextLine()
				if err := r.Game.Announce(ctx, text, r.cfg.AnnounceColor); err != nil {
					return fmt.Errorf("failed to announce in game: %w", err)
				}
				return nil
			},
		)
	}

	for _, target := range group.order {
		channelID := group.cfg.Channels[target]
		if target == source || channelID == sourceChannelID {
			continue
		}
		if group.cfg.Mode == config.RelayModeHub && source != pivot && target != pivot {
			continue
		}
		p.Go(
			func() error {
				text := pivotText
				if target != pivot {
					res, err := r.Translator.Translate(
						ctx, TranslationRequest{
							Text:           pivotText,
							TargetLanguage: target,
							Context:        prompt,
							Sender:         framed.Name,
						},
					)
					if err != nil {
						return fmt.Errorf("failed to translate to %s: %w", target, err)
					}
					text = res.Translation
				}
				if _, err := r.Transport.Send(ctx, channelID, framing.Format(framed.Name, text, false)); err != nil {
					return fmt.Errorf("failed to send to %s channel: %w", target, err)
				}
				return nil
			},
		)
	}
	return p.Wait()
}

func (r *RelayUsecase) relayGameChat(ctx context.Context, framed framing.FramedMessage, prompt []string) error {
	group := r.gameChat
	translations, err := r.Translator.TranslateMulti(
		ctx, MultiTranslationRequest{
			Text:      framed.Content,
			Languages: group.order,
			Context:   prompt,
			Sender:    framed.Name,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to translate game chat line: %w", err)
	}

	p := pool.New().WithErrors()
	for _, language := range group.order {
		text, ok := translations.For(language)
		if !ok {
			log.Printf("[relay] game chat translation has no %s text", language)
			continue
		}
		channelID := group.cfg.Channels[language]
		p.Go(
			func() error {
				if _, err := r.Transport.Send(ctx, channelID, framing.Format(framed.Name, text, false)); err != nil {
					return fmt.Errorf("failed to send game chat line to %s: %w", language, err)
				}
				return nil
			},
		)
	}
	return p.Wait()
}

func (r *RelayUsecase) spawn(ctx context.Context, route string, task func(ctx context.Context) error) {
	taskID := uuid.New()
	r.tasks.Go(
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("[relay] %s task %s panicked: %v", route, taskID, rec)
				}
			}()
			timeout := r.cfg.TaskTimeout
			if timeout <= 0 {
				timeout = 2 * time.Minute
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := task(ctx); err != nil {
				log.Printf("[relay] %s task %s: %v", route, taskID, err)
			}
		},
	)
}

func speakerName(framed framing.FramedMessage, author model.Author) string {
	if framed.HasName() {
		return framed.Name
	}
	if !author.Bot {
		return author.DisplayName
	}
	return ""
}
