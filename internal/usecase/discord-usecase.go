package usecase

import (
	"context"
	"log"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/framing"
	"github.com/sourcegraph/conc"
)

type DiscordUsecaseDeps struct {
	User      *UserUsecase
	Relay     *RelayUsecase
	Knowledge *KnowledgeUsecase
	InGame    *InGameUsecase
	Commands  *CommandUsecase
}

// DiscordUsecase routes gateway events of the main bot to the usecases.
type DiscordUsecase struct {
	DiscordUsecaseDeps
	tasks conc.WaitGroup
}

func NewDiscordUsecase(deps DiscordUsecaseDeps) *DiscordUsecase {
	return &DiscordUsecase{DiscordUsecaseDeps: deps}
}

func (d *DiscordUsecase) OnMessage(ctx context.Context, msg model.InboundMessage) {
	msg.Author = d.User.WithRole(msg.Author)
	d.Relay.Handle(ctx, msg)

	if d.InGame == nil || !d.Relay.IsGameChatFeed(msg) {
		return
	}
	framed := framing.Extract(msg.Content)
	if !framed.HasName() {
		return
	}
	question, ok := d.InGame.Question(framed.Content)
	if !ok {
		return
	}
	taskCtx := context.WithoutCancel(ctx)
	d.tasks.Go(
		func() {
			if err := d.InGame.Answer(taskCtx, framed.Name, question); err != nil {
				log.Printf("[discord] in-game question from %s: %v", framed.Name, err)
			}
		},
	)
}

func (d *DiscordUsecase) OnCommand(ctx context.Context, cmd model.Command) model.CommandReply {
	cmd.User = d.User.WithRole(cmd.User)
	log.Printf("[discord] /%s from %s", cmd.Name, cmd.User.ID)
	if cmd.Name == model.CommandBot {
		return d.Knowledge.Ask(ctx, cmd)
	}
	return d.Commands.Handle(ctx, cmd)
}

// Wait blocks until the relay and in-game tasks have finished.
func (d *DiscordUsecase) Wait() {
	d.tasks.Wait()
	d.Relay.Wait()
}
