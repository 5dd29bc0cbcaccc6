package usecase

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/framing"
	"github.com/iamvkosarev/amc-discord/pkg/local"
	"github.com/iamvkosarev/amc-discord/pkg/textutil"
	"github.com/sashabaranov/go-openai"
	"github.com/sourcegraph/conc/pool"
)

const (
	MessageCommandUnknown        = "I don't know that command"
	MessageTranslationFailed     = "Translation failed."
	MessageNothingToTranslate    = "No text to translate."
	MessageNoMessagesToTranslate = "No messages to translate."
	MessageThreadFailedFormat    = "❌ Translation failed: %v"
	MessageNoAttachments         = "No attachments found."
	MessageNoImage               = "No image found."
	MessageNoValidImage          = "No valid image found."
	MessageEmptyPrompt           = "The prompt is empty."
	MessageImageFailedFormat     = "Error: %v"

	defaultThreadCount = 10
	maxThreadCount     = 25
	batchSize          = 10
	batchConcurrency   = 4
)

var (
	textLanguageSet = local.NewSet(
		"✅ Your preferred language has been set to **%s**.",
		local.NewTrans(local.Thai, "✅ ตั้งค่าภาษาที่คุณต้องการเป็น **%s** แล้ว"),
		local.NewTrans(local.Chinese, "✅ 您的首选语言已设置为 **%s**。"),
		local.NewTrans(local.Indonesian, "✅ Bahasa pilihan Anda telah diatur ke **%s**."),
		local.NewTrans(local.Vietnamese, "✅ Ngôn ngữ ưa thích của bạn đã được đặt thành **%s**."),
		local.NewTrans(local.Japanese, "✅ 優先言語を **%s** に設定しました。"),
	)
	textLanguageSetFailed = local.NewSet("❌ Failed to save language preference. Please try again.")
	textUnknownLanguage   = local.NewSet("❌ Unknown language %q.")
)

type ThreadTranslator interface {
	TranslateThread(ctx context.Context, lines []string, targetLanguage string) (model.ThreadTranslationResponse, error)
}

// MessageReader fetches a single message, for commands that come back to
// a message after a modal.
type MessageReader interface {
	Message(ctx context.Context, channelID, messageID string) (model.InboundMessage, error)
}

type CommandTransport interface {
	Transport
	MessageReader
}

type CommandUsecaseDeps struct {
	Translator       Translator
	ThreadTranslator ThreadTranslator
	Preferences      *PreferenceUsecase
	Transport        CommandTransport
	Vision           ChatCompleter
}

type CommandConfig struct {
	VisionModel string
}

// CommandUsecase serves the translation slash commands and the message
// context menus.
type CommandUsecase struct {
	CommandUsecaseDeps
	cfg CommandConfig
}

func NewCommandUsecase(deps CommandUsecaseDeps, cfg CommandConfig) *CommandUsecase {
	return &CommandUsecase{CommandUsecaseDeps: deps, cfg: cfg}
}

func (c *CommandUsecase) Handle(ctx context.Context, cmd model.Command) model.CommandReply {
	switch cmd.Name {
	case model.CommandSetLanguage:
		return c.setLanguage(ctx, cmd)
	case model.CommandTranslate:
		return c.translate(ctx, cmd)
	case model.CommandTranslateThread:
		return c.translateThread(ctx, cmd)
	case model.CommandTranslateMsg:
		return c.translateMessage(ctx, cmd)
	case model.CommandTranslateBatch:
		return c.translateBatch(ctx, cmd)
	case model.CommandProcessImage:
		return c.promptForImage(cmd)
	case model.CommandImagePrompt:
		return c.processImage(ctx, cmd)
	default:
		return ephemeral(MessageCommandUnknown)
	}
}

func (c *CommandUsecase) setLanguage(ctx context.Context, cmd model.Command) model.CommandReply {
	raw := cmd.Option("language")
	language, ok := local.ParseLanguage(raw)
	if !ok {
		return ephemeral(textUnknownLanguage.DefaultFormat(raw))
	}
	if !c.Preferences.Set(ctx, cmd.User.ID, string(language)) {
		return ephemeral(textLanguageSetFailed.Text(language))
	}
	return ephemeral(textLanguageSet.Format(language, language))
}

func (c *CommandUsecase) translate(ctx context.Context, cmd model.Command) model.CommandReply {
	text := strings.TrimSpace(cmd.Option("text"))
	if text == "" {
		return ephemeral(MessageNothingToTranslate)
	}
	target := c.targetLanguage(ctx, cmd, false)
	res, err := c.Translator.Translate(ctx, TranslationRequest{Text: text, TargetLanguage: string(target)})
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
		return ephemeral(MessageTranslationFailed)
	}
	return ephemeral(renderTranslation(target, res.Translation, text, ""))
}

func (c *CommandUsecase) translateThread(ctx context.Context, cmd model.Command) model.CommandReply {
	count := defaultThreadCount
	if raw := cmd.Option("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxThreadCount {
			return ephemeral(fmt.Sprintf("count must be between 1 and %d", maxThreadCount))
		}
		count = n
	}
	target := c.targetLanguage(ctx, cmd, false)

	messages, err := c.collect(ctx, cmd.ChannelID, model.HistoryOptions{Limit: count})
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
		return ephemeral(fmt.Sprintf(MessageThreadFailedFormat, err))
	}
	var lines []string
	for _, msg := range messages {
		framed := framing.Extract(msg.Content)
		if strings.TrimSpace(framed.Content) != "" {
			lines = append(lines, framing.FramedMessage{Name: speaker(msg, framed), Content: framed.Content}.ContextLine())
		}
	}
	if len(lines) == 0 {
		return ephemeral(MessageNoMessagesToTranslate)
	}

	res, err := c.ThreadTranslator.TranslateThread(ctx, lines, string(target))
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
		return ephemeral(fmt.Sprintf(MessageThreadFailedFormat, err))
	}
	return model.CommandReply{
		Messages:  textutil.SplitMarkdown(res.TranslatedThread, textutil.DiscordMessageLimit),
		Ephemeral: true,
	}
}

func (c *CommandUsecase) translateMessage(ctx context.Context, cmd model.Command) model.CommandReply {
	if cmd.Target == nil {
		return ephemeral(MessageNothingToTranslate)
	}
	framed := framing.Extract(cmd.Target.Content)
	if strings.TrimSpace(framed.Content) == "" {
		return ephemeral(MessageNothingToTranslate)
	}
	target := c.targetLanguage(ctx, cmd, true)
	res, err := c.Translator.Translate(ctx, TranslationRequest{Text: framed.Content, TargetLanguage: string(target)})
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
		return ephemeral(MessageTranslationFailed)
	}
	return ephemeral(renderTranslation(target, res.Translation, framed.Content, speaker(*cmd.Target, framed)))
}

// translateBatch translates the clicked message and the ones right before
// it, one call per message.
func (c *CommandUsecase) translateBatch(ctx context.Context, cmd model.Command) model.CommandReply {
	if cmd.Target == nil {
		return ephemeral(MessageNoMessagesToTranslate)
	}
	target := c.targetLanguage(ctx, cmd, true)

	before, err := c.collect(
		ctx, cmd.ChannelID, model.HistoryOptions{Limit: batchSize - 1, Before: cmd.Target.ID},
	)
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
	}
	messages := append(before, *cmd.Target)

	lines := make([]string, len(messages))
	p := pool.New().WithMaxGoroutines(batchConcurrency)
	for i, msg := range messages {
		p.Go(
			func() {
				framed := framing.Extract(msg.Content)
				if strings.TrimSpace(framed.Content) == "" {
					return
				}
				res, err := c.Translator.Translate(ctx, TranslationRequest{Text: framed.Content, TargetLanguage: string(target)})
				if err != nil {
					log.Printf("[command] %s: message %s: %v", cmd.Name, msg.ID, err)
					return
				}
				lines[i] = framing.Format(speaker(msg, framed), res.Translation, false)
			},
		)
	}
	p.Wait()

	var out []string
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return ephemeral(MessageNoMessagesToTranslate)
	}
	return model.CommandReply{
		Messages:  textutil.SplitMarkdown(strings.Join(out, "\n"), textutil.DiscordMessageLimit),
		Ephemeral: true,
	}
}

// promptForImage opens the prompt modal for a message with images. The
// modal id carries the message id, so the submit can find the images again.
func (c *CommandUsecase) promptForImage(cmd model.Command) model.CommandReply {
	if cmd.Target == nil || len(cmd.Target.Attachments) == 0 {
		return ephemeral(MessageNoAttachments)
	}
	if len(imageURLs(cmd.Target.Attachments)) == 0 {
		return ephemeral(MessageNoValidImage)
	}
	return model.CommandReply{
		Modal: &model.Modal{
			CustomID:    model.CommandImagePrompt + ":" + cmd.Target.ID,
			Title:       "Enter your prompt",
			InputID:     "prompt",
			Label:       "Prompt",
			Placeholder: "Type your prompt here...",
		},
	}
}

func (c *CommandUsecase) processImage(ctx context.Context, cmd model.Command) model.CommandReply {
	prompt := strings.TrimSpace(cmd.Option("prompt"))
	if prompt == "" {
		return ephemeral(MessageEmptyPrompt)
	}
	msg, err := c.Transport.Message(ctx, cmd.ChannelID, cmd.Option("message_id"))
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
		return ephemeral(MessageNoImage)
	}
	urls := imageURLs(msg.Attachments)
	if len(urls) == 0 {
		return ephemeral(MessageNoValidImage)
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, url := range urls {
		parts = append(
			parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			},
		)
	}
	resp, err := c.Vision.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model: c.cfg.VisionModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, MultiContent: parts},
			},
		},
	)
	if err != nil {
		log.Printf("[command] %s: %v", cmd.Name, err)
		return ephemeral(fmt.Sprintf(MessageImageFailedFormat, err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return model.CommandReply{Messages: []string{MessageAgentNoContent}}
	}
	return model.CommandReply{
		Messages: textutil.SplitMarkdown(resp.Choices[0].Message.Content, textutil.DiscordMessageLimit),
	}
}

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

func imageURLs(attachments []model.Attachment) []string {
	var urls []string
	for _, attachment := range attachments {
		name := strings.ToLower(attachment.Filename)
		if slices.ContainsFunc(imageExtensions, func(ext string) bool { return strings.HasSuffix(name, ext) }) {
			urls = append(urls, attachment.URL)
		}
	}
	return urls
}

// targetLanguage resolves the explicit option, then the stored preference.
// Context menus also fall back to the client locale when that preference is
// English.
func (c *CommandUsecase) targetLanguage(ctx context.Context, cmd model.Command, useLocale bool) local.Language {
	if language, ok := local.ParseLanguage(cmd.Option("to_language")); ok {
		return language
	}
	if useLocale {
		return c.Preferences.LanguageForLocale(ctx, cmd.User.ID, cmd.Locale)
	}
	return c.Preferences.Language(ctx, cmd.User.ID)
}

// collect reads history and returns it oldest first.
func (c *CommandUsecase) collect(ctx context.Context, channelID string, opts model.HistoryOptions) ([]model.InboundMessage, error) {
	var messages []model.InboundMessage
	for msg, err := range c.Transport.History(ctx, channelID, opts) {
		if err != nil {
			return reverseMessages(messages), fmt.Errorf("failed to read history of %s: %w", channelID, err)
		}
		messages = append(messages, msg)
	}
	return reverseMessages(messages), nil
}

func reverseMessages(messages []model.InboundMessage) []model.InboundMessage {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages
}

// speaker prefers the name framed into a relayed message over the author,
// which is then the relay bot itself.
func speaker(msg model.InboundMessage, framed framing.FramedMessage) string {
	if framed.HasName() {
		return framed.Name
	}
	return msg.Author.DisplayName
}

func renderTranslation(target local.Language, translation, original, author string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Translation → %s**\n%s\n\n> %s", target, translation, textutil.Truncate(original, 1024))
	if author != "" {
		fmt.Fprintf(&b, "\n-# From: %s", author)
	}
	return b.String()
}

func ephemeral(text string) model.CommandReply {
	return model.CommandReply{Messages: []string{text}, Ephemeral: true}
}
