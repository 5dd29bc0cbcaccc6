package model

const (
	CommandBot             = "bot"
	CommandSetLanguage     = "set-language"
	CommandTranslate       = "translate"
	CommandTranslateThread = "translate_thread"
	CommandTranslateMsg    = "Translate Message"
	CommandTranslateBatch  = "Translate Last 10"
	CommandProcessImage    = "Process Image with Prompt"

	// CommandImagePrompt is the custom id prefix of the prompt modal opened by
	// CommandProcessImage. The submitted modal arrives as a command of that
	// name with the "message_id" and "prompt" options.
	CommandImagePrompt = "image_prompt"
)

// Command is a slash command or context menu invocation.
type Command struct {
	Name      string
	Options   map[string]string
	User      Author
	ChannelID string
	GuildID   string
	Locale    string
	Target    *InboundMessage
}

func (c Command) Option(name string) string {
	if c.Options == nil {
		return ""
	}
	return c.Options[name]
}

// Modal asks the user for one paragraph of text before the command runs.
type Modal struct {
	CustomID    string
	Title       string
	InputID     string
	Label       string
	Placeholder string
}

type CommandReply struct {
	Messages  []string
	Ephemeral bool
	// Modal replaces the messages when set.
	Modal *Modal
}
