package usecase

const gameGlossary = `Keep these gaming and technical terms unchanged:
- Gaming terms: coil, spawn, respawn, AFK, GG, DC, lag, ping, fps, coords, waypoint, cargo, trailer, hub, zone, stash, loot, buff, debuff, meta, OP.
- Commands: /spawn, /home, /tpa, /tp, /kit, /warp.
- Game objects: truck names, vehicle names, car names.
- Roles: admin, mod, owner, VIP.`

const culturalAdaptation = `Adapt internet slang naturally between languages:
- 'lol/haha/lmao' becomes '555' (Thai), 'wkwk' (Indonesian), '哈哈' (Chinese), '草' or 'www' (Japanese).
- Keep English slang for Japanese or Vietnamese when there is no natural equivalent.`

const translationGuidance = "\n\nGLOSSARY:\n" + gameGlossary + "\n\nCULTURAL ADAPTATION:\n" + culturalAdaptation

const (
	promptTranslateTo = "Translate the message to %s. Auto-detect the source language. " +
		"If it is already in the target language, return it unchanged. " +
		"If the message starts with a username like '**Username**: ' or 'Username: ', translate only the content after it. " +
		"Output only the translated content without the username prefix." + translationGuidance

	promptTranslateMulti = "Translate the message into each of these languages: %s. " +
		"Casual tone, no rude words. For slash commands translate only the parameters. " +
		"Auto-detect the source language. If the message is already in one of the target languages, return it as is for that language. " +
		"If the message starts with a username, translate only the content." + translationGuidance

	promptTranslateThread = "Translate the following conversation thread to %s. " +
		"Preserve the format 'Username: message' exactly. " +
		"Only translate the message content, keep usernames unchanged. " +
		"Auto-detect source languages." + translationGuidance
)

const (
	promptKnowledgeSystem = `You are the assistant of the %s Discord community, a Motor Town dedicated server.
Answer questions about the server, its rules, events and the game. Use tools when they help:
query the game database for vehicles, cargo and parts, create polls or scheduled events when asked,
and announce in game only when explicitly requested. Keep answers concise and friendly.
Reply in the language of the question.`

	promptInGameSystem = `You are a helper bot inside the Motor Town game chat of the %s server.
Answers are shown in the in-game chat, so reply in one or two short sentences, plain text only, no markdown.
Use the game database tools for facts about vehicles, cargo and parts. Reply in the language of the question.`

	promptDevBotSystem = `You are JARVIS, a development assistant for the repository of a Motor Town community server.
You can search files, read them, grep the codebase, list directories and compute nix hashes for URLs.
Explore before answering, cite file paths, and keep answers focused. Format replies as Discord markdown.`
)
