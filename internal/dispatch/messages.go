package dispatch

import "fmt"

const (
	labelScript  = "🎬 Script\n\n"
	labelVisuals = "🖼️ Visuals\n\n"

	reactionDone = "✅"

	msgScriptFailed   = "❌ Could not write the script right now. Please try again in a moment."
	msgVisualsFailed  = "❌ Could not research visuals right now. Please try again in a moment."
	msgAgendaFailed   = "❌ Could not fetch today's agenda. Please try again in a moment."
	msgSessionMissing = "⏳ There is no recent agenda in this chat. Send \"agenda\" first, then reply with a headline number."
	msgSessionExpired = "⏳ The last agenda is more than an hour old. Send \"agenda\" again, then reply with a headline number."
	msgEmptyAgenda    = "⏳ The last agenda had no numbered headlines. Send \"agenda\" again."
)

func selectionOutOfRange(n int) string {
	if n == 0 {
		return msgEmptyAgenda
	}
	return fmt.Sprintf("🔢 Pick a headline number between 1 and %d.", n)
}

func scriptHeading(summary string) string {
	return "📝 *New script*\n" + summary
}

func voiceNotice(voiceName string, parts int, fellBack bool, requested string) string {
	plural := "part"
	if parts != 1 {
		plural = "parts"
	}
	if fellBack {
		return fmt.Sprintf("🎙️ Voice %q is not configured, using %s instead. Generating audio in %d %s...", requested, voiceName, parts, plural)
	}
	return fmt.Sprintf("🎙️ Generating audio with %s in %d %s...", voiceName, parts, plural)
}

func voiceFailed(parts int) string {
	return fmt.Sprintf("❌ Audio generation failed for all %d parts. Please try again later.", parts)
}
