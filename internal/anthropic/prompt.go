package anthropic

import "strings"

const systemPrompt = `You are a game generator. Turn the user's idea into a small, working, single-file game.
Requirements:
- Output exactly ONE complete HTML document with the CSS and JavaScript embedded in it.
- Do not use external libraries, fonts, images or any network request.
- The game must be playable with the keyboard or the mouse (touch is a bonus).
- It must also work on small screens; a canvas is recommended.
- Stay inside the game area. Do not use localStorage, cookies or any other persistent storage.
- Keep the code simple, readable and short.

Template:
<!DOCTYPE html>
<html>
  <head>... styles ...</head>
  <body>... canvas or DOM based game ...</body>
</html>`

const (
	userLeadIn = "The user wants this game:\n\n"
	userSuffix = "\n\nInstruction: produce the entire game as a single HTML document."
)

// SystemPrompt returns the fixed instructions sent with every request
func SystemPrompt() string {
	return systemPrompt
}

// UserMessage wraps the idea in the fixed lead-in and instruction suffix
func UserMessage(prompt string) string {
	var sb strings.Builder
	sb.Grow(len(userLeadIn) + len(prompt) + len(userSuffix))
	sb.WriteString(userLeadIn)
	sb.WriteString(prompt)
	sb.WriteString(userSuffix)
	return sb.String()
}
