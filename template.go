package main

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/life4/genesis/slices"
)

const (
	callbackMode   = "mode:"
	callbackPoster = "poster:"
	callbackAlt    = "alt:"
	callbackRetry  = "retry:"
	callbackLang   = "lang:"
)

const labelButtonWidth = 30

// callbackDataLimit is Telegram's cap on callback_data, in bytes.
const callbackDataLimit = 64

func stageTitle(stage Stage) string {
	switch stage {
	case StageAwaitingMode:
		return "choosing the mode"
	case StageCollectingFiles:
		return "collecting files"
	case StageAwaitingPosterChoice:
		return "choosing the poster type"
	case StageCollectingPoster:
		return "waiting for the poster"
	case StageCollectingCode:
		return "waiting for the code"
	case StageAwaitingAltLinkChoice:
		return "choosing the alternate link"
	case StageCollectingAltLink:
		return "waiting for the alternate link"
	}
	return string(stage)
}

func stageHint(s *Session) string {
	text, _ := BuildStagePrompt(s)
	return text
}

// BuildStagePrompt is what the admin is asked for in the session's stage.
func BuildStagePrompt(s *Session) (string, Buttons) {
	switch s.Stage {
	case StageAwaitingMode:
		return "📥 New upload. How are the files organised?", Buttons{
			{{Text: "📄 One list", Data: callbackMode + string(ModeSingle)},
				{Text: "🌐 By language", Data: callbackMode + string(ModeMulti)}},
		}
	case StageCollectingFiles:
		if s.Mode == ModeMulti {
			return "🌐 Send a language label (e.g. Hindi), then its files. Repeat for every language and send /done when finished.", nil
		}
		return "📄 Send the movie files in the order they should be delivered, then /done.", nil
	case StageAwaitingPosterChoice:
		return "🖼 How do you want to provide the poster?", Buttons{
			{{Text: "✍️ Compose", Data: callbackPoster + string(PosterCompose)},
				{Text: "🔁 Forward", Data: callbackPoster + string(PosterRelay)}},
		}
	case StageCollectingPoster:
		if s.PosterMode == PosterRelay {
			return "🔁 Forward the poster post here. It will be relayed as is.", nil
		}
		return "🖼 Send the poster: a photo with a caption, or a text message.", nil
	case StageCollectingCode:
		return "🔢 Now send the unique movie code (e.g. <code>kgf2</code>).", nil
	case StageAwaitingAltLinkChoice:
		return "🔗 Add an alternate link button?", Buttons{
			{{Text: "⏭ Skip", Data: callbackAlt + string(AltLinkSkip)},
				{Text: "➕ Add link", Data: callbackAlt + string(AltLinkProvide)}},
			{{Text: "❌ Cancel upload", Data: callbackAlt + string(AltLinkCancel)}},
		}
	case StageCollectingAltLink:
		return "🔗 Send the alternate link (http:// or https://).", nil
	}
	return "Send /upload to start.", nil
}

// BuildProgressText acknowledges accepted input that did not change stage.
func BuildProgressText(s *Session) string {
	if s.Mode == ModeMulti && s.CurrentLabel != "" {
		i := s.sectionIndex(s.CurrentLabel)
		return fmt.Sprintf("✅ <b>%s</b>: %d file(s). Send more, another label, or /done.",
			html.EscapeString(s.CurrentLabel), len(s.Sections[i].Files))
	}
	return fmt.Sprintf("✅ %d file(s) so far. Send more or /done.", s.FileCount())
}

func BuildPublishedText(pub *Publication) string {
	text := "✅ Movie added under code <code>" + pub.Code + "</code>! Forward the preview above to your channel/group."
	if pub.Broadcast != nil {
		text += "\n📢 Also posted to the broadcast channel."
	}
	if pub.BroadcastErr != nil {
		text += "\n⚠️ Posting to the broadcast channel failed: " + html.EscapeString(pub.BroadcastErr.Error())
	}
	return text
}

func BuildDeepLink(botUsername, code string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + code
}

func PreviewButtons(botUsername, code, altLink string) Buttons {
	buttons := Buttons{{{Text: "🎬 Get Movie", URL: BuildDeepLink(botUsername, code)}}}
	if altLink != "" {
		buttons = append(buttons, []Button{{Text: "🔗 Alternate Link", URL: altLink}})
	}
	return buttons
}

func JoinButtons(channelLink, code, language string) Buttons {
	data := callbackRetry + code
	// a language too long for the payload is dropped; the retry then
	// offers the language buttons instead
	if language != "" && len(data)+1+len(language) <= callbackDataLimit {
		data += ":" + language
	}
	var buttons Buttons
	if channelLink != "" {
		buttons = append(buttons, []Button{{Text: "📢 Join Channel", URL: channelLink}})
	}
	return append(buttons, []Button{{Text: "🔄 Try Again", Data: data}})
}

func LanguageButtons(code string, labels []string) Buttons {
	buttons := make(Buttons, 0, len(labels))
	for i, label := range labels {
		text := []rune(label)
		if len(text) > labelButtonWidth {
			text = text[:labelButtonWidth]
		}
		buttons = append(buttons, []Button{{Text: string(text), Data: callbackLang + code + ":" + strconv.Itoa(i)}})
	}
	return buttons
}

func BuildJoinText() string {
	return "🔒 Join our channel first, then press <b>Try Again</b>."
}

func BuildStartUsage() string {
	return "❌ Usage: /start &lt;moviecode&gt;"
}

func BuildDeliveryReport(report DeliveryReport) string {
	if len(report.Failed) == 0 {
		return ""
	}
	lines := []string{fmt.Sprintf("⚠️ %d of %d file(s) could not be sent:", len(report.Failed), report.Sent+len(report.Failed))}
	for _, err := range report.Failed {
		lines = append(lines, "• "+html.EscapeString(err.Error()))
	}
	return strings.Join(lines, "\n")
}

func PreviewCaption(entry Entry, custom bool, channel string) string {
	if custom && entry.PosterMode == PosterCompose && entry.PosterText != "" && channel != "" {
		return BuildCustomCaption(entry.PosterText, channel)
	}
	return html.EscapeString(entry.PosterText)
}

var (
	captionTitlePattern   = regexp.MustCompile(`^(.*?)\s*\((\d{4})\)?`)
	captionQualityPattern = regexp.MustCompile(`(?i)(2160p|4k|1440p|1080p|720p|480p|360p|hdr|webrip|web-dl|bluray|nf|uhd|10bit|hevc|x265|x264|ddp5\.1|esub)`)
	captionSizePattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(GB|MB))`)
)

var captionLanguages = []struct{ key, tag string }{
	{"malayalam", "#Malayalam"},
	{"hindi", "#Hindi"},
	{"hin", "#Hindi"},
	{"tamil", "#Tamil"},
	{"telugu", "#Telugu"},
	{"kan", "#Kannada"},
	{"kannada", "#Kannada"},
	{"english", "#English"},
	{"eng", "#English"},
}

// BuildCustomCaption rewrites a release caption into the channel's house
// style: bold title with year, language tags, quality tokens, size and a
// channel footer.
func BuildCustomCaption(original, channel string) string {
	name, year := "Movie", ""
	if m := captionTitlePattern.FindStringSubmatch(original); m != nil {
		name, year = strings.TrimSpace(m[1]), m[2]
	}
	lower := strings.ToLower(original)

	var tags []string
	for _, l := range captionLanguages {
		if strings.Contains(lower, l.key) && !slices.Contains(tags, l.tag) {
			tags = append(tags, l.tag)
		}
	}
	var quality []string
	for _, q := range captionQualityPattern.FindAllString(lower, -1) {
		q = strings.ToUpper(q)
		if !slices.Contains(quality, q) {
			quality = append(quality, q)
		}
	}
	size := ""
	if m := captionSizePattern.FindString(original); m != "" {
		size = strings.ReplaceAll(m, " ", "")
	}

	title := "<b>" + html.EscapeString(name) + "</b>"
	if year != "" {
		title = "<b>" + html.EscapeString(name) + " (" + year + ")</b>"
	}
	info := strings.TrimSpace(strings.Join(tags, " ") + " " + strings.Join(quality, " ") + " " + size)
	footer := "\n🔗 @" + strings.TrimPrefix(channel, "@")
	return title + "\n" + info + "\n" + footer
}

func BuildStatusText(entries, sessions int, reach string) string {
	text := "✅ Bot is alive.\n🎬 Movies: " + strconv.Itoa(entries) + "\n📥 Uploads in progress: " + strconv.Itoa(sessions)
	if reach != "" {
		text += "\n🌐 Keep-alive: " + html.EscapeString(reach)
	}
	return text
}
