// Package chunk splits long text into bounded segments that respect
// paragraph and sentence boundaries.
package chunk

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// CharsPerSecond is the speaking rate the speech thresholds are calibrated to.
const CharsPerSecond = 16.5

// sentenceSplitMargin is how close to Max a buffer must grow before it is
// split on a sentence boundary.
const sentenceSplitMargin = 200

// Options bounds chunk sizes in characters (runes).
type Options struct {
	Min    int
	Target int
	Max    int
}

var (
	// SpeechOptions maps a chunk to roughly 65-100 seconds of audio.
	SpeechOptions = Options{Min: 1050, Target: 1200, Max: 1650}
	// DistributionOptions sizes script chunks posted to group chats.
	DistributionOptions = Options{Min: 2000, Target: 3000, Max: 3500}
)

// TextChunk is one segment of a split text.
type TextChunk struct {
	Content                  string `json:"content"`
	SequenceIndex            int    `json:"sequence_index"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds"`
}

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n\s*`)
	// A sentence ends at terminal punctuation, optionally followed by
	// closing quotes or brackets, and then whitespace. CJK terminals need
	// no trailing space.
	sentenceEnd = regexp.MustCompile(`(?:[.!?…۔؟।]+["'”’»)\]]*\s+|[。！？]+\s*)`)
)

func (o Options) normalize() Options {
	if o.Max <= 0 {
		return SpeechOptions
	}
	if o.Target <= 0 || o.Target > o.Max {
		o.Target = o.Max
	}
	if o.Min <= 0 || o.Min > o.Target {
		o.Min = o.Target
	}
	return o
}

// Split divides text into ordered chunks. Text that already fits within
// opts.Max is returned as a single chunk; empty text yields no chunks.
func Split(text string, opts Options) []TextChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	opts = opts.normalize()

	var parts []string
	switch paragraphs := splitParagraphs(text); {
	case runeLen(text) <= opts.Max:
		parts = []string{text}
	case len(paragraphs) < 2:
		parts = splitBySentence(text, opts)
	default:
		parts = splitByParagraph(paragraphs, opts)
	}

	chunks := make([]TextChunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, TextChunk{
			Content:                  p,
			SequenceIndex:            len(chunks),
			EstimatedDurationSeconds: EstimateSeconds(p),
		})
	}
	return chunks
}

// EstimateSeconds returns the approximate spoken duration of s.
func EstimateSeconds(s string) int {
	return int(math.Round(float64(runeLen(s)) / CharsPerSecond))
}

func splitByParagraph(paragraphs []string, o Options) []string {
	var out []string
	var buf string
	for i, p := range paragraphs {
		more := i < len(paragraphs)-1

		// An undersized buffer absorbs the next paragraph even if that
		// takes it past Max.
		if buf != "" && runeLen(buf)+runeLen(p) > o.Max && runeLen(buf) >= o.Min {
			out = append(out, buf)
			buf = p
		} else {
			buf = joinParagraphs(buf, p)
		}

		for runeLen(buf) >= o.Min {
			n := runeLen(buf)
			if n <= o.Max && n >= o.Target && more {
				out = append(out, buf)
				buf = ""
				break
			}
			if n < o.Max-sentenceSplitMargin {
				break
			}
			prefix, rest, ok := splitAtSentence(buf, o)
			if !ok {
				// No sentence prefix lands in [Min, Max]; the buffer is
				// kept whole and emitted oversized.
				break
			}
			out = append(out, prefix)
			buf = rest
		}
	}
	if buf != "" {
		out = append(out, buf)
	}
	return out
}

// splitAtSentence returns the first sentence-aligned prefix of buf whose
// length falls within [Min, Max] and the remainder after it.
func splitAtSentence(buf string, o Options) (string, string, bool) {
	for _, end := range sentenceBoundaries(buf) {
		prefix := strings.TrimSpace(buf[:end])
		n := runeLen(prefix)
		if n > o.Max {
			return "", "", false
		}
		if n >= o.Min {
			rest := strings.TrimSpace(buf[end:])
			if rest == "" {
				return "", "", false
			}
			return prefix, rest, true
		}
	}
	return "", "", false
}

func splitBySentence(text string, o Options) []string {
	var out []string
	var cur string
	emit := func() {
		if s := strings.TrimSpace(cur); s != "" {
			out = append(out, s)
		}
		cur = ""
	}
	for _, s := range sentences(text) {
		if strings.TrimSpace(cur) != "" && runeLen(strings.TrimSpace(cur+s)) > o.Max {
			emit()
		}
		cur += s
		if runeLen(strings.TrimSpace(cur)) >= o.Target {
			emit()
		}
	}
	emit()
	return out
}

// sentenceBoundaries returns the byte offsets at which each sentence after
// the first begins.
func sentenceBoundaries(s string) []int {
	var bounds []int
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		if loc[1] < len(s) {
			bounds = append(bounds, loc[1])
		}
	}
	return bounds
}

// sentences splits s into consecutive pieces whose concatenation is s.
func sentences(s string) []string {
	var out []string
	start := 0
	for _, end := range sentenceBoundaries(s) {
		out = append(out, s[start:end])
		start = end
	}
	return append(out, s[start:])
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinParagraphs(buf, p string) string {
	if buf == "" {
		return p
	}
	return buf + "\n\n" + p
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
