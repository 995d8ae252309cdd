package discussion

import (
	"fmt"
	"strings"
)

// framingText is the system-context utterance that opens every discussion.
func framingText(topic string, maxSentences int) string {
	return fmt.Sprintf("Let's discuss: %s\n\n"+
		"Everyone will share perspectives and challenge each other. "+
		"Keep responses brief (%s sentences) and impactful!", topic, sentenceRange(maxSentences))
}

// speechInstruction tells a speaker how to take its turn.
func speechInstruction(speaker Agent, maxSentences int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, please share your perspective or respond to others. ", speaker.Name)
	b.WriteString("Speak in the first person and stay in character. ")
	b.WriteString("Acknowledge what others just said, and challenge it where you disagree. ")
	fmt.Fprintf(&b, "Keep it to %s sentences.", sentenceRange(maxSentences))
	return b.String()
}

// buildGenerationRequest assembles one speaker's bounded context. window is
// already limited to the configured number of non-system utterances.
func buildGenerationRequest(discussionID, topic string, speaker Agent, window []Utterance, maxSentences int) *GenerationRequest {
	return &GenerationRequest{
		DiscussionID: discussionID,
		Speaker:      speaker,
		Topic:        topic,
		Window:       window,
		Instruction:  speechInstruction(speaker, maxSentences),
		Style: StyleHints{
			MaxSentences: maxSentences,
			FirstPerson:  true,
		},
	}
}

func sentenceRange(max int) string {
	if max <= 1 {
		return "1"
	}
	if max == 2 {
		return "1-2"
	}
	return fmt.Sprintf("%d-%d", max-1, max)
}
