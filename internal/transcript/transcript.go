// Package transcript assembles partial and refined segment text into the
// displayed transcript.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies an Update.
type Kind int

const (
	// KindPartial carries first-pass text for the open segment.
	KindPartial Kind = iota
	// KindCommit closes a segment with refined (or fallback) text.
	KindCommit
	// KindStatus carries a status message and no new text.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindCommit:
		return "commit"
	default:
		return "status"
	}
}

// Update is an immutable snapshot published to the presentation side.
type Update struct {
	Kind    Kind
	Display string
	Segment int
	Text    string
	// Refined is false when a commit fell back to the streaming text.
	Refined   bool
	Status    string
	Timestamp time.Time
}

// Assembler merges segment text into a display transcript. The zero value is
// ready to use; it is owned by the decode goroutine.
type Assembler struct {
	finalized string
	index     int
}

// Segment returns the index of the open segment.
func (a *Assembler) Segment() int { return a.index }

// Finalized returns the committed lines.
func (a *Assembler) Finalized() string { return a.finalized }

// Reset clears committed text and restarts numbering at zero.
func (a *Assembler) Reset() {
	a.finalized = ""
	a.index = 0
}

// Partial renders the display for the open segment's streaming text. Blank
// text shows only the committed lines.
func (a *Assembler) Partial(text string) Update {
	text = strings.TrimSpace(text)
	display := a.finalized
	if text != "" {
		display = join(a.finalized, line(a.index, text))
	}
	return Update{
		Kind:      KindPartial,
		Display:   strings.ToLower(display),
		Segment:   a.index,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Commit appends text as the final line of the open segment and advances the
// segment index by exactly one.
func (a *Assembler) Commit(text string, refined bool) Update {
	text = strings.TrimSpace(text)
	seg := a.index
	a.finalized = join(a.finalized, line(seg, text))
	a.index++
	return Update{
		Kind:      KindCommit,
		Display:   strings.ToLower(a.finalized),
		Segment:   seg,
		Text:      text,
		Refined:   refined,
		Timestamp: time.Now(),
	}
}

func line(idx int, text string) string {
	return fmt.Sprintf("%d: %s", idx, text)
}

func join(head, tail string) string {
	if head == "" {
		return tail
	}
	return head + "\n" + tail
}

// Export writes display verbatim to path.
func Export(path, display string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(display), 0o644)
}

// AppendLog appends a committed segment to the transcript log as
// "RFC3339<TAB>segment<TAB>text".
func AppendLog(path string, u Update) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%s\t%d\t%s\n", u.Timestamp.Format(time.RFC3339), u.Segment, u.Text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
