// Package share builds invitation links for test rooms and copies them to
// the terminal clipboard.
package share

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/domain"
)

var ErrEmptyRoom = errors.New("empty room id")

// Link returns base with the meetingId query parameter set to id.
func Link(base string, id domain.RoomID) (string, error) {
	if id == "" {
		return "", ErrEmptyRoom
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse share base: %w", err)
	}
	q := u.Query()
	q.Set("meetingId", string(id))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Clipboard writes OSC 52 sequences, which most terminal emulators turn into
// a clipboard copy.
type Clipboard struct {
	Out io.Writer
}

// Copy puts text on the clipboard and returns the feedback line for the user.
func (c Clipboard) Copy(label, text string) (string, error) {
	if c.Out == nil {
		return "Failed to copy " + label, errors.New("no terminal output")
	}
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
	if _, err := io.WriteString(c.Out, seq); err != nil {
		log.Warn().Err(err).Str("module", "share").Msg("clipboard write")
		return "Failed to copy " + label, err
	}
	return label + " copied to clipboard", nil
}
