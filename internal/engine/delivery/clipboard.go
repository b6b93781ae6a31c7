package delivery

import (
	"errors"

	"github.com/atotto/clipboard"
)

// SystemClipboard implements engine.Clipboard with the OS clipboard
// (pbcopy, xclip/xsel/wl-copy, or the Windows API).
type SystemClipboard struct{}

func (SystemClipboard) Copy(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard: no clipboard utility found")
	}
	return clipboard.WriteAll(text)
}
