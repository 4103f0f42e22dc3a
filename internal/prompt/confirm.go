package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
)

// Confirmer asks a yes/no question before an import writes anything.
type Confirmer struct {
	In  io.Reader
	Out io.Writer
	// AssumeYes answers yes without asking (--yes).
	AssumeYes bool
}

// Confirm shows title and description and returns the answer. Aborting the
// form (esc, ctrl+c) counts as no.
func (c *Confirmer) Confirm(ctx context.Context, title, description string) (bool, error) {
	if c.AssumeYes {
		return true, nil
	}

	ok := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Import").
				Negative("Cancel").
				Value(&ok),
		),
	).WithTheme(huh.ThemeCharm()).
		WithInput(c.In).
		WithOutput(c.Out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}
