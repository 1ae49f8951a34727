// Package output builds termenv outputs and lipgloss renderers with the
// color profile rules shared by every orca writer.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// NoColorEnv disables colored output when set to any non-empty value.
const NoColorEnv = "NO_COLOR"

// Profile returns the color profile for interactive use: Ascii when NO_COLOR
// is set, otherwise whatever the terminal advertises.
func Profile() termenv.Profile {
	if os.Getenv(NoColorEnv) != "" {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// ProfileCI returns the color profile for logs that are usually piped:
// Ascii when NO_COLOR is set, otherwise plain ANSI.
func ProfileCI() termenv.Profile {
	if os.Getenv(NoColorEnv) != "" {
		return termenv.Ascii
	}
	return termenv.ANSI
}

// New creates a termenv.Output on w using Profile. A nil w means stderr.
func New(w io.Writer) *termenv.Output {
	return NewWithProfile(w, Profile)
}

// NewCI creates a termenv.Output on w using ProfileCI.
func NewCI(w io.Writer) *termenv.Output {
	return NewWithProfile(w, ProfileCI)
}

// NewWithProfile creates a termenv.Output using the profile chosen by profileFn.
func NewWithProfile(w io.Writer, profileFn func() termenv.Profile) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	return termenv.NewOutput(w, termenv.WithProfile(profileFn()), termenv.WithTTY(true))
}

// Renderer returns a lipgloss renderer bound to w with the interactive profile.
func Renderer(w io.Writer) *lipgloss.Renderer {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(Profile())
	return r
}
