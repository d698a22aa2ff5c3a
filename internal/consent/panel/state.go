package panel

// State is the visibility of the preference panel for one page.
type State struct {
	Visible     bool
	OptionsOpen bool
}

// InitialState shows the panel only to visitors without any consent cookie.
// The declined sentinel counts as a cookie, so a declined visitor is not
// prompted again until it expires.
func InitialState(hasCookie bool) State {
	return State{Visible: !hasCookie}
}

// Show opens the panel on its extended options view.
func (s State) Show() State {
	return State{Visible: true, OptionsOpen: true}
}

// Hide closes the panel. The options view is collapsed with it.
func (s State) Hide() State {
	return State{}
}

// Toggle flips visibility, keeping the options view as it was.
func (s State) Toggle() State {
	if s.Visible {
		return s.Hide()
	}
	s.Visible = true
	return s
}

// ToggleOptions flips between the banner and the extended options view.
// Opening the options makes the panel visible.
func (s State) ToggleOptions() State {
	if s.OptionsOpen {
		s.OptionsOpen = false
		return s
	}
	return s.Show()
}

// View is the query value selecting the panel variant.
func (s State) View() string {
	if s.OptionsOpen {
		return ViewOptions
	}
	return ViewBanner
}

// Panel views.
const (
	ViewBanner  = "banner"
	ViewOptions = "options"
)

// StateForView returns the visible state for a view name. Unknown names fall
// back to the banner.
func StateForView(view string) State {
	if view == ViewOptions {
		return State{}.Show()
	}
	return State{Visible: true}
}
