package models

// NavigationItem is a single sidebar link.
type NavigationItem struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Path string `json:"path"`
}

// NavigationSection groups sidebar links under a heading.
type NavigationSection struct {
	Title string           `json:"title"`
	Items []NavigationItem `json:"items"`
}

// NavigationConfig is the static sidebar definition for one role.
type NavigationConfig struct {
	Role     UserRole            `json:"role"`
	Title    string              `json:"title"`
	Icon     string              `json:"icon"`
	Color    string              `json:"color"`
	Sections []NavigationSection `json:"sections"`
}

// Clone returns a deep copy so callers cannot mutate the shared table.
func (c NavigationConfig) Clone() NavigationConfig {
	out := c
	out.Sections = make([]NavigationSection, len(c.Sections))
	for i, section := range c.Sections {
		out.Sections[i] = NavigationSection{
			Title: section.Title,
			Items: append([]NavigationItem(nil), section.Items...),
		}
	}
	return out
}

// Drawer widths in pixels.
const (
	DrawerWidthExpanded  = 280
	DrawerWidthCollapsed = 70
)

// HoverCollapseDelayMS is how long the sidebar stays hover-expanded after the
// pointer leaves it.
const HoverCollapseDelayMS = 300

// Shell is everything needed to render the app bar and sidebar around a page.
type Shell struct {
	User               UserInfo         `json:"user"`
	Menu               NavigationConfig `json:"menu"`
	MenuFallback       bool             `json:"menu_fallback"`
	Layout             LayoutVariant    `json:"layout"`
	Collapsed          bool             `json:"collapsed"`
	DrawerWidth        int              `json:"drawer_width"`
	HoverCollapseDelay int              `json:"hover_collapse_delay_ms"`
	UnreadCount        int64            `json:"unread_count"`
}
