package view

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"github.com/epathshala/portal-api/internal/models"
)

const unreadBadgeCap = 99

// ShellPage renders the app bar and sidebar for the given shell around an
// empty content region. activePath highlights the matching sidebar link.
func ShellPage(shell *models.Shell, activePath string) g.Node {
	return html.Doctype(
		html.HTML(
			html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(g.Text(shell.Menu.Title)),
				html.StyleEl(g.Raw(shellCSS(shell))),
			),
			html.Body(
				html.Class("shell"),
				html.DataAttr("layout", string(shell.Layout)),
				html.DataAttr("hover-delay", strconv.Itoa(shell.HoverCollapseDelay)),
				AppBar(shell),
				Sidebar(shell, activePath),
				html.Main(
					html.ID("content"),
					html.Class("shell-content"),
				),
			),
		),
	)
}

// AppBar renders the colored top bar with the portal title, the unread badge
// and the signed in user.
func AppBar(shell *models.Shell) g.Node {
	return html.Header(
		html.Class("app-bar"),
		html.Style("background-color: "+shell.Menu.Color),
		html.Span(html.Class("material-icons"), g.Text(shell.Menu.Icon)),
		html.H1(html.Class("app-bar-title"), g.Text(shell.Menu.Title)),
		html.A(
			html.Class("notifications"),
			html.Href("/notifications"),
			html.Aria("label", "notifications"),
			html.Span(html.Class("material-icons"), g.Text("notifications")),
			g.If(shell.UnreadCount > 0, html.Span(
				html.Class("badge"),
				g.Text(unreadBadge(shell.UnreadCount)),
			)),
		),
		html.Span(html.Class("user-name"), g.Text(displayName(shell.User))),
	)
}

// Sidebar renders the role menu. A collapsed sidebar keeps the icons and
// hides the text.
func Sidebar(shell *models.Shell, activePath string) g.Node {
	classes := "sidebar"
	if shell.Collapsed {
		classes += " collapsed"
	}
	return html.Aside(
		html.Class(classes),
		html.Style(fmt.Sprintf("width: %dpx", shell.DrawerWidth)),
		html.Nav(
			g.Map(shell.Menu.Sections, func(section models.NavigationSection) g.Node {
				return html.Section(
					html.Class("sidebar-section"),
					g.If(!shell.Collapsed, html.H2(g.Text(section.Title))),
					html.Ul(
						g.Map(section.Items, func(item models.NavigationItem) g.Node {
							return navItem(item, item.Path == activePath, shell.Collapsed)
						}),
					),
				)
			}),
		),
	)
}

func navItem(item models.NavigationItem, active, collapsed bool) g.Node {
	classes := "nav-item"
	if active {
		classes += " active"
	}
	return html.Li(
		html.A(
			html.Class(classes),
			html.Href(item.Path),
			html.TitleAttr(item.Text),
			html.Span(html.Class("material-icons"), g.Text(item.Icon)),
			g.If(!collapsed, html.Span(html.Class("nav-text"), g.Text(item.Text))),
		),
	)
}

func unreadBadge(count int64) string {
	if count > unreadBadgeCap {
		return strconv.Itoa(unreadBadgeCap) + "+"
	}
	return strconv.FormatInt(count, 10)
}

func displayName(user models.UserInfo) string {
	if strings.TrimSpace(user.FullName) != "" {
		return user.FullName
	}
	return user.Email
}

func shellCSS(shell *models.Shell) string {
	return fmt.Sprintf(`body.shell{margin:0;font-family:Roboto,Arial,sans-serif}
.app-bar{display:flex;align-items:center;gap:12px;height:64px;padding:0 16px;color:#fff;margin-left:%[1]dpx}
.app-bar-title{flex:1;font-size:20px;margin:0}
.notifications{position:relative;color:inherit}
.badge{position:absolute;top:-6px;right:-10px;background:#f44336;border-radius:10px;padding:0 6px;font-size:12px}
.sidebar{position:fixed;top:0;bottom:0;left:0;overflow-x:hidden;border-right:1px solid #e0e0e0;background:#fff;transition:width .2s}
.sidebar h2{font-size:12px;text-transform:uppercase;color:#757575;padding:0 16px}
.sidebar ul{list-style:none;margin:0;padding:0}
.nav-item{display:flex;align-items:center;gap:16px;padding:10px 20px;color:#424242;text-decoration:none}
.nav-item.active{background:rgba(0,0,0,.08);color:%[2]s}
.shell-content{margin-left:%[1]dpx;padding:24px}`, shell.DrawerWidth, shell.Menu.Color)
}

// Render writes the shell page as HTML.
func Render(w io.Writer, shell *models.Shell, activePath string) error {
	return ShellPage(shell, activePath).Render(w)
}

// PlainPage is the bare document for pages outside the dashboard shell, such
// as the login screen.
func PlainPage(title, page string) g.Node {
	return html.Doctype(
		html.HTML(
			html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.TitleEl(g.Text(title)),
			),
			html.Body(
				html.Main(
					html.ID("content"),
					html.DataAttr("page", page),
				),
			),
		),
	)
}
