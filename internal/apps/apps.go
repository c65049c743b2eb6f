// Package apps classifies executables by whether they are likely to hold
// unsaved user work and maps well-known executables to their top-level
// window classes.
package apps

import (
	"sort"
	"strings"
)

// Category groups executables of a similar kind.
type Category struct {
	Name        string
	Executables []string
}

var defaultCategories = []Category{
	{Name: "office", Executables: []string{
		"WINWORD.EXE", "EXCEL.EXE", "POWERPNT.EXE", "ONENOTE.EXE", "OUTLOOK.EXE",
		"PUBLISHER.EXE", "MSACCESS.EXE", "swriter.exe", "scalc.exe", "simpress.exe",
	}},
	{Name: "text_editors", Executables: []string{
		"notepad.exe", "notepad++.exe", "sublime_text.exe", "Code.exe", "atom.exe",
		"vim.exe", "gvim.exe", "emacs.exe", "wordpad.exe",
	}},
	{Name: "ides", Executables: []string{
		"devenv.exe", "idea64.exe", "pycharm64.exe", "webstorm64.exe", "rider64.exe",
		"eclipse.exe", "android studio.exe", "netbeans64.exe",
	}},
	{Name: "design", Executables: []string{
		"photoshop.exe", "illustrator.exe", "gimp-2.10.exe", "inkscape.exe", "figma.exe",
		"xd.exe", "krita.exe", "paint.net.exe", "designer.exe",
	}},
	{Name: "dev_tools", Executables: []string{
		"ssms.exe", "pgadmin4.exe", "dbeaver.exe", "postman.exe", "insomnia.exe",
		"sourcetree.exe", "github desktop.exe",
	}},
	{Name: "creative", Executables: []string{
		"premiere.exe", "aftereffects.exe", "audition.exe", "vegas.exe", "resolve.exe",
		"blender.exe", "maya.exe", "3dsmax.exe",
	}},
	{Name: "browsers", Executables: []string{
		"chrome.exe", "firefox.exe", "msedge.exe", "opera.exe", "brave.exe",
	}},
	{Name: "productivity", Executables: []string{
		"winword.exe", "excel.exe", "powerpnt.exe", "onenote.exe", "outlook.exe",
		"publisher.exe", "msaccess.exe", "notepad.exe", "notepad++.exe", "code.exe",
		"sublime_text.exe", "atom.exe",
	}},
	{Name: "development", Executables: []string{
		"devenv.exe", "idea64.exe", "pycharm64.exe", "webstorm64.exe",
		"androidstudio64.exe", "eclipse.exe", "netbeans64.exe", "vscode.exe",
	}},
}

var defaultWindowClasses = map[string]string{
	"WINWORD.EXE":   "OpusApp",
	"EXCEL.EXE":     "XLMAIN",
	"POWERPNT.EXE":  "PPTFrameClass",
	"NOTEPAD.EXE":   "Notepad",
	"NOTEPAD++.EXE": "Notepad++",
}

// Catalog answers classification questions about executable names. A Catalog
// is immutable once constructed.
type Catalog struct {
	categories []Category
	needles    []string
	classes    map[string]string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithSaveCapable adds executables to a custom category.
func WithSaveCapable(names ...string) Option {
	return func(c *Catalog) {
		var cleaned []string
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				cleaned = append(cleaned, name)
			}
		}
		if len(cleaned) > 0 {
			c.categories = append(c.categories, Category{Name: "custom", Executables: cleaned})
		}
	}
}

// WithWindowClasses registers or overrides executable to window class mappings.
func WithWindowClasses(classes map[string]string) Option {
	return func(c *Catalog) {
		for exe, class := range classes {
			exe = strings.ToUpper(strings.TrimSpace(exe))
			if exe == "" || class == "" {
				continue
			}
			c.classes[exe] = class
		}
	}
}

// NewCatalog constructs a catalog seeded with the built-in lists.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		categories: append([]Category(nil), defaultCategories...),
		classes:    make(map[string]string, len(defaultWindowClasses)),
	}
	for exe, class := range defaultWindowClasses {
		c.classes[exe] = class
	}
	for _, opt := range opts {
		opt(c)
	}

	seen := make(map[string]struct{})
	for _, cat := range c.categories {
		for _, exe := range cat.Executables {
			needle := strings.ToUpper(exe)
			if _, ok := seen[needle]; ok {
				continue
			}
			seen[needle] = struct{}{}
			c.needles = append(c.needles, needle)
		}
	}
	sort.Strings(c.needles)
	return c
}

// ShouldAttemptSave reports whether name contains any known save-capable
// executable name, ignoring case.
func (c *Catalog) ShouldAttemptSave(name string) bool {
	upper := strings.ToUpper(name)
	if upper == "" {
		return false
	}
	for _, needle := range c.needles {
		if strings.Contains(upper, needle) {
			return true
		}
	}
	return false
}

// Category returns the first category whose list matches name.
func (c *Catalog) Category(name string) (string, bool) {
	upper := strings.ToUpper(name)
	if upper == "" {
		return "", false
	}
	for _, cat := range c.categories {
		for _, exe := range cat.Executables {
			if strings.Contains(upper, strings.ToUpper(exe)) {
				return cat.Name, true
			}
		}
	}
	return "", false
}

// WindowClass returns the top-level window class registered for name.
func (c *Catalog) WindowClass(name string) (string, bool) {
	class, ok := c.classes[strings.ToUpper(name)]
	return class, ok
}

// WindowClasses returns a copy of the executable to window class table.
func (c *Catalog) WindowClasses() map[string]string {
	dup := make(map[string]string, len(c.classes))
	for k, v := range c.classes {
		dup[k] = v
	}
	return dup
}

// Size returns the number of distinct save-capable entries.
func (c *Catalog) Size() int {
	return len(c.needles)
}
