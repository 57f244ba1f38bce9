package ui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/filesTransfer/internal/style"
	"github.com/rescp17/filesTransfer/internal/util"
	"github.com/rescp17/filesTransfer/pkg/fileInfo"
)

// ErrPickCanceled is returned when the picker is closed without a selection.
var ErrPickCanceled = errors.New("file selection canceled")

type pickerMode int

const (
	pickBrowse pickerMode = iota
	pickInput
)

type PickerKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Open     key.Binding
	Parent   key.Binding
	Toggle   key.Binding
	Input    key.Binding
	Confirm  key.Binding
	Quit     key.Binding
}

var DefaultPickerKeys = PickerKeyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Open:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "open folder")),
	Parent:   key.NewBinding(key.WithKeys("left", "h", "backspace"), key.WithHelp("←/h", "parent folder")),
	Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle select")),
	Input:    key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "type a path")),
	Confirm:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send selection")),
	Quit:     key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit/back")),
}

// Picker browses the local disk and collects the files and folders to send.
type Picker struct {
	dir      string
	items    []fs.DirEntry
	selected map[string]struct{}
	cursor   int
	offset   int
	height   int
	mode     pickerMode
	input    textinput.Model
	err      error
	keys     PickerKeyMap
	done     bool
	canceled bool
}

// NewPicker opens the picker on dir.
func NewPicker(dir string) (Picker, error) {
	ti := textinput.New()
	ti.Placeholder = "path to a folder or file"
	ti.CharLimit = 256
	ti.Width = 60
	ti.PromptStyle = style.HighlightFontStyle

	p := Picker{
		selected: make(map[string]struct{}),
		keys:     DefaultPickerKeys,
		input:    ti,
	}
	if err := p.load(dir); err != nil {
		return Picker{}, err
	}
	return p, nil
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.height = msg.Height
		return p, nil
	case tea.KeyMsg:
		if key.Matches(msg, p.keys.Quit) {
			if p.mode == pickInput {
				p.mode = pickBrowse
				p.input.Blur()
				p.input.Reset()
				p.err = nil
				return p, nil
			}
			p.canceled = true
			return p, tea.Quit
		}
		if p.mode == pickInput {
			return p.updateInput(msg)
		}
		return p.updateBrowse(msg)
	}
	return p, nil
}

func (p Picker) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := p.visible()
	switch {
	case key.Matches(msg, p.keys.Input):
		p.mode = pickInput
		return p, p.input.Focus()
	case key.Matches(msg, p.keys.Up):
		p.moveTo(p.cursor - 1)
	case key.Matches(msg, p.keys.Down):
		p.moveTo(p.cursor + 1)
	case key.Matches(msg, p.keys.PageUp):
		p.moveTo(p.cursor - page)
	case key.Matches(msg, p.keys.PageDown):
		p.moveTo(p.cursor + page)
	case key.Matches(msg, p.keys.Parent):
		p.err = p.load(filepath.Dir(p.dir))
	case key.Matches(msg, p.keys.Open):
		if item, ok := p.current(); ok && item.IsDir() {
			p.err = p.load(filepath.Join(p.dir, item.Name()))
		}
	case key.Matches(msg, p.keys.Toggle):
		if item, ok := p.current(); ok {
			p.toggle(filepath.Join(p.dir, item.Name()))
		}
	case key.Matches(msg, p.keys.Confirm):
		if len(p.selected) > 0 {
			p.done = true
			return p, tea.Quit
		}
		// Nothing selected yet: enter behaves like open.
		if item, ok := p.current(); ok && item.IsDir() {
			p.err = p.load(filepath.Join(p.dir, item.Name()))
		}
	}
	return p, nil
}

func (p Picker) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, p.keys.Confirm) {
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}

	path := strings.TrimSpace(p.input.Value())
	if path == "" {
		return p, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		p.err = fmt.Errorf("path does not exist: %s", path)
		return p, nil
	}
	if info.IsDir() {
		if err := p.load(path); err != nil {
			p.err = err
			return p, nil
		}
	} else {
		p.selected[filepath.Clean(path)] = struct{}{}
	}
	p.mode = pickBrowse
	p.input.Blur()
	p.input.Reset()
	p.err = nil
	return p, nil
}

func (p *Picker) load(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	exists, isDir, err := util.CheckDirectory(abs)
	if err != nil {
		return err
	}
	if !exists || !isDir {
		return fmt.Errorf("not a directory: %s", abs)
	}
	items, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}
	// Folders first, each group by name.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].IsDir() && !items[j].IsDir()
	})
	p.dir = abs
	p.items = items
	p.cursor = 0
	p.offset = 0
	return nil
}

func (p *Picker) current() (fs.DirEntry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.items) {
		return nil, false
	}
	return p.items[p.cursor], true
}

func (p *Picker) toggle(path string) {
	if _, ok := p.selected[path]; ok {
		delete(p.selected, path)
		return
	}
	p.selected[path] = struct{}{}
}

func (p *Picker) moveTo(cursor int) {
	p.cursor = max(0, min(cursor, len(p.items)-1))
	page := p.visible()
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+page {
		p.offset = p.cursor - page + 1
	}
}

func (p Picker) visible() int {
	const header = 7
	if p.height <= header {
		return 10
	}
	return p.height - header
}

// Picked returns the selected paths in sorted order. It is empty when the
// picker was canceled.
func (p Picker) Picked() []string {
	if p.canceled || !p.done {
		return nil
	}
	paths := make([]string, 0, len(p.selected))
	for path := range p.selected {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (p Picker) View() string {
	var b strings.Builder

	b.WriteString(style.TitleStyle.Render("Select files to send") + "\n")
	b.WriteString(style.HelpStyle.Render(fmt.Sprintf("%s select, %s open, %s up, %s path, %s send, %s quit",
		p.keys.Toggle.Help().Key, p.keys.Open.Help().Key, p.keys.Parent.Help().Key,
		p.keys.Input.Help().Key, p.keys.Confirm.Help().Key, p.keys.Quit.Help().Key)) + "\n\n")

	if p.mode == pickInput {
		b.WriteString(p.input.View() + "\n")
	}
	if p.err != nil {
		b.WriteString(style.ErrorStyle.Render(p.err.Error()) + "\n")
	}
	b.WriteString(fmt.Sprintf("%s  (%d selected)\n\n", p.dir, len(p.selected)))

	const (
		nameWidth = 36
		timeWidth = 20
		sizeWidth = 12
	)
	end := min(p.offset+p.visible(), len(p.items))
	for i := p.offset; i < end; i++ {
		item := p.items[i]
		path := filepath.Join(p.dir, item.Name())

		if i == p.cursor {
			b.WriteString(style.CursorStyle.String())
		} else {
			b.WriteString(style.NoCursorStyle.String())
		}
		if _, ok := p.selected[path]; ok {
			b.WriteString(style.SelectedStyle.String())
		} else {
			b.WriteString(style.DeselectedStyle.String())
		}

		var modTime, size, kind string
		if info, err := item.Info(); err == nil {
			modTime = info.ModTime().Format("2006-01-02 15:04:05")
			if info.IsDir() {
				size = "<DIR>"
			} else {
				size = util.FormatSize(info.Size())
				kind = fileInfo.DetectMimeType(path)
			}
		}

		name := util.FitName(item.Name(), nameWidth)
		if item.IsDir() {
			name = style.DirStyle.Render(util.PadRight(item.Name()+"/", nameWidth))
		}
		b.WriteString(name + " " + util.PadRight(modTime, timeWidth) + " " + util.PadRight(size, sizeWidth) + " " + kind + "\n")
	}
	if len(p.items) > p.visible() {
		b.WriteString(style.MutedStyle.Render(fmt.Sprintf("\n... %d/%d ...", p.cursor+1, len(p.items))) + "\n")
	}
	return b.String()
}

// RunPicker shows the picker on dir and returns the chosen paths.
func RunPicker(dir string) ([]string, error) {
	p, err := NewPicker(dir)
	if err != nil {
		return nil, err
	}
	final, err := tea.NewProgram(p, tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	paths := final.(Picker).Picked()
	if len(paths) == 0 {
		return nil, ErrPickCanceled
	}
	return paths, nil
}
