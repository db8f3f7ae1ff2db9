package workflows

import (
	"fmt"
	"sort"

	"darkroom/internal/config"
)

// Library holds every configured template, indexed by name and by switch
// command.
type Library struct {
	templates map[string]*Template
	byCommand map[string]*Template

	defaultName string
	editName    string
	t2iName     string
}

// Load reads every configured workflow graph from disk and builds the
// library. Missing files or slot nodes fail loudly; this runs at startup.
func Load(cfg *config.Config) (*Library, error) {
	lib := &Library{
		templates:   make(map[string]*Template, len(cfg.Templates)),
		byCommand:   make(map[string]*Template, len(cfg.Templates)),
		defaultName: cfg.Jobs.DefaultTemplate,
		editName:    cfg.Jobs.EditTemplate,
		t2iName:     cfg.Jobs.TextToImageTemplate,
	}
	for name, entry := range cfg.Templates {
		graph, err := loadGraph(cfg.WorkflowPath(entry))
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		tpl, err := newTemplate(name, entry, graph)
		if err != nil {
			return nil, err
		}
		lib.templates[name] = tpl
		if tpl.Command != "" {
			if existing, ok := lib.byCommand[tpl.Command]; ok {
				return nil, fmt.Errorf("templates %s and %s share command %s", existing.Name, name, tpl.Command)
			}
			lib.byCommand[tpl.Command] = tpl
		}
	}
	if _, ok := lib.templates[lib.defaultName]; !ok {
		return nil, fmt.Errorf("default template %q not loaded", lib.defaultName)
	}
	return lib, nil
}

// Get returns a template by name.
func (l *Library) Get(name string) (*Template, bool) {
	tpl, ok := l.templates[name]
	return tpl, ok
}

// ByCommand returns the template bound to a switch command like "/FF".
func (l *Library) ByCommand(command string) (*Template, bool) {
	tpl, ok := l.byCommand[command]
	return tpl, ok
}

// ByDisplayName matches a template by its human name, for classifier output.
func (l *Library) ByDisplayName(display string) (*Template, bool) {
	for _, tpl := range l.templates {
		if tpl.DisplayName == display || tpl.Name == display {
			return tpl, true
		}
	}
	return nil, false
}

// Default returns the template used when a chat has not switched.
func (l *Library) Default() *Template {
	return l.templates[l.defaultName]
}

// Edit returns the template that captures a free-text edit instruction, or
// nil when none is configured.
func (l *Library) Edit() *Template {
	if l.editName == "" {
		return nil
	}
	return l.templates[l.editName]
}

// TextToImage returns the generative template, or nil when none is
// configured.
func (l *Library) TextToImage() *Template {
	if l.t2iName == "" {
		return nil
	}
	return l.templates[l.t2iName]
}

// Switchable returns the templates reachable via a chat command, sorted by
// command for stable help output.
func (l *Library) Switchable() []*Template {
	out := make([]*Template, 0, len(l.byCommand))
	for _, tpl := range l.byCommand {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// DisplayNames returns every template display name, sorted, for classifier
// tool schemas.
func (l *Library) DisplayNames() []string {
	names := make([]string, 0, len(l.templates))
	for _, tpl := range l.templates {
		names = append(names, tpl.DisplayName)
	}
	sort.Strings(names)
	return names
}
