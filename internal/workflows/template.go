package workflows

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"darkroom/internal/config"
)

// Graph is a ComfyUI workflow graph keyed by node id. The graph shape is
// opaque to darkroom; only the configured slot nodes are ever touched.
type Graph map[string]map[string]any

// Template is one named workflow with its slot bindings and billing terms.
// Loaded once at startup and never mutated; Instantiate derives the working
// copies that execution runs write seeds and filenames into.
type Template struct {
	Name        string
	Command     string
	DisplayName string
	SeedNode    string
	InputNode   string
	OutputNode  string
	PromptNode  string
	PromptField string
	Iterations  int
	Cost        int64

	graph Graph
}

func newTemplate(name string, cfg config.Template, graph Graph) (*Template, error) {
	display := strings.TrimSpace(cfg.DisplayName)
	if display == "" {
		display = cases.Title(language.Und).String(strings.ReplaceAll(name, "_", " "))
	}
	promptField := cfg.PromptField
	if promptField == "" {
		promptField = "prompt"
	}
	tpl := &Template{
		Name:        name,
		Command:     cfg.Command,
		DisplayName: display,
		SeedNode:    cfg.SeedNode,
		InputNode:   cfg.InputNode,
		OutputNode:  cfg.OutputNode,
		PromptNode:  cfg.PromptNode,
		PromptField: promptField,
		Iterations:  cfg.Iterations,
		Cost:        cfg.Cost,
		graph:       graph,
	}
	for _, node := range []string{tpl.SeedNode, tpl.InputNode, tpl.OutputNode, tpl.PromptNode} {
		if node == "" {
			continue
		}
		if _, ok := graph[node]; !ok {
			return nil, fmt.Errorf("workflow %s: node %q not present in graph", name, node)
		}
	}
	return tpl, nil
}

// TotalCost returns the credits required for a full run of the template.
func (t *Template) TotalCost() int64 {
	return t.Cost * int64(t.Iterations)
}

// AcceptsPrompt reports whether the template has a free-text slot.
func (t *Template) AcceptsPrompt() bool {
	return t.PromptNode != ""
}

// RequiresInput reports whether the template consumes an input image.
func (t *Template) RequiresInput() bool {
	return t.InputNode != ""
}

// Instantiate deep-copies the graph so concurrent iterations never share
// mutable state.
func (t *Template) Instantiate() (*Instance, error) {
	encoded, err := json.Marshal(t.graph)
	if err != nil {
		return nil, fmt.Errorf("copy workflow %s: %w", t.Name, err)
	}
	var graph Graph
	if err := json.Unmarshal(encoded, &graph); err != nil {
		return nil, fmt.Errorf("copy workflow %s: %w", t.Name, err)
	}
	return &Instance{template: t, graph: graph}, nil
}

// Instance is one mutable working copy of a template's graph.
type Instance struct {
	template *Template
	graph    Graph
}

// Graph returns the instance's graph for submission.
func (i *Instance) Graph() Graph {
	return i.graph
}

// SetSeed writes the random seed into the seed slot.
func (i *Instance) SetSeed(seed int64) error {
	return i.setInput(i.template.SeedNode, "seed", seed)
}

// SetInputImage writes the staged input filename into the input slot.
func (i *Instance) SetInputImage(filename string) error {
	if i.template.InputNode == "" {
		return fmt.Errorf("workflow %s does not take an input image", i.template.Name)
	}
	return i.setInput(i.template.InputNode, "image", filename)
}

// SetOutputPrefix writes the output filename prefix into the output slot.
func (i *Instance) SetOutputPrefix(prefix string) error {
	return i.setInput(i.template.OutputNode, "filename_prefix", prefix)
}

// SetPrompt writes free-text instructions into the prompt slot.
func (i *Instance) SetPrompt(prompt string) error {
	if i.template.PromptNode == "" {
		return fmt.Errorf("workflow %s does not take a prompt", i.template.Name)
	}
	return i.setInput(i.template.PromptNode, i.template.PromptField, prompt)
}

func (i *Instance) setInput(nodeID, field string, value any) error {
	node, ok := i.graph[nodeID]
	if !ok {
		return fmt.Errorf("workflow %s: node %q not present in graph", i.template.Name, nodeID)
	}
	inputs, ok := node["inputs"].(map[string]any)
	if !ok {
		return fmt.Errorf("workflow %s: node %q has no inputs object", i.template.Name, nodeID)
	}
	inputs[field] = value
	return nil
}

// RandomSeed returns a 15-digit random seed, matching what the workflow
// graphs expect in their seed slots.
func RandomSeed() int64 {
	const low = 100_000_000_000_000
	const high = 1_000_000_000_000_000
	return low + rand.Int63n(high-low)
}

// IterationSuffix maps a zero-based iteration index to its output letter.
func IterationSuffix(index int) string {
	return string(rune('A' + index))
}

func loadGraph(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	var graph Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	return graph, nil
}
