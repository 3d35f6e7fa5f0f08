package agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/room4-2/OpenCallGate/realtime"
)

// HandoffConfig names another agent the current one may transfer the
// caller to, and the condition under which it should.
type HandoffConfig struct {
	AgentName string `yaml:"agent_name"`
	Condition string `yaml:"condition"`
}

// Config is one agent definition loaded from a YAML file
type Config struct {
	Name             string          `yaml:"name"`
	Community        string          `yaml:"community,omitempty"`
	Opener           bool            `yaml:"opener,omitempty"` // answers new calls
	Greeting         string          `yaml:"greeting,omitempty"`
	Instructions     string          `yaml:"instructions"`
	Voice            string          `yaml:"voice,omitempty"`
	Tools            []string        `yaml:"tools,omitempty"`
	MCPServers       []string        `yaml:"mcp_servers,omitempty"`
	Handoffs         []HandoffConfig `yaml:"handoffs,omitempty"`
	OutputGuardrails []string        `yaml:"output_guardrails,omitempty"`
}

// Registry holds every loaded agent keyed by name
type Registry struct {
	agents map[string]*Config
	root   string
}

// LoadRegistry reads every *.yaml / *.yml file in dir as an agent
// definition. Unreadable or invalid files are logged and skipped. If the
// directory yields no usable agent at all, the built-in default registry
// is returned instead so the service can still answer calls.
func LoadRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("⚠️ Agent directory %s not found, using built-in default agent", dir)
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read agent directory: %w", err)
	}

	reg := &Registry{agents: make(map[string]*Config)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := loadFile(path)
		if err != nil {
			log.Printf("⚠️ Skipping agent config %s: %v", entry.Name(), err)
			continue
		}
		if _, exists := reg.agents[cfg.Name]; exists {
			log.Printf("⚠️ Skipping agent config %s: duplicate agent name %q", entry.Name(), cfg.Name)
			continue
		}
		reg.agents[cfg.Name] = cfg
	}

	if len(reg.agents) == 0 {
		log.Printf("⚠️ No usable agent configs in %s, using built-in default agent", dir)
		return Default(), nil
	}
	if err := reg.resolve(); err != nil {
		return nil, err
	}
	log.Printf("✅ Loaded %d agent(s) from %s, root agent %q", len(reg.agents), dir, reg.root)
	return reg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if strings.TrimSpace(cfg.Instructions) == "" {
		return nil, fmt.Errorf("agent %q has no instructions", cfg.Name)
	}
	if len(cfg.Tools) > 0 || len(cfg.MCPServers) > 0 {
		// TODO: wire named tools and MCP servers into session settings
		log.Printf("⚠️ Agent %q declares tools/mcp_servers, which are not supported yet", cfg.Name)
	}
	return &cfg, nil
}

// resolve validates handoff targets and picks the root agent
func (r *Registry) resolve() error {
	for name, cfg := range r.agents {
		for _, h := range cfg.Handoffs {
			if _, ok := r.agents[h.AgentName]; !ok {
				return fmt.Errorf("agent %q hands off to unknown agent %q", name, h.AgentName)
			}
			if h.AgentName == name {
				return fmt.Errorf("agent %q hands off to itself", name)
			}
		}
		if cfg.Opener {
			if r.root != "" {
				return fmt.Errorf("both %q and %q are marked as opener", r.root, name)
			}
			r.root = name
		}
	}
	if r.root == "" {
		names := r.Names()
		r.root = names[0]
	}
	return nil
}

// Root returns the agent that answers new calls
func (r *Registry) Root() *Config {
	return r.agents[r.root]
}

// Lookup returns the named agent, if registered
func (r *Registry) Lookup(name string) (*Config, bool) {
	cfg, ok := r.agents[name]
	return cfg, ok
}

// Names returns all agent names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SessionTools builds the function tools advertised for this agent: one
// transfer_to_<name> tool per handoff target.
func (c *Config) SessionTools() []realtime.Tool {
	if len(c.Handoffs) == 0 {
		return nil
	}
	tools := make([]realtime.Tool, 0, len(c.Handoffs))
	for _, h := range c.Handoffs {
		desc := fmt.Sprintf("Transfer the conversation to the %s agent.", h.AgentName)
		if h.Condition != "" {
			desc = fmt.Sprintf("Transfer the conversation to the %s agent when %s.", h.AgentName, h.Condition)
		}
		tools = append(tools, realtime.Tool{
			Type:        "function",
			Name:        "transfer_to_" + h.AgentName,
			Description: desc,
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		})
	}
	return tools
}

// FullInstructions returns the instruction text with handoff guidance and
// output guardrails appended.
func (c *Config) FullInstructions() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Instructions))
	if len(c.Handoffs) > 0 {
		b.WriteString("\n\n## Transfers\n")
		for _, h := range c.Handoffs {
			if h.Condition != "" {
				b.WriteString(fmt.Sprintf("- Call transfer_to_%s when %s.\n", h.AgentName, h.Condition))
			} else {
				b.WriteString(fmt.Sprintf("- Call transfer_to_%s when the caller needs the %s agent.\n", h.AgentName, h.AgentName))
			}
		}
	}
	if len(c.OutputGuardrails) > 0 {
		b.WriteString("\n## Rules\n")
		for _, rule := range c.OutputGuardrails {
			b.WriteString("- " + rule + "\n")
		}
	}
	return b.String()
}
