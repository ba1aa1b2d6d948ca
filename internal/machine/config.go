package machine

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// patternRe matches brace expansion patterns like "node{01..08}".
var patternRe = regexp.MustCompile(`^(.+)\{(\d+)\.\.(\d+)\}$`)

// LoadConfig reads and validates machines.yml from the given path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(cfg.Machines) == 0 {
		return nil, fmt.Errorf("machines.yml must define at least one machine")
	}

	// Set default connect timeout
	if cfg.SSH.ConnectTimeout <= 0 {
		cfg.SSH.ConnectTimeout = 10
	}

	// Validate entries
	for i, entry := range cfg.Machines {
		if entry.Name == "" && entry.Pattern == "" {
			return nil, fmt.Errorf("machine entry %d must have either 'name' or 'pattern'", i+1)
		}
		if entry.Name != "" && entry.Pattern != "" {
			return nil, fmt.Errorf("machine entry %d must have only one of 'name' or 'pattern', not both", i+1)
		}
		if entry.Pattern != "" && !patternRe.MatchString(entry.Pattern) {
			return nil, fmt.Errorf("machine entry %d: invalid pattern %q (expected format: prefix{NN..MM})", i+1, entry.Pattern)
		}
		if entry.Port < 0 || entry.Port > 65535 {
			return nil, fmt.Errorf("machine entry %d: invalid port %d", i+1, entry.Port)
		}
	}

	return &cfg, nil
}

// Expand expands all machine entries (including brace patterns) into a
// flat list.
func Expand(cfg *Config) ([]Machine, error) {
	var machines []Machine
	for _, entry := range cfg.Machines {
		if entry.Name != "" {
			machines = append(machines, Machine{Name: entry.Name, User: entry.User, Port: entry.Port})
			continue
		}

		expanded, err := expandPattern(entry.Pattern)
		if err != nil {
			return nil, err
		}
		if len(expanded) == 0 {
			return nil, fmt.Errorf("pattern %q expanded to zero machines", entry.Pattern)
		}
		for _, name := range expanded {
			machines = append(machines, Machine{Name: name, User: entry.User, Port: entry.Port})
		}
	}
	return machines, nil
}

// Find returns the machine with the given name from the expanded list.
func Find(machines []Machine, name string) (Machine, bool) {
	for _, m := range machines {
		if m.Name == name {
			return m, true
		}
	}
	return Machine{}, false
}

// Names returns the machine names in input order.
func Names(machines []Machine) []string {
	names := make([]string, len(machines))
	for i, m := range machines {
		names[i] = m.Name
	}
	return names
}

// expandPattern expands a brace pattern like "node{01..08}" into a list
// of names.
func expandPattern(pattern string) ([]string, error) {
	matches := patternRe.FindStringSubmatch(pattern)
	if matches == nil {
		return nil, fmt.Errorf("invalid pattern: %q", pattern)
	}

	prefix := matches[1]
	startStr := matches[2]
	endStr := matches[3]

	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid start in pattern %q: %w", pattern, err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid end in pattern %q: %w", pattern, err)
	}

	if start > end {
		return nil, fmt.Errorf("pattern %q: start (%d) must be <= end (%d)", pattern, start, end)
	}

	// Determine padding width from the start value string
	padWidth := len(startStr)

	var names []string
	for i := start; i <= end; i++ {
		names = append(names, fmt.Sprintf("%s%0*d", prefix, padWidth, i))
	}
	return names, nil
}
