// Package agent defines the Agent descriptor domain entity.
package agent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Strob0t/agentmesh/internal/domain"
)

// CardPath is the well-known path of an agent's capability document.
const CardPath = "/.well-known/agent-card.json"

// Skill describes one capability an agent advertises.
type Skill struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// Descriptor is the immutable metadata of an agent, built from its agent card.
// A Descriptor is replaced wholesale on re-fetch, never mutated in place.
type Descriptor struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	InputModes  []string `json:"input_modes"`
	OutputModes []string `json:"output_modes"`
	Streaming   bool     `json:"streaming"`
	Skills      []Skill  `json:"skills"`
}

// Validate checks the fields every usable descriptor must carry.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor: name is required")
	}
	if d.URL == "" {
		return fmt.Errorf("descriptor %q: url is required", d.Name)
	}
	return nil
}

// Clone returns a deep copy that shares no slices with d.
func (d *Descriptor) Clone() Descriptor {
	c := *d
	c.InputModes = slices.Clone(d.InputModes)
	c.OutputModes = slices.Clone(d.OutputModes)
	if d.Skills != nil {
		c.Skills = make([]Skill, len(d.Skills))
		for i, sk := range d.Skills {
			sk.Tags = slices.Clone(sk.Tags)
			c.Skills[i] = sk
		}
	}
	return c
}

// SkillNames returns the names of the advertised skills.
func (d *Descriptor) SkillNames() []string {
	names := make([]string, 0, len(d.Skills))
	for i := range d.Skills {
		names = append(names, d.Skills[i].Name)
	}
	return names
}

// NormalizeURL prefixes a missing scheme with http:// and strips trailing slashes.
func NormalizeURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", domain.ErrInvalidURL
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	u = strings.TrimRight(u, "/")
	if u == "http:" || u == "https:" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidURL, raw)
	}
	return u, nil
}

// CardURL returns the capability-discovery URL for a normalized base URL.
func CardURL(baseURL string) string {
	return baseURL + CardPath
}
