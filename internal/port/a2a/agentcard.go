package a2a

import (
	"encoding/json"
	"fmt"

	a2ago "github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/agentmesh/internal/domain"
	"github.com/Strob0t/agentmesh/internal/domain/agent"
)

// ProtocolVersion is advertised on every card.
const ProtocolVersion = "0.3.0"

// Default modes advertised when a descriptor names none.
var defaultModes = []string{"text", "text/plain"}

// BuildAgentCard renders a descriptor as the card served at the well-known path.
// The card URL keeps a trailing slash so clients POST to the root.
func BuildAgentCard(d *agent.Descriptor) *a2ago.AgentCard {
	inputModes := d.InputModes
	if len(inputModes) == 0 {
		inputModes = defaultModes
	}
	outputModes := d.OutputModes
	if len(outputModes) == 0 {
		outputModes = defaultModes
	}

	skills := make([]a2ago.AgentSkill, 0, len(d.Skills))
	for _, s := range d.Skills {
		tags := s.Tags
		if tags == nil {
			tags = []string{}
		}
		skills = append(skills, a2ago.AgentSkill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        tags,
		})
	}

	return &a2ago.AgentCard{
		Name:               d.Name,
		Description:        d.Description,
		URL:                d.URL + "/",
		Version:            d.Version,
		ProtocolVersion:    ProtocolVersion,
		DefaultInputModes:  inputModes,
		DefaultOutputModes: outputModes,
		Skills:             skills,
		Capabilities: a2ago.AgentCapabilities{
			Streaming: d.Streaming,
		},
		PreferredTransport: a2ago.TransportProtocolJSONRPC,
	}
}

// ParseAgentCard decodes a fetched card into a descriptor keyed by url,
// the normalized address it was fetched from. Any decode or validation
// failure is reported as domain.ErrMalformedDescriptor.
func ParseAgentCard(url string, data []byte) (agent.Descriptor, error) {
	var card a2ago.AgentCard
	if err := json.Unmarshal(data, &card); err != nil {
		return agent.Descriptor{}, fmt.Errorf("%w: %w", domain.ErrMalformedDescriptor, err)
	}
	d := DescriptorFromCard(url, &card)
	if err := d.Validate(); err != nil {
		return agent.Descriptor{}, fmt.Errorf("%w: %w", domain.ErrMalformedDescriptor, err)
	}
	return d, nil
}

// DescriptorFromCard copies the fields agentmesh uses out of a card.
func DescriptorFromCard(url string, card *a2ago.AgentCard) agent.Descriptor {
	skills := make([]agent.Skill, 0, len(card.Skills))
	for _, s := range card.Skills {
		skills = append(skills, agent.Skill{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Tags:        s.Tags,
		})
	}
	return agent.Descriptor{
		URL:         url,
		Name:        card.Name,
		Description: card.Description,
		Version:     card.Version,
		InputModes:  card.DefaultInputModes,
		OutputModes: card.DefaultOutputModes,
		Streaming:   card.Capabilities.Streaming,
		Skills:      skills,
	}
}
