package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Strob0t/agentmesh/internal/port/reasoning"
)

// Record tool names.
const (
	ToolFindPatient     = "find_patient"
	ToolSearchResources = "search_resources"
	ToolWriteResource   = "write_resource"
)

var patientSearchParams = []string{"name", "family", "given", "birthdate", "gender", "identifier"}

// Tools returns the record tools given to agents working with patient data.
func (c *Client) Tools() reasoning.Toolset {
	findParams := []reasoning.Param{{Name: "id", Description: "Patient resource id; when set the other fields are ignored"}}
	for _, p := range patientSearchParams {
		findParams = append(findParams, reasoning.Param{Name: p, Description: "Patient search parameter " + p})
	}

	return reasoning.Toolset{
		{
			Name:        ToolFindPatient,
			Description: "Look up a patient by resource id, or search patients by demographic details. Returns a Patient resource or a search Bundle.",
			Params:      findParams,
			Handler:     c.findPatient,
		},
		{
			Name:        ToolSearchResources,
			Description: "Search any FHIR resource type, e.g. Observation or MedicationRequest, with a URL query such as patient=123&code=8867-4.",
			Params: []reasoning.Param{
				{Name: "resource_type", Description: "FHIR resource type", Required: true},
				{Name: "query", Description: "FHIR search query string"},
			},
			Handler: func(ctx context.Context, args map[string]string) (string, error) {
				params, err := url.ParseQuery(args["query"])
				if err != nil {
					return "", fmt.Errorf("parse query: %w", err)
				}
				data, err := c.Search(ctx, args["resource_type"], params)
				return string(data), err
			},
		},
		{
			Name:        ToolWriteResource,
			Description: "Create a new FHIR R4 resource (Patient, Encounter, Observation, Condition...). The JSON must carry resourceType.",
			Params: []reasoning.Param{
				{Name: "resource", Description: "The resource as a JSON object", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]string) (string, error) {
				data, err := c.Create(ctx, json.RawMessage(args["resource"]))
				return string(data), err
			},
		},
	}
}

func (c *Client) findPatient(ctx context.Context, args map[string]string) (string, error) {
	if id := args["id"]; id != "" {
		data, err := c.Read(ctx, "Patient", id)
		return string(data), err
	}
	params := url.Values{}
	for _, p := range patientSearchParams {
		if v := args[p]; v != "" {
			params.Set(p, v)
		}
	}
	if len(params) == 0 {
		return "", errors.New("find_patient needs an id or at least one search field")
	}
	data, err := c.Search(ctx, "Patient", params)
	return string(data), err
}
