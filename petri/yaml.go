package petri

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// netDocument is the YAML-serializable shape of a PetriNet definition,
// grounded on the teacher integration test framework's pattern of loading
// declarative fixtures via gopkg.in/yaml.v3 struct tags
// (integration_tests/framework/runner.go).
type netDocument struct {
	Name        string          `yaml:"name"`
	Places      []placeDoc      `yaml:"places"`
	Transitions []transitionDoc `yaml:"transitions"`
}

type placeDoc struct {
	ID        string `yaml:"id"`
	TokenType string `yaml:"tokenType"`
}

type arcDoc struct {
	Place        string `yaml:"place"`
	Multiplicity int    `yaml:"multiplicity"`
}

type transitionDoc struct {
	ID      string   `yaml:"id"`
	Inputs  []arcDoc `yaml:"inputs"`
	Outputs []arcDoc `yaml:"outputs"`
	Manual  bool     `yaml:"manual"`
}

// LoadYAML builds a PetriNet from a YAML document in the shape produced by
// netDocument: a name, a list of places, and a list of transitions with
// their input/output arcs. This is the declarative counterpart to
// constructing a PetriNet with New directly from Go literals.
func LoadYAML(data []byte) (*PetriNet, error) {
	var doc netDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("petri: parsing net definition: %w", err)
	}
	places := make([]Place, len(doc.Places))
	for i, p := range doc.Places {
		places[i] = Place{ID: PlaceID(p.ID), TokenType: p.TokenType}
	}
	transitions := make([]Transition, len(doc.Transitions))
	for i, t := range doc.Transitions {
		transitions[i] = Transition{
			ID:      TransitionID(t.ID),
			Inputs:  toArcs(t.Inputs),
			Outputs: toArcs(t.Outputs),
			Manual:  t.Manual,
		}
	}
	return New(doc.Name, places, transitions)
}

// LoadYAMLFile reads path and parses it via LoadYAML.
func LoadYAMLFile(path string) (*PetriNet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("petri: reading %q: %w", path, err)
	}
	return LoadYAML(data)
}

func toArcs(docs []arcDoc) []Arc {
	arcs := make([]Arc, len(docs))
	for i, a := range docs {
		arcs[i] = Arc{Place: PlaceID(a.Place), Multiplicity: a.Multiplicity}
	}
	return arcs
}
