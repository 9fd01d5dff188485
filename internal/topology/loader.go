package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// Format is the serialization of a topology file.
type Format string

const (
	// FormatYAML is the default and also accepts plain JSON, which is a
	// subset of YAML.
	FormatYAML Format = "yaml"

	// FormatJSONC is JSON with // and /* */ comments and trailing commas.
	FormatJSONC Format = "jsonc"
)

// FormatFromPath picks the format from the file extension. Anything that
// is not .json or .jsonc is read as YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// LoadFile reads a topology file, validates it against the container
// schema and returns the typed topology.
//
// A missing or unreadable file is returned as a CLIError with
// ExitInvalidTopology; schema and shape errors are ConfigurationErrors.
func LoadFile(path string) (*model.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitInvalidTopology,
				fmt.Sprintf("topology file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	topo, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}
	return topo, nil
}

// Parse decodes, validates and converts a topology document.
//
// The document is a mapping of container name to definition:
//
//	Fabric:
//	  parent_container: Tenant
//	Spines:
//	  parent_container: Fabric
//	  configlets: [spine-base]
//	  devices: [spine1, spine2]
//
// Declaration order is preserved: the mapping is walked as a yaml.Node
// rather than decoded into a Go map, whose iteration order is random.
func Parse(data []byte, format Format) (*model.Topology, error) {
	if format == FormatJSONC {
		data = jsonc.ToJSON(data)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, model.NewConfigurationError("topology is not valid YAML/JSON", err.Error())
	}

	// An empty document has no content node at all.
	if root.Kind == 0 || len(root.Content) == 0 {
		return model.NewTopology(nil)
	}
	doc := root.Content[0]
	if doc.Kind == yaml.ScalarNode && doc.Tag == "!!null" {
		return model.NewTopology(nil)
	}

	var generic interface{}
	if err := doc.Decode(&generic); err != nil {
		return nil, model.NewConfigurationError("topology could not be decoded", err.Error())
	}
	if err := ValidateDocument(generic); err != nil {
		return nil, err
	}

	specs, err := specsFromMapping(doc)
	if err != nil {
		return nil, err
	}

	topo, err := model.NewTopology(specs)
	if err != nil {
		return nil, model.NewConfigurationError("invalid topology", err.Error())
	}
	return topo, nil
}

// specsFromMapping turns a mapping node into ContainerSpecs in order.
// Content of a mapping node alternates key, value, key, value...
func specsFromMapping(node *yaml.Node) ([]model.ContainerSpec, error) {
	if node.Kind != yaml.MappingNode {
		return nil, model.NewConfigurationError("topology must be a mapping of container name to definition")
	}

	specs := make([]model.ContainerSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var spec model.ContainerSpec
		if err := value.Decode(&spec); err != nil {
			return nil, model.NewConfigurationError(
				"invalid container definition",
				fmt.Sprintf("%s (line %d): %v", key.Value, value.Line, err),
			)
		}
		spec.Name = key.Value
		specs = append(specs, spec)
	}
	return specs, nil
}
