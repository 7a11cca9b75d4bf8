// Package codec serializes generated configs to the orchestrator's wire
// format. The supported formats are a closed set selected once at startup;
// every encoder validates the document against the embedded generated-tasks
// schema before returning bytes, so a structurally invalid document is never
// written anywhere.
package codec

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/taskgen/taskgen/model"
)

// Format selects the output flavor.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

//go:embed schema.json
var schemaText string

var generatedTasksSchema = jsonschema.MustCompileString("generated_tasks.json", schemaText)

// Codec encodes a generated config into orchestrator-consumable bytes.
type Codec interface {
	Encode(cfg model.GeneratedConfig) ([]byte, error)
	// Ext is the file extension for documents this codec produces.
	Ext() string
}

// New returns the codec for format.
func New(format Format) (Codec, error) {
	switch format {
	case FormatYAML, "":
		return yamlCodec{}, nil
	case FormatJSON:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", model.ErrEncode, format)
	}
}

// document is the wire shape of a generated config. Runtimes are emitted as
// float seconds, matching what the stats service reports.
type document struct {
	Generator    generatorDoc     `yaml:"generator" json:"generator"`
	Tasks        []taskDoc        `yaml:"tasks" json:"tasks"`
	DisplayTasks []displayTaskDoc `yaml:"display_tasks,omitempty" json:"display_tasks,omitempty"`
}

type generatorDoc struct {
	Name  string   `yaml:"name" json:"name"`
	Tasks []string `yaml:"tasks" json:"tasks"`
}

type taskDoc struct {
	Name        string   `yaml:"name" json:"name"`
	Suite       string   `yaml:"suite" json:"suite"`
	TestFiles   []string `yaml:"test_files,omitempty" json:"test_files,omitempty"`
	RuntimeSecs float64  `yaml:"runtime_secs" json:"runtime_secs"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Variant     string   `yaml:"variant,omitempty" json:"variant,omitempty"`
	Distro      string   `yaml:"distro,omitempty" json:"distro,omitempty"`
}

type displayTaskDoc struct {
	Name           string   `yaml:"name" json:"name"`
	ExecutionTasks []string `yaml:"execution_tasks" json:"execution_tasks"`
}

func toDocument(cfg model.GeneratedConfig) document {
	doc := document{
		Generator: generatorDoc{
			Name: cfg.Generator.Name,
			// Always a list, even when empty: the generator reference
			// must reflect an empty task set explicitly.
			Tasks: make([]string, 0, len(cfg.Generator.Tasks)),
		},
		Tasks: make([]taskDoc, 0, len(cfg.Tasks)),
	}
	doc.Generator.Tasks = append(doc.Generator.Tasks, cfg.Generator.Tasks...)
	for _, t := range cfg.Tasks {
		doc.Tasks = append(doc.Tasks, taskDoc{
			Name:        t.Name,
			Suite:       t.Suite,
			TestFiles:   t.TestFiles,
			RuntimeSecs: t.Runtime.Seconds(),
			Tags:        t.Tags,
			DependsOn:   t.DependsOn,
			Variant:     t.Variant,
			Distro:      t.Distro,
		})
	}
	for _, d := range cfg.DisplayTasks {
		doc.DisplayTasks = append(doc.DisplayTasks, displayTaskDoc{
			Name:           d.Name,
			ExecutionTasks: d.ExecutionTasks,
		})
	}
	return doc
}

// validate checks doc against the embedded schema via its JSON form.
func validate(doc document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrEncode, err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrEncode, err)
	}
	if err := generatedTasksSchema.Validate(payload); err != nil {
		return fmt.Errorf("%w: generated document failed schema validation: %v", model.ErrEncode, err)
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) Encode(cfg model.GeneratedConfig) ([]byte, error) {
	doc := toDocument(cfg)
	if err := validate(doc); err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEncode, err)
	}
	return data, nil
}

func (yamlCodec) Ext() string { return ".yml" }

type jsonCodec struct{}

func (jsonCodec) Encode(cfg model.GeneratedConfig) ([]byte, error) {
	doc := toDocument(cfg)
	if err := validate(doc); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEncode, err)
	}
	return append(data, '\n'), nil
}

func (jsonCodec) Ext() string { return ".json" }
