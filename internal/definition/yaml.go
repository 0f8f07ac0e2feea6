package definition

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Tables decodes from a YAML mapping keyed by table name, keeping order.
type Tables []Table

// Columns decodes from a YAML mapping keyed by column name, keeping order.
// A scalar value is shorthand for the column type of a nullable column.
type Columns []Column

// Enums decodes from a YAML mapping of enum name to label sequence.
type Enums []Enum

// Triggers decodes from a YAML mapping keyed by trigger name.
type Triggers []Trigger

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Tables) UnmarshalYAML(node *yaml.Node) error {
	out, err := decodeMapping(node, func(tbl *Table, name string) { tbl.Name = name })
	if err != nil {
		return err
	}
	*t = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Columns) UnmarshalYAML(node *yaml.Node) error {
	if err := expectMapping(node); err != nil {
		return err
	}
	out := make(Columns, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var col Column
		if val.Kind == yaml.ScalarNode {
			col.Type = val.Value
		} else if err := val.Decode(&col); err != nil {
			return err
		}
		col.Name = key.Value
		out = append(out, col)
	}
	*c = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Enums) UnmarshalYAML(node *yaml.Node) error {
	if err := expectMapping(node); err != nil {
		return err
	}
	out := make(Enums, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var values []string
		if err := node.Content[i+1].Decode(&values); err != nil {
			return err
		}
		out = append(out, Enum{Name: node.Content[i].Value, Values: values})
	}
	*e = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Triggers) UnmarshalYAML(node *yaml.Node) error {
	out, err := decodeMapping(node, func(tr *Trigger, name string) { tr.Name = name })
	if err != nil {
		return err
	}
	*t = out
	return nil
}

func decodeMapping[T any](node *yaml.Node, setName func(*T, string)) ([]T, error) {
	if err := expectMapping(node); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, err
		}
		setName(&v, node.Content[i].Value)
		out = append(out, v)
	}
	return out, nil
}

func expectMapping(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	return nil
}
