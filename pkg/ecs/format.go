package ecs

import (
	"strconv"
	"strings"
)

// formatTypes renders components then tags in schema-index order, e.g. "[EntityName, Position, #TestTag]".
func formatTypes(schema *Schema, components ComponentTypes, tags Tags) string {
	var sb strings.Builder
	sb.WriteByte('[')
	first := true
	for i := range components.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(schema.Component(i).name)
	}
	for i := range tags.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteByte('#')
		sb.WriteString(schema.Tag(i).name)
	}
	sb.WriteByte(']')
	return sb.String()
}

func itoa(i int) string { return strconv.Itoa(i) }

// FormatComponents renders the entity's components and tags, e.g. "[EntityName, Position, #TestTag]".
// A deleted entity renders as "[]".
func FormatComponents(e Entity) string {
	if e.store == nil {
		return "[]"
	}
	return formatTypes(e.store.schema, e.ComponentTypes(), e.Tags())
}

func (e Entity) String() string {
	if e.store == nil {
		return "id: 0  (null)"
	}
	if !e.IsAlive() {
		return "id: " + itoa(e.id) + "  (deleted)"
	}
	return "id: " + itoa(e.id) + "  " + FormatComponents(e)
}

// FormatComponentTypes renders a component set, e.g. "[Position, Rotation]".
func (s *Schema) FormatComponentTypes(components ComponentTypes) string {
	return formatTypes(s, components, Tags{})
}

// FormatTags renders a tag set, e.g. "[#TestTag, #TestTag2]".
func (s *Schema) FormatTags(tags Tags) string {
	return formatTypes(s, ComponentTypes{}, tags)
}
