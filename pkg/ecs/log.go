package ecs

import (
	"github.com/rs/zerolog"
)

type playbackStats struct {
	entities   int
	tags       int
	components int
	scripts    int
	moved      int
}

func logArchetypeCreated(logger *zerolog.Logger, arch *Archetype) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}

	components := zerolog.Arr()
	for _, ct := range arch.ComponentSchemaTypes() {
		components.Str(ct.name)
	}
	tags := zerolog.Arr()
	for _, tt := range arch.TagSchemaTypes() {
		tags.Str(tt.name)
	}

	logger.Debug().
		Int("archetype", arch.index).
		Array("components", components).
		Array("tags", tags).
		Msg("archetype created")
}

func logPlayback(logger *zerolog.Logger, stats playbackStats) {
	logger.Debug().
		Int("entity_commands", stats.entities).
		Int("tag_commands", stats.tags).
		Int("component_commands", stats.components).
		Int("script_commands", stats.scripts).
		Int("moved", stats.moved).
		Msg("command buffer played back")
}
