package ecs

import "github.com/rotisserie/eris"

var (
	// Schema configuration errors. These are fatal for the lazy *TypeOf helpers.
	ErrSchemaConfig   = eris.New("invalid schema type")
	ErrSchemaCapacity = eris.New("schema type limit exceeded")
	ErrSchemaMismatch = eris.New("component schema mismatch")
	ErrUnknownType    = eris.New("unknown schema type")

	// Entity and component errors.
	ErrEntityNotFound    = eris.New("entity not found")
	ErrEntityIDInUse     = eris.New("entity id already in use")
	ErrPidInUse          = eris.New("entity pid already in use")
	ErrComponentNotFound = eris.New("entity does not have component")

	// Command buffer errors.
	ErrBufferReturned = eris.New("command buffer returned to store")
	ErrBufferReused   = eris.New("reused command buffer after Playback() without ReuseBuffer")
	ErrInvalidCommand = eris.New("invalid command")
)
