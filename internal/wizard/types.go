package wizard

import "github.com/charmbracelet/bubbles/textinput"

// State is a step in the interactive project-setup flow.
type State int

const (
	StateWelcome State = iota
	StateEnvironmentName
	StateDatabaseURL
	StateShadowURL
	StateSchemaPath
	StateConfirm
	StateWriting
	StateDone
	StateError
)

// Model is the bubbletea model driving `schemadrift init`.
type Model struct {
	state      State
	inputs     []textinput.Model
	focusIndex int
	err        error
	result     *Result
	width      int
}

// fields, in the order they are collected.
const (
	fieldEnvironmentName = iota
	fieldDatabaseURL
	fieldShadowURL
	fieldSchemaPath
	fieldCount
)

// Result is what a completed wizard run produces, ready to be written
// out as a schemadrift.toml and an accompanying .env.<name> file.
type Result struct {
	EnvironmentName string
	DatabaseURL     string
	ShadowURL       string
	SchemaPath      string
	ConfigPath      string
	DotenvPath      string
}
