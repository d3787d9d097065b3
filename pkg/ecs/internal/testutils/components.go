package testutils

// Components.

type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (Position) Name() string { return "Position" }

type Rotation struct {
	X, Y, Z, W float32
}

func (Rotation) Name() string { return "Rotation" }

type Scale3 struct {
	X, Y, Z float32
}

func (Scale3) Name() string { return "Scale3" }

type EntityName struct {
	Value string `json:"value"`
}

func (EntityName) Name() string { return "EntityName" }

type Health struct {
	Value int `json:"value"`
}

func (Health) Name() string { return "Health" }

type Inventory struct {
	Items map[string]int `json:"items"`
}

func (Inventory) Name() string { return "Inventory" }

// Tags.

type TestTag struct{}

func (TestTag) Name() string { return "TestTag" }

type TestTag2 struct{}

func (TestTag2) Name() string { return "TestTag2" }

type TestTag3 struct{}

func (TestTag3) Name() string { return "TestTag3" }

// Scripts.

type TestScript1 struct{ Value int }

func (*TestScript1) Name() string { return "TestScript1" }

type TestScript2 struct{ Label string }

func (*TestScript2) Name() string { return "TestScript2" }

// Signals.

type DamageSignal struct{ Amount int }

type HealSignal struct{ Amount int }

// Invalid types, used to test schema validation.

type PointerComponent struct{ Value int }

func (*PointerComponent) Name() string { return "PointerComponent" }

type SizedTag struct{ Value int }

func (SizedTag) Name() string { return "SizedTag" }

type ValueScript struct{ Value int }

func (ValueScript) Name() string { return "ValueScript" }

type EmptyNameComponent struct{ Value int }

func (EmptyNameComponent) Name() string { return "" }

type DuplicatePosition struct{ X int }

func (DuplicatePosition) Name() string { return "Position" }
