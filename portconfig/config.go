// Package portconfig defines the PortConfig discriminated union (spec
// section 3) and the identity/unwrap helpers of spec section 4.1.
package portconfig

import "github.com/nodeflow/portstate/internal/keys"

// Type is the discriminant of the PortConfig union.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeEnum    Type = "enum"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	TypeStream  Type = "stream"
	TypeAny     Type = "any"
	TypeSecret  Type = "secret"
)

// Direction is a port's data-flow role.
type Direction string

const (
	DirectionInput       Direction = "input"
	DirectionOutput      Direction = "output"
	DirectionPassthrough Direction = "passthrough"
)

// Metadata carries the system-port classification used by derived view
// categorization (spec section 4.9).
type Metadata struct {
	IsSystemPort bool   `json:"isSystemPort,omitempty"`
	PortCategory string `json:"portCategory,omitempty"`
}

// Config is the common envelope shared by every PortConfig variant, plus the
// type-specific payload carried in the fields below it. The source system
// models this as a tagged union; Go has no sum type, so Config is the single
// concrete struct every store and function in this module passes around,
// with Type as the discriminant and the type-specific fields populated only
// for the matching Type.
type Config struct {
	Type Type `json:"type"`

	ID        string    `json:"id"`
	Key       string    `json:"key"`
	NodeID    string    `json:"nodeId"`
	ParentID  string    `json:"parentId,omitempty"`
	Direction Direction `json:"direction"`
	Order     *int      `json:"order,omitempty"`
	Required  bool      `json:"required,omitempty"`

	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`

	// OriginalType records that this Config was produced by unwrapping an
	// `any` port; absent otherwise.
	OriginalType Type `json:"originalType,omitempty"`

	// array
	ItemConfig *Config `json:"itemConfig,omitempty"`

	// object
	Schema *ObjectSchema `json:"schema,omitempty"`

	// enum
	EnumOptions []string `json:"enumOptions,omitempty"`

	// number / string constraints carried through verbatim; the engine
	// never inspects these beyond preserving them across unwrap/merge.
	MinLength *int        `json:"minLength,omitempty"`
	MaxLength *int        `json:"maxLength,omitempty"`
	Min       *float64    `json:"min,omitempty"`
	Max       *float64    `json:"max,omitempty"`
	Default   interface{} `json:"default,omitempty"`

	// any
	UnderlyingType *Config `json:"underlyingType,omitempty"`

	// secret
	SecretType string `json:"secretType,omitempty"`
}

// ObjectSchema is the `schema.properties` payload of an object-typed Config.
// Properties is ordered by nothing in particular on the wire; canonical
// iteration order is imposed by the hierarchy store (spec section 3's
// children-sort invariant), not by this map.
type ObjectSchema struct {
	Properties map[string]*Config `json:"properties"`
}

// Clone returns a deep copy of c, used whenever a Config is about to be
// mutated in place (unwrap, extractCore) so the caller's original event
// payload is never aliased into a store.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Order != nil {
		v := *c.Order
		cp.Order = &v
	}
	if c.Metadata != nil {
		m := *c.Metadata
		cp.Metadata = &m
	}
	if c.MinLength != nil {
		v := *c.MinLength
		cp.MinLength = &v
	}
	if c.MaxLength != nil {
		v := *c.MaxLength
		cp.MaxLength = &v
	}
	if c.Min != nil {
		v := *c.Min
		cp.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		cp.Max = &v
	}
	if c.ItemConfig != nil {
		cp.ItemConfig = c.ItemConfig.Clone()
	}
	if c.UnderlyingType != nil {
		cp.UnderlyingType = c.UnderlyingType.Clone()
	}
	if c.EnumOptions != nil {
		cp.EnumOptions = append([]string(nil), c.EnumOptions...)
	}
	if c.Schema != nil {
		props := make(map[string]*Config, len(c.Schema.Properties))
		for k, v := range c.Schema.Properties {
			props[k] = v.Clone()
		}
		cp.Schema = &ObjectSchema{Properties: props}
	}
	return &cp
}

// UnwrapAny implements spec section 4.1's any-unwrap invariant: if cfg is of
// type `any` and carries an UnderlyingType that is not itself `any`, the
// returned Config takes the underlying type's shape while preserving cfg's
// identity fields (id, key, nodeId, direction, parentId, order) and
// preferring cfg's own title/description/required when set. OriginalType is
// stamped "any" so later introspection (derived views, debugging) can tell
// the config was unwrapped. If cfg is not an unwrappable `any`, it is
// returned unchanged (not cloned).
func UnwrapAny(cfg *Config) *Config {
	if cfg == nil || cfg.Type != TypeAny || cfg.UnderlyingType == nil || cfg.UnderlyingType.Type == TypeAny {
		return cfg
	}

	out := cfg.UnderlyingType.Clone()
	out.ID = cfg.ID
	out.Key = cfg.Key
	out.NodeID = cfg.NodeID
	out.ParentID = cfg.ParentID
	out.Direction = cfg.Direction
	out.Order = cfg.Order
	if cfg.Title != "" {
		out.Title = cfg.Title
	}
	if cfg.Description != "" {
		out.Description = cfg.Description
	}
	if cfg.Required {
		out.Required = true
	}
	if cfg.Metadata != nil {
		out.Metadata = cfg.Metadata
	}
	out.OriginalType = TypeAny
	return out
}

// ExtractCore strips the sibling-store fields (ui, connections are never
// part of Config to begin with in this model, unlike the source where they
// ride along in the same object) and fills required identity defaults from
// the supplied nodeID/parentID before unwrapping any `any` wrapper. It is
// the single entry point subtree expansion (expand package) and node
// extraction (wiring package) use to turn a raw child/element Config into a
// store-ready one.
func ExtractCore(cfg *Config, nodeID, parentID string) *Config {
	if cfg == nil {
		return nil
	}
	out := cfg.Clone()
	if out.NodeID == "" {
		out.NodeID = nodeID
	}
	if out.ParentID == "" && parentID != "" {
		out.ParentID = parentID
	}
	if out.Direction == "" {
		out.Direction = DirectionInput
	}
	return UnwrapAny(out)
}

// IsSystemPort reports whether cfg is framework-managed (flow-in/flow-out,
// error, error-message ports).
func IsSystemPort(cfg *Config) bool {
	return cfg != nil && cfg.Metadata != nil && cfg.Metadata.IsSystemPort
}

// IsSystemErrorPort reports whether cfg is a system port categorized as an error port.
func IsSystemErrorPort(cfg *Config) bool {
	return IsSystemPort(cfg) && cfg.Metadata.PortCategory == "error"
}

// HasUnderlyingType reports whether cfg still carries an underlying-type
// wrapper (i.e. it was never unwrapped, e.g. underlyingType.type == any).
func HasUnderlyingType(cfg *Config) bool {
	return cfg != nil && cfg.UnderlyingType != nil
}

// IsMutableArrayPort reports whether cfg is an array port with an itemConfig
// describing its elements.
func IsMutableArrayPort(cfg *Config) bool {
	return cfg != nil && cfg.Type == TypeArray && cfg.ItemConfig != nil
}

// IsMutableObjectPort reports whether cfg is an object port with schema
// properties describing its fields.
func IsMutableObjectPort(cfg *Config) bool {
	return cfg != nil && cfg.Type == TypeObject && cfg.Schema != nil && len(cfg.Schema.Properties) > 0
}

// HasEnumOptions reports whether cfg is an enum port with a non-empty option set.
func HasEnumOptions(cfg *Config) bool {
	return cfg != nil && cfg.Type == TypeEnum && len(cfg.EnumOptions) > 0
}

// Equal is a thin wrapper over keys.DeepEqual, kept here so callers outside
// internal/keys don't need to know the comparison primitive used.
func Equal(a, b *Config) bool {
	return keys.DeepEqual(a, b)
}
