package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AddressingPolicy controls which entity references an event type must carry.
type AddressingPolicy string

const (
	// AddressingPolicyPunishment requires a punishment id on the envelope.
	// Every ledger event addresses the punishment whose history it extends.
	AddressingPolicyPunishment AddressingPolicy = "punishment"
	// AddressingPolicyNone accepts events without entity addressing.
	AddressingPolicyNone AddressingPolicy = "none"
)

// Definition describes an event type accepted by the ledger.
type Definition struct {
	Type       Type
	Addressing AddressingPolicy
}

// Validation sentinels returned by ValidateForAppend.
var (
	ErrTypeUnknown          = errors.New("event type is not registered")
	ErrTypeRequired         = errors.New("event type is required")
	ErrPlayerIDRequired     = errors.New("player id is required")
	ErrTimestampRequired    = errors.New("timestamp is required")
	ErrActorTypeInvalid     = errors.New("actor type is invalid")
	ErrActorIDRequired      = errors.New("actor id is required")
	ErrPunishmentIDRequired = errors.New("punishment id is required")
	ErrPayloadInvalid       = errors.New("payload is not valid JSON")
)

// Registry validates event envelopes against registered definitions before
// persistence assigns sequence and integrity fields.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: map[Type]Definition{}}
}

// Register adds a definition. Registering the same type twice is an error.
func (r *Registry) Register(def Definition) error {
	if !def.Type.IsValid() {
		return ErrTypeRequired
	}
	switch def.Addressing {
	case AddressingPolicyPunishment, AddressingPolicyNone:
	case "":
		def.Addressing = AddressingPolicyPunishment
	default:
		return fmt.Errorf("addressing policy %q is invalid", def.Addressing)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("event type %s already registered", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ListDefinitions returns registered definitions sorted by type.
func (r *Registry) ListDefinitions() []Definition {
	out := make([]Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ValidateForAppend checks the envelope against its definition and returns a
// copy with the payload canonicalized. Canonical payload JSON keeps content
// hashes stable regardless of caller key order.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if !evt.Type.IsValid() {
		return Event{}, ErrTypeRequired
	}
	def, ok := r.definitions[evt.Type]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}
	if strings.TrimSpace(evt.PlayerID) == "" {
		return Event{}, ErrPlayerIDRequired
	}
	if evt.Timestamp.IsZero() {
		return Event{}, ErrTimestampRequired
	}
	switch evt.ActorType {
	case ActorTypeSystem, ActorTypeStaff, ActorTypeAppeals:
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrActorTypeInvalid, evt.ActorType)
	}
	if strings.TrimSpace(evt.ActorID) == "" {
		return Event{}, ErrActorIDRequired
	}
	if def.Addressing == AddressingPolicyPunishment && strings.TrimSpace(evt.PunishmentID) == "" {
		return Event{}, ErrPunishmentIDRequired
	}

	canonical, err := canonicalizePayload(evt.PayloadJSON)
	if err != nil {
		return Event{}, err
	}
	evt.PayloadJSON = canonical
	return evt, nil
}

// DefaultRegistry returns a registry with every ledger event type registered.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, eventType := range []Type{
		TypePunishmentIssued,
		TypePunishmentStarted,
		TypeDurationChanged,
		TypeExtended,
		TypePardoned,
		TypeRestored,
		TypeAppealReduced,
		TypeAppealPardoned,
		TypeRolledBack,
		TypeNoteAdded,
		TypeEvidenceAdded,
	} {
		if err := registry.Register(Definition{Type: eventType, Addressing: AddressingPolicyPunishment}); err != nil {
			panic(err)
		}
	}
	return registry
}

func canonicalizePayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return []byte("{}"), nil
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	return canonical, nil
}

// NormalizeTimestamp truncates an event time to the stored precision.
// Storage keeps millisecond UTC timestamps; hashing uses the same value.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
