// Package scenario loads and saves the JSON dataset format a run is fed:
// one document holding, per entity kind, a list of {attributes,
// relationships} records — the same shape EdgeSimPy-style datasets use.
// Unknown attributes are preserved verbatim through Record.Attributes
// rather than being decoded into (and possibly dropped by) a fixed struct,
// so round-tripping a scenario never silently loses operator-added fields.
package scenario

import (
	"encoding/json"
	"os"

	"github.com/marcoskonzen/trustedge/pkg/apperror"
)

// EntityRef is a {class, id} pointer into another entity kind's record
// list, the relationship-link shape every record kind uses.
type EntityRef struct {
	Class string `json:"class"`
	ID    int64  `json:"id"`
}

// Record is one entity: its attributes (kept as a raw map so unrecognised
// fields survive a load/save round trip) plus its relationships to other
// entities.
type Record struct {
	Attributes    map[string]any `json:"attributes"`
	Relationships map[string]any `json:"relationships"`
}

// attrID extracts the record's own id from its attributes map, the one
// attribute every entity kind is required to carry.
func (r Record) attrID() (int64, bool) {
	v, ok := r.Attributes["id"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64) // encoding/json decodes bare numbers as float64
	return int64(f), ok
}

// decodeAttrs re-marshals r's attribute map into dst, a typed struct with
// json tags matching the attribute names this package cares about. Fields
// present in the document but absent from dst are simply ignored here —
// they still round-trip because Record.Attributes keeps the original map.
func (r Record) decodeAttrs(dst any) error {
	raw, err := json.Marshal(r.Attributes)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func decodeRelationship(rels map[string]any, key string) (EntityRef, bool) {
	v, ok := rels[key]
	if !ok || v == nil {
		return EntityRef{}, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return EntityRef{}, false
	}
	var ref EntityRef
	if json.Unmarshal(raw, &ref) != nil {
		return EntityRef{}, false
	}
	return ref, true
}

func decodeRelationshipList(rels map[string]any, key string) []EntityRef {
	v, ok := rels[key]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var refs []EntityRef
	if json.Unmarshal(raw, &refs) != nil {
		return nil
	}
	return refs
}

// Document is the full scenario dataset, one record list per required
// entity kind (§6). Unrecognised top-level keys (a future entity kind, or
// operator metadata) are kept in Extra and re-emitted verbatim by Save.
type Document struct {
	BaseStation       []Record `json:"BaseStation,omitempty"`
	NetworkSwitch     []Record `json:"NetworkSwitch,omitempty"`
	NetworkLink       []Record `json:"NetworkLink,omitempty"`
	EdgeServer        []Record `json:"EdgeServer,omitempty"`
	ContainerImage    []Record `json:"ContainerImage,omitempty"`
	ContainerLayer    []Record `json:"ContainerLayer,omitempty"`
	ContainerRegistry []Record `json:"ContainerRegistry,omitempty"`
	Service           []Record `json:"Service,omitempty"`
	Application       []Record `json:"Application,omitempty"`
	User              []Record `json:"User,omitempty"`
	FailureModel      []Record `json:"FailureModel,omitempty"`
	Topology          []Record `json:"Topology,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Load reads and parses a scenario document from path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "reading scenario file")
	}
	return Parse(raw)
}

// Parse decodes a scenario document from raw JSON bytes, keeping any
// top-level key this package doesn't recognise in Extra so Save can write
// it back unchanged.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding scenario JSON")
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding scenario JSON")
	}
	known := map[string]bool{
		"BaseStation": true, "NetworkSwitch": true, "NetworkLink": true, "EdgeServer": true,
		"ContainerImage": true, "ContainerLayer": true, "ContainerRegistry": true,
		"Service": true, "Application": true, "User": true, "FailureModel": true, "Topology": true,
	}
	for k, v := range all {
		if !known[k] {
			if doc.Extra == nil {
				doc.Extra = map[string]json.RawMessage{}
			}
			doc.Extra[k] = v
		}
	}

	if len(doc.BaseStation)+len(doc.NetworkSwitch)+len(doc.EdgeServer)+len(doc.Service) == 0 {
		return nil, apperror.New(apperror.CodeEmptyScenario, "scenario document has no topology or workload entities")
	}

	return &doc, nil
}

// Save re-serialises doc to path, including any Extra top-level keys that
// were present on load but unrecognised by this package.
func Save(path string, doc *Document) error {
	raw, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "writing scenario file")
	}
	return nil
}

// Marshal renders doc back to JSON, merging Extra's preserved top-level
// keys alongside the known entity-kind lists.
func Marshal(doc *Document) ([]byte, error) {
	type alias Document
	base, err := json.Marshal((*alias)(doc))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "encoding scenario JSON")
	}
	if len(doc.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "encoding scenario JSON")
	}
	for k, v := range doc.Extra {
		merged[k] = v
	}
	return json.MarshalIndent(merged, "", "  ")
}
