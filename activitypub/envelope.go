package activitypub

import (
	"encoding/json"
	"fmt"
)

// ActivityStreamsContext is the JSON-LD context stamped on every outbound
// activity and object.
var ActivityStreamsContext = []string{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

// PublicMarker is the ActivityStreams public collection. Its presence in
// to/cc makes an activity public.
const PublicMarker = "https://www.w3.org/ns/activitystreams#Public"

// Kind is the closed set of activity types this instance understands.
// Anything else fails closed at parse time; extending the protocol surface
// is a compile-time change on purpose.
type Kind string

const (
	KindCreate   Kind = "Create"
	KindUpdate   Kind = "Update"
	KindDelete   Kind = "Delete"
	KindUndo     Kind = "Undo"
	KindAccept   Kind = "Accept"
	KindFollow   Kind = "Follow"
	KindLike     Kind = "Like"
	KindDislike  Kind = "Dislike"
	KindBlock    Kind = "Block"
	KindLock     Kind = "Lock"
	KindAnnounce Kind = "Announce"
)

// parseKind maps a wire type string onto the closed kind set.
func parseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindCreate, KindUpdate, KindDelete, KindUndo, KindAccept,
		KindFollow, KindLike, KindDislike, KindBlock, KindLock, KindAnnounce:
		return Kind(s), true
	}
	return "", false
}

// StringList unmarshals from either a single JSON string or an array of
// strings; remote software uses both forms. It always marshals as an
// array so outbound activities round-trip deterministically.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or string array: %w", err)
	}
	*l = StringList(many)
	return nil
}

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Envelope is the typed wire representation of an activity. The object
// field stays raw until the dispatcher knows which payload to expect for
// the kind.
type Envelope struct {
	AtContext interface{}     `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	To        StringList      `json:"to,omitempty"`
	Cc        StringList      `json:"cc,omitempty"`
	Audience  string          `json:"audience,omitempty"`
	Summary   *string         `json:"summary,omitempty"`
	Target    string          `json:"target,omitempty"`
	Object    json.RawMessage `json:"object,omitempty"`

	kind Kind
}

// ParseActivity deserializes an inbound body into the envelope, rejecting
// unknown or malformed type values. It never guesses.
func ParseActivity(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, verificationErrorf("unparseable activity: %v", err)
	}

	if env.ID == "" {
		return nil, verificationErrorf("activity has no id")
	}
	if env.Actor == "" {
		return nil, verificationErrorf("activity has no actor")
	}

	kind, ok := parseKind(env.Type)
	if !ok {
		return nil, verificationErrorf("unknown activity type %q", env.Type)
	}
	env.kind = kind

	return &env, nil
}

// Kind returns the parsed activity kind.
func (e *Envelope) Kind() Kind {
	if e.kind == "" {
		if k, ok := parseKind(e.Type); ok {
			e.kind = k
		}
	}
	return e.kind
}

// IsPublic reports whether the public collection marker appears in the
// addressing.
func (e *Envelope) IsPublic() bool {
	return e.To.Contains(PublicMarker) || e.Cc.Contains(PublicMarker)
}

// ObjectURI extracts the id of the object, whether the object is a bare
// URI string or an embedded document.
func (e *Envelope) ObjectURI() string {
	if len(e.Object) == 0 {
		return ""
	}
	var uri string
	if err := json.Unmarshal(e.Object, &uri); err == nil {
		return uri
	}
	var embedded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Object, &embedded); err == nil {
		return embedded.ID
	}
	return ""
}

// ObjectType returns the type tag of an embedded object, or "" when the
// object is a bare URI.
func (e *Envelope) ObjectType() string {
	if len(e.Object) == 0 {
		return ""
	}
	var embedded struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(e.Object, &embedded); err == nil {
		return embedded.Type
	}
	return ""
}

// InnerActivity decodes the object as a nested activity (Undo, Announce
// and Accept wrap one). The inner activity goes through the same closed
// kind check as a top-level one.
func (e *Envelope) InnerActivity() (*Envelope, error) {
	if len(e.Object) == 0 {
		return nil, verificationErrorf("%s carries no inner activity", e.Type)
	}
	return ParseActivity(e.Object)
}

// BoardIRI returns the audience the activity claims to be scoped to. The
// verifier cross-checks it against the board derived from the target
// object; an empty value means the activity is not board-scoped on the
// wire.
func (e *Envelope) BoardIRI() string {
	if e.Audience != "" {
		return e.Audience
	}
	// Some software puts the audience on the embedded object only.
	var embedded struct {
		Audience string `json:"audience"`
	}
	if len(e.Object) > 0 {
		if err := json.Unmarshal(e.Object, &embedded); err == nil {
			return embedded.Audience
		}
	}
	return ""
}

// Marshal serializes the envelope for an outbound send. Serialization is
// symmetric with parsing: remote instances apply the same rules.
func (e *Envelope) Marshal() ([]byte, error) {
	if e.AtContext == nil {
		e.AtContext = ActivityStreamsContext
	}
	return json.Marshal(e)
}

// mustRaw marshals v into a RawMessage for embedding, panicking on error.
// Only used with types this package controls.
func mustRaw(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal: %v", err))
	}
	return b
}

// rawString embeds a bare URI string as an object.
func rawString(s string) json.RawMessage {
	return mustRaw(s)
}
