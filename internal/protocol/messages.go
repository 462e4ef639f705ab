package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	// WireVersion is the binary recipe format the client decodes.
	WireVersion int `json:"wire_version"`
	// KnownDigest is the catalog digest the client already holds. A match
	// skips the recipe stream.
	KnownDigest string `json:"known_digest,omitempty"`
}

// WELCOME (server -> client). Binary recipe frames follow unless UpToDate.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WireVersion     int            `json:"wire_version"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Digest          string         `json:"digest"`
	RecipeCount     int            `json:"recipe_count"`
	UpToDate        bool           `json:"up_to_date,omitempty"`
	// Truncated marks a stream cut short by the server's recipe cap. Digest
	// still names the full set, so it must not be reused as known_digest.
	Truncated       bool           `json:"truncated,omitempty"`
}

type CatalogDigests struct {
	ItemPalette      DigestRef `json:"item_palette"`
	ItemsDigest      string    `json:"items_digest"`
	TagsDigest       string    `json:"tags_digest"`
	AlloyForgeDigest string    `json:"alloy_forge_digest"`
	SmeltingDigest   string    `json:"smelting_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// DONE (server -> client) closes a recipe stream.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Count           int    `json:"count"`
}

// ERROR (server -> client), also the body of HTTP error responses.
type ErrorMsg struct {
	Type            string `json:"type,omitempty"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
