package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"alloyforge.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(doc); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "forgectl",
		WireVersion:     1,
	})

	validate(compile("welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "S1",
		WireVersion:     1,
		Catalogs: protocol.CatalogDigests{
			ItemPalette:      protocol.DigestRef{Digest: "deadbeef", Count: 6},
			ItemsDigest:      "deadbeef",
			TagsDigest:       "deadbeef",
			AlloyForgeDigest: "deadbeef",
		},
		Digest:      "deadbeef",
		RecipeCount: 2,
	})

	validate(compile("done.schema.json"), protocol.DoneMsg{
		Type:            protocol.TypeDone,
		ProtocolVersion: protocol.Version,
		Count:           2,
	})

	validate(compile("error.schema.json"), protocol.NewError(protocol.ErrNotFound, "no display"))

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"HELLO","protocol_version":"1.0","client_name":"x","wire_version":0}`), &bad)
	if err := compile("hello.schema.json").Validate(bad); err == nil {
		t.Fatalf("expected wire_version 0 rejected")
	}
}
