package masking

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"abc":              "****",
		"psk_abcdef123456": "psk_****3456",
		"12345678909":      "****8909",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskJSONOnlyTouchesSensitiveKeys(t *testing.T) {
	got := MaskJSON(map[string]any{
		"event_type": "ACCOUNT_CREATED",
		"api_key":    "key_1234567890",
		"nested":     map[string]any{"access_token": "tok_abcdefgh"},
		"":           "dropped",
	})

	if got["event_type"] != "ACCOUNT_CREATED" {
		t.Fatalf("plain value changed: %v", got["event_type"])
	}
	if got["api_key"] != "key_****7890" {
		t.Fatalf("api_key not masked: %v", got["api_key"])
	}
	nested, ok := got["nested"].(map[string]any)
	if !ok || nested["access_token"] != "tok_****efgh" {
		t.Fatalf("nested token not masked: %v", got["nested"])
	}
	if _, ok := got[""]; ok {
		t.Fatal("blank key kept")
	}
	if MaskJSON(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
