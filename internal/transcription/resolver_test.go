package transcription

import (
	"errors"
	"testing"

	"github.com/openscribe/scribe-backend/internal/shared"
)

func TestResolveKindAliases(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{"", KindWhisperLocal},
		{"whisper", KindWhisperLocal},
		{"Whisper-Local", KindWhisperLocal},
		{"LOCAL", KindWhisperLocal},
		{"fast", KindWhisperLocal},
		{"medasr", KindMedASRLocal},
		{"  medical  ", KindMedASRLocal},
		{"MedASR-Local", KindMedASRLocal},
		{"openai", KindOpenAI},
		{"hosted", KindOpenAI},
		{"whisper-api", KindOpenAI},
	}

	for _, tc := range cases {
		kind, err := ResolveKind(tc.raw)
		if err != nil {
			t.Errorf("ResolveKind(%q) error: %v", tc.raw, err)
			continue
		}
		if kind != tc.kind {
			t.Errorf("ResolveKind(%q) = %s, want %s", tc.raw, kind, tc.kind)
		}
	}
}

func TestResolveKindUnknown(t *testing.T) {
	_, err := ResolveKind("deepgram")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	var se *shared.StructuredError
	if !errors.As(err, &se) || se.Code != shared.CodeConfiguration {
		t.Errorf("expected configuration_error, got %v", err)
	}
}

func TestNewDefaultsToWhisperLocal(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if p.Kind() != KindWhisperLocal {
		t.Errorf("default kind = %s, want %s", p.Kind(), KindWhisperLocal)
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if shared.Coerce(err).Code != shared.CodeConfiguration {
		t.Errorf("expected configuration_error, got %v", err)
	}

	if _, err := New(Config{Provider: "openai", OpenAIKey: "sk-test"}); err != nil {
		t.Errorf("New with key error: %v", err)
	}
}

func TestEndpointSafety(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"http://127.0.0.1:8002", true},
		{"http://localhost:8001", true},
		{"http://[::1]:8002", true},
		{"https://stt.example.com", true},
		{"http://stt.example.com", false},
		{"http://10.0.0.5:8002", false},
		{"ftp://127.0.0.1", false},
	}

	for _, tc := range cases {
		err := checkEndpoint(tc.url)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.url, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s: expected configuration error", tc.url)
				continue
			}
			se := shared.Coerce(err)
			if se.Code != shared.CodeConfiguration || se.Recoverable {
				t.Errorf("%s: want fatal configuration_error, got %+v", tc.url, se)
			}
		}
	}
}

func TestNewRejectsInsecureRemoteBeforeAnySend(t *testing.T) {
	_, err := New(Config{Provider: "whisper", WhisperURL: "http://stt.example.com"})
	if err == nil {
		t.Fatal("expected configuration error for insecure remote whisper endpoint")
	}
	_, err = New(Config{Provider: "medasr", MedASRURL: "http://asr.internal:8001"})
	if err == nil {
		t.Fatal("expected configuration error for insecure remote medasr endpoint")
	}
}
