package opencti

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/stix"
)

type recordedCall struct {
	Query     string
	Variables map[string]any
}

type fakePlatform struct {
	mu        sync.Mutex
	calls     []recordedCall
	responder func(query string) string
	auth      string
}

func (f *fakePlatform) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Query: req.Query, Variables: req.Variables})
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.responder(req.Query)))
	})
}

func (f *fakePlatform) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakePlatform) Auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth
}

func newTestClient(t *testing.T, responder func(query string) string) (*Client, *fakePlatform) {
	fake := &fakePlatform{responder: responder}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "token-123", "connector-1", server.Client()), fake
}

func okResponder(query string) string {
	switch {
	case strings.Contains(query, "labelAdd"):
		return `{"data": {"labelAdd": {"id": "label-1", "value": "vysion"}}}`
	case strings.Contains(query, "externalReferenceAdd"):
		return `{"data": {"externalReferenceAdd": {"id": "extref-1"}}}`
	default:
		return `{"data": {"ok": true}}`
	}
}

func TestSendBundle(t *testing.T) {
	client, fake := newTestClient(t, okResponder)

	actor, _ := stix.NewThreatActor("LockBit", []string{"ransomware"}, time.Now())
	bundle := stix.NewBundle(actor)

	if err := client.SendBundle(context.Background(), bundle); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(fake.Calls()) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(fake.Calls()))
	}
	call := fake.Calls()[0]
	if !strings.Contains(call.Query, "stixBundlePush") {
		t.Errorf("Expected stixBundlePush mutation, got %s", call.Query)
	}
	if call.Variables["connectorId"] != "connector-1" {
		t.Errorf("Expected connector id, got %v", call.Variables["connectorId"])
	}
	serialized, _ := call.Variables["bundle"].(string)
	if !strings.Contains(serialized, bundle.ID) || !strings.Contains(serialized, `"name":"LockBit"`) {
		t.Errorf("Expected serialized bundle, got %s", serialized)
	}
	if fake.Auth() != "Bearer token-123" {
		t.Errorf("Expected bearer token, got %s", fake.Auth())
	}
}

func TestSendBundleGraphQLError(t *testing.T) {
	client, _ := newTestClient(t, func(string) string {
		return `{"errors": [{"message": "Bundle rejected"}], "data": null}`
	})

	err := client.SendBundle(context.Background(), stix.NewBundle())
	if failure.KindOf(err) != failure.KindSubmission {
		t.Fatalf("Expected submission failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "Bundle rejected") {
		t.Errorf("Expected platform message in error, got %v", err)
	}
}

func TestSendBundleHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", "connector-1", server.Client())
	err := client.SendBundle(context.Background(), stix.NewBundle())
	if failure.KindOf(err) != failure.KindSubmission {
		t.Errorf("Expected submission failure, got %v", err)
	}
}

func TestUpdateScore(t *testing.T) {
	client, fake := newTestClient(t, okResponder)

	if err := client.UpdateScore(context.Background(), "observable-1", 80); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	call := fake.Calls()[0]
	if call.Variables["id"] != "observable-1" {
		t.Errorf("Expected entity id, got %v", call.Variables["id"])
	}
	input := call.Variables["input"].([]any)[0].(map[string]any)
	if input["key"] != "x_opencti_score" {
		t.Errorf("Expected x_opencti_score, got %v", input["key"])
	}
	if values := input["value"].([]any); len(values) != 1 || values[0] != "80" {
		t.Errorf("Expected value [80], got %v", input["value"])
	}
}

func TestAddLabelCachesLabelID(t *testing.T) {
	client, fake := newTestClient(t, okResponder)

	for i := 0; i < 2; i++ {
		if err := client.AddLabel(context.Background(), "observable-1", "vysion"); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	labelAdds := 0
	relationAdds := 0
	for _, call := range fake.Calls() {
		if strings.Contains(call.Query, "labelAdd") {
			labelAdds++
		}
		if strings.Contains(call.Query, "relationAdd") {
			relationAdds++
			input := call.Variables["input"].(map[string]any)
			if input["toId"] != "label-1" || input["relationship_type"] != "object-label" {
				t.Errorf("Unexpected relationAdd input: %v", input)
			}
		}
	}
	if labelAdds != 1 {
		t.Errorf("Expected label to be created once, got %d", labelAdds)
	}
	if relationAdds != 2 {
		t.Errorf("Expected 2 relationAdd calls, got %d", relationAdds)
	}
}

func TestEnsureLabelWithColor(t *testing.T) {
	client, fake := newTestClient(t, okResponder)

	id, err := client.EnsureLabel(context.Background(), "whitelist", "#4caf50")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if id != "label-1" {
		t.Errorf("Expected label-1, got %s", id)
	}
	input := fake.Calls()[0].Variables["input"].(map[string]any)
	if input["value"] != "whitelist" || input["color"] != "#4caf50" {
		t.Errorf("Unexpected label input: %v", input)
	}
}

func TestEnsureLabelMissingID(t *testing.T) {
	client, _ := newTestClient(t, func(string) string {
		return `{"data": {"labelAdd": null}}`
	})

	if _, err := client.EnsureLabel(context.Background(), "whitelist", "#4caf50"); failure.KindOf(err) != failure.KindSubmission {
		t.Errorf("Expected submission failure, got %v", err)
	}
}

func TestAddExternalReference(t *testing.T) {
	client, fake := newTestClient(t, okResponder)

	ref := stix.ExternalReference{SourceName: "Byron Labs", URL: "https://github.com/ByronLabs/vysion-cti", Description: "Vysion connector"}
	if err := client.AddExternalReference(context.Background(), "observable-1", ref); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(fake.Calls()) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(fake.Calls()))
	}
	input := fake.Calls()[0].Variables["input"].(map[string]any)
	if input["source_name"] != "Byron Labs" || input["url"] != ref.URL {
		t.Errorf("Unexpected external reference input: %v", input)
	}
	rel := fake.Calls()[1].Variables["input"].(map[string]any)
	if rel["toId"] != "extref-1" || rel["relationship_type"] != "external-reference" {
		t.Errorf("Unexpected relationAdd input: %v", rel)
	}
}

func TestCheckMaxTLP(t *testing.T) {
	tests := []struct {
		tlp, max string
		want     bool
	}{
		{"TLP:CLEAR", "TLP:GREEN", true},
		{"TLP:WHITE", "TLP:GREEN", true},
		{"TLP:GREEN", "TLP:GREEN", true},
		{"TLP:AMBER", "TLP:GREEN", false},
		{"TLP:AMBER+STRICT", "TLP:AMBER", false},
		{"TLP:RED", "TLP:RED", true},
		{"tlp:green", "TLP:AMBER", true},
		{"PAP:GREEN", "TLP:RED", false},
		{"TLP:GREEN", "bogus", false},
	}

	for _, tt := range tests {
		if got := CheckMaxTLP(tt.tlp, tt.max); got != tt.want {
			t.Errorf("CheckMaxTLP(%s, %s) = %v, want %v", tt.tlp, tt.max, got, tt.want)
		}
	}

	if !ValidTLP("TLP:AMBER") || ValidTLP("TLP:BLUE") {
		t.Error("Unexpected ValidTLP result")
	}
}
