package oauth2client

import (
	"reflect"
	"testing"
)

func TestTokenRequestParams_RequestedScopes(t *testing.T) {
	tests := []struct {
		name   string
		params TokenRequestParams
		want   []string
	}{
		{
			name:   "nothing configured",
			params: TokenRequestParams{},
			want:   []string{},
		},
		{
			name:   "configured scopes only",
			params: TokenRequestParams{Scopes: []string{"storage.read:/", "compute.create"}},
			want:   []string{"storage.read:/", "compute.create"},
		},
		{
			name:   "wlcg profile",
			params: TokenRequestParams{Profile: "wlcg"},
			want:   []string{"wlcg"},
		},
		{
			name:   "wlcg 1.0 profile with subject",
			params: TokenRequestParams{Scopes: []string{"storage.read:/"}, Profile: "wlcg:1.0", Subject: "alice"},
			want:   []string{"storage.read:/", "wlcg", "condor.user:alice"},
		},
		{
			name:   "other profile ignored",
			params: TokenRequestParams{Profile: "scitokens:2.0"},
			want:   []string{},
		},
		{
			name:   "subject escaped",
			params: TokenRequestParams{Subject: "alice smith@example.org"},
			want:   []string{"condor.user:alice%20smith%40example.org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.params.RequestedScopes()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RequestedScopes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenRequestParams_RequestedScopes_DoesNotMutateConfig(t *testing.T) {
	configured := make([]string, 1, 4)
	configured[0] = "read"
	params := TokenRequestParams{Scopes: configured, Profile: "wlcg", Subject: "bob"}

	first := params.RequestedScopes()
	second := params.RequestedScopes()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls differ: %v vs %v", first, second)
	}
	if len(params.Scopes) != 1 || configured[:2][1] != "" {
		t.Errorf("configured scopes were modified: %v", configured[:cap(configured)])
	}
}

func TestTokenRequestParams_Payload(t *testing.T) {
	params := TokenRequestParams{
		Scopes:   []string{"a", "b"},
		Audience: []string{"aud1", "aud2"},
	}

	payload := params.payload("client-x")

	if got := payload.Get(FieldClientID); got != "client-x" {
		t.Errorf("expected client_id 'client-x', got %q", got)
	}
	if got := payload.Get(FieldGrantType); got != GrantTypeClientCredentials {
		t.Errorf("expected grant type, got %q", got)
	}
	if got := payload.Get(FieldScopes); got != "a b" {
		t.Errorf("expected space-joined scopes, got %q", got)
	}
	if got := payload.Get(FieldAudience); got != "aud1 aud2" {
		t.Errorf("expected space-joined audience, got %q", got)
	}
	if _, ok := payload[FieldClientSecret]; ok {
		t.Error("payload must never include the client secret")
	}
}
