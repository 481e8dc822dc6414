package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/users":                     "/v1/users",
		"/v1/users/01J5YD3":             "/v1/users/:id",
		"/v1/roles/01J5YD3":             "/v1/roles/:id",
		"/v1/roles/01J5YD3/permissions": "/v1/roles/:id/permissions",
		"/v1/permissions":               "/v1/permissions",
		"/v1/users?limit=10":            "/v1/users",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
