package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckAdminAuth(t *testing.T) {
	cases := []struct {
		header, value string
		want          bool
	}{
		{"X-Admin-Key", "k", true},
		{"Authorization", "Bearer k", true},
		{"Authorization", "Bearer other", false},
		{"Authorization", "k", false},
		{"", "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		if got := CheckAdminAuth(req, "k"); got != tc.want {
			t.Fatalf("%s=%q: got %v, want %v", tc.header, tc.value, got, tc.want)
		}
	}
}
