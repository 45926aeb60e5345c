package partnerapi

import "testing"

func TestEndpointLabel(t *testing.T) {
	cases := map[string]string{
		"/accounts":          "/accounts",
		"/accounts/acc_123":  "/accounts/:id",
		"/myAccount/status":  "/myAccount/status",
		"/accounts?cpfCnpj=": "/accounts",
	}
	for in, want := range cases {
		if got := endpointLabel(in); got != want {
			t.Fatalf("endpointLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
