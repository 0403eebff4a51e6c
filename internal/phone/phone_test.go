package phone

import "testing"

func TestSubscriberNumber(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"abc":               "",
		"+972 54-123-4567":  "541234567",
		"972541234567":      "541234567",
		"054-1234567":       "541234567",
		"(054) 123 4567":    "541234567",
		"541234567":         "541234567",
		"+972-054-1234567":  "541234567",
		"03-5551234":        "35551234",
		"00972541234567":    "0972541234567",
		"1-800-555-000":     "1800555000",
	}

	for in, want := range cases {
		if got := SubscriberNumber(in); got != want {
			t.Errorf("SubscriberNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDialingNumber(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"", "", false},
		{"no digits", "", false},
		{"0541234567", "972541234567", true},
		{"054-123-4567", "972541234567", true},
		{"+972 54 123 4567", "972541234567", true},
		{"541234567", "972541234567", true},
		{"35551234", "35551234", true},
		{"12025550123", "12025550123", true},
	}

	for _, tc := range cases {
		got, ok := DialingNumber(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("DialingNumber(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestDialingRoundTripsToSubscriber(t *testing.T) {
	inputs := []string{
		"0541234567",
		"+972 54-123-4567",
		"972541234567",
		"541234567",
		"03-5551234",
		"(052) 987-6543",
		"12025550123",
	}

	for _, in := range inputs {
		dialing, ok := DialingNumber(in)
		if !ok {
			t.Fatalf("DialingNumber(%q) reported no digits", in)
		}
		if got, want := SubscriberNumber(dialing), SubscriberNumber(in); got != want {
			t.Errorf("round trip of %q: got %q, want %q", in, got, want)
		}
	}
}
