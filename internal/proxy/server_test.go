package proxy

import "testing"

func TestServiceNameFromHost(t *testing.T) {
	cases := []struct {
		host    string
		want    string
		wantErr bool
	}{
		{host: "color.com:7777", want: "color.com"},
		{host: "color.com", wantErr: true},
		{host: "", wantErr: true},
		{host: "color.com:8080", wantErr: true},
		{host: ":7777", wantErr: true},
	}
	for _, c := range cases {
		got, err := serviceNameFromHost(c.host)
		if c.wantErr {
			if err == nil {
				t.Errorf("serviceNameFromHost(%q) = %q, want error", c.host, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("serviceNameFromHost(%q) returned error: %v", c.host, err)
			continue
		}
		if got != c.want {
			t.Errorf("serviceNameFromHost(%q) = %q, want %q", c.host, got, c.want)
		}
	}
}
