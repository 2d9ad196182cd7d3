package flagx

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var serverFlags = []string{"-a", "-g", "-d", "-s", "-r"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate values",
			args:    []string{"-a", ":3000", "-d", "memory"},
			allowed: serverFlags,
			want:    []string{"-a", ":3000", "-d", "memory"},
		},
		{
			name:    "equals form",
			args:    []string{"-d=postgres://u:p@db/tk", "-z=1"},
			allowed: serverFlags,
			want:    []string{"-d=postgres://u:p@db/tk"},
		},
		{
			name:    "authctl subcommand args are skipped",
			args:    []string{"-d", "memory", "create-user", "-email", "ann@example.com", "-password-stdin"},
			allowed: serverFlags,
			want:    []string{"-d", "memory"},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-s"},
			allowed: serverFlags,
			want:    []string{"-s"},
		},
		{
			name:    "next dash token is not a value",
			args:    []string{"-r", "-s", "access"},
			allowed: serverFlags,
			want:    []string{"-r", "-s", "access"},
		},
		{
			name:    "equals value may start with a dash",
			args:    []string{"-s=-weird-secret"},
			allowed: serverFlags,
			want:    []string{"-s=-weird-secret"},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-g", ":1", "-g", ":2"},
			allowed: serverFlags,
			want:    []string{"-g", ":1", "-g", ":2"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", ":3000", "positional"},
			allowed: nil,
			want:    []string{},
		},
		{
			name:    "empty input",
			args:    nil,
			allowed: serverFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("FilterArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"short form", []string{"tokenkeeper", "-c", "/etc/tk.yaml"}, "/etc/tk.yaml"},
		{"long form", []string{"tokenkeeper", "-config=/etc/tk.json"}, "/etc/tk.json"},
		{"absent", []string{"tokenkeeper", "-a", ":3000"}, ""},
		{"last wins", []string{"authctl", "-c", "/a.json", "-config", "/b.yml", "reap"}, "/b.yml"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			os.Args = tc.args
			assert.Equal(t, tc.want, ConfigFileFlag())
		})
	}
}
